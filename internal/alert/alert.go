// Package alert defines the transient-alert record and batch types consumed
// by the filter engine, together with the shared field accessors every
// filter uses to read them.
//
// An Alert is loosely typed: the upstream survey pipeline owns the schema
// and fields come and go between alert format versions. Filters therefore
// never index records directly; they go through the accessors in this
// package, which apply a uniform missing-value policy.
package alert

import (
	"fmt"

	apperrors "github.com/astrosift/astrosift/pkg/errors"
)

// FieldObjectID is the only column every filter depends on. Batches missing
// it are rejected before any filter runs.
const FieldObjectID = "objectId"

// Alert is a single transient-detection record as decoded from JSON.
type Alert map[string]any

// ObjectID returns the alert's object identifier, or "" when absent.
func (a Alert) ObjectID() string {
	return Str(a, FieldObjectID, "")
}

// Batch is an ordered collection of alerts sharing a common field set.
// Batches are immutable inputs to filters: filters read them through the
// accessors and never mutate them.
type Batch []Alert

// Validate checks the batch-level structural contract: every record must be
// a non-nil object carrying the required identifier column. Per-record
// optional fields are not checked here; their absence is handled by the
// accessors.
func Validate(b Batch) error {
	for i, a := range b {
		if a == nil {
			return apperrors.Newf(apperrors.ErrMalformedBatch, 400, "record %d is null", i)
		}
		if _, ok := a[FieldObjectID]; !ok {
			return fmt.Errorf("record %d: %w: %s", i, apperrors.ErrMissingColumn, FieldObjectID)
		}
	}
	return nil
}

// Subset returns the alerts selected by the mask. It panics if the mask
// length does not match the batch length, since that breaks the engine's
// core invariant and can only be a programming error.
func Subset(b Batch, mask []bool) Batch {
	if len(mask) != len(b) {
		panic(fmt.Sprintf("alert: mask length %d does not match batch length %d", len(mask), len(b)))
	}
	var out Batch
	for i, keep := range mask {
		if keep {
			out = append(out, b[i])
		}
	}
	return out
}
