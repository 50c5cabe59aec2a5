// Package filter holds the science-topic predicate functions and the
// registry that maps topic names to them.
//
// Each filter is a pure, vectorized predicate: it consumes a batch of alert
// records and returns one boolean membership decision per record. Filters
// never mutate the batch, never depend on each other, and never fail on
// per-record data problems; a missing or malformed field simply fails that
// record's cut. Topic names double as downstream routing keys, so the
// registry rejects duplicate registrations outright.
package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/astrosift/astrosift/internal/alert"
	apperrors "github.com/astrosift/astrosift/pkg/errors"
)

// Func decides topic membership for every record in a batch. The returned
// mask must have exactly one entry per record. An error is reserved for
// batch-level structural problems and fails the whole topic for this batch.
type Func func(batch alert.Batch) ([]bool, error)

// Registry owns the mapping from topic name to filter function. It is
// populated once during startup and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Func
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		filters: make(map[string]Func),
	}
}

// Register adds a filter under the given topic name. Registering the same
// name twice fails: silent shadowing would corrupt downstream routing.
func (r *Registry) Register(topic string, fn Func) error {
	if topic == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "topic name must not be empty")
	}
	if fn == nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, 400, "filter for topic %q must not be nil", topic)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.filters[topic]; exists {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateTopic, topic)
	}
	r.filters[topic] = fn
	return nil
}

// Topics returns the sorted names of all registered topics.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.filters))
	for topic := range r.filters {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Get returns the filter registered under the topic name.
func (r *Registry) Get(topic string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.filters[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownTopic, topic)
	}
	return fn, nil
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filters)
}

// Topic names are stable identifiers: downstream consumers subscribe to
// them, so renaming one is a breaking change.
const (
	TopicSNCandidate          = "sn-candidate"
	TopicSNCandidateXmatch    = "sn-candidate-xmatch"
	TopicSNCandidateML        = "sn-candidate-ml"
	TopicKNCandidate          = "kn-candidate"
	TopicRateBasedKNCandidate = "rate-based-kn-candidate"
	TopicMicrolensing         = "microlensing-candidate"
	TopicSSOCandidate         = "sso-candidate"
	TopicOrphanGRB            = "orphan-grb-candidate"
)

// RegisterBuiltins registers every built-in science filter. It is called
// explicitly from main so topic registration happens in a defined
// initialization phase rather than as an import side effect.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Func{
		TopicSNCandidate:          SNCandidates,
		TopicSNCandidateXmatch:    SNCandidatesXmatch,
		TopicSNCandidateML:        SNCandidatesML,
		TopicKNCandidate:          KNCandidates,
		TopicRateBasedKNCandidate: RateBasedKNCandidates,
		TopicMicrolensing:         MicrolensingCandidates,
		TopicSSOCandidate:         SSOCandidates,
		TopicOrphanGRB:            OrphanGRBCandidates,
	}
	for topic, fn := range builtins {
		if err := r.Register(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
