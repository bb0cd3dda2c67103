package mirror

import (
	"time"

	"github.com/lepinkainen/listado/internal/config"
	"github.com/lepinkainen/listado/internal/metrics"
)

// FetchPolicy decides what LoadAll and ForceRefresh do when the remote fetch fails.
type FetchPolicy int

const (
	// FetchPolicyDegrade logs the failure and reports a degraded success.
	FetchPolicyDegrade FetchPolicy = iota
	// FetchPolicyStrict returns the failure to the caller.
	FetchPolicyStrict
)

func (p FetchPolicy) String() string {
	if p == FetchPolicyStrict {
		return config.FetchPolicyStrict
	}
	return config.FetchPolicyDegrade
}

// ParseFetchPolicy maps a config value to a FetchPolicy.
func ParseFetchPolicy(s string) FetchPolicy {
	if s == config.FetchPolicyStrict {
		return FetchPolicyStrict
	}
	return FetchPolicyDegrade
}

// Option is a functional option for configuring the Synchronizer.
type Option func(*Synchronizer)

// WithBatchSize sets how many records each replace transaction writes.
func WithBatchSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay sets a pause between batches of a full replace.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.batchDelay = d
		}
	}
}

// WithNewestFirst makes GetPage sort by id descending.
func WithNewestFirst(enabled bool) Option {
	return func(s *Synchronizer) {
		s.newestFirst = enabled
	}
}

// WithFetchPolicy sets the fetch failure policy.
func WithFetchPolicy(p FetchPolicy) Option {
	return func(s *Synchronizer) {
		s.policy = p
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithStateObserver registers fn to be called after every state change.
func WithStateObserver(fn func(State)) Option {
	return func(s *Synchronizer) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// FromSettings returns the options described by resolved settings.
func FromSettings(settings config.Settings) []Option {
	return []Option{
		WithBatchSize(settings.BatchSize),
		WithBatchDelay(settings.BatchDelay),
		WithNewestFirst(settings.NewestFirst),
		WithFetchPolicy(ParseFetchPolicy(settings.FetchPolicy)),
	}
}
