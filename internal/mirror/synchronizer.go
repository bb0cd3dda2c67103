package mirror

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	apperrors "github.com/lepinkainen/listado/internal/errors"
	"github.com/lepinkainen/listado/internal/metrics"
	"github.com/lepinkainen/listado/internal/record"
	"github.com/lepinkainen/listado/internal/store"
	"golang.org/x/sync/singleflight"
)

const defaultBatchSize = 5000

// ErrInvalidPage is returned by GetPage for a page or page size below 1.
var ErrInvalidPage = errors.New("invalid page")

// Source fetches the complete remote collection.
type Source interface {
	FetchAll(ctx context.Context) ([]record.Record, error)
}

// Invalidator is implemented by sources that keep their own payload cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Synchronizer owns the local store and decides when to refresh it from the source.
type Synchronizer struct {
	store   store.Store
	source  Source
	metrics *metrics.Metrics

	batchSize   int
	batchDelay  time.Duration
	newestFirst bool
	policy      FetchPolicy

	initGroup singleflight.Group
	// writeMu serializes operations that rewrite the store. Readers hold it
	// shared so they never observe a dropped or half-written collection.
	writeMu sync.RWMutex

	mu        sync.RWMutex
	state     State
	observers []func(State)
}

// New creates a Synchronizer over st, refreshing from src.
func New(st store.Store, src Source, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     st,
		source:    src,
		batchSize: defaultBatchSize,
		policy:    FetchPolicyDegrade,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureReady opens the store and creates its schema once. Concurrent callers
// share a single in-flight initialization. A failed initialization is retried
// by the next call.
func (s *Synchronizer) EnsureReady(ctx context.Context) error {
	if s.isInitialized() {
		return nil
	}

	_, err, shared := s.initGroup.Do("init", func() (any, error) {
		if s.isInitialized() {
			return nil, nil
		}

		initCtx := context.WithoutCancel(ctx)
		if err := s.store.Open(initCtx); err != nil {
			slog.Error("Failed to open local store", "error", err)
			return nil, asStoreUnavailable("open", err)
		}

		n, err := s.store.Count(initCtx)
		if err != nil {
			return nil, asStoreUnavailable("count", err)
		}

		s.update(func(st *State) {
			st.Initialized = true
			st.RecordCount = n
		})
		slog.Debug("Local store ready", "records", n)
		return nil, nil
	})
	if shared {
		slog.Debug("Joined in-flight store initialization")
	}
	return err
}

// LoadAll serves from the local store when it holds records, otherwise
// fetches the remote collection and replaces the store with it.
func (s *Synchronizer) LoadAll(ctx context.Context) (LoadResult, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return LoadResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.store.Count(ctx)
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to count local records: %w", err)
	}

	if n > 0 {
		s.setCount(n)
		slog.Debug("Local store is valid, skipping fetch", "records", n)
		return LoadResult{Count: n, FromCache: true}, nil
	}

	slog.Info("Local store is empty, fetching listing")
	return s.fetchAndReplace(ctx)
}

// GetPage returns the 1-indexed page of pageSize records. Pages past the end
// are empty.
func (s *Synchronizer) GetPage(ctx context.Context, page, pageSize int) ([]record.Record, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, page, pageSize)
	}

	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	s.writeMu.RLock()
	all, err := s.store.GetAll(ctx)
	s.writeMu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read local records: %w", err)
	}

	if s.newestFirst {
		slices.SortStableFunc(all, func(a, b record.Record) int {
			return cmp.Compare(b.ID, a.ID)
		})
	}

	return paginate(all, page, pageSize), nil
}

// AddRecord puts r at the front of the collection, replacing any record with
// the same id, and rewrites the store in the new order.
func (s *Synchronizer) AddRecord(ctx context.Context, r record.Record) error {
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read local records: %w", err)
	}

	ordered := make([]record.Record, 0, len(existing)+1)
	ordered = append(ordered, r)
	for _, e := range existing {
		if e.ID != r.ID {
			ordered = append(ordered, e)
		}
	}

	if err := s.replaceAll(context.WithoutCancel(ctx), ordered); err != nil {
		return fmt.Errorf("failed to add record %d: %w", r.ID, err)
	}

	slog.Debug("Record added", "id", r.ID, "total", len(ordered))
	return nil
}

// ForceRefresh drops the local collection, recreates it and fetches the
// remote listing again, bypassing any payload cache the source keeps.
func (s *Synchronizer) ForceRefresh(ctx context.Context) (LoadResult, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return LoadResult{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Drop(ctx); err != nil {
		return LoadResult{}, asStoreUnavailable("drop", err)
	}
	s.update(func(st *State) {
		st.Initialized = false
		st.RecordCount = 0
	})

	if err := s.EnsureReady(ctx); err != nil {
		return LoadResult{}, err
	}

	if inv, ok := s.source.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			slog.Warn("Failed to invalidate payload cache", "error", err)
		}
	}

	slog.Info("Local store dropped, fetching listing")
	return s.fetchAndReplace(ctx)
}

// fetchAndReplace must be called with writeMu held.
func (s *Synchronizer) fetchAndReplace(ctx context.Context) (LoadResult, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	start := time.Now()
	records, err := s.source.FetchAll(ctx)
	if err != nil {
		fetchErr := asFetchFailed(err)
		if s.policy == FetchPolicyStrict {
			s.metrics.ObserveFetch(metrics.OutcomeError, time.Since(start))
			slog.Error("Remote fetch failed", "error", fetchErr)
			return LoadResult{}, fetchErr
		}

		s.metrics.ObserveFetch(metrics.OutcomeDegraded, time.Since(start))
		slog.Warn("Remote fetch failed, keeping local store as is", "error", fetchErr)
		return LoadResult{
			Count:    s.State().RecordCount,
			Degraded: true,
			FetchErr: fetchErr,
		}, nil
	}
	s.metrics.ObserveFetch(metrics.OutcomeSuccess, time.Since(start))
	slog.Debug("Remote listing fetched", "records", len(records), "duration", time.Since(start))

	if err := s.replaceAll(context.WithoutCancel(ctx), records); err != nil {
		return LoadResult{Count: s.State().RecordCount}, err
	}

	count := s.State().RecordCount
	slog.Info("Local store replaced", "records", count)
	return LoadResult{Count: count}, nil
}

// replaceAll clears the store and writes records in sequential batches.
// It must be called with writeMu held.
func (s *Synchronizer) replaceAll(ctx context.Context, records []record.Record) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}

	var writeErr error
	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		if err := s.store.PutBatch(ctx, records[start:end]); err != nil {
			writeErr = fmt.Errorf("batch [%d, %d): %w", start, end, err)
			slog.Error("Batch write failed, aborting replace", "start", start, "end", end, "error", err)
			break
		}
		s.metrics.ObserveBatch(end - start)
		slog.Debug("Batch committed", "start", start, "end", end)

		if end < len(records) {
			s.yield()
		}
	}

	n, err := s.store.Count(ctx)
	if err != nil {
		return errors.Join(writeErr, fmt.Errorf("failed to count local records: %w", err))
	}
	s.setCount(n)
	return writeErr
}

func (s *Synchronizer) yield() {
	runtime.Gosched()
	if s.batchDelay > 0 {
		time.Sleep(s.batchDelay)
	}
}

func paginate(all []record.Record, page, pageSize int) []record.Record {
	if page-1 > len(all)/pageSize {
		return []record.Record{}
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []record.Record{}
	}
	end := min(start+pageSize, len(all))
	return all[start:end]
}

func asStoreUnavailable(op string, err error) error {
	if apperrors.IsStoreUnavailable(err) {
		return err
	}
	return apperrors.NewStoreUnavailableError(op, err)
}

func asFetchFailed(err error) error {
	if apperrors.IsFetchFailed(err) {
		return err
	}
	return apperrors.NewFetchFailedError("remote", err)
}
