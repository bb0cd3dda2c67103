package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/lepinkainen/listado/internal/record"
)

// FakeSource is an in-memory remote source that counts fetches.
type FakeSource struct {
	mu      sync.Mutex
	records []record.Record
	err     error
	calls   int
	block   chan struct{}
}

// NewFakeSource returns a source serving records.
func NewFakeSource(records []record.Record) *FakeSource {
	return &FakeSource{records: records}
}

// FetchAll returns a copy of the configured records or the configured error.
func (f *FakeSource) FetchAll(ctx context.Context) ([]record.Record, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]record.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

// Set replaces the served records and error.
func (f *FakeSource) Set(records []record.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

// Block makes subsequent fetches wait until the returned release func is called.
func (f *FakeSource) Block() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.block = nil
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many times FetchAll was invoked.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MakeRecords returns n records with ids 1..n.
func MakeRecords(n int) []record.Record {
	records := make([]record.Record, n)
	for i := range records {
		id := int64(i + 1)
		records[i] = record.Record{ID: id, Name: fmt.Sprintf("categoria-%d", id)}
	}
	return records
}
