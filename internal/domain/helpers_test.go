package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, id, createdAt string, fields ...any) Record {
	t.Helper()
	payload := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		payload[fields[i].(string)] = fields[i+1]
	}
	r, err := NewRecord(id, createdAt, payload)
	require.NoError(t, err)
	return r
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

// fakeSource serves canned pages per resource and records every request.
type fakeSource struct {
	mu      sync.Mutex
	pages   map[string][]Page
	failAt  map[string]int
	items   map[string]Record
	calls   map[string][]int
	release chan struct{}
	started chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:  make(map[string][]Page),
		failAt: make(map[string]int),
		items:  make(map[string]Record),
		calls:  make(map[string][]int),
	}
}

// setPages installs pages for a resource; page_count is taken from the number of pages given.
func (f *fakeSource) setPages(resource string, pages ...[]Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Page, len(pages))
	for i, records := range pages {
		out[i] = Page{Number: i + 1, PageCount: len(pages), Records: records}
	}
	f.pages[resource] = out
}

func (f *fakeSource) FetchPage(ctx context.Context, resource string, page int) (Page, error) {
	f.mu.Lock()
	f.calls[resource] = append(f.calls[resource], page)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil && page == 1 {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.failAt[resource]; ok && n == page {
		return Page{}, fmt.Errorf("page %d: 503 service unavailable", page)
	}
	pages := f.pages[resource]
	if len(pages) == 0 {
		return Page{Number: page, PageCount: 0}, nil
	}
	if page > len(pages) {
		return Page{Number: page, PageCount: len(pages)}, nil
	}
	return pages[page-1], nil
}

func (f *fakeSource) FetchOne(_ context.Context, resource, id string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[resource+"/one"] = append(f.calls[resource+"/one"], 0)
	r, ok := f.items[resource+"/"+id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, resource, id)
	}
	return r, nil
}

func (f *fakeSource) requests(resource string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls[resource]...)
}

// memStore is an in-memory Store and BlobStore.
type memStore struct {
	mu      sync.Mutex
	data    map[Collection][]Record
	blobs   map[string]json.RawMessage
	saveErr error
	loadErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[Collection][]Record), blobs: make(map[string]json.RawMessage)}
}

func (m *memStore) Load(_ context.Context, c Collection) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]Record(nil), m.data[c]...), nil
}

func (m *memStore) Save(_ context.Context, c Collection, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[c] = append([]Record(nil), records...)
	return nil
}

func (m *memStore) LoadBlob(_ context.Context, name string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[name], nil
}

func (m *memStore) SaveBlob(_ context.Context, name string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.blobs[name] = payload
	return nil
}

func (m *memStore) snapshot(c Collection) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.data[c]...)
}
