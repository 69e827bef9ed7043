package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bookshop/pkg/eventstore"
	"bookshop/pkg/paging"
)

type memEventLog struct {
	mu      sync.Mutex
	streams map[uuid.UUID][]eventstore.Event
}

func newMemEventLog() *memEventLog {
	return &memEventLog{streams: map[uuid.UUID][]eventstore.Event{}}
}

func (m *memEventLog) AppendEvents(ctx context.Context, id uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(events) == 0 {
		return eventstore.ErrNoEvents
	}
	if len(m.streams[id]) != expectedVersion {
		return eventstore.ErrConcurrencyConflict
	}
	for i, e := range events {
		e.AggregateID = id
		e.AggregateType = aggregateType
		e.Version = expectedVersion + i + 1
		m.streams[id] = append(m.streams[id], e)
	}
	return nil
}

func (m *memEventLog) LoadEvents(ctx context.Context, id uuid.UUID, fromVersion, toVersion int) ([]eventstore.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []eventstore.Event{}
	for _, e := range m.streams[id] {
		if e.Version >= fromVersion && (toVersion <= 0 || e.Version <= toVersion) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEventLog) GetCurrentVersion(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams[id]), nil
}

type memBooks struct {
	mu     sync.Mutex
	nextID int64
	books  map[string]Book
}

func newMemBooks() *memBooks {
	return &memBooks{books: map[string]Book{}}
}

func (m *memBooks) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[isbn]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memBooks) Insert(ctx context.Context, b Book) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ISBN]; ok {
		return nil, alreadyExists(b.ISBN)
	}
	m.nextID++
	b.ID = m.nextID
	b.Version = 1
	m.books[b.ISBN] = b
	return &b, nil
}

func (m *memBooks) Update(ctx context.Context, b Book) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[b.ISBN]
	if !ok || cur.Version != b.Version {
		return nil, eventstore.ErrConcurrencyConflict
	}
	b.Version++
	m.books[b.ISBN] = b
	return &b, nil
}

func (m *memBooks) DeleteByISBN(ctx context.Context, isbn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, isbn)
	return nil
}

func (m *memBooks) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = map[string]Book{}
	return nil
}

// FindAll orders by id descending whatever the request asks for.
func (m *memBooks) FindAll(ctx context.Context, page paging.Request) ([]Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := page.OrderBy(sortColumns); err != nil {
		return nil, err
	}
	all := make([]Book, 0, len(m.books))
	for _, b := range m.books {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := min(page.Offset(), len(all))
	end := min(start+page.Size, len(all))
	return all[start:end], nil
}

func (m *memBooks) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.books)), nil
}
