package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process memory. It backs local
// development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	hub         *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		hub:         newHub(),
	}
}

func (m *MemoryStore) Subscribe(ctx context.Context, q Query, onSnapshot func([]Document), onError func(error)) (Unsubscribe, error) {
	sub := &subscription{collection: q.Collection, onError: onError}
	sub.fetch = func(ctx context.Context) error {
		docs, err := m.Query(ctx, q)
		if err != nil {
			return err
		}
		if !sub.stopped() {
			onSnapshot(docs)
		}
		return nil
	}
	return m.hub.add(ctx, sub)
}

func (m *MemoryStore) SubscribeDoc(ctx context.Context, collection, id string, onSnapshot func(*Document), onError func(error)) (Unsubscribe, error) {
	sub := &subscription{collection: collection, docID: id, onError: onError}
	sub.fetch = func(ctx context.Context) error {
		doc, err := m.Get(ctx, collection, id)
		if err == ErrNotFound {
			doc, err = nil, nil
		}
		if err != nil {
			return err
		}
		if !sub.stopped() {
			onSnapshot(doc)
		}
		return nil
	}
	return m.hub.add(ctx, sub)
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: cloneData(data)}, nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	docs := []Document{}
	for id, data := range m.collections[q.Collection] {
		d := Document{ID: id, Data: data}
		if q.matches(d) {
			docs = append(docs, d)
		}
	}
	docs = cloneDocs(docs)
	m.mu.RUnlock()

	q.sort(docs)
	return docs, nil
}

func (m *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	if err := m.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	norm, err := Normalize(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		m.collections[collection] = coll
	}
	coll[id] = norm
	m.mu.Unlock()

	m.hub.changed(collection, id)
	return nil
}

func (m *MemoryStore) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	norm, err := Normalize(patch)
	if err != nil {
		return err
	}
	return m.Update(ctx, collection, id, func(map[string]any) (map[string]any, error) {
		return norm, nil
	})
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	m.mu.Lock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		m.collections[collection] = coll
	}
	var current map[string]any
	if data, ok := coll[id]; ok {
		current = cloneData(data)
	}
	patch, err := fn(current)
	if err != nil || patch == nil {
		m.mu.Unlock()
		return err
	}
	norm, err := Normalize(patch)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	coll[id] = MergePatch(coll[id], norm)
	m.mu.Unlock()

	m.hub.changed(collection, id)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	_, ok := m.collections[collection][id]
	if ok {
		delete(m.collections[collection], id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	m.hub.changed(collection, id)
	return nil
}

func (m *MemoryStore) Close() error {
	m.hub.close()
	return nil
}

// Subscriptions reports how many live subscriptions are registered.
func (m *MemoryStore) Subscriptions() int {
	return m.hub.len()
}
