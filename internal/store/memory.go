package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

// MemoryStore keeps games in process. Subscribers are called synchronously,
// after the write, outside the store lock.
type MemoryStore struct {
	mu     sync.Mutex
	games  map[string]*Record
	codes  map[string]string
	subs   map[string]map[int]func(*Record)
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*Record),
		codes: make(map[string]string),
		subs:  make(map[string]map[int]func(*Record)),
	}
}

func (m *MemoryStore) Create(_ context.Context, board mancala.Board, hostID string) (*Record, error) {
	if err := checkCreate(board, hostID); err != nil {
		return nil, err
	}
	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		Board:     board,
		HostID:    strings.TrimSpace(hostID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		code, err := codeGen()
		if err != nil {
			return nil, err
		}
		if _, taken := m.codes[code]; !taken {
			rec.Code = code
			m.codes[code] = rec.ID
			break
		}
	}
	m.games[rec.ID] = rec
	return rec.clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (m *MemoryStore) FindByCode(ctx context.Context, code string) (*Record, error) {
	m.mu.Lock()
	id, ok := m.codes[normalizeCode(code)]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *MemoryStore) Update(_ context.Context, id string, board mancala.Board, playerID string, movedPit *int, expect int64) (*Record, error) {
	return m.mutate(id, func(rec *Record) error { return applyUpdate(rec, board, playerID, movedPit, expect) })
}

func (m *MemoryStore) AssignGuest(_ context.Context, id, guestID string) (*Record, error) {
	return m.mutate(id, func(rec *Record) error { return applyGuest(rec, guestID) })
}

func (m *MemoryStore) mutate(id string, fn func(*Record) error) (*Record, error) {
	m.mu.Lock()
	cur, ok := m.games[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	next := cur.clone()
	if err := fn(next); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	next.Version++
	next.UpdatedAt = time.Now()
	m.games[id] = next
	var listeners []func(*Record)
	for _, f := range m.subs[id] {
		listeners = append(listeners, f)
	}
	m.mu.Unlock()

	for _, f := range listeners {
		f(next.clone())
	}
	return next.clone(), nil
}

type memorySubscription struct {
	m   *MemoryStore
	id  string
	key int
}

func (s *memorySubscription) Unsubscribe() error {
	s.m.mu.Lock()
	delete(s.m.subs[s.id], s.key)
	s.m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, id string, onChange func(*Record)) (Subscription, error) {
	if onChange == nil {
		return nil, ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return nil, ErrNotFound
	}
	if m.subs[id] == nil {
		m.subs[id] = make(map[int]func(*Record))
	}
	m.nextID++
	m.subs[id][m.nextID] = onChange
	return &memorySubscription{m: m, id: id, key: m.nextID}, nil
}
