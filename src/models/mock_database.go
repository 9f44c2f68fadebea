package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockDatabase is an in-memory IDatabaseService used by the engine tests.
// It mimics the transactional contract of the real gateway: SaveAccount
// either applies the full state plus events, or nothing.
type MockDatabase struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*AccountState // keyed by user id
	trades     map[uuid.UUID]*Trade
	snapshots  map[uuid.UUID]*Snapshot
	equity     map[uuid.UUID][]EquityPoint
	events     map[uuid.UUID][]AccountEvent
	saveErr    error
	saveCalls  int
	tradeCalls int
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		accounts:  make(map[uuid.UUID]*AccountState),
		trades:    make(map[uuid.UUID]*Trade),
		snapshots: make(map[uuid.UUID]*Snapshot),
		equity:    make(map[uuid.UUID][]EquityPoint),
		events:    make(map[uuid.UUID][]AccountEvent),
	}
}

// FailNextSave makes subsequent SaveAccount calls return err until cleared.
func (m *MockDatabase) FailNextSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveErr = err
}

func (m *MockDatabase) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveCalls
}

func (m *MockDatabase) TradeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tradeCalls
}

func (m *MockDatabase) LoadAccount(ctx context.Context, userID uuid.UUID) (*AccountState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, found := m.accounts[userID]
	if !found {
		return nil, false, nil
	}

	return copyState(state), true, nil
}

func (m *MockDatabase) SaveAccount(ctx context.Context, state *AccountState, events []AccountEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++

	if m.saveErr != nil {
		return m.saveErr
	}

	m.accounts[state.Account.UserID] = copyState(state)
	m.events[state.Account.ID] = append(m.events[state.Account.ID], events...)

	return nil
}

func (m *MockDatabase) SaveTrade(ctx context.Context, trade *Trade, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tradeCalls++

	if _, found := m.snapshots[snapshot.OrderID]; found {
		return fmt.Errorf("MockDatabase.SaveTrade: %w", ErrSnapshotExists)
	}

	t := *trade
	s := *snapshot
	m.trades[trade.ID] = &t
	m.snapshots[snapshot.OrderID] = &s

	return nil
}

func (m *MockDatabase) LoadSnapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, found := m.snapshots[orderID]
	if !found {
		return nil, false, nil
	}

	s := *snapshot

	return &s, true, nil
}

func (m *MockDatabase) SaveEquityPoint(ctx context.Context, accountID uuid.UUID, timestamp time.Time, equity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.equity[accountID] = append(m.equity[accountID], EquityPoint{Timestamp: timestamp, Equity: equity})

	return nil
}

func (m *MockDatabase) LoadEquityHistory(ctx context.Context, accountID uuid.UUID, from time.Time) ([]EquityPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []EquityPoint
	for _, point := range m.equity[accountID] {
		if point.Timestamp.Before(from) {
			continue
		}

		out = append(out, point)
	}

	return out, nil
}

func (m *MockDatabase) LoadEvents(ctx context.Context, accountID uuid.UUID) ([]AccountEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]AccountEvent, len(m.events[accountID]))
	copy(events, m.events[accountID])

	return events, nil
}

func copyState(state *AccountState) *AccountState {
	account := *state.Account

	positions := NewPositionBook()
	for _, pos := range state.Positions.All() {
		positions.Restore(pos)
	}

	orders := make([]*SimOrder, 0, len(state.Orders))
	for _, order := range state.Orders {
		o := *order
		orders = append(orders, &o)
	}

	return &AccountState{
		Account:   &account,
		Positions: positions,
		Orders:    orders,
	}
}
