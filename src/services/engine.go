package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tradevane/tradevane/src/eventpubsub"
	"github.com/tradevane/tradevane/src/models"
)

// PriceSource serves the reference price used by matching. It never fails;
// staleness and fallbacks are the implementation's concern.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) float64
}

// Engine is the local market simulation engine. It owns one in-memory
// account state per user; after the initial load memory is authoritative and
// the database only ever receives projections of it.
//
// All mutating operations and the matching pass for one account serialize on
// that account's handle mutex. Different accounts never contend.
type Engine struct {
	cfg       SimConfig
	prices    PriceSource
	bars      BarProvider
	db        models.IDatabaseService
	snapshots *SnapshotRecorder
	slippage  *slippageModel
	now       func() time.Time

	mu      sync.Mutex
	handles map[uuid.UUID]*accountHandle
}

type accountHandle struct {
	mu    sync.Mutex
	state *models.AccountState
}

func NewEngine(cfg SimConfig, prices PriceSource, bars BarProvider, db models.IDatabaseService, snapshots *SnapshotRecorder) *Engine {
	return &Engine{
		cfg:       cfg,
		prices:    prices,
		bars:      bars,
		db:        db,
		snapshots: snapshots,
		slippage:  newSlippageModel(cfg.SlippageMin, cfg.SlippageMax, time.Now().UnixNano()),
		now:       time.Now,
		handles:   make(map[uuid.UUID]*accountHandle),
	}
}

// Account returns the provider scoped to one user's simulated account. The
// underlying account is created lazily on first use.
func (e *Engine) Account(userID uuid.UUID) *AccountClient {
	return &AccountClient{engine: e, userID: userID}
}

// Start launches the background matching ticker. Each tick evaluates every
// pending order against a fresh reference price and records an equity point
// per account. The goroutine exits when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()

		log.Infof("Engine: matching ticker started, interval %v", e.cfg.TickInterval)

		for {
			select {
			case <-ctx.Done():
				log.Info("Engine: matching ticker stopped")
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
}

// Tick runs one matching pass over every loaded account.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	handles := make([]*accountHandle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		if h.state != nil {
			events := e.matchAccount(ctx, h.state)
			e.recordEquity(ctx, h.state)

			if len(events) > 0 {
				e.persist(ctx, h.state, events)
			}
		}
		h.mu.Unlock()
	}
}

// withAccount runs fn with the user's account state loaded and its handle
// locked. The state passed to fn must not escape.
func (e *Engine) withAccount(ctx context.Context, userID uuid.UUID, fn func(state *models.AccountState) error) error {
	e.mu.Lock()
	h, found := e.handles[userID]
	if !found {
		h = &accountHandle{}
		e.handles[userID] = h
	}
	e.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		state, err := e.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		h.state = state
	}

	return fn(h.state)
}

func (e *Engine) loadOrCreate(ctx context.Context, userID uuid.UUID) (*models.AccountState, error) {
	state, found, err := e.db.LoadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if found {
		log.WithField("user_id", userID).Infof("Engine: loaded account %s with balance %.2f", state.Account.ID, state.Account.Cash())
		return state, nil
	}

	now := e.now()
	state = &models.AccountState{
		Account:   models.NewAccount(userID, e.cfg.DefaultBalance, e.cfg.MarginMultiplier, now),
		Positions: models.NewPositionBook(),
	}

	events := []models.AccountEvent{models.NewResetEvent(e.cfg.DefaultBalance, now)}
	if err := e.db.SaveAccount(ctx, state, events); err != nil {
		return nil, err
	}

	log.WithField("user_id", userID).Infof("Engine: created account %s with balance %.2f", state.Account.ID, e.cfg.DefaultBalance)

	return state, nil
}

// matchAccount evaluates every pending order once and settles the triggered
// ones. Returns the account events generated by this pass.
func (e *Engine) matchAccount(ctx context.Context, state *models.AccountState) []models.AccountEvent {
	var events []models.AccountEvent

	for _, order := range state.Orders {
		if !order.IsPending() {
			continue
		}

		referencePrice := e.prices.GetPrice(ctx, order.Symbol)

		decision := evaluateOrder(order, referencePrice, e.slippage)
		if !decision.triggered {
			continue
		}

		events = append(events, e.settleFill(ctx, state, order, decision.price)...)
	}

	return events
}

// settleFill commits one triggered order: funds and holdings are checked,
// cash and positions move together, and the order reaches a terminal status.
// A failed check rejects the order instead of filling it.
func (e *Engine) settleFill(ctx context.Context, state *models.AccountState, order *models.SimOrder, fillPrice float64) []models.AccountEvent {
	now := e.now()
	notional := fillPrice * order.Quantity

	if order.Side == models.OrderSideBuy {
		if err := state.Account.Debit(notional); err != nil {
			return e.rejectOrder(state, order, err, now)
		}
	} else {
		if state.Positions.HeldQuantity(order.Symbol) < order.Quantity {
			return e.rejectOrder(state, order, models.ErrInsufficientPosition, now)
		}

		if err := state.Account.Credit(notional); err != nil {
			return e.rejectOrder(state, order, err, now)
		}
	}

	if err := order.Fill(fillPrice, now); err != nil {
		log.Errorf("Engine: fill transition failed for order %s: %v", order.ID, err)
		return nil
	}

	state.Positions.ApplyFill(order.Symbol, order.SignedQuantity(), fillPrice)

	events := []models.AccountEvent{models.NewOrderFilledEvent(order)}
	if order.Side == models.OrderSideBuy {
		events = append(events, models.NewCashDebitedEvent(notional, order.ID, now))
	} else {
		events = append(events, models.NewCashCreditedEvent(notional, order.ID, now))
	}

	log.WithField("user_id", state.Account.UserID).Infof("Engine: filled %s %s %.2f %s @ %.4f", order.Type, order.Side, order.Quantity, order.Symbol, fillPrice)

	trade := models.NewTradeFromFill(order, state.Account.UserID)
	e.recordTrade(ctx, state, trade, order, fillPrice, now)

	eventpubsub.Publish(eventpubsub.OrderFilledEvent, eventpubsub.OrderFilled{
		UserID: state.Account.UserID,
		Order:  order,
		Trade:  trade,
	})

	return events
}

func (e *Engine) rejectOrder(state *models.AccountState, order *models.SimOrder, reason error, at time.Time) []models.AccountEvent {
	if err := order.Reject(reason); err != nil {
		log.Errorf("Engine: reject transition failed for order %s: %v", order.ID, err)
		return nil
	}

	log.WithField("user_id", state.Account.UserID).Warnf("Engine: rejected %s %s %.2f %s: %v", order.Type, order.Side, order.Quantity, order.Symbol, reason)

	eventpubsub.Publish(eventpubsub.OrderRejectedEvent, eventpubsub.OrderRejected{
		UserID: state.Account.UserID,
		Order:  order,
		Reason: reason.Error(),
	})

	return []models.AccountEvent{models.NewOrderRejectedEvent(order, at)}
}

// recordTrade captures the snapshot and persists the trade projection.
// Failures are logged, never surfaced: the fill has already been committed to
// memory and must not be undone by analytics plumbing.
func (e *Engine) recordTrade(ctx context.Context, state *models.AccountState, trade *models.Trade, order *models.SimOrder, fillPrice float64, at time.Time) {
	if e.snapshots == nil {
		return
	}

	snapshot, err := e.snapshots.Capture(ctx, order.ID, order.Symbol, fillPrice, at)
	if err != nil {
		log.Errorf("Engine: snapshot capture failed for order %s: %v", order.ID, err)
		return
	}

	if err := e.db.SaveTrade(ctx, trade, snapshot); err != nil {
		if errors.Is(err, models.ErrSnapshotExists) {
			return
		}

		log.Errorf("Engine: trade save failed for order %s: %v", order.ID, err)
		return
	}

	eventpubsub.Publish(eventpubsub.SnapshotSavedEvent, eventpubsub.SnapshotSaved{
		UserID:  state.Account.UserID,
		OrderID: order.ID,
		Symbol:  order.Symbol,
	})
}

// recordEquity appends one equity point for the account at the current
// reference prices.
func (e *Engine) recordEquity(ctx context.Context, state *models.AccountState) {
	now := e.now()
	equity := e.equity(ctx, state)

	if err := e.db.SaveEquityPoint(ctx, state.Account.ID, now, equity); err != nil {
		log.Errorf("Engine: equity point save failed for account %s: %v", state.Account.ID, err)
		return
	}

	eventpubsub.Publish(eventpubsub.EquitySampledEvent, eventpubsub.EquitySampled{
		UserID:    state.Account.UserID,
		Equity:    equity,
		Timestamp: now,
	})
}

// equity is cash plus the market value of all open positions.
func (e *Engine) equity(ctx context.Context, state *models.AccountState) float64 {
	equity := state.Account.Cash()
	for _, position := range state.Positions.All() {
		equity += position.Quantity * e.prices.GetPrice(ctx, position.Symbol)
	}

	return equity
}

// persist projects the in-memory state to the database along with the events
// generated since the last save. A failure leaves memory authoritative; the
// divergence is logged and the next successful save converges.
func (e *Engine) persist(ctx context.Context, state *models.AccountState, events []models.AccountEvent) {
	if err := e.db.SaveAccount(ctx, state, events); err != nil {
		log.Errorf("Engine: account save failed for %s, in-memory state remains authoritative: %v", state.Account.ID, err)
	}
}
