package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradevane/tradevane/src/models"
)

// DatabaseService is the gorm-backed implementation of
// models.IDatabaseService. Memory is authoritative after the initial load;
// every write here is a projection of engine state, so failures are reported
// but never mutate what the engine holds.
type DatabaseService struct {
	db *gorm.DB
}

func NewDatabaseService(db *gorm.DB) *DatabaseService {
	return &DatabaseService{db: db}
}

func (s *DatabaseService) LoadAccount(ctx context.Context, userID uuid.UUID) (*models.AccountState, bool, error) {
	var accountRecord models.AccountRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&accountRecord).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("LoadAccount: fetch account: %w", err)
	}

	account := accountRecord.ToAccount()

	var positionRecords []models.PositionRecord
	if err := s.db.WithContext(ctx).Where("account_id = ?", account.ID).Find(&positionRecords).Error; err != nil {
		return nil, false, fmt.Errorf("LoadAccount: fetch positions: %w", err)
	}

	positions := models.NewPositionBook()
	for _, record := range positionRecords {
		positions.Restore(models.Position{
			Symbol:        record.Symbol,
			Quantity:      record.Quantity,
			AvgEntryPrice: record.AvgEntryPrice,
		})
	}

	var orderRecords []models.OrderRecord
	if err := s.db.WithContext(ctx).Where("account_id = ?", account.ID).Order("created_at asc").Find(&orderRecords).Error; err != nil {
		return nil, false, fmt.Errorf("LoadAccount: fetch orders: %w", err)
	}

	orders := make([]*models.SimOrder, 0, len(orderRecords))
	for i := range orderRecords {
		orders = append(orders, orderRecords[i].ToSimOrder())
	}

	return &models.AccountState{
		Account:   account,
		Positions: positions,
		Orders:    orders,
	}, true, nil
}

func (s *DatabaseService) SaveAccount(ctx context.Context, state *models.AccountState, events []models.AccountEvent) error {
	accountID := state.Account.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(state.Account.ToRecord()).Error; err != nil {
			return fmt.Errorf("save account record: %w", err)
		}

		if err := tx.Unscoped().Where("account_id = ?", accountID).Delete(&models.PositionRecord{}).Error; err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}

		for _, position := range state.Positions.All() {
			record := models.PositionRecord{
				AccountID:     accountID,
				Symbol:        position.Symbol,
				Quantity:      position.Quantity,
				AvgEntryPrice: position.AvgEntryPrice,
			}

			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("insert position %s: %w", position.Symbol, err)
			}
		}

		if err := tx.Where("account_id = ?", accountID).Delete(&models.OrderRecord{}).Error; err != nil {
			return fmt.Errorf("clear orders: %w", err)
		}

		for _, order := range state.Orders {
			if err := tx.Create(order.ToRecord(accountID)).Error; err != nil {
				return fmt.Errorf("insert order %s: %w", order.ID, err)
			}
		}

		for _, event := range events {
			if err := tx.Create(event.ToRecord(accountID)).Error; err != nil {
				return fmt.Errorf("append event %s: %w", event.Type, err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("SaveAccount: %w", err)
	}

	return nil
}

func (s *DatabaseService) SaveTrade(ctx context.Context, trade *models.Trade, snapshot *models.Snapshot) error {
	snapshotRecord, err := snapshot.ToRecord()
	if err != nil {
		return fmt.Errorf("SaveTrade: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SnapshotRecord{}).Where("order_id = ?", snapshot.OrderID).Count(&count).Error; err != nil {
			return fmt.Errorf("check snapshot: %w", err)
		}

		if count > 0 {
			return models.ErrSnapshotExists
		}

		if err := tx.Create(trade.ToRecord()).Error; err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}

		if err := tx.Create(snapshotRecord).Error; err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrSnapshotExists) {
			return models.ErrSnapshotExists
		}

		return fmt.Errorf("SaveTrade: %w", err)
	}

	return nil
}

func (s *DatabaseService) LoadSnapshot(ctx context.Context, orderID uuid.UUID) (*models.Snapshot, bool, error) {
	var record models.SnapshotRecord
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("LoadSnapshot: %w", err)
	}

	snapshot, err := record.ToSnapshot()
	if err != nil {
		return nil, false, fmt.Errorf("LoadSnapshot: %w", err)
	}

	return snapshot, true, nil
}

func (s *DatabaseService) SaveEquityPoint(ctx context.Context, accountID uuid.UUID, timestamp time.Time, equity float64) error {
	record := models.EquityPlotRecord{
		AccountID: accountID,
		Timestamp: timestamp,
		Equity:    equity,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("SaveEquityPoint: %w", err)
	}

	return nil
}

func (s *DatabaseService) LoadEquityHistory(ctx context.Context, accountID uuid.UUID, from time.Time) ([]models.EquityPoint, error) {
	var records []models.EquityPlotRecord
	if err := s.db.WithContext(ctx).Where("account_id = ? AND timestamp >= ?", accountID, from).Order("timestamp asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("LoadEquityHistory: %w", err)
	}

	points := make([]models.EquityPoint, 0, len(records))
	for _, record := range records {
		points = append(points, models.EquityPoint{
			Timestamp: record.Timestamp,
			Equity:    record.Equity,
		})
	}

	return points, nil
}

func (s *DatabaseService) LoadEvents(ctx context.Context, accountID uuid.UUID) ([]models.AccountEvent, error) {
	var records []models.AccountEventRecord
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("LoadEvents: %w", err)
	}

	events := make([]models.AccountEvent, 0, len(records))
	for _, record := range records {
		events = append(events, record.ToAccountEvent())
	}

	return events, nil
}
