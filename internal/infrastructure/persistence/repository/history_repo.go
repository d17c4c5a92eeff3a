package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.TransactionHistory) error {
	query := `
		INSERT INTO transaction_history (
			transaction_ref, stage_name, previous_status, new_status,
			action_type, actor_id, action_data
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		history.TransactionRef,
		history.StageName,
		history.PreviousStatus,
		history.NewStatus,
		history.ActionType,
		history.ActorID,
		history.ActionData,
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.String("transaction_ref", history.TransactionRef),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByTransactionRef retrieves the status trail of a transaction, oldest first
func (r *HistoryRepository) GetByTransactionRef(ctx context.Context, transactionRef string) ([]*entity.TransactionHistory, error) {
	query := `
		SELECT id, transaction_ref, stage_name, previous_status, new_status,
			action_type, actor_id, action_data, timestamp
		FROM transaction_history
		WHERE transaction_ref = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, transactionRef)
	if err != nil {
		r.logger.Error("Failed to get history by transaction", zap.String("transaction_ref", transactionRef), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransactionHistory
	for rows.Next() {
		var record entity.TransactionHistory
		err := rows.Scan(
			&record.ID,
			&record.TransactionRef,
			&record.StageName,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.ActionType,
			&record.ActorID,
			&record.ActionData,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
