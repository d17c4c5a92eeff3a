package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TransactionRepository implements port.TransactionRepository
type TransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, logger *zap.Logger) port.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

const transactionColumns = `id, transaction_ref, product_code, event_code, event_label,
	business_app, initiating_channel, status, form_data, created_at, updated_at`

// CreateTransactionRecord inserts the record or updates it by transaction reference
func (r *TransactionRepository) CreateTransactionRecord(ctx context.Context, record *entity.TransactionRecord) error {
	if record.TransactionRef == "" {
		return fmt.Errorf("transaction record requires a reference")
	}
	if record.FormData == "" {
		record.FormData = "{}"
	}

	query := `
		INSERT INTO transactions (
			transaction_ref, product_code, event_code, event_label,
			business_app, initiating_channel, status, form_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_ref) DO UPDATE SET
			event_label = excluded.event_label,
			business_app = excluded.business_app,
			initiating_channel = excluded.initiating_channel,
			status = excluded.status,
			form_data = excluded.form_data,
			updated_at = CURRENT_TIMESTAMP
	`

	exec := r.getExecutor(ctx)
	_, err := exec.ExecContext(ctx, query,
		record.TransactionRef,
		record.ProductCode,
		record.EventCode,
		record.EventLabel,
		record.BusinessApp,
		record.InitiatingChannel,
		record.Status,
		record.FormData,
	)
	if err != nil {
		r.logger.Error("Failed to save transaction record",
			zap.String("transaction_ref", record.TransactionRef),
			zap.Error(err))
		return fmt.Errorf("failed to save transaction record: %w", err)
	}

	// LastInsertId is unreliable when the upsert took the update branch
	err = exec.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM transactions WHERE transaction_ref = ?`,
		record.TransactionRef,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to read back transaction record: %w", err)
	}

	return nil
}

// GetByReference retrieves a transaction by its reference
func (r *TransactionRepository) GetByReference(ctx context.Context, transactionRef string) (*entity.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_ref = ?`

	record, err := scanTransaction(r.getExecutor(ctx).QueryRowContext(ctx, query, transactionRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get transaction", zap.String("transaction_ref", transactionRef), zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return record, nil
}

// List retrieves transactions newest first with pagination
func (r *TransactionRepository) List(ctx context.Context, limit, offset int) ([]*entity.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions", zap.Error(err))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransactionRecord
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *TransactionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

func scanTransaction(row rowScanner) (*entity.TransactionRecord, error) {
	var record entity.TransactionRecord
	err := row.Scan(
		&record.ID,
		&record.TransactionRef,
		&record.ProductCode,
		&record.EventCode,
		&record.EventLabel,
		&record.BusinessApp,
		&record.InitiatingChannel,
		&record.Status,
		&record.FormData,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Verify interface compliance
var _ port.TransactionRepository = (*TransactionRepository)(nil)
