package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PermissionRepository implements port.PermissionRepository
type PermissionRepository struct {
	db     *sql.DB
	tx     port.TransactionManager
	logger *zap.Logger
}

// NewPermissionRepository creates a new permission repository. SaveSnapshot
// runs its delete and inserts inside tx.
func NewPermissionRepository(db *sql.DB, tx port.TransactionManager, logger *zap.Logger) port.PermissionRepository {
	return &PermissionRepository{
		db:     db,
		tx:     tx,
		logger: logger,
	}
}

// FetchPermissions loads a user's profile, product grants and screen grants.
// An unknown user yields an empty, non-super snapshot.
func (r *PermissionRepository) FetchPermissions(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
	snapshot := &entity.PermissionSnapshot{
		UserID:             userID,
		ProductPermissions: []entity.AccessGrant{},
		ScreenPermissions:  []entity.ScreenPermission{},
		LoadedAt:           time.Now(),
	}

	exec := r.getExecutor(ctx)

	err := exec.QueryRowContext(ctx,
		`SELECT is_super_user FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&snapshot.IsSuperUser)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to get user profile", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, user_id, product_code, event_code, stage_name, actor_type,
			can_view, can_create, can_edit, can_approve
		FROM product_permissions
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		r.logger.Error("Failed to get product permissions", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get product permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var grant entity.AccessGrant
		err := rows.Scan(
			&grant.ID,
			&grant.UserID,
			&grant.ProductCode,
			&grant.EventCode,
			&grant.StageName,
			&grant.ActorType,
			&grant.CanView,
			&grant.CanCreate,
			&grant.CanEdit,
			&grant.CanApprove,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product permission: %w", err)
		}
		snapshot.ProductPermissions = append(snapshot.ProductPermissions, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	screens, err := exec.QueryContext(ctx, `
		SELECT screen_code, can_view, can_edit
		FROM screen_permissions
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		r.logger.Error("Failed to get screen permissions", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get screen permissions: %w", err)
	}
	defer screens.Close()

	for screens.Next() {
		var screen entity.ScreenPermission
		if err := screens.Scan(&screen.ScreenCode, &screen.CanView, &screen.CanEdit); err != nil {
			return nil, fmt.Errorf("failed to scan screen permission: %w", err)
		}
		snapshot.ScreenPermissions = append(snapshot.ScreenPermissions, screen)
	}

	return snapshot, screens.Err()
}

// SaveSnapshot replaces every stored permission of the snapshot's user
func (r *PermissionRepository) SaveSnapshot(ctx context.Context, snapshot *entity.PermissionSnapshot) error {
	if snapshot == nil || snapshot.UserID == "" {
		return fmt.Errorf("snapshot requires a user id")
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.getExecutor(ctx)
		userID := snapshot.UserID

		_, err := exec.ExecContext(ctx, `
			INSERT INTO user_profiles (user_id, is_super_user) VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				is_super_user = excluded.is_super_user,
				updated_at = CURRENT_TIMESTAMP
		`, userID, snapshot.IsSuperUser)
		if err != nil {
			return fmt.Errorf("failed to save user profile: %w", err)
		}

		if _, err := exec.ExecContext(ctx, `DELETE FROM product_permissions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear product permissions: %w", err)
		}
		if _, err := exec.ExecContext(ctx, `DELETE FROM screen_permissions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear screen permissions: %w", err)
		}

		for i := range snapshot.ProductPermissions {
			grant := &snapshot.ProductPermissions[i]
			result, err := exec.ExecContext(ctx, `
				INSERT INTO product_permissions (
					user_id, product_code, event_code, stage_name, actor_type,
					can_view, can_create, can_edit, can_approve
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				userID,
				grant.ProductCode,
				grant.EventCode,
				grant.StageName,
				grant.ActorType,
				grant.CanView,
				grant.CanCreate,
				grant.CanEdit,
				grant.CanApprove,
			)
			if err != nil {
				return fmt.Errorf("failed to save product permission: %w", err)
			}
			if grant.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			grant.UserID = userID
		}

		for _, screen := range snapshot.ScreenPermissions {
			_, err := exec.ExecContext(ctx, `
				INSERT INTO screen_permissions (user_id, screen_code, can_view, can_edit)
				VALUES (?, ?, ?, ?)
			`, userID, screen.ScreenCode, screen.CanView, screen.CanEdit)
			if err != nil {
				return fmt.Errorf("failed to save screen permission: %w", err)
			}
		}

		r.logger.Info("Permission snapshot saved",
			zap.String("user_id", userID),
			zap.Bool("super_user", snapshot.IsSuperUser),
			zap.Int("grants", len(snapshot.ProductPermissions)),
			zap.Int("screens", len(snapshot.ScreenPermissions)))
		return nil
	})
}

// getExecutor returns appropriate executor based on context
func (r *PermissionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.PermissionRepository = (*PermissionRepository)(nil)
