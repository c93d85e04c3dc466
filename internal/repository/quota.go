package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofileportal/internal/domain/model"
)

// quotaColumns — список колонок таблицы user_storage_quotas для SELECT-запросов.
const quotaColumns = `user_id, quota_bytes, used_bytes, created_at, updated_at`

// QuotaRepository — интерфейс доступа к таблице user_storage_quotas.
type QuotaRepository interface {
	// Get возвращает квоту пользователя.
	Get(ctx context.Context, userID string) (*model.QuotaRecord, error)
	// Create создаёт запись квоты. При гонке ленивого создания
	// возвращает ErrConflict — вызывающий перечитывает запись.
	Create(ctx context.Context, q *model.QuotaRecord) error
	// List возвращает квоты всех пользователей.
	List(ctx context.Context) ([]*model.QuotaRecord, error)
	// UpdateUsage записывает учтённое использование пользователя.
	UpdateUsage(ctx context.Context, userID string, usedBytes int64) error
}

// quotaRepo — реализация QuotaRepository.
type quotaRepo struct {
	db DBTX
}

// NewQuotaRepository создаёт репозиторий квот.
func NewQuotaRepository(db DBTX) QuotaRepository {
	return &quotaRepo{db: db}
}

func (r *quotaRepo) Get(ctx context.Context, userID string) (*model.QuotaRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_storage_quotas WHERE user_id = $1`, quotaColumns)

	q := &model.QuotaRecord{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&q.UserID, &q.QuotaBytes, &q.UsedBytes, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения квоты: %w", err)
	}
	return q, nil
}

func (r *quotaRepo) Create(ctx context.Context, q *model.QuotaRecord) error {
	query := `
		INSERT INTO user_storage_quotas (user_id, quota_bytes, used_bytes)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, q.UserID, q.QuotaBytes, q.UsedBytes).
		Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: квота пользователя уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания квоты: %w", err)
	}
	return nil
}

func (r *quotaRepo) List(ctx context.Context) ([]*model.QuotaRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_storage_quotas ORDER BY user_id`, quotaColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка квот: %w", err)
	}
	defer rows.Close()

	var result []*model.QuotaRecord
	for rows.Next() {
		q := &model.QuotaRecord{}
		if err := rows.Scan(
			&q.UserID, &q.QuotaBytes, &q.UsedBytes, &q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования квоты: %w", err)
		}
		result = append(result, q)
	}
	return result, rows.Err()
}

func (r *quotaRepo) UpdateUsage(ctx context.Context, userID string, usedBytes int64) error {
	query := `
		UPDATE user_storage_quotas
		SET used_bytes = $2, updated_at = now()
		WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, usedBytes)
	if err != nil {
		return fmt.Errorf("ошибка обновления использования квоты: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
