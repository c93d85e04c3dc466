package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigkaa/gofileportal/internal/domain/model"
)

// accessLogColumns — список колонок таблицы file_access_logs для SELECT-запросов.
const accessLogColumns = `id, file_id, user_id, action, created_at, ip_address, user_agent`

// AccessLogRepository — интерфейс доступа к журналу file_access_logs.
// Журнал append-only: методов обновления и удаления нет намеренно.
type AccessLogRepository interface {
	// Append добавляет запись в журнал доступа.
	Append(ctx context.Context, e *model.AccessLogEntry) error
	// List возвращает записи журнала с фильтрацией, новые первыми, не более limit.
	List(ctx context.Context, filters AccessLogFilters, limit int) ([]*model.AccessLogEntry, error)
	// ListByUser возвращает записи журнала пользователя, новые первыми, не более limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.AccessLogEntry, error)
}

// AccessLogFilters — фильтры выборки журнала доступа.
// nil-поле — фильтр выключен.
type AccessLogFilters struct {
	UserID *string
	FileID *string
	Action *string
}

// accessLogRepo — реализация AccessLogRepository.
type accessLogRepo struct {
	db DBTX
}

// NewAccessLogRepository создаёт репозиторий журнала доступа.
func NewAccessLogRepository(db DBTX) AccessLogRepository {
	return &accessLogRepo{db: db}
}

func (r *accessLogRepo) Append(ctx context.Context, e *model.AccessLogEntry) error {
	query := `
		INSERT INTO file_access_logs (id, file_id, user_id, action, created_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		e.ID, e.FileID, e.UserID, e.Action, e.CreatedAt, e.IPAddress, e.UserAgent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись журнала с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка записи в журнал доступа: %w", err)
	}
	return nil
}

// buildAccessLogWhere строит WHERE-условие и аргументы для фильтрации журнала.
// startArg — номер первого placeholder ($N).
func buildAccessLogWhere(filters AccessLogFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argNum))
		args = append(args, *filters.UserID)
		argNum++
	}
	if filters.FileID != nil {
		conditions = append(conditions, fmt.Sprintf("file_id = $%d", argNum))
		args = append(args, *filters.FileID)
		argNum++
	}
	if filters.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argNum))
		args = append(args, *filters.Action)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *accessLogRepo) List(ctx context.Context, filters AccessLogFilters, limit int) ([]*model.AccessLogEntry, error) {
	where, args := buildAccessLogWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s FROM file_access_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d`, accessLogColumns, where, argNum)

	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала доступа: %w", err)
	}
	defer rows.Close()

	var result []*model.AccessLogEntry
	for rows.Next() {
		e := &model.AccessLogEntry{}
		if err := rows.Scan(
			&e.ID, &e.FileID, &e.UserID, &e.Action, &e.CreatedAt, &e.IPAddress, &e.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *accessLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.AccessLogEntry, error) {
	return r.List(ctx, AccessLogFilters{UserID: &userID}, limit)
}
