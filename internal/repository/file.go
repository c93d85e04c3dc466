package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofileportal/internal/domain/model"
)

// fileColumns — список колонок таблицы files для SELECT-запросов.
const fileColumns = `id, user_id, file_name, size, mime_type, storage_path, public_url, uploaded_at`

// FileRepository — интерфейс доступа к таблице files.
type FileRepository interface {
	// Create создаёт запись файла.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл по UUID.
	GetByID(ctx context.Context, fileID string) (*model.FileRecord, error)
	// GetByIDs возвращает файлы по набору UUID (для join журнала доступа).
	GetByIDs(ctx context.Context, fileIDs []string) ([]*model.FileRecord, error)
	// ListByUser возвращает файлы пользователя, новые первыми, не более limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.FileRecord, error)
	// ListAll возвращает файлы всех пользователей, новые первыми, не более limit.
	ListAll(ctx context.Context, limit int) ([]*model.FileRecord, error)
	// Delete удаляет запись файла.
	Delete(ctx context.Context, fileID string) error
	// SumSizeByUser возвращает суммарный размер файлов пользователя в байтах.
	SumSizeByUser(ctx context.Context, userID string) (int64, error)
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, user_id, file_name, size, mime_type, storage_path, public_url, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.UserID, f.FileName, f.Size, f.MimeType,
		f.StoragePath, f.PublicURL, f.UploadedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, fileID).Scan(
		&f.ID, &f.UserID, &f.FileName, &f.Size, &f.MimeType,
		&f.StoragePath, &f.PublicURL, &f.UploadedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) GetByIDs(ctx context.Context, fileIDs []string) ([]*model.FileRecord, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = ANY($1)`, fileColumns)

	rows, err := r.db.Query(ctx, query, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов по ID: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

func (r *fileRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE user_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2`, fileColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

func (r *fileRepo) ListAll(ctx context.Context, limit int) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		ORDER BY uploaded_at DESC
		LIMIT $1`, fileColumns)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

func (r *fileRepo) Delete(ctx context.Context, fileID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) SumSizeByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM files WHERE user_id = $1`, userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта размера файлов: %w", err)
	}
	return sum, nil
}

// scanFiles сканирует строки выборки files в срез моделей.
func scanFiles(rows pgx.Rows) ([]*model.FileRecord, error) {
	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.UserID, &f.FileName, &f.Size, &f.MimeType,
			&f.StoragePath, &f.PublicURL, &f.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
