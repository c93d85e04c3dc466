// files.go — сервис работы с файлами: листинг с поиском, получение
// метаданных через кэш, скачивание и удаление с записью в журнал доступа.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/repository"
	"github.com/bigkaa/gofileportal/internal/storage"
)

// Prometheus-метрики операций с файлами.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fp_downloads_total",
		Help: "Общее количество скачиваний файлов (по статусу).",
	}, []string{"status"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fp_deletes_total",
		Help: "Общее количество удалений файлов (по статусу).",
	}, []string{"status"})
)

// Actor — проверенный субъект запроса.
// Заполняется из claims токена, никогда из входных данных клиента.
type Actor struct {
	// UserID — subject токена.
	UserID string
	// Admin — признак административной роли.
	Admin bool
}

// RequestMeta — сетевые атрибуты запроса для журнала доступа.
type RequestMeta struct {
	IPAddress *string
	UserAgent *string
}

// ListFilters — фильтры листинга файлов.
// Подстрочные фильтры применяются в памяти после выборки.
type ListFilters struct {
	// Query — подстрока имени файла, регистронезависимая.
	Query string
	// UserID — подстрока идентификатора владельца (только админский листинг).
	UserID string
	// Limit — максимум записей в ответе; 0 — без дополнительного ограничения.
	Limit int
}

// FileService — сервис файловых операций.
type FileService struct {
	fileRepo       repository.FileRepository
	logRepo        repository.AccessLogRepository
	store          ObjectStore
	cache          *CacheService
	listFetchLimit int
	logger         *slog.Logger
}

// NewFileService создаёт сервис файловых операций.
// listFetchLimit — фиксированный потолок выборки из БД (FP_LIST_FETCH_LIMIT).
func NewFileService(
	fileRepo repository.FileRepository,
	logRepo repository.AccessLogRepository,
	store ObjectStore,
	cache *CacheService,
	listFetchLimit int,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		fileRepo:       fileRepo,
		logRepo:        logRepo,
		store:          store,
		cache:          cache,
		listFetchLimit: listFetchLimit,
		logger:         logger.With(slog.String("component", "file_service")),
	}
}

// List возвращает файлы пользователя, новые первыми.
// Из БД берётся не более listFetchLimit записей; фильтр по имени
// применяется в памяти после выборки. Результаты за потолком выборки
// молча отбрасываются.
func (s *FileService) List(ctx context.Context, actor Actor, filters ListFilters) ([]*model.FileRecord, error) {
	files, err := s.fileRepo.ListByUser(ctx, actor.UserID, s.listFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	return applyListFilters(files, filters), nil
}

// ListAll возвращает файлы всех пользователей (административный листинг).
func (s *FileService) ListAll(ctx context.Context, filters ListFilters) ([]*model.FileRecord, error) {
	files, err := s.fileRepo.ListAll(ctx, s.listFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	return applyListFilters(files, filters), nil
}

// applyListFilters фильтрует выборку в памяти: регистронезависимая
// подстрока имени файла и (для админского листинга) подстрока владельца.
func applyListFilters(files []*model.FileRecord, filters ListFilters) []*model.FileRecord {
	result := files

	if filters.Query != "" {
		q := strings.ToLower(filters.Query)
		filtered := make([]*model.FileRecord, 0, len(result))
		for _, f := range result {
			if strings.Contains(strings.ToLower(f.FileName), q) {
				filtered = append(filtered, f)
			}
		}
		result = filtered
	}

	if filters.UserID != "" {
		u := strings.ToLower(filters.UserID)
		filtered := make([]*model.FileRecord, 0, len(result))
		for _, f := range result {
			if strings.Contains(strings.ToLower(f.UserID), u) {
				filtered = append(filtered, f)
			}
		}
		result = filtered
	}

	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}

	return result
}

// Get возвращает метаданные файла владельцу или администратору.
// Сначала проверяется LRU-кэш, при промахе — запрос к БД с кэшированием.
func (s *FileService) Get(ctx context.Context, actor Actor, fileID string) (*model.FileRecord, error) {
	record, err := s.getRecord(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if record.UserID != actor.UserID && !actor.Admin {
		return nil, ErrForbidden
	}
	return record, nil
}

// Download открывает содержимое файла на чтение и записывает действие
// в журнал доступа: download (вложение) / view (inline) для владельца,
// admin_view — когда администратор читает чужой файл.
// Вызывающий обязан закрыть reader.
func (s *FileService) Download(ctx context.Context, actor Actor, fileID string, inline bool, meta RequestMeta) (*model.FileRecord, io.ReadCloser, error) {
	record, err := s.Get(ctx, actor, fileID)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return nil, nil, err
	}

	reader, err := s.store.Get(ctx, record.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Запись есть, объекта нет: наружу NOT_FOUND, запись не чинится
			downloadsTotal.WithLabelValues("object_missing").Inc()
			s.logger.Warn("Объект отсутствует в хранилище",
				slog.String("file_id", fileID),
				slog.String("key", record.StoragePath),
			)
			return nil, nil, ErrNotFound
		}
		downloadsTotal.WithLabelValues("storage_error").Inc()
		return nil, nil, fmt.Errorf("%w: чтение объекта: %v", ErrStorage, err)
	}

	action := model.ActionDownload
	if inline {
		action = model.ActionView
	}
	if actor.Admin && record.UserID != actor.UserID {
		action = model.ActionAdminView
	}

	// Сбой журнала не прерывает скачивание: путь чтения важнее аудита
	s.appendLog(ctx, record.ID, actor.UserID, action, meta)

	downloadsTotal.WithLabelValues("success").Inc()
	return record, reader, nil
}

// Delete удаляет файл. Порядок фиксирован: журнал → объект → запись.
//
//  1. INSERT в журнал доступа (delete владельцем, admin_delete —
//     администратором для чужого файла); сбой журнала прерывает удаление
//  2. удаление объекта из хранилища; сбой логируется, удаление ПРОДОЛЖАЕТСЯ
//  3. DELETE записи файла — после этого файл исчезает из листингов
//  4. инвалидация кэша метаданных
func (s *FileService) Delete(ctx context.Context, actor Actor, fileID string, meta RequestMeta) error {
	record, err := s.Get(ctx, actor, fileID)
	if err != nil {
		deletesTotal.WithLabelValues("not_found").Inc()
		return err
	}

	action := model.ActionDelete
	if actor.Admin && record.UserID != actor.UserID {
		action = model.ActionAdminDelete
	}

	// 1. Журнал — до действия. Без следа в журнале не удаляем.
	entry := &model.AccessLogEntry{
		ID:        uuid.New().String(),
		FileID:    record.ID,
		UserID:    actor.UserID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := s.logRepo.Append(ctx, entry); err != nil {
		deletesTotal.WithLabelValues("log_error").Inc()
		return fmt.Errorf("запись в журнал доступа: %w", err)
	}
	accessLogEntriesTotal.WithLabelValues(action).Inc()

	// 2. Объект в хранилище: сбой не прерывает удаление записи
	if err := s.store.Delete(ctx, record.StoragePath); err != nil {
		s.logger.Error("Объект не удалён из хранилища, запись будет удалена",
			slog.String("file_id", fileID),
			slog.String("key", record.StoragePath),
			slog.String("error", err.Error()),
		)
	}

	// 3. Запись файла
	if err := s.fileRepo.Delete(ctx, fileID); err != nil {
		deletesTotal.WithLabelValues("db_error").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление записи файла: %w", err)
	}

	// 4. Кэш
	s.cache.Delete(fileID)

	deletesTotal.WithLabelValues("success").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("user_id", record.UserID),
		slog.String("actor", actor.UserID),
		slog.String("action", action),
	)

	return nil
}

// getRecord получает FileRecord из кэша или БД.
func (s *FileService) getRecord(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if record, ok := s.cache.Get(fileID); ok {
		return record, nil
	}

	record, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи файла: %w", err)
	}

	s.cache.Set(fileID, record)

	return record, nil
}

// appendLog добавляет запись в журнал доступа; сбой только логируется.
func (s *FileService) appendLog(ctx context.Context, fileID, userID, action string, meta RequestMeta) {
	entry := &model.AccessLogEntry{
		ID:        uuid.New().String(),
		FileID:    fileID,
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := s.logRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Запись в журнал доступа не добавлена",
			slog.String("file_id", fileID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return
	}
	accessLogEntriesTotal.WithLabelValues(action).Inc()
}
