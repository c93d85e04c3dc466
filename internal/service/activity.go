// activity.go — сервис журнала активности для административной панели.
// Лента действий собирается соединением журнала и записей файлов
// В ПАМЯТИ (hash-lookup по file_id), без SQL JOIN; статистика по
// пользователям — свёрткой выбранных записей, без GROUP BY.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/repository"
)

// DeletedFileName — имя-заглушка для записей журнала, чей файл уже удалён.
const DeletedFileName = "(удалённый файл)"

// Prometheus-метрики журнала доступа.
var (
	accessLogEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fp_access_log_entries_total",
		Help: "Общее количество записей журнала доступа (по действию).",
	}, []string{"action"})

	activityRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fp_activity_requests_total",
		Help: "Общее количество запросов ленты активности.",
	})
)

// ActivityEntry — запись ленты активности: запись журнала с именем файла.
type ActivityEntry struct {
	*model.AccessLogEntry
	// FileName — имя файла на момент запроса; заглушка для удалённых.
	FileName string
}

// UserStats — статистика пользователя для административной панели.
type UserStats struct {
	UserID       string
	FileCount    int
	TotalBytes   int64
	LastActivity *time.Time
}

// ActivityFilters — фильтры ленты активности.
type ActivityFilters struct {
	// UserID — точное значение идентификатора пользователя.
	UserID string
	// Action — вид действия (upload, download, view, delete, admin_view, admin_delete).
	Action string
	// Limit — максимум записей в ответе; 0 — без дополнительного ограничения.
	Limit int
}

// ActivityService — сервис журнала активности.
type ActivityService struct {
	logRepo    repository.AccessLogRepository
	fileRepo   repository.FileRepository
	fetchLimit int
	logger     *slog.Logger
}

// NewActivityService создаёт сервис журнала активности.
// fetchLimit — потолок выборки журнала (FP_ACTIVITY_FETCH_LIMIT).
func NewActivityService(
	logRepo repository.AccessLogRepository,
	fileRepo repository.FileRepository,
	fetchLimit int,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{
		logRepo:    logRepo,
		fileRepo:   fileRepo,
		fetchLimit: fetchLimit,
		logger:     logger.With(slog.String("component", "activity_service")),
	}
}

// Feed возвращает ленту активности, новые записи первыми.
//
// Pipeline:
//  1. Выборка журнала (created_at DESC, не более fetchLimit)
//  2. Выборка записей файлов по уникальным file_id из журнала
//  3. Соединение в памяти: имя файла подставляется по hash-lookup,
//     для удалённых файлов — заглушка
func (s *ActivityService) Feed(ctx context.Context, filters ActivityFilters) ([]*ActivityEntry, error) {
	activityRequestsTotal.Inc()

	if filters.Action != "" && !model.ValidActions[filters.Action] {
		return nil, fmt.Errorf("%w: неизвестное действие %q", ErrValidation, filters.Action)
	}

	repoFilters := repository.AccessLogFilters{}
	if filters.UserID != "" {
		repoFilters.UserID = &filters.UserID
	}
	if filters.Action != "" {
		repoFilters.Action = &filters.Action
	}

	entries, err := s.logRepo.List(ctx, repoFilters, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("выборка журнала доступа: %w", err)
	}

	names, err := s.fileNamesFor(ctx, entries)
	if err != nil {
		return nil, err
	}

	result := make([]*ActivityEntry, 0, len(entries))
	for _, e := range entries {
		name, ok := names[e.FileID]
		if !ok {
			name = DeletedFileName
		}
		result = append(result, &ActivityEntry{AccessLogEntry: e, FileName: name})
	}

	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}

	s.logger.Debug("Лента активности собрана",
		slog.Int("entries", len(result)),
		slog.Int("files_resolved", len(names)),
	)

	return result, nil
}

// fileNamesFor строит отображение file_id → имя файла для записей журнала.
func (s *ActivityService) fileNamesFor(ctx context.Context, entries []*model.AccessLogEntry) (map[string]string, error) {
	seen := make(map[string]bool, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !seen[e.FileID] {
			seen[e.FileID] = true
			ids = append(ids, e.FileID)
		}
	}

	files, err := s.fileRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("выборка файлов журнала: %w", err)
	}

	names := make(map[string]string, len(files))
	for _, f := range files {
		names[f.ID] = f.FileName
	}
	return names, nil
}

// Stats возвращает статистику по пользователям: количество файлов,
// суммарный объём и время последней активности. Считается свёрткой
// в памяти по выбранным файлам и журналу.
func (s *ActivityService) Stats(ctx context.Context) ([]*UserStats, error) {
	files, err := s.fileRepo.ListAll(ctx, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("выборка файлов: %w", err)
	}

	entries, err := s.logRepo.List(ctx, repository.AccessLogFilters{}, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("выборка журнала доступа: %w", err)
	}

	byUser := make(map[string]*UserStats)
	statsFor := func(userID string) *UserStats {
		st, ok := byUser[userID]
		if !ok {
			st = &UserStats{UserID: userID}
			byUser[userID] = st
		}
		return st
	}

	for _, f := range files {
		st := statsFor(f.UserID)
		st.FileCount++
		st.TotalBytes += f.Size
	}

	for _, e := range entries {
		st := statsFor(e.UserID)
		if st.LastActivity == nil || e.CreatedAt.After(*st.LastActivity) {
			t := e.CreatedAt
			st.LastActivity = &t
		}
	}

	result := make([]*UserStats, 0, len(byUser))
	for _, st := range byUser {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})

	return result, nil
}
