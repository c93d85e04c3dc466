package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/repository"
)

// newTestActivityService собирает ActivityService на моках.
func newTestActivityService(logRepo *mockLogRepo, fileRepo *mockFileRepo) *ActivityService {
	return NewActivityService(logRepo, fileRepo, 1000, slog.Default())
}

// TestActivityService_Feed_AttachesNames: к записям журнала подставляются
// имена существующих файлов; для удалённых — заглушка.
func TestActivityService_Feed_AttachesNames(t *testing.T) {
	entries := []*model.AccessLogEntry{
		{ID: "l1", FileID: "f1", UserID: "user-1", Action: model.ActionUpload},
		{ID: "l2", FileID: "f2", UserID: "user-1", Action: model.ActionDelete},
		{ID: "l3", FileID: "f1", UserID: "user-2", Action: model.ActionDownload},
	}
	logRepo := &mockLogRepo{
		listFn: func(_ context.Context, _ repository.AccessLogFilters, limit int) ([]*model.AccessLogEntry, error) {
			if limit != 1000 {
				t.Errorf("limit выборки = %d, ожидался 1000", limit)
			}
			return entries, nil
		},
	}
	fileRepo := &mockFileRepo{
		getByIDsFn: func(_ context.Context, ids []string) ([]*model.FileRecord, error) {
			// f2 удалён — в выборке его нет
			if len(ids) != 2 {
				t.Errorf("Запрошено %d уникальных file_id, ожидалось 2", len(ids))
			}
			return []*model.FileRecord{
				{ID: "f1", FileName: "report.pdf"},
			}, nil
		},
	}
	svc := newTestActivityService(logRepo, fileRepo)

	feed, err := svc.Feed(context.Background(), ActivityFilters{})
	if err != nil {
		t.Fatalf("Feed вернул ошибку: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("Feed вернул %d записей, хотели 3", len(feed))
	}
	if feed[0].FileName != "report.pdf" {
		t.Errorf("feed[0].FileName = %q, хотели report.pdf", feed[0].FileName)
	}
	if feed[1].FileName != DeletedFileName {
		t.Errorf("feed[1].FileName = %q, хотели заглушку %q", feed[1].FileName, DeletedFileName)
	}
	if feed[2].FileName != "report.pdf" {
		t.Errorf("feed[2].FileName = %q, хотели report.pdf", feed[2].FileName)
	}
}

// TestActivityService_Feed_Filters: фильтры пробрасываются в выборку.
func TestActivityService_Feed_Filters(t *testing.T) {
	logRepo := &mockLogRepo{
		listFn: func(_ context.Context, filters repository.AccessLogFilters, _ int) ([]*model.AccessLogEntry, error) {
			if filters.UserID == nil || *filters.UserID != "user-1" {
				t.Errorf("Фильтр UserID не проброшен: %v", filters.UserID)
			}
			if filters.Action == nil || *filters.Action != "upload" {
				t.Errorf("Фильтр Action не проброшен: %v", filters.Action)
			}
			return nil, nil
		},
	}
	svc := newTestActivityService(logRepo, &mockFileRepo{})

	_, err := svc.Feed(context.Background(), ActivityFilters{UserID: "user-1", Action: "upload"})
	if err != nil {
		t.Fatalf("Feed вернул ошибку: %v", err)
	}
}

// TestActivityService_Feed_InvalidAction: неизвестное действие отклоняется.
func TestActivityService_Feed_InvalidAction(t *testing.T) {
	svc := newTestActivityService(&mockLogRepo{}, &mockFileRepo{})

	_, err := svc.Feed(context.Background(), ActivityFilters{Action: "explode"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Ожидали ErrValidation, получили: %v", err)
	}
}

// TestActivityService_Feed_Limit: клиентский лимит усекает ленту.
func TestActivityService_Feed_Limit(t *testing.T) {
	entries := []*model.AccessLogEntry{
		{ID: "l1", FileID: "f1"},
		{ID: "l2", FileID: "f1"},
		{ID: "l3", FileID: "f1"},
	}
	logRepo := &mockLogRepo{
		listFn: func(_ context.Context, _ repository.AccessLogFilters, _ int) ([]*model.AccessLogEntry, error) {
			return entries, nil
		},
	}
	svc := newTestActivityService(logRepo, &mockFileRepo{})

	feed, err := svc.Feed(context.Background(), ActivityFilters{Limit: 2})
	if err != nil {
		t.Fatalf("Feed вернул ошибку: %v", err)
	}
	if len(feed) != 2 {
		t.Errorf("Feed с Limit=2 вернул %d записей", len(feed))
	}
}

// TestActivityService_Stats: свёртка статистики по пользователям —
// количество и объём по файлам, последняя активность по журналу.
func TestActivityService_Stats(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	fileRepo := &mockFileRepo{
		listAllFn: func(_ context.Context, _ int) ([]*model.FileRecord, error) {
			return []*model.FileRecord{
				{ID: "f1", UserID: "user-a", Size: 100},
				{ID: "f2", UserID: "user-a", Size: 200},
				{ID: "f3", UserID: "user-b", Size: 1000},
			}, nil
		},
	}
	logRepo := &mockLogRepo{
		listFn: func(_ context.Context, _ repository.AccessLogFilters, _ int) ([]*model.AccessLogEntry, error) {
			return []*model.AccessLogEntry{
				{ID: "l1", UserID: "user-a", FileID: "f1", CreatedAt: base},
				{ID: "l2", UserID: "user-a", FileID: "f2", CreatedAt: base.Add(time.Hour)},
				// user-c: файлов нет, активность есть (файлы удалены)
				{ID: "l3", UserID: "user-c", FileID: "f9", CreatedAt: base.Add(2 * time.Hour)},
			}, nil
		},
	}
	svc := newTestActivityService(logRepo, fileRepo)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats вернул ошибку: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("Stats вернул %d пользователей, хотели 3", len(stats))
	}

	// Сортировка по user_id: user-a, user-b, user-c
	a, b, c := stats[0], stats[1], stats[2]

	if a.UserID != "user-a" || a.FileCount != 2 || a.TotalBytes != 300 {
		t.Errorf("user-a: %+v, хотели {2 файла, 300 байт}", a)
	}
	if a.LastActivity == nil || !a.LastActivity.Equal(base.Add(time.Hour)) {
		t.Errorf("user-a.LastActivity = %v, хотели %v", a.LastActivity, base.Add(time.Hour))
	}

	if b.UserID != "user-b" || b.FileCount != 1 || b.TotalBytes != 1000 {
		t.Errorf("user-b: %+v, хотели {1 файл, 1000 байт}", b)
	}
	if b.LastActivity != nil {
		t.Errorf("user-b.LastActivity = %v, хотели nil (записей журнала нет)", b.LastActivity)
	}

	if c.UserID != "user-c" || c.FileCount != 0 || c.TotalBytes != 0 {
		t.Errorf("user-c: %+v, хотели {0 файлов, 0 байт}", c)
	}
	if c.LastActivity == nil {
		t.Errorf("user-c.LastActivity = nil, хотели время из журнала")
	}
}
