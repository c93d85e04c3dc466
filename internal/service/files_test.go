package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/repository"
	"github.com/bigkaa/gofileportal/internal/storage"
)

// --- Mock repositories / store ---

// mockFileRepo — мок FileRepository для unit-тестов.
type mockFileRepo struct {
	createFn        func(ctx context.Context, f *model.FileRecord) error
	getByIDFn       func(ctx context.Context, fileID string) (*model.FileRecord, error)
	getByIDsFn      func(ctx context.Context, fileIDs []string) ([]*model.FileRecord, error)
	listByUserFn    func(ctx context.Context, userID string, limit int) ([]*model.FileRecord, error)
	listAllFn       func(ctx context.Context, limit int) ([]*model.FileRecord, error)
	deleteFn        func(ctx context.Context, fileID string) error
	sumSizeByUserFn func(ctx context.Context, userID string) (int64, error)

	createCalls int
	getCalls    int
	deleteCalls int
}

func (m *mockFileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	m.getCalls++
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, fileID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) GetByIDs(ctx context.Context, fileIDs []string) ([]*model.FileRecord, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, fileIDs)
	}
	return nil, nil
}

func (m *mockFileRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.FileRecord, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockFileRepo) ListAll(ctx context.Context, limit int) ([]*model.FileRecord, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, fileID string) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, fileID)
	}
	return nil
}

func (m *mockFileRepo) SumSizeByUser(ctx context.Context, userID string) (int64, error) {
	if m.sumSizeByUserFn != nil {
		return m.sumSizeByUserFn(ctx, userID)
	}
	return 0, nil
}

// mockLogRepo — мок AccessLogRepository. Копит добавленные записи.
type mockLogRepo struct {
	appendFn func(ctx context.Context, e *model.AccessLogEntry) error
	listFn   func(ctx context.Context, filters repository.AccessLogFilters, limit int) ([]*model.AccessLogEntry, error)

	appendCalls int
	appended    []*model.AccessLogEntry
}

func (m *mockLogRepo) Append(ctx context.Context, e *model.AccessLogEntry) error {
	m.appendCalls++
	if m.appendFn != nil {
		if err := m.appendFn(ctx, e); err != nil {
			return err
		}
	}
	m.appended = append(m.appended, e)
	return nil
}

func (m *mockLogRepo) List(ctx context.Context, filters repository.AccessLogFilters, limit int) ([]*model.AccessLogEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filters, limit)
	}
	return nil, nil
}

func (m *mockLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.AccessLogEntry, error) {
	return nil, nil
}

// mockQuotaRepo — мок QuotaRepository.
type mockQuotaRepo struct {
	getFn         func(ctx context.Context, userID string) (*model.QuotaRecord, error)
	createFn      func(ctx context.Context, q *model.QuotaRecord) error
	listFn        func(ctx context.Context) ([]*model.QuotaRecord, error)
	updateUsageFn func(ctx context.Context, userID string, usedBytes int64) error

	getCalls         int
	createCalls      int
	updateUsageCalls int
}

func (m *mockQuotaRepo) Get(ctx context.Context, userID string) (*model.QuotaRecord, error) {
	m.getCalls++
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockQuotaRepo) Create(ctx context.Context, q *model.QuotaRecord) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, q)
	}
	return nil
}

func (m *mockQuotaRepo) List(ctx context.Context) ([]*model.QuotaRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockQuotaRepo) UpdateUsage(ctx context.Context, userID string, usedBytes int64) error {
	m.updateUsageCalls++
	if m.updateUsageFn != nil {
		return m.updateUsageFn(ctx, userID, usedBytes)
	}
	return nil
}

// mockStore — мок ObjectStore.
type mockStore struct {
	putFn    func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn func(ctx context.Context, key string) error

	putCalls    int
	getObjCalls int
	deleteCalls int
}

func (m *mockStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	m.putCalls++
	if m.putFn != nil {
		return m.putFn(ctx, key, body, size, contentType)
	}
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.getObjCalls++
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return io.NopCloser(strings.NewReader("содержимое")), nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockStore) PublicURL(key string) string {
	return "http://minio.kryukov.lan:9000/fileportal/" + key
}

// newTestFileService собирает FileService на моках.
func newTestFileService(fileRepo *mockFileRepo, logRepo *mockLogRepo, store *mockStore) *FileService {
	cache := NewCacheService(100, 5*time.Minute)
	return NewFileService(fileRepo, logRepo, store, cache, 500, slog.Default())
}

// --- Тесты листинга ---

// TestFileService_List_CaseInsensitiveSearch проверяет регистронезависимый
// поиск по подстроке имени: "Invoice.pdf" находится по запросу "invoice".
func TestFileService_List_CaseInsensitiveSearch(t *testing.T) {
	files := []*model.FileRecord{
		{ID: "f1", UserID: "user-1", FileName: "Invoice.pdf"},
		{ID: "f2", UserID: "user-1", FileName: "report.docx"},
		{ID: "f3", UserID: "user-1", FileName: "INVOICE-2026.xlsx"},
	}
	repo := &mockFileRepo{
		listByUserFn: func(_ context.Context, userID string, limit int) ([]*model.FileRecord, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, ожидался user-1", userID)
			}
			if limit != 500 {
				t.Errorf("limit выборки = %d, ожидался 500", limit)
			}
			return files, nil
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, &mockStore{})

	got, err := svc.List(context.Background(), Actor{UserID: "user-1"}, ListFilters{Query: "invoice"})
	if err != nil {
		t.Fatalf("List вернул ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List вернул %d файлов, хотели 2", len(got))
	}
	if got[0].FileName != "Invoice.pdf" || got[1].FileName != "INVOICE-2026.xlsx" {
		t.Errorf("Найдены не те файлы: %q, %q", got[0].FileName, got[1].FileName)
	}
}

// TestFileService_List_Limit проверяет усечение результата клиентским лимитом.
func TestFileService_List_Limit(t *testing.T) {
	files := []*model.FileRecord{
		{ID: "f1", UserID: "user-1", FileName: "a.txt"},
		{ID: "f2", UserID: "user-1", FileName: "b.txt"},
		{ID: "f3", UserID: "user-1", FileName: "c.txt"},
	}
	repo := &mockFileRepo{
		listByUserFn: func(_ context.Context, _ string, _ int) ([]*model.FileRecord, error) {
			return files, nil
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, &mockStore{})

	got, err := svc.List(context.Background(), Actor{UserID: "user-1"}, ListFilters{Limit: 2})
	if err != nil {
		t.Fatalf("List вернул ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List с Limit=2 вернул %d файлов", len(got))
	}
}

// TestFileService_ListAll_UserFilter проверяет фильтр по подстроке владельца.
func TestFileService_ListAll_UserFilter(t *testing.T) {
	files := []*model.FileRecord{
		{ID: "f1", UserID: "alice@kryukov.lan", FileName: "a.txt"},
		{ID: "f2", UserID: "bob@kryukov.lan", FileName: "b.txt"},
	}
	repo := &mockFileRepo{
		listAllFn: func(_ context.Context, _ int) ([]*model.FileRecord, error) {
			return files, nil
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, &mockStore{})

	got, err := svc.ListAll(context.Background(), ListFilters{UserID: "alice"})
	if err != nil {
		t.Fatalf("ListAll вернул ошибку: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "alice@kryukov.lan" {
		t.Errorf("ListAll по владельцу вернул не то: %+v", got)
	}
}

// --- Тесты Get ---

// TestFileService_Get_Owner проверяет доступ владельца и кэширование.
func TestFileService_Get_Owner(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", FileName: "a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, &mockStore{})
	actor := Actor{UserID: "user-1"}

	got, err := svc.Get(context.Background(), actor, "f1")
	if err != nil {
		t.Fatalf("Get вернул ошибку: %v", err)
	}
	if got.FileName != "a.txt" {
		t.Errorf("FileName = %q, хотели a.txt", got.FileName)
	}

	// Второе обращение — из кэша, без запроса к БД
	if _, err := svc.Get(context.Background(), actor, "f1"); err != nil {
		t.Fatalf("Повторный Get вернул ошибку: %v", err)
	}
	if repo.getCalls != 1 {
		t.Errorf("GetByID вызван %d раз, ожидался 1 (кэш)", repo.getCalls)
	}
}

// TestFileService_Get_Forbidden проверяет запрет доступа к чужому файлу.
func TestFileService_Get_Forbidden(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, &mockStore{})

	_, err := svc.Get(context.Background(), Actor{UserID: "user-2"}, "f1")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Get чужого файла: ожидали ErrForbidden, получили: %v", err)
	}

	// Администратору можно
	if _, err := svc.Get(context.Background(), Actor{UserID: "user-2", Admin: true}, "f1"); err != nil {
		t.Errorf("Get администратором вернул ошибку: %v", err)
	}
}

// TestFileService_Get_NotFound проверяет отсутствие записи.
func TestFileService_Get_NotFound(t *testing.T) {
	svc := newTestFileService(&mockFileRepo{}, &mockLogRepo{}, &mockStore{})

	_, err := svc.Get(context.Background(), Actor{UserID: "user-1"}, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get несуществующего файла: ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты Download ---

// TestFileService_Download_Actions проверяет выбор действия журнала:
// download (вложение), view (inline), admin_view (админ читает чужой файл).
func TestFileService_Download_Actions(t *testing.T) {
	tests := []struct {
		name       string
		actor      Actor
		inline     bool
		wantAction string
	}{
		{
			name:       "Владелец скачивает вложением",
			actor:      Actor{UserID: "user-1"},
			inline:     false,
			wantAction: model.ActionDownload,
		},
		{
			name:       "Владелец открывает inline",
			actor:      Actor{UserID: "user-1"},
			inline:     true,
			wantAction: model.ActionView,
		},
		{
			name:       "Администратор читает чужой файл",
			actor:      Actor{UserID: "admin-1", Admin: true},
			inline:     false,
			wantAction: model.ActionAdminView,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &model.FileRecord{ID: "f1", UserID: "user-1", FileName: "a.txt", StoragePath: "user-1/a.txt"}
			repo := &mockFileRepo{
				getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
					return record, nil
				},
			}
			logRepo := &mockLogRepo{}
			svc := newTestFileService(repo, logRepo, &mockStore{})

			_, reader, err := svc.Download(context.Background(), tt.actor, "f1", tt.inline, RequestMeta{})
			if err != nil {
				t.Fatalf("Download вернул ошибку: %v", err)
			}
			defer reader.Close()

			if len(logRepo.appended) != 1 {
				t.Fatalf("В журнал добавлено %d записей, ожидалась 1", len(logRepo.appended))
			}
			if logRepo.appended[0].Action != tt.wantAction {
				t.Errorf("Action = %q, хотели %q", logRepo.appended[0].Action, tt.wantAction)
			}
			if logRepo.appended[0].UserID != tt.actor.UserID {
				t.Errorf("UserID журнала = %q, хотели %q", logRepo.appended[0].UserID, tt.actor.UserID)
			}
		})
	}
}

// TestFileService_Download_ObjectMissing: запись есть, объекта нет —
// наружу NOT_FOUND, запись файла не изменяется.
func TestFileService_Download_ObjectMissing(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	store := &mockStore{
		getFn: func(_ context.Context, _ string) (io.ReadCloser, error) {
			return nil, storage.ErrObjectNotFound
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, store)

	_, _, err := svc.Download(context.Background(), Actor{UserID: "user-1"}, "f1", false, RequestMeta{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Download без объекта: ожидали ErrNotFound, получили: %v", err)
	}
	if repo.deleteCalls != 0 {
		t.Errorf("Запись файла тронута при отсутствии объекта: deleteCalls = %d", repo.deleteCalls)
	}
}

// TestFileService_Download_LogFailureDoesNotBlock: сбой журнала
// не прерывает скачивание.
func TestFileService_Download_LogFailureDoesNotBlock(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	logRepo := &mockLogRepo{
		appendFn: func(_ context.Context, _ *model.AccessLogEntry) error {
			return errors.New("журнал недоступен")
		},
	}
	svc := newTestFileService(repo, logRepo, &mockStore{})

	_, reader, err := svc.Download(context.Background(), Actor{UserID: "user-1"}, "f1", false, RequestMeta{})
	if err != nil {
		t.Fatalf("Download при сбое журнала вернул ошибку: %v", err)
	}
	reader.Close()
}

// --- Тесты Delete ---

// TestFileService_Delete_Order проверяет порядок удаления:
// журнал → объект хранилища → запись БД.
func TestFileService_Delete_Order(t *testing.T) {
	var order []string

	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
		deleteFn: func(_ context.Context, _ string) error {
			order = append(order, "record")
			return nil
		},
	}
	logRepo := &mockLogRepo{
		appendFn: func(_ context.Context, _ *model.AccessLogEntry) error {
			order = append(order, "log")
			return nil
		},
	}
	store := &mockStore{
		deleteFn: func(_ context.Context, _ string) error {
			order = append(order, "storage")
			return nil
		},
	}
	svc := newTestFileService(repo, logRepo, store)

	err := svc.Delete(context.Background(), Actor{UserID: "user-1"}, "f1", RequestMeta{})
	if err != nil {
		t.Fatalf("Delete вернул ошибку: %v", err)
	}

	want := []string{"log", "storage", "record"}
	if len(order) != 3 {
		t.Fatalf("Выполнено %d шагов, ожидалось 3: %v", len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Шаг %d = %q, ожидался %q", i, order[i], want[i])
		}
	}
	if logRepo.appended[0].Action != model.ActionDelete {
		t.Errorf("Action = %q, хотели delete", logRepo.appended[0].Action)
	}
}

// TestFileService_Delete_StorageFailureContinues: сбой удаления объекта
// логируется, запись БД всё равно удаляется.
func TestFileService_Delete_StorageFailureContinues(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	store := &mockStore{
		deleteFn: func(_ context.Context, _ string) error {
			return errors.New("хранилище недоступно")
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, store)

	err := svc.Delete(context.Background(), Actor{UserID: "user-1"}, "f1", RequestMeta{})
	if err != nil {
		t.Fatalf("Delete при сбое хранилища вернул ошибку: %v", err)
	}
	if repo.deleteCalls != 1 {
		t.Errorf("Запись БД не удалена: deleteCalls = %d", repo.deleteCalls)
	}
}

// TestFileService_Delete_LogFailureAborts: без записи в журнал
// удаление не выполняется вовсе.
func TestFileService_Delete_LogFailureAborts(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	logRepo := &mockLogRepo{
		appendFn: func(_ context.Context, _ *model.AccessLogEntry) error {
			return errors.New("журнал недоступен")
		},
	}
	store := &mockStore{}
	svc := newTestFileService(repo, logRepo, store)

	err := svc.Delete(context.Background(), Actor{UserID: "user-1"}, "f1", RequestMeta{})
	if err == nil {
		t.Fatal("Delete при сбое журнала должен вернуть ошибку")
	}
	if store.deleteCalls != 0 {
		t.Errorf("Объект удалён без записи в журнал: deleteCalls = %d", store.deleteCalls)
	}
	if repo.deleteCalls != 0 {
		t.Errorf("Запись удалена без записи в журнал: deleteCalls = %d", repo.deleteCalls)
	}
}

// TestFileService_Delete_AdminAction: администратор удаляет чужой файл —
// в журнале admin_delete.
func TestFileService_Delete_AdminAction(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return record, nil
		},
	}
	logRepo := &mockLogRepo{}
	svc := newTestFileService(repo, logRepo, &mockStore{})

	err := svc.Delete(context.Background(), Actor{UserID: "admin-1", Admin: true}, "f1", RequestMeta{})
	if err != nil {
		t.Fatalf("Delete вернул ошибку: %v", err)
	}
	if logRepo.appended[0].Action != model.ActionAdminDelete {
		t.Errorf("Action = %q, хотели admin_delete", logRepo.appended[0].Action)
	}
	if logRepo.appended[0].UserID != "admin-1" {
		t.Errorf("UserID журнала = %q, хотели admin-1 (кто удалял)", logRepo.appended[0].UserID)
	}
}

// TestFileService_Delete_InvalidatesCache: после удаления запись
// не возвращается из кэша.
func TestFileService_Delete_InvalidatesCache(t *testing.T) {
	record := &model.FileRecord{ID: "f1", UserID: "user-1", StoragePath: "user-1/a.txt"}
	deleted := false
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			if deleted {
				return nil, repository.ErrNotFound
			}
			return record, nil
		},
		deleteFn: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestFileService(repo, &mockLogRepo{}, &mockStore{})
	actor := Actor{UserID: "user-1"}

	// Прогреваем кэш
	if _, err := svc.Get(context.Background(), actor, "f1"); err != nil {
		t.Fatalf("Get вернул ошибку: %v", err)
	}

	if err := svc.Delete(context.Background(), actor, "f1", RequestMeta{}); err != nil {
		t.Fatalf("Delete вернул ошибку: %v", err)
	}

	_, err := svc.Get(context.Background(), actor, "f1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get после Delete: ожидали ErrNotFound, получили: %v", err)
	}
}
