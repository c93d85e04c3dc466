// upload.go — сервис загрузки файлов.
// Порядок операций фиксирован: проверка размера → проверка квоты
// (если включена) → объект в хранилище → запись в БД → журнал доступа.
// Компенсирующих откатов нет: при сбое на поздних шагах ранние
// эффекты остаются (осиротевший объект логируется).
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/repository"
	"github.com/bigkaa/gofileportal/internal/storage"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fp_uploads_total",
		Help: "Общее количество загрузок файлов (по статусу).",
	}, []string{"status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fp_upload_bytes_total",
		Help: "Общее количество загруженных байт.",
	})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fp_upload_duration_seconds",
		Help:    "Длительность загрузки файла (хранилище + БД + журнал).",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// UploadInput — параметры загрузки одного файла.
type UploadInput struct {
	// UserID — владелец файла (subject проверенного токена).
	UserID string
	// FileName — имя файла из multipart-части.
	FileName string
	// MimeType — Content-Type части; при пустом значении определяется по содержимому.
	MimeType string
	// Data — содержимое файла.
	Data []byte
	// IPAddress — IP клиента для журнала доступа.
	IPAddress *string
	// UserAgent — User-Agent клиента для журнала доступа.
	UserAgent *string
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	fileRepo     repository.FileRepository
	logRepo      repository.AccessLogRepository
	store        ObjectStore
	quota        *QuotaService
	maxFileSize  int64
	enforceQuota bool
	logger       *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
// maxFileSize — порог отклонения в байтах (FP_MAX_FILE_SIZE);
// enforceQuota — включена ли проверка квоты (FP_QUOTA_ENFORCEMENT).
func NewUploadService(
	fileRepo repository.FileRepository,
	logRepo repository.AccessLogRepository,
	store ObjectStore,
	quota *QuotaService,
	maxFileSize int64,
	enforceQuota bool,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		fileRepo:     fileRepo,
		logRepo:      logRepo,
		store:        store,
		quota:        quota,
		maxFileSize:  maxFileSize,
		enforceQuota: enforceQuota,
		logger:       logger.With(slog.String("component", "upload_service")),
	}
}

// Upload загружает один файл.
//
// Pipeline:
//  1. Валидация имени и размера (файлы от maxFileSize байт отклоняются
//     до каких-либо обращений к хранилищу и БД)
//  2. Проверка квоты — только при включённом enforcement
//  3. PUT объекта в хранилище (ключ "{user_id}/{имя}", повтор перезаписывает)
//  4. INSERT записи файла
//  5. INSERT записи "upload" в журнал доступа
//
// Сбой на шаге 4 или 5 оставляет эффекты предыдущих шагов на месте:
// объект не удаляется (осиротение логируется), запись не откатывается.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*model.FileRecord, error) {
	start := time.Now()

	// 1. Валидация
	if err := validateFileName(in.FileName); err != nil {
		uploadsTotal.WithLabelValues("rejected_name").Inc()
		return nil, err
	}

	size := int64(len(in.Data))
	if size >= s.maxFileSize {
		uploadsTotal.WithLabelValues("rejected_size").Inc()
		s.logger.Warn("Файл отклонён по размеру",
			slog.String("user_id", in.UserID),
			slog.String("filename", in.FileName),
			slog.Int64("size", size),
			slog.Int64("max", s.maxFileSize),
		)
		return nil, fmt.Errorf("%w: %d байт при пороге %d", ErrFileTooLarge, size, s.maxFileSize)
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(in.Data)
	}

	// 2. Квота (выключена по умолчанию)
	if s.enforceQuota {
		if err := s.quota.CheckWithinQuota(ctx, in.UserID, size); err != nil {
			uploadsTotal.WithLabelValues("rejected_quota").Inc()
			return nil, err
		}
	}

	// 3. Объект в хранилище
	key := storage.BuildKey(in.UserID, in.FileName)
	if err := s.store.Put(ctx, key, bytes.NewReader(in.Data), size, mimeType); err != nil {
		uploadsTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("%w: загрузка объекта: %v", ErrStorage, err)
	}

	// 4. Запись файла
	record := &model.FileRecord{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		FileName:    in.FileName,
		Size:        size,
		MimeType:    mimeType,
		StoragePath: key,
		PublicURL:   s.store.PublicURL(key),
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.fileRepo.Create(ctx, record); err != nil {
		uploadsTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Объект загружен, но запись файла не создана — объект осиротел",
			slog.String("key", key),
			slog.String("user_id", in.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	// 5. Журнал доступа
	entry := &model.AccessLogEntry{
		ID:        uuid.New().String(),
		FileID:    record.ID,
		UserID:    in.UserID,
		Action:    model.ActionUpload,
		CreatedAt: time.Now().UTC(),
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}
	if err := s.logRepo.Append(ctx, entry); err != nil {
		uploadsTotal.WithLabelValues("log_error").Inc()
		s.logger.Error("Файл загружен, но запись в журнал доступа не добавлена",
			slog.String("file_id", record.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("запись в журнал доступа: %w", err)
	}
	accessLogEntriesTotal.WithLabelValues(model.ActionUpload).Inc()

	duration := time.Since(start)
	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(size))
	uploadDuration.Observe(duration.Seconds())

	s.logger.Info("Файл загружен",
		slog.String("file_id", record.ID),
		slog.String("user_id", in.UserID),
		slog.String("filename", in.FileName),
		slog.Int64("size", size),
		slog.Duration("duration", duration),
	)

	return record, nil
}

// validateFileName отклоняет пустые имена и разделители пути:
// имя файла входит в ключ объекта "{user_id}/{имя}".
func validateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: имя файла содержит разделитель пути", ErrValidation)
	}
	return nil
}
