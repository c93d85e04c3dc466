// quota.go — сервис квот хранилища.
// Ленивое создание записи квоты при первом обращении, проверка лимита
// перед загрузкой, пересчёт использования по данным таблицы files.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/repository"
)

// Prometheus-метрики квот.
var (
	quotaChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fp_quota_checks_total",
		Help: "Общее количество проверок квоты (по результату).",
	}, []string{"result"})

	quotaRecalcTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fp_quota_recalculations_total",
		Help: "Общее количество пересчётов использования квоты.",
	})
)

// QuotaService — сервис квот хранилища пользователей.
//
// Поле used_bytes обновляется ТОЛЬКО административным пересчётом:
// загрузка и удаление файлов его не трогают. Проверка лимита при
// загрузке считает занятое место по таблице files напрямую.
type QuotaService struct {
	quotaRepo    repository.QuotaRepository
	fileRepo     repository.FileRepository
	defaultQuota int64
	logger       *slog.Logger
}

// NewQuotaService создаёт сервис квот.
// defaultQuota — размер квоты по умолчанию в байтах (FP_DEFAULT_QUOTA).
func NewQuotaService(
	quotaRepo repository.QuotaRepository,
	fileRepo repository.FileRepository,
	defaultQuota int64,
	logger *slog.Logger,
) *QuotaService {
	return &QuotaService{
		quotaRepo:    quotaRepo,
		fileRepo:     fileRepo,
		defaultQuota: defaultQuota,
		logger:       logger.With(slog.String("component", "quota_service")),
	}
}

// GetOrCreate возвращает квоту пользователя, лениво создавая запись
// по умолчанию при первом обращении. Повторное обращение возвращает
// ту же сохранённую запись.
func (s *QuotaService) GetOrCreate(ctx context.Context, userID string) (*model.QuotaRecord, error) {
	q, err := s.quotaRepo.Get(ctx, userID)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("получение квоты: %w", err)
	}

	// Записи нет — создаём с параметрами по умолчанию
	q = &model.QuotaRecord{
		UserID:     userID,
		QuotaBytes: s.defaultQuota,
		UsedBytes:  0,
	}
	if err := s.quotaRepo.Create(ctx, q); err != nil {
		// Гонка ленивого создания: запись уже появилась — перечитываем
		if errors.Is(err, repository.ErrConflict) {
			q, err = s.quotaRepo.Get(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("перечитывание квоты после гонки: %w", err)
			}
			return q, nil
		}
		return nil, fmt.Errorf("создание квоты: %w", err)
	}

	s.logger.Info("Создана квота по умолчанию",
		slog.String("user_id", userID),
		slog.Int64("quota_bytes", q.QuotaBytes),
	)

	return q, nil
}

// CheckWithinQuota проверяет, поместится ли addBytes в квоту пользователя.
// Занятое место считается по таблице files (used_bytes может отставать).
// Возвращает ErrQuotaExceeded при превышении.
func (s *QuotaService) CheckWithinQuota(ctx context.Context, userID string, addBytes int64) error {
	q, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		quotaChecksTotal.WithLabelValues("error").Inc()
		return err
	}

	used, err := s.fileRepo.SumSizeByUser(ctx, userID)
	if err != nil {
		quotaChecksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("подсчёт занятого места: %w", err)
	}

	if used+addBytes > q.QuotaBytes {
		quotaChecksTotal.WithLabelValues("exceeded").Inc()
		s.logger.Warn("Превышение квоты",
			slog.String("user_id", userID),
			slog.Int64("used", used),
			slog.Int64("add", addBytes),
			slog.Int64("quota", q.QuotaBytes),
		)
		return fmt.Errorf("%w: занято %d из %d байт", ErrQuotaExceeded, used, q.QuotaBytes)
	}

	quotaChecksTotal.WithLabelValues("ok").Inc()
	return nil
}

// List возвращает квоты всех пользователей.
func (s *QuotaService) List(ctx context.Context) ([]*model.QuotaRecord, error) {
	quotas, err := s.quotaRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка квот: %w", err)
	}
	return quotas, nil
}

// Recalculate пересчитывает used_bytes пользователя по SUM(files.size)
// и сохраняет результат. Единственная операция, обновляющая used_bytes.
func (s *QuotaService) Recalculate(ctx context.Context, userID string) (*model.QuotaRecord, error) {
	q, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	used, err := s.fileRepo.SumSizeByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("подсчёт занятого места: %w", err)
	}

	if err := s.quotaRepo.UpdateUsage(ctx, userID, used); err != nil {
		return nil, fmt.Errorf("обновление использования квоты: %w", err)
	}

	quotaRecalcTotal.Inc()
	s.logger.Info("Использование квоты пересчитано",
		slog.String("user_id", userID),
		slog.Int64("was", q.UsedBytes),
		slog.Int64("now", used),
	)

	// Перечитываем: в записи обновились used_bytes и updated_at
	q, err = s.quotaRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("перечитывание квоты: %w", err)
	}
	return q, nil
}
