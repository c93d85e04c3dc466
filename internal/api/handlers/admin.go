// admin.go — административные обработчики: листинг файлов всех
// пользователей, лента действий, статистика, квоты.
// Авторизация (роль admin или scope files:admin) — на уровне middleware.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gofileportal/internal/api/errors"
	"github.com/bigkaa/gofileportal/internal/service"
)

// AdminListFiles обрабатывает GET /api/v1/admin/files.
// Файлы всех пользователей, uploaded_at DESC. Фильтры q (имя файла)
// и user_id (идентификатор владельца) применяются после выборки.
func (h *APIHandler) AdminListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	records, err := h.fileSvc.ListAll(r.Context(), service.ListFilters{
		Query:  query.Get("q"),
		UserID: query.Get("user_id"),
		Limit:  limitParam(r),
	})
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов всех пользователей",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка файлов")
		return
	}

	items := filesToAPI(records)
	writeJSON(w, http.StatusOK, fileListResponse{Items: items, Total: len(items)})
}

// AdminActivity обрабатывает GET /api/v1/admin/activity.
// Лента действий (created_at DESC) с именами файлов; для удалённых
// файлов подставляется заглушка.
func (h *APIHandler) AdminActivity(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	entries, err := h.activitySvc.Feed(r.Context(), service.ActivityFilters{
		UserID: query.Get("user_id"),
		Action: query.Get("action"),
		Limit:  limitParam(r),
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка получения ленты действий",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении ленты действий")
		return
	}

	items := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, activityToAPI(e))
	}

	writeJSON(w, http.StatusOK, activityListResponse{Items: items, Total: len(items)})
}

// AdminStats обрабатывает GET /api/v1/admin/stats.
// Статистика по пользователям: количество файлов, суммарный объём,
// время последнего действия.
func (h *APIHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.activitySvc.Stats(r.Context())
	if err != nil {
		h.logger.Error("Ошибка вычисления статистики",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при вычислении статистики")
		return
	}

	items := make([]userStatsResponse, 0, len(stats))
	for _, s := range stats {
		items = append(items, userStatsResponse{
			UserID:       s.UserID,
			FileCount:    s.FileCount,
			TotalBytes:   s.TotalBytes,
			LastActivity: s.LastActivity,
		})
	}

	writeJSON(w, http.StatusOK, statsListResponse{Items: items, Total: len(items)})
}

// AdminListQuotas обрабатывает GET /api/v1/admin/quotas.
func (h *APIHandler) AdminListQuotas(w http.ResponseWriter, r *http.Request) {
	quotas, err := h.quotaSvc.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка квот",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка квот")
		return
	}

	items := make([]quotaResponse, 0, len(quotas))
	for _, q := range quotas {
		items = append(items, quotaToAPI(q))
	}

	writeJSON(w, http.StatusOK, quotaListResponse{Items: items, Total: len(items)})
}

// AdminRecalculateQuota обрабатывает POST /api/v1/admin/quotas/{user_id}/recalculate.
// Пересчитывает used_bytes из суммы размеров файлов пользователя —
// единственная операция, изменяющая учтённое использование.
func (h *APIHandler) AdminRecalculateQuota(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		apierrors.ValidationError(w, "Не указан идентификатор пользователя")
		return
	}

	quota, err := h.quotaSvc.Recalculate(r.Context(), userID)
	if err != nil {
		h.logger.Error("Ошибка пересчёта квоты",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при пересчёте квоты")
		return
	}

	writeJSON(w, http.StatusOK, quotaToAPI(quota))
}
