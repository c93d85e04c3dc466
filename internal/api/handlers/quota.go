// quota.go — обработчик GET /api/v1/quota.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/gofileportal/internal/api/errors"
)

// GetQuota обрабатывает GET /api/v1/quota.
// Возвращает квоту текущего пользователя; запись создаётся лениво
// при первом обращении со значениями по умолчанию.
func (h *APIHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	quota, err := h.quotaSvc.GetOrCreate(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("Ошибка получения квоты",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении квоты")
		return
	}

	writeJSON(w, http.StatusOK, quotaToAPI(quota))
}
