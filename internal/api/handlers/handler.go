// handler.go — основной обработчик API File Portal.
// Объединяет health и бизнес-обработчики, содержит API-типы ответов
// и конвертеры доменных моделей в API-формат.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/gofileportal/internal/api/middleware"
	"github.com/bigkaa/gofileportal/internal/api/openapi"
	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/service"
)

// APIHandler — основной обработчик API File Portal.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	uploadSvc   *service.UploadService
	fileSvc     *service.FileService
	quotaSvc    *service.QuotaService
	activitySvc *service.ActivityService
	health      *HealthHandler
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	uploadSvc *service.UploadService,
	fileSvc *service.FileService,
	quotaSvc *service.QuotaService,
	activitySvc *service.ActivityService,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		uploadSvc:   uploadSvc,
		fileSvc:     fileSvc,
		quotaSvc:    quotaSvc,
		activitySvc: activitySvc,
		health:      health,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — встроенный OpenAPI-контракт.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Contract())
}

// --- API-типы ответов ---

// fileResponse — файл в API-формате.
// Поле StoragePath не отдаётся (внутреннее).
type fileResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	PublicURL  string    `json:"public_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// fileListResponse — список файлов.
type fileListResponse struct {
	Items []fileResponse `json:"items"`
	Total int            `json:"total"`
}

// errorDetail — код и описание ошибки отдельного файла в batch-загрузке.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// uploadResult — результат загрузки одного файла.
type uploadResult struct {
	FileName string        `json:"file_name"`
	Status   string        `json:"status"`
	File     *fileResponse `json:"file,omitempty"`
	Error    *errorDetail  `json:"error,omitempty"`
}

// uploadResponse — результат batch-загрузки.
type uploadResponse struct {
	Results  []uploadResult `json:"results"`
	Uploaded int            `json:"uploaded"`
	Rejected int            `json:"rejected"`
}

// quotaResponse — квота хранилища в API-формате.
type quotaResponse struct {
	UserID         string    `json:"user_id"`
	QuotaBytes     int64     `json:"quota_bytes"`
	UsedBytes      int64     `json:"used_bytes"`
	AvailableBytes int64     `json:"available_bytes"`
	UsagePercent   float64   `json:"usage_percent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// quotaListResponse — список квот.
type quotaListResponse struct {
	Items []quotaResponse `json:"items"`
	Total int             `json:"total"`
}

// activityResponse — запись ленты действий.
type activityResponse struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress *string   `json:"ip_address,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
}

// activityListResponse — лента действий.
type activityListResponse struct {
	Items []activityResponse `json:"items"`
	Total int                `json:"total"`
}

// userStatsResponse — статистика одного пользователя.
type userStatsResponse struct {
	UserID       string     `json:"user_id"`
	FileCount    int        `json:"file_count"`
	TotalBytes   int64      `json:"total_bytes"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// statsListResponse — статистика по всем пользователям.
type statsListResponse struct {
	Items []userStatsResponse `json:"items"`
	Total int                 `json:"total"`
}

// --- Конвертеры доменных моделей в API-формат ---

// fileToAPI конвертирует доменную запись файла в API-формат.
func fileToAPI(r *model.FileRecord) fileResponse {
	return fileResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		FileName:   r.FileName,
		Size:       r.Size,
		MimeType:   r.MimeType,
		PublicURL:  r.PublicURL,
		UploadedAt: r.UploadedAt,
	}
}

// filesToAPI конвертирует список доменных записей в API-формат.
func filesToAPI(records []*model.FileRecord) []fileResponse {
	items := make([]fileResponse, 0, len(records))
	for _, r := range records {
		items = append(items, fileToAPI(r))
	}
	return items
}

// quotaToAPI конвертирует квоту в API-формат с производными полями.
func quotaToAPI(q *model.QuotaRecord) quotaResponse {
	return quotaResponse{
		UserID:         q.UserID,
		QuotaBytes:     q.QuotaBytes,
		UsedBytes:      q.UsedBytes,
		AvailableBytes: q.AvailableBytes(),
		UsagePercent:   q.UsagePercent(),
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
	}
}

// activityToAPI конвертирует запись ленты действий в API-формат.
func activityToAPI(e *service.ActivityEntry) activityResponse {
	return activityResponse{
		ID:        e.ID,
		FileID:    e.FileID,
		FileName:  e.FileName,
		UserID:    e.UserID,
		Action:    e.Action,
		CreatedAt: e.CreatedAt,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// actorFrom строит объект сессии из claims JWT в контексте запроса.
// Subject всегда берётся из проверенного токена, роль — из claims.
func actorFrom(r *http.Request) service.Actor {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{
		UserID: claims.Subject,
		Admin:  claims.IsAdmin(),
	}
}

// requestMetaFrom извлекает IP-адрес и User-Agent клиента для журнала доступа.
func requestMetaFrom(r *http.Request) service.RequestMeta {
	meta := service.RequestMeta{}

	if ip := clientIP(r); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}

	return meta
}

// clientIP определяет IP клиента: X-Forwarded-For (первый адрес),
// затем X-Real-IP, затем RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			xff = xff[:idx]
		}
		return strings.TrimSpace(xff)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitParam разбирает query-параметр limit.
// Отсутствующий или некорректный параметр трактуется как 0 (без ограничения
// сверх фиксированного лимита выборки).
func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
