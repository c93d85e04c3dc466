// Пакет server — HTTP-сервер File Portal с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gofileportal/internal/api/handlers"
	"github.com/bigkaa/gofileportal/internal/api/middleware"
	"github.com/bigkaa/gofileportal/internal/config"
)

// Server — HTTP-сервер File Portal.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
// validator — middleware валидации запросов по OpenAPI-контракту
// (может быть nil).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth, validator func(http.Handler) http.Handler) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics", "/api/v1/openapi.json"))
	}

	// Валидация запросов по контракту — после аутентификации
	if validator != nil {
		router.Use(validator)
	}

	// Операционные endpoints
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	// Бизнес-маршруты
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.json", handler.GetOpenAPI)

		// Маршруты пользователя: любая роль портала или scope files:*
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoleOrScope(
				[]string{middleware.RoleUser, middleware.RoleAdmin},
				[]string{middleware.ScopeFilesRead, middleware.ScopeFilesWrite, middleware.ScopeFilesAdmin},
			))

			r.Post("/files", handler.UploadFiles)
			r.Get("/files", handler.ListFiles)
			r.Get("/files/{id}", handler.GetFile)
			r.Get("/files/{id}/download", handler.DownloadFile)
			r.Delete("/files/{id}", handler.DeleteFile)
			r.Get("/quota", handler.GetQuota)
		})

		// Административные маршруты: роль admin или scope files:admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRoleOrScope(
				[]string{middleware.RoleAdmin},
				[]string{middleware.ScopeFilesAdmin},
			))

			r.Get("/files", handler.AdminListFiles)
			r.Get("/activity", handler.AdminActivity)
			r.Get("/stats", handler.AdminStats)
			r.Get("/quotas", handler.AdminListQuotas)
			r.Post("/quotas/{user_id}/recalculate", handler.AdminRecalculateQuota)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем JWT middleware
			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
