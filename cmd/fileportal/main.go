// Точка входа File Portal — клиентский файловый портал.
// Загружает конфигурацию, подключается к PostgreSQL и объектному
// хранилищу, применяет миграции, создаёт сервисный слой и API handlers,
// запускает topologymetrics, HTTP-сервер с JWT middleware
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofileportal/internal/api/handlers"
	"github.com/bigkaa/gofileportal/internal/api/middleware"
	"github.com/bigkaa/gofileportal/internal/api/openapi"
	"github.com/bigkaa/gofileportal/internal/config"
	"github.com/bigkaa/gofileportal/internal/database"
	"github.com/bigkaa/gofileportal/internal/repository"
	"github.com/bigkaa/gofileportal/internal/server"
	"github.com/bigkaa/gofileportal/internal/service"
	"github.com/bigkaa/gofileportal/internal/storage"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("File Portal запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("FP_DEPHEALTH_GROUP") == "" {
		logger.Warn("FP_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент объектного хранилища (S3/MinIO)
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories
	fileRepo := repository.NewFileRepository(pool)
	logRepo := repository.NewAccessLogRepository(pool)
	quotaRepo := repository.NewQuotaRepository(pool)

	// 7. Кэш метаданных и сервисный слой
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	quotaSvc := service.NewQuotaService(quotaRepo, fileRepo, cfg.DefaultQuota, logger)
	uploadSvc := service.NewUploadService(
		fileRepo, logRepo, store, quotaSvc,
		cfg.MaxFileSize, cfg.QuotaEnforcement,
		logger,
	)
	fileSvc := service.NewFileService(
		fileRepo, logRepo, store, cache,
		cfg.ListFetchLimit,
		logger,
	)
	activitySvc := service.NewActivityService(
		logRepo, fileRepo,
		cfg.ActivityFetchLimit,
		logger,
	)

	if !cfg.QuotaEnforcement {
		logger.Info("Проверка квоты при загрузке отключена (FP_QUOTA_ENFORCEMENT=false), квоты ведутся справочно")
	}

	// 8. OpenAPI-контракт: валидация при старте + middleware валидации запросов
	contractDoc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	contractRouter, err := openapi.NewRouter(contractDoc)
	if err != nil {
		logger.Error("Ошибка создания роутера OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator := middleware.RequestValidator(contractRouter)
	logger.Info("OpenAPI контракт загружен", slog.String("version", contractDoc.Info.Version))

	// 9. Readiness checkers (PostgreSQL + объектное хранилище + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	storageChecker := store.NewReadinessChecker()
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.KeycloakReadinessTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, storageChecker, kcChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		uploadSvc,
		fileSvc,
		quotaSvc,
		activitySvc,
		healthHandler,
		logger,
	)

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.RoleAdminGroups,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. topologymetrics — мониторинг зависимостей
	// (PostgreSQL + объектное хранилище + Keycloak)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"fileportal",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.S3Endpoint,
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("File Portal остановлен")
}
