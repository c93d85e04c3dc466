// Пакет config — загрузка и валидация конфигурации File Portal
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации File Portal.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8020-8029)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Объектное хранилище (S3/MinIO) ---

	// URL S3 endpoint (например, https://minio.kryukov.lan:9000)
	S3Endpoint string
	// Регион S3 (для MinIO произвольный, по умолчанию us-east-1)
	S3Region string
	// Имя bucket для файлов портала
	S3Bucket string
	// Access key
	S3AccessKey string
	// Secret key
	S3SecretKey string
	// Path-style адресация (true для MinIO)
	S3UsePathStyle bool
	// Базовый URL публичных ссылок на объекты
	// (по умолчанию "{endpoint}/{bucket}")
	S3PublicBaseURL string

	// --- Keycloak / JWT ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Путь к CA-сертификату для TLS-соединений с Keycloak (опционально)
	CACertPath string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке exp/nbf JWT
	JWTLeeway time.Duration
	// Таймаут проверки готовности Keycloak
	KeycloakReadinessTimeout time.Duration

	// --- Маппинг групп → ролей ---

	// Группы Keycloak, дающие роль admin (через запятую).
	// Все остальные аутентифицированные пользователи получают роль user.
	RoleAdminGroups []string

	// --- Файлы и квоты ---

	// Максимальный размер загружаемого файла в байтах (по умолчанию 10 MiB)
	MaxFileSize int64
	// Квота хранилища по умолчанию в байтах (по умолчанию 1 GiB)
	DefaultQuota int64
	// Блокировать загрузку при превышении квоты.
	// По умолчанию false: учёт квот ведётся, но загрузку не ограничивает.
	QuotaEnforcement bool
	// Максимум записей, выбираемых при листинге файлов
	ListFetchLimit int
	// Максимум записей, выбираемых при построении ленты активности
	ActivityFetchLimit int

	// --- Кэш метаданных ---

	// Размер LRU-кэша метаданных файлов
	CacheSize int
	// TTL записей кэша метаданных
	CacheTTL time.Duration

	// --- Мониторинг зависимостей (topologymetrics) ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей (DEPHEALTH_ISENTRY)
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FP_PORT — порт HTTP-сервера (по умолчанию 8020)
	cfg.Port, err = getEnvInt("FP_PORT", 8020)
	if err != nil {
		return nil, fmt.Errorf("FP_PORT: %w", err)
	}
	if cfg.Port < 8020 || cfg.Port > 8029 {
		return nil, fmt.Errorf("FP_PORT: значение %d вне допустимого диапазона 8020-8029", cfg.Port)
	}

	// FP_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FP_LOG_LEVEL: %w", err)
	}

	// FP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	// FP_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("FP_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_HTTP_READ_TIMEOUT: %w", err)
	}

	// FP_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("FP_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// FP_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("FP_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// FP_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FP_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FP_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FP_DB_PORT: %w", err)
	}

	// FP_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FP_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FP_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FP_DB_USER")
	if err != nil {
		return nil, err
	}

	// FP_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FP_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FP_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Объектное хранилище ---

	// FP_S3_ENDPOINT — обязательный
	cfg.S3Endpoint, err = getEnvRequired("FP_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.S3Endpoint = strings.TrimRight(cfg.S3Endpoint, "/")

	// FP_S3_REGION — регион (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("FP_S3_REGION", "us-east-1")

	// FP_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("FP_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// FP_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("FP_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// FP_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("FP_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// FP_S3_USE_PATH_STYLE — path-style адресация (по умолчанию true, для MinIO)
	cfg.S3UsePathStyle, err = getEnvBool("FP_S3_USE_PATH_STYLE", true)
	if err != nil {
		return nil, fmt.Errorf("FP_S3_USE_PATH_STYLE: %w", err)
	}

	// FP_S3_PUBLIC_BASE_URL — база публичных ссылок (по умолчанию endpoint/bucket)
	cfg.S3PublicBaseURL = getEnvDefault("FP_S3_PUBLIC_BASE_URL",
		fmt.Sprintf("%s/%s", cfg.S3Endpoint, cfg.S3Bucket))
	cfg.S3PublicBaseURL = strings.TrimRight(cfg.S3PublicBaseURL, "/")

	// --- Keycloak / JWT ---

	// FP_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("FP_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// FP_KEYCLOAK_REALM — realm (по умолчанию fileportal)
	cfg.KeycloakRealm = getEnvDefault("FP_KEYCLOAK_REALM", "fileportal")

	// FP_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("FP_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// FP_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("FP_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// FP_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("FP_CA_CERT_PATH", "")

	// FP_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS
	cfg.JWKSClientTimeout, err = getEnvDuration("FP_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// FP_JWKS_REFRESH_INTERVAL — интервал обновления JWKS-ключей
	cfg.JWKSRefreshInterval, err = getEnvDuration("FP_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FP_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// FP_JWT_LEEWAY — отклонение времени при проверке JWT
	cfg.JWTLeeway, err = getEnvDuration("FP_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_JWT_LEEWAY: %w", err)
	}

	// FP_KEYCLOAK_READINESS_TIMEOUT — таймаут readiness-проверки Keycloak
	cfg.KeycloakReadinessTimeout, err = getEnvDuration("FP_KEYCLOAK_READINESS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_KEYCLOAK_READINESS_TIMEOUT: %w", err)
	}

	// --- Маппинг групп → ролей ---

	// FP_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "fileportal-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("FP_ROLE_ADMIN_GROUPS", "fileportal-admins"))

	// --- Файлы и квоты ---

	// FP_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 10 MiB)
	cfg.MaxFileSize, err = getEnvInt64("FP_MAX_FILE_SIZE", 10485760)
	if err != nil {
		return nil, fmt.Errorf("FP_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FP_MAX_FILE_SIZE: значение должно быть положительным, получено %d", cfg.MaxFileSize)
	}

	// FP_DEFAULT_QUOTA — квота по умолчанию (по умолчанию 1 GiB)
	cfg.DefaultQuota, err = getEnvInt64("FP_DEFAULT_QUOTA", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("FP_DEFAULT_QUOTA: %w", err)
	}
	if cfg.DefaultQuota <= 0 {
		return nil, fmt.Errorf("FP_DEFAULT_QUOTA: значение должно быть положительным, получено %d", cfg.DefaultQuota)
	}

	// FP_QUOTA_ENFORCEMENT — блокировать загрузку при превышении квоты (по умолчанию false)
	cfg.QuotaEnforcement, err = getEnvBool("FP_QUOTA_ENFORCEMENT", false)
	if err != nil {
		return nil, fmt.Errorf("FP_QUOTA_ENFORCEMENT: %w", err)
	}

	// FP_LIST_FETCH_LIMIT — лимит выборки листинга (по умолчанию 500)
	cfg.ListFetchLimit, err = getEnvInt("FP_LIST_FETCH_LIMIT", 500)
	if err != nil {
		return nil, fmt.Errorf("FP_LIST_FETCH_LIMIT: %w", err)
	}
	if cfg.ListFetchLimit < 1 || cfg.ListFetchLimit > 10000 {
		return nil, fmt.Errorf("FP_LIST_FETCH_LIMIT: значение %d вне допустимого диапазона 1-10000", cfg.ListFetchLimit)
	}

	// FP_ACTIVITY_FETCH_LIMIT — лимит выборки ленты активности (по умолчанию 1000)
	cfg.ActivityFetchLimit, err = getEnvInt("FP_ACTIVITY_FETCH_LIMIT", 1000)
	if err != nil {
		return nil, fmt.Errorf("FP_ACTIVITY_FETCH_LIMIT: %w", err)
	}
	if cfg.ActivityFetchLimit < 1 || cfg.ActivityFetchLimit > 10000 {
		return nil, fmt.Errorf("FP_ACTIVITY_FETCH_LIMIT: значение %d вне допустимого диапазона 1-10000", cfg.ActivityFetchLimit)
	}

	// --- Кэш метаданных ---

	// FP_CACHE_SIZE — размер LRU-кэша (по умолчанию 1000)
	cfg.CacheSize, err = getEnvInt("FP_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FP_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("FP_CACHE_SIZE: значение должно быть положительным, получено %d", cfg.CacheSize)
	}

	// FP_CACHE_TTL — TTL кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("FP_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FP_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// FP_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию fileportal)
	cfg.DephealthGroup = getEnvDefault("FP_DEPHEALTH_GROUP", "fileportal")

	// FP_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_ISENTRY — лейбл isentry=yes (общесистемное имя, без префикса FP_)
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	// FP_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате key=value.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (используется topologymetrics для лейблов зависимости).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
