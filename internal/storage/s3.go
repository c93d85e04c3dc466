// Пакет storage — работа с S3-совместимым объектным хранилищем (MinIO).
// Файлы хранятся по ключу "{user_id}/{имя файла}", публичная ссылка
// строится от базового URL хранилища.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bigkaa/gofileportal/internal/config"
)

// ErrObjectNotFound возвращается, когда объект отсутствует в хранилище.
var ErrObjectNotFound = errors.New("объект не найден в хранилище")

// ObjectStorage — клиент объектного хранилища.
type ObjectStorage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

// New создаёт клиент S3. Эндпоинт задаётся явно (MinIO),
// path-style адресация бакетов управляется конфигурацией.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ObjectStorage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"", // токен (не нужен)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &ObjectStorage{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: cfg.S3PublicBaseURL,
		logger:        logger,
	}, nil
}

// BuildKey строит ключ объекта: "{user_id}/{имя файла}".
// Повторная загрузка файла с тем же именем перезаписывает объект.
func BuildKey(userID, fileName string) string {
	return userID + "/" + fileName
}

// PublicURL строит публичную ссылку на объект.
func (s *ObjectStorage) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}

// Put загружает объект в хранилище.
func (s *ObjectStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	s.logger.Debug("Объект загружен в хранилище",
		slog.String("key", key),
		slog.Int64("size", size),
	)
	return nil
}

// Get открывает объект на чтение. Вызывающий обязан закрыть reader.
func (s *ObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete удаляет объект из хранилища.
// Удаление отсутствующего объекта в S3 не является ошибкой.
func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}

	s.logger.Debug("Объект удалён из хранилища", slog.String("key", key))
	return nil
}

// ReadinessChecker — проверка готовности объектного хранилища.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	client *s3.Client
	bucket string
}

// NewReadinessChecker создаёт проверку готовности S3.
func (s *ObjectStorage) NewReadinessChecker() *ReadinessChecker {
	return &ReadinessChecker{client: s.client, bucket: s.bucket}
}

// CheckReady проверяет доступность бакета через HeadBucket.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return "fail", fmt.Sprintf("хранилище недоступно: %v", err)
	}
	return "ok", "бакет доступен"
}
