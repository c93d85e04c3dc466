// store.go — интерфейс объектного хранилища для сервисного слоя.
package service

import (
	"context"
	"io"
)

// ObjectStore — операции объектного хранилища, используемые сервисами.
// Реализуется storage.ObjectStorage.
type ObjectStore interface {
	// Put загружает объект.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get открывает объект на чтение.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete удаляет объект.
	Delete(ctx context.Context, key string) error
	// PublicURL строит публичную ссылку на объект.
	PublicURL(key string) string
}
