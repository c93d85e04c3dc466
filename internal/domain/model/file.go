// Пакет model — доменные модели File Portal.
package model

import "time"

// FileRecord — запись файла в таблице files.
// Создаётся при успешной загрузке, удаляется при удалении файла,
// в остальном не изменяется.
type FileRecord struct {
	// ID — UUID записи (генерируется при загрузке)
	ID string
	// UserID — идентификатор владельца (sub из JWT)
	UserID string
	// FileName — имя файла, заданное при загрузке
	FileName string
	// Size — размер файла в байтах
	Size int64
	// MimeType — MIME-тип файла
	MimeType string
	// StoragePath — путь объекта в хранилище ({user_id}/{file_name})
	StoragePath string
	// PublicURL — публичная ссылка на объект
	PublicURL string
	// UploadedAt — время загрузки
	UploadedAt time.Time
}
