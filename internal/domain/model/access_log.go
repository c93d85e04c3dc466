package model

import "time"

// Действия, фиксируемые в журнале доступа.
const (
	ActionUpload      = "upload"
	ActionDownload    = "download"
	ActionView        = "view"
	ActionDelete      = "delete"
	ActionAdminView   = "admin_view"
	ActionAdminDelete = "admin_delete"
)

// ValidActions — допустимые значения действия журнала доступа.
var ValidActions = map[string]bool{
	ActionUpload:      true,
	ActionDownload:    true,
	ActionView:        true,
	ActionDelete:      true,
	ActionAdminView:   true,
	ActionAdminDelete: true,
}

// AccessLogEntry — запись журнала доступа (таблица file_access_logs).
// Журнал append-only: записи никогда не изменяются и не удаляются
// кодом приложения, поэтому переживают удаление файла.
type AccessLogEntry struct {
	// ID — UUID записи
	ID string
	// FileID — UUID файла, к которому относится действие.
	// FK отсутствует: запись остаётся после удаления файла.
	FileID string
	// UserID — идентификатор выполнившего действие (sub из JWT)
	UserID string
	// Action — вид действия: upload, download, view, delete, admin_view, admin_delete
	Action string
	// CreatedAt — время действия
	CreatedAt time.Time
	// IPAddress — IP-адрес клиента (опционально)
	IPAddress *string
	// UserAgent — User-Agent клиента (опционально)
	UserAgent *string
}
