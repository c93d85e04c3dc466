package model

import "time"

// QuotaRecord — квота хранилища пользователя (таблица user_storage_quotas).
// Создаётся лениво при первом чтении с квотой по умолчанию и нулевым
// использованием. UsedBytes изменяется только явным пересчётом —
// загрузка и удаление файлов его не трогают.
type QuotaRecord struct {
	// UserID — идентификатор пользователя (sub из JWT)
	UserID string
	// QuotaBytes — выделенный объём в байтах
	QuotaBytes int64
	// UsedBytes — учтённое использование в байтах
	UsedBytes int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// AvailableBytes возвращает остаток квоты (не меньше нуля).
func (q *QuotaRecord) AvailableBytes() int64 {
	if q.UsedBytes >= q.QuotaBytes {
		return 0
	}
	return q.QuotaBytes - q.UsedBytes
}

// UsagePercent возвращает использование квоты в процентах.
func (q *QuotaRecord) UsagePercent() float64 {
	if q.QuotaBytes <= 0 {
		return 0
	}
	return float64(q.UsedBytes) / float64(q.QuotaBytes) * 100
}
