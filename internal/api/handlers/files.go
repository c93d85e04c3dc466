// files.go — HTTP handlers файловых операций: загрузка, листинг,
// метаданные, скачивание, удаление.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gofileportal/internal/api/errors"
	"github.com/bigkaa/gofileportal/internal/domain/model"
	"github.com/bigkaa/gofileportal/internal/service"
)

// multipartMemoryLimit — буфер парсинга multipart-формы в памяти,
// части сверх буфера складываются во временные файлы.
const multipartMemoryLimit = 32 << 20 // 32 MB

// UploadFiles обрабатывает POST /api/v1/files.
// Multipart-форма с одной или несколькими частями file. Файлы
// обрабатываются последовательно, результат — по каждому файлу отдельно:
// отклонение одного файла не прерывает загрузку остальных.
func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	meta := requestMetaFrom(r)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}

	results := make([]uploadResult, 0, len(parts))
	uploaded := 0

	for _, header := range parts {
		record, err := h.uploadOne(r.Context(), actor, meta, header)
		if err != nil {
			h.logger.Warn("Файл не загружен",
				slog.String("user_id", actor.UserID),
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			results = append(results, uploadResult{
				FileName: header.Filename,
				Status:   "rejected",
				Error:    uploadErrorDetail(err),
			})
			continue
		}

		uploaded++
		file := fileToAPI(record)
		results = append(results, uploadResult{
			FileName: header.Filename,
			Status:   "uploaded",
			File:     &file,
		})
	}

	status := http.StatusOK
	if uploaded > 0 {
		status = http.StatusCreated
	}

	writeJSON(w, status, uploadResponse{
		Results:  results,
		Uploaded: uploaded,
		Rejected: len(results) - uploaded,
	})
}

// uploadOne читает одну multipart-часть и передаёт её в сервис загрузки.
func (h *APIHandler) uploadOne(ctx context.Context, actor service.Actor, meta service.RequestMeta, header *multipart.FileHeader) (*model.FileRecord, error) {
	part, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("открытие multipart-части: %w", err)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("чтение multipart-части: %w", err)
	}

	return h.uploadSvc.Upload(ctx, service.UploadInput{
		UserID:    actor.UserID,
		FileName:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Data:      data,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
}

// uploadErrorDetail отображает ошибку сервиса загрузки в код и сообщение
// для результата по отдельному файлу.
func uploadErrorDetail(err error) *errorDetail {
	switch {
	case errors.Is(err, service.ErrValidation):
		return &errorDetail{Code: apierrors.CodeValidationError, Message: err.Error()}
	case errors.Is(err, service.ErrFileTooLarge):
		return &errorDetail{Code: apierrors.CodeFileTooLarge, Message: err.Error()}
	case errors.Is(err, service.ErrQuotaExceeded):
		return &errorDetail{Code: apierrors.CodeQuotaExceeded, Message: err.Error()}
	case errors.Is(err, service.ErrStorage):
		return &errorDetail{Code: apierrors.CodeStorageError, Message: "Объектное хранилище недоступно"}
	default:
		return &errorDetail{Code: apierrors.CodeInternalError, Message: "Внутренняя ошибка при сохранении файла"}
	}
}

// ListFiles обрабатывает GET /api/v1/files.
// Файлы текущего пользователя, uploaded_at DESC. Фильтр q — подстрока
// имени без учёта регистра, применяется после выборки.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	records, err := h.fileSvc.List(r.Context(), actor, service.ListFilters{
		Query: r.URL.Query().Get("q"),
		Limit: limitParam(r),
	})
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов",
			slog.String("user_id", actor.UserID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка файлов")
		return
	}

	items := filesToAPI(records)
	writeJSON(w, http.StatusOK, fileListResponse{Items: items, Total: len(items)})
}

// GetFile обрабатывает GET /api/v1/files/{id}.
// Метаданные доступны владельцу и администратору, чтение не журналируется.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.fileSvc.Get(r.Context(), actorFrom(r), fileID)
	if err != nil {
		h.writeFileError(w, fileID, err, "Внутренняя ошибка при получении метаданных файла")
		return
	}

	writeJSON(w, http.StatusOK, fileToAPI(record))
}

// DownloadFile обрабатывает GET /api/v1/files/{id}/download.
// Отдаёт содержимое объекта с Content-Type и Content-Disposition.
// inline=true — просмотр в браузере, иначе attachment.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	inline := r.URL.Query().Get("inline") == "true"

	record, reader, err := h.fileSvc.Download(r.Context(), actorFrom(r), fileID, inline, requestMetaFrom(r))
	if err != nil {
		h.writeFileError(w, fileID, err, "Внутренняя ошибка при скачивании файла")
		return
	}
	defer reader.Close()

	disposition := "attachment"
	if inline {
		disposition = "inline"
	}

	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(record.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": record.FileName}))
	w.WriteHeader(http.StatusOK)

	// Заголовки уже отправлены: ошибку копирования можно только залогировать
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("Ошибка отдачи содержимого файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile обрабатывает DELETE /api/v1/files/{id}.
// Доступно владельцу и администратору. Запись в журнал доступа
// добавляется до удаления.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	if err := h.fileSvc.Delete(r.Context(), actorFrom(r), fileID, requestMetaFrom(r)); err != nil {
		h.writeFileError(w, fileID, err, "Внутренняя ошибка при удалении файла")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fileIDParam извлекает и проверяет path-параметр {id}.
// При некорректном UUID пишет 400 и возвращает ok=false.
func fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	if _, err := uuid.Parse(raw); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный идентификатор файла: %s", raw))
		return "", false
	}
	return raw, true
}

// writeFileError отображает ошибки файловых операций сервисного слоя
// в HTTP-ответы. Внутренние ошибки логируются.
func (h *APIHandler) writeFileError(w http.ResponseWriter, fileID string, err error, internalMsg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Доступ к файлу запрещён")
	case errors.Is(err, service.ErrStorage):
		h.logger.Error("Ошибка объектного хранилища",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.StorageError(w, "Объектное хранилище недоступно")
	default:
		h.logger.Error(internalMsg,
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, internalMsg)
	}
}
