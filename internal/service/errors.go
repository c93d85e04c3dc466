// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — операция запрещена для текущего пользователя.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrFileTooLarge — файл превышает максимально допустимый размер.
	ErrFileTooLarge = errors.New("файл превышает максимально допустимый размер")
	// ErrQuotaExceeded — превышена квота хранилища пользователя.
	ErrQuotaExceeded = errors.New("превышена квота хранилища")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrStorage — объектное хранилище недоступно или вернуло ошибку.
	ErrStorage = errors.New("ошибка объектного хранилища")
)
