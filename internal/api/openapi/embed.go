// Пакет openapi — встроенный OpenAPI-контракт File Portal.
// Контракт валидируется при старте, раздаётся на /api/v1/openapi.json
// и используется middleware валидации входящих запросов.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.json
var contract []byte

// Contract возвращает сырые байты встроенного контракта.
func Contract() []byte {
	return contract
}

// Load разбирает и валидирует встроенный контракт.
// Ошибка означает, что в репозиторий попал некорректный openapi.json —
// сервис с таким контрактом стартовать не должен.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := &openapi3.Loader{Context: ctx}

	doc, err := loader.LoadFromData(contract)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI контракта: %w", err)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI контракта: %w", err)
	}

	return doc, nil
}

// NewRouter строит роутер поиска операций контракта по HTTP-запросу.
// Используется middleware валидации запросов.
func NewRouter(doc *openapi3.T) (routers.Router, error) {
	return gorillamux.NewRouter(doc)
}
