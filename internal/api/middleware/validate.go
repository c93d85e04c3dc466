// validate.go — middleware валидации запросов по OpenAPI-контракту.
// Проверяет path/query параметры и тела запросов до вызова handler.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	apierrors "github.com/bigkaa/gofileportal/internal/api/errors"
)

// RequestValidator валидирует входящие запросы по встроенному
// OpenAPI-контракту. Запросы к путям, не описанным в контракте,
// пропускаются без проверки — маршрутизацию решает chi.
//
// Тела multipart-запросов не валидируются: содержимое файлов
// читается потоково в handler загрузки.
func RequestValidator(router routers.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			opts := &openapi3filter.Options{
				// Аутентификацию выполняет JWT middleware
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			}
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
				opts.ExcludeRequestBody = true
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				var reqErr *openapi3filter.RequestError
				if errors.As(err, &reqErr) {
					apierrors.ValidationError(w, fmt.Sprintf("Запрос не соответствует API-контракту: %s", reqErr.Error()))
					return
				}
				apierrors.ValidationError(w, fmt.Sprintf("Запрос не соответствует API-контракту: %s", err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
