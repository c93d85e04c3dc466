package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bigkaa/gofileportal/internal/api/openapi"
)

// newTestValidator строит middleware валидации на встроенном контракте.
func newTestValidator(t *testing.T) func(http.Handler) http.Handler {
	t.Helper()

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("загрузка контракта: %v", err)
	}

	router, err := openapi.NewRouter(doc)
	if err != nil {
		t.Fatalf("создание роутера контракта: %v", err)
	}

	return RequestValidator(router)
}

// TestRequestValidator_ValidRequest — корректный запрос проходит до handler.
func TestRequestValidator_ValidRequest(t *testing.T) {
	validator := newTestValidator(t)

	nextCalled := false
	handler := validator(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/files?q=report&limit=10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("handler не вызван для корректного запроса")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("ожидается статус 200, получено %d", rec.Code)
	}
}

// TestRequestValidator_InvalidParams — некорректные параметры отклоняются с 400.
func TestRequestValidator_InvalidParams(t *testing.T) {
	validator := newTestValidator(t)

	tests := []struct {
		name string
		url  string
	}{
		{"нечисловой limit", "/api/v1/files?limit=abc"},
		{"нулевой limit", "/api/v1/files?limit=0"},
		{"отрицательный limit", "/api/v1/files?limit=-5"},
		{"недопустимое действие", "/api/v1/admin/activity?action=explode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := validator(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				nextCalled = true
			}))

			req := httptest.NewRequest("GET", tt.url, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if nextCalled {
				t.Error("handler вызван для некорректного запроса")
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("ожидается статус 400, получено %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "VALIDATION_ERROR") {
				t.Errorf("ожидается код VALIDATION_ERROR в теле ответа, получено %s", rec.Body.String())
			}
		})
	}
}

// TestRequestValidator_UnknownPath — пути вне контракта пропускаются без проверки.
func TestRequestValidator_UnknownPath(t *testing.T) {
	validator := newTestValidator(t)

	nextCalled := false
	handler := validator(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/api/v1/unknown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("запрос к неизвестному пути должен передаваться дальше")
	}
}

// TestRequestValidator_MultipartBodySkipped — тело multipart-загрузки
// не валидируется, файл читается потоково в handler.
func TestRequestValidator_MultipartBodySkipped(t *testing.T) {
	validator := newTestValidator(t)

	nextCalled := false
	handler := validator(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/v1/files", strings.NewReader("не multipart на самом деле"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("multipart-запрос должен передаваться в handler без валидации тела")
	}
}
