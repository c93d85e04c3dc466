package openapi

import (
	"context"
	"net/http/httptest"
	"testing"
)

// TestLoad — встроенный контракт разбирается и проходит валидацию.
func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if doc.Info.Title != "File Portal API" {
		t.Errorf("ожидается title 'File Portal API', получено %q", doc.Info.Title)
	}
}

// TestNewRouter — роутер находит операции контракта по HTTP-запросам.
func TestNewRouter(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	router, err := NewRouter(doc)
	if err != nil {
		t.Fatalf("NewRouter() вернул ошибку: %v", err)
	}

	tests := []struct {
		method      string
		path        string
		operationID string
	}{
		{"GET", "/api/v1/files", "ListFiles"},
		{"POST", "/api/v1/files", "UploadFiles"},
		{"GET", "/api/v1/files/4e8a73d1-2f6b-4c5a-9d0e-1a2b3c4d5e6f", "GetFile"},
		{"DELETE", "/api/v1/files/4e8a73d1-2f6b-4c5a-9d0e-1a2b3c4d5e6f", "DeleteFile"},
		{"GET", "/api/v1/files/4e8a73d1-2f6b-4c5a-9d0e-1a2b3c4d5e6f/download", "DownloadFile"},
		{"GET", "/api/v1/quota", "GetQuota"},
		{"GET", "/api/v1/admin/files", "AdminListFiles"},
		{"GET", "/api/v1/admin/activity", "AdminActivity"},
		{"GET", "/api/v1/admin/stats", "AdminStats"},
		{"GET", "/api/v1/admin/quotas", "AdminListQuotas"},
		{"POST", "/api/v1/admin/quotas/user-42/recalculate", "AdminRecalculateQuota"},
		{"GET", "/health/live", "HealthLive"},
		{"GET", "/health/ready", "HealthReady"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)

		route, _, err := router.FindRoute(req)
		if err != nil {
			t.Errorf("%s %s: FindRoute вернул ошибку: %v", tt.method, tt.path, err)
			continue
		}

		if route.Operation.OperationID != tt.operationID {
			t.Errorf("%s %s: ожидается операция %s, получено %s",
				tt.method, tt.path, tt.operationID, route.Operation.OperationID)
		}
	}
}

// TestContract — сырые байты контракта непустые.
func TestContract(t *testing.T) {
	if len(Contract()) == 0 {
		t.Error("Contract() вернул пустой контракт")
	}
}
