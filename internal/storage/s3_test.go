package storage

import "testing"

// TestBuildKey проверяет формат ключа объекта.
func TestBuildKey(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		fileName string
		want     string
	}{
		{
			name:     "Обычный файл",
			userID:   "user-1",
			fileName: "report.pdf",
			want:     "user-1/report.pdf",
		},
		{
			name:     "Имя с пробелами",
			userID:   "user-2",
			fileName: "годовой отчёт.xlsx",
			want:     "user-2/годовой отчёт.xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildKey(tt.userID, tt.fileName)
			if got != tt.want {
				t.Errorf("BuildKey() = %q, хотели %q", got, tt.want)
			}
		})
	}
}

// TestPublicURL проверяет построение публичной ссылки.
func TestPublicURL(t *testing.T) {
	s := &ObjectStorage{
		publicBaseURL: "http://minio.kryukov.lan:9000/fileportal",
	}

	got := s.PublicURL("user-1/report.pdf")
	want := "http://minio.kryukov.lan:9000/fileportal/user-1/report.pdf"
	if got != want {
		t.Errorf("PublicURL() = %q, хотели %q", got, want)
	}
}
