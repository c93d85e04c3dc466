// dephealth_test.go — unit-тесты определения probe параметров для dephealth.
package service

import (
	"testing"
)

// TestJWKSProbe проверяет определение health path и TLS по JWKS URL.
func TestJWKSProbe(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantPath  string
		wantHTTPS bool
	}{
		{
			name:      "HTTPS JWKS endpoint Keycloak",
			input:     "https://keycloak.example.com/realms/fileportal/protocol/openid-connect/certs",
			wantPath:  "/realms/fileportal/protocol/openid-connect/certs",
			wantHTTPS: true,
		},
		{
			name:      "HTTP JWKS endpoint",
			input:     "http://keycloak:8080/realms/fileportal/protocol/openid-connect/certs",
			wantPath:  "/realms/fileportal/protocol/openid-connect/certs",
			wantHTTPS: false,
		},
		{
			name:      "URL без path — корень",
			input:     "https://keycloak.example.com",
			wantPath:  "/",
			wantHTTPS: true,
		},
		{
			name:      "пустой URL",
			input:     "",
			wantPath:  "/",
			wantHTTPS: false,
		},
		{
			name:      "URL с портом",
			input:     "https://keycloak.example.com:8443/realms/fp/protocol/openid-connect/certs",
			wantPath:  "/realms/fp/protocol/openid-connect/certs",
			wantHTTPS: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, https := jwksProbe(tt.input)
			if path != tt.wantPath {
				t.Errorf("jwksProbe(%q) path = %q, ожидалось %q", tt.input, path, tt.wantPath)
			}
			if https != tt.wantHTTPS {
				t.Errorf("jwksProbe(%q) https = %v, ожидалось %v", tt.input, https, tt.wantHTTPS)
			}
		})
	}
}
