package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	status  string
	message string
}

func (s stubChecker) CheckReady() (string, string) { return s.status, s.message }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "attribute-admin" || resp.Status != "ok" {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	ok := stubChecker{status: "ok"}
	fail := stubChecker{status: "fail", message: "connection refused"}

	tests := []struct {
		name       string
		dir        ReadinessChecker
		kc         ReadinessChecker
		pg         ReadinessChecker
		wantCode   int
		wantStatus string
		wantPG     bool
	}{
		{"всё доступно без БД", ok, ok, nil, http.StatusOK, "ok", false},
		{"всё доступно с БД", ok, ok, ok, http.StatusOK, "ok", true},
		{"каталог недоступен", fail, ok, nil, http.StatusServiceUnavailable, "fail", false},
		{"Keycloak не инициализирован", ok, nil, nil, http.StatusServiceUnavailable, "fail", false},
		{"БД недоступна", ok, ok, fail, http.StatusOK, "degraded", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.dir, tt.kc, tt.pg)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидается %q", resp.Status, tt.wantStatus)
			}
			if (resp.Checks.PostgreSQL != nil) != tt.wantPG {
				t.Errorf("postgresql присутствует = %v, ожидается %v", resp.Checks.PostgreSQL != nil, tt.wantPG)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		statuses []string
		expected string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{nil, "ok"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.statuses...); got != tt.expected {
			t.Errorf("overallStatus(%v) = %q, ожидается %q", tt.statuses, got, tt.expected)
		}
	}
}
