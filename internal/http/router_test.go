package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/obiente/translate/livescribe/internal/config"
	"github.com/obiente/translate/livescribe/internal/ws"
)

func TestRouter(t *testing.T) {
	h := NewRouter(ws.NewServer(ws.Deps{Config: config.Defaults(config.ProfileStandard)}))

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/healthz", http.StatusOK, `"ok":true`},
		{"/metrics", http.StatusOK, "livescribe_"},
		// Plain GET without upgrade headers is rejected by the upgrader.
		{"/ws/transcribe", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s: status %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
		if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
			t.Errorf("%s: body missing %q", tt.path, tt.contains)
		}
	}
}
