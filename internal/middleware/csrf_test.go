package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRF_SafeMethod_IssuesCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && len(c.Value) == 64 {
			found = true
		}
	}
	if !found {
		t.Error("expected csrf_token cookie to be set")
	}
}

func TestCSRF_BrowserPost(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{name: "一致", cookie: "tok", header: "tok", want: http.StatusOK},
		{name: "Cookieなし", header: "tok", want: http.StatusForbidden},
		{name: "ヘッダーなし", cookie: "tok", want: http.StatusForbidden},
		{name: "不一致", cookie: "tok", header: "other", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/api/posts/1/like", nil)
			req.Header.Set("Origin", testOrigin)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCSRF_NonBrowserPost_Skipped(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for non-browser client", w.Code)
	}
}

func TestCSRF_SecFetchSiteCountsAsBrowser(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/session/logout", nil)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCSRFTokenHandler_WithChi(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/csrf-token", NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected non-empty token")
	}

	// 既存Cookieがあればそれを返す
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	json.NewDecoder(w.Body).Decode(&body)
	if body.Token != "existing" {
		t.Errorf("token = %q, want existing", body.Token)
	}
}
