package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/album/internal/infra/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Initialize(&config.Config{
		Log: config.LogConfig{Level: "error", Format: "json"},
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
		},
		Auth: config.AuthConfig{
			Issuer:        "https://cognito-idp.ap-northeast-1.amazonaws.com/ap-northeast-1_AbCdEf",
			Domain:        "https://album.auth.ap-northeast-1.amazoncognito.com",
			ClientID:      "client-id",
			ClientSecret:  "client-secret",
			RedirectURL:   "http://localhost:8080/auth/callback",
			SessionSecret: "session-secret-for-tests",
			SessionTTL:    time.Hour,
			StateTTL:      time.Minute,
			CookieName:    "album_session",
		},
		Storage: config.StorageConfig{
			Bucket:         "album-bucket",
			Region:         "ap-northeast-1",
			IdentityPoolID: "ap-northeast-1:0000-1111",
			PresignTTL:     time.Hour,
			MaxUploadBytes: 1 << 20,
		},
	})
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a
}

func TestApp_Health(t *testing.T) {
	a := newTestApp(t)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestApp_ImagesRequireSession(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/images"},
		{http.MethodPost, "/images/upload"},
		{http.MethodDelete, "/images/delete?filename=a.png"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.Router().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"message":"Unauthorized"}`, w.Body.String())
		})
	}
}

func TestApp_Login(t *testing.T) {
	a := newTestApp(t)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AuthURL string `json:"authUrl"`
		State   string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.AuthURL, "https://album.auth.ap-northeast-1.amazoncognito.com/oauth2/authorize?"))
	assert.Contains(t, body.AuthURL, "state="+body.State)
}

func TestApp_Metrics(t *testing.T) {
	a := newTestApp(t)

	a.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "album_http_requests_total")
}

func TestApp_SwaggerDoc(t *testing.T) {
	a := newTestApp(t)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Album API", doc.Info.Title)
	for _, path := range []string{"/images", "/images/upload", "/images/delete", "/auth/login", "/auth/callback", "/auth/logout"} {
		assert.Contains(t, doc.Paths, path)
	}
}

func TestProvideSessionStore(t *testing.T) {
	t.Run("memory without redis", func(t *testing.T) {
		store, cleanup, err := ProvideSessionStore(testConfig(t), nil)
		require.NoError(t, err)
		assert.NotNil(t, store)
		cleanup()
	})

	t.Run("redis requires master key", func(t *testing.T) {
		client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
		defer client.Close()

		_, _, err := ProvideSessionStore(testConfig(t), client)
		assert.Error(t, err)
	})
}
