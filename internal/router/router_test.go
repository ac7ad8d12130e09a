package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"genstudio/internal/auth"
	"genstudio/internal/config"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/handler"
	"genstudio/internal/metrics"
	"genstudio/internal/model"
	"genstudio/internal/repository"
	"genstudio/internal/router"
	"genstudio/internal/service"
	"genstudio/internal/storage"
)

type testApp struct {
	e         *echo.Echo
	store     *repository.MemoryStore
	publicDir string
	overload  atomic.Bool
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	app := &testApp{store: repository.NewMemoryStore(), publicDir: t.TempDir()}

	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTTTL:        time.Hour,
		MaxUploadSize: "1M",
		PublicDir:     app.publicDir,
	}
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(app.store.Users(), jwtService, auth.NewTokenStore(nil), logger)
	generationService := service.NewGenerationService(
		app.store.Users(),
		app.store.Generations(),
		storage.NewLocalStore(filepath.Join(app.publicDir, "uploads"), "/static/uploads"),
		nil,
		service.GenerationOptions{
			Overload: app.overload.Load,
			Latency:  service.NoLatency,
			Metrics:  metrics.New(registry),
			Logger:   logger,
		},
	)

	require.NoError(t, storage.EnsurePlaceholder(app.publicDir))

	app.e = echo.New()
	router.Register(app.e, cfg, logger, registry, authService,
		handler.NewAuthHandler(authService, logger),
		handler.NewUserHandler(service.NewUserService(app.store.Users(), nil), logger),
		handler.NewGenerationHandler(generationService, logger),
	)
	return app
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) signup(t *testing.T, email string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"email":"`+email+`","password":"password123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := a.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp handler.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (a *testApp) generate(t *testing.T, token, prompt, style, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("prompt", prompt))
	require.NoError(t, w.WriteField("style", style))
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/generations", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return a.do(req)
}

func (a *testApp) list(t *testing.T, token string) []model.GenerationResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/generations", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := a.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out []model.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestSignup_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, "dup@example.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"email":"DUP@example.com","password":"password123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := app.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.CodeUserAlreadyExists, decodeError(t, rec).Code)
	assert.Equal(t, 1, app.store.UserCount())
}

func TestCurrentUser(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "Me@Example.com")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := app.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "me@example.com", user.Email)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, "login@example.com")

	tests := []struct {
		name       string
		password   string
		wantStatus int
	}{
		{name: "correct password", password: "password123", wantStatus: http.StatusOK},
		{name: "wrong password", password: "password999", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"login@example.com","password":"`+tt.password+`"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := app.do(req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCreateGeneration(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "gen@example.com")

	rec := app.generate(t, token, "A red fox", "watercolor", "", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got model.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A red fox", got.Prompt)
	assert.Equal(t, "watercolor", got.Style)
	assert.Equal(t, "/static/mock.png", got.ImageURL)
	assert.Equal(t, "succeeded", got.Status)
	assert.Equal(t, 1, app.store.GenerationCount())
}

func TestCreateGeneration_PlaceholderIsServed(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "noupload@example.com")

	rec := app.generate(t, token, "A red fox", "ink", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got model.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, service.DefaultImageURL, got.ImageURL)

	served := app.do(httptest.NewRequest(http.MethodGet, got.ImageURL, nil))
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "image/png", served.Header().Get(echo.HeaderContentType))
}

func TestCreateGeneration_UploadIsServed(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "upload@example.com")

	rec := app.generate(t, token, "A red fox", "watercolor", "fox.jpg", "jpeg-bytes")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got model.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, strings.HasPrefix(got.ImageURL, "/static/uploads/"))
	assert.True(t, strings.HasSuffix(got.ImageURL, ".jpg"))

	data, err := os.ReadFile(filepath.Join(app.publicDir, "uploads", filepath.Base(got.ImageURL)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	served := app.do(httptest.NewRequest(http.MethodGet, got.ImageURL, nil))
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "jpeg-bytes", served.Body.String())
}

func TestCreateGeneration_LengthBounds(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		style      string
		wantStatus int
	}{
		{name: "prompt of 3", prompt: "abc", style: "ink", wantStatus: http.StatusOK},
		{name: "prompt of 300", prompt: strings.Repeat("x", 300), style: "ink", wantStatus: http.StatusOK},
		{name: "style of 1", prompt: "A red fox", style: "i", wantStatus: http.StatusOK},
		{name: "style of 40", prompt: "A red fox", style: strings.Repeat("i", 40), wantStatus: http.StatusOK},
		{name: "padded prompt of 6", prompt: "  ab  ", style: "   ", wantStatus: http.StatusOK},
		{name: "prompt of 301 with trailing space", prompt: strings.Repeat("x", 300) + " ", style: "ink", wantStatus: http.StatusBadRequest},
		{name: "style of 41", prompt: "A red fox", style: strings.Repeat("i", 41), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			token := app.signup(t, "bounds@example.com")

			rec := app.generate(t, token, tt.prompt, tt.style, "", "")

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, 0, app.store.GenerationCount())
				return
			}
			var got model.GenerationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.prompt, got.Prompt)
			assert.Equal(t, tt.style, got.Style)
			assert.Equal(t, 1, app.store.GenerationCount())
		})
	}
}

func TestCreateGeneration_ShortPrompt(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "short@example.com")

	rec := app.generate(t, token, "Hi", "watercolor", "", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeValidation, resp.Code)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "prompt", resp.Fields[0].Field)
	assert.Equal(t, 0, app.store.GenerationCount())
}

func TestCreateGeneration_Overloaded(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "busy@example.com")
	app.overload.Store(true)

	rec := app.generate(t, token, "A red fox", "watercolor", "fox.png", "bytes")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperrors.CodeModelOverloaded, decodeError(t, rec).Code)
	assert.Equal(t, 0, app.store.GenerationCount())
	_, err := os.Stat(filepath.Join(app.publicDir, "uploads"))
	assert.True(t, os.IsNotExist(err), "no artifact may be written")
}

func TestCreateGeneration_DeletedUser(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "ghost@example.com")
	user, err := app.store.Users().FindByEmail(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	app.store.DeleteUser(user.ID)

	rec := app.generate(t, token, "A red fox", "watercolor", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeUserNotFound, decodeError(t, rec).Code)
}

func TestSecuredRoutes_RequireToken(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
	}{
		{name: "create without token", method: http.MethodPost, path: "/generations"},
		{name: "list without token", method: http.MethodGet, path: "/generations"},
		{name: "garbage token", method: http.MethodGet, path: "/generations", auth: "Bearer not-a-jwt"},
		{name: "wrong scheme", method: http.MethodGet, path: "/generations", auth: "Basic abc"},
		{name: "logout without token", method: http.MethodPost, path: "/auth/logout"},
		{name: "profile without token", method: http.MethodGet, path: "/auth/me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.auth)
			}
			rec := app.do(req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, apperrors.CodeUnauthorized, decodeError(t, rec).Code)
		})
	}
	assert.Equal(t, 0, app.store.GenerationCount())
}

func TestListGenerations_LimitOrderAndIsolation(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup(t, "alice@example.com")
	bob := app.signup(t, "bob@example.com")

	for i := 0; i < 7; i++ {
		rec := app.generate(t, alice, fmt.Sprintf("alice prompt %d", i), "ink", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, http.StatusOK, app.generate(t, bob, "bob prompt", "ink", "", "").Code)

	got := app.list(t, alice)
	require.Len(t, got, 5)
	for i, g := range got {
		assert.Equal(t, fmt.Sprintf("alice prompt %d", 6-i), g.Prompt)
		if i > 0 {
			assert.False(t, g.CreatedAt.After(got[i-1].CreatedAt))
		}
	}

	bobs := app.list(t, bob)
	require.Len(t, bobs, 1)
	assert.Equal(t, "bob prompt", bobs[0].Prompt)
}

func TestListGenerations_Empty(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "empty@example.com")

	req := httptest.NewRequest(http.MethodGet, "/generations", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := app.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	health := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	token := app.signup(t, "metrics@example.com")
	require.Equal(t, http.StatusOK, app.generate(t, token, "A red fox", "ink", "", "").Code)

	m := app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), `studio_generations_total{outcome="succeeded"} 1`)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
