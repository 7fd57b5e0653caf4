package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vidtube/internal/auth"
	"vidtube/internal/config"
	"vidtube/internal/db"
	"vidtube/internal/media"
	"vidtube/internal/models"
)

const (
	testAccessSecret  = "access-secret-access-secret-access-secret"
	testRefreshSecret = "refresh-secret-refresh-secret-refresh-secret"
	testBcryptCost    = 4
)

type testEnv struct {
	server   *Server
	database *db.DB
	uploader *fakeUploader
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	insecure := false
	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:8000"},
		Auth: config.AuthConfig{
			AccessTokenSecret:  testAccessSecret,
			RefreshTokenSecret: testRefreshSecret,
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    time.Hour,
			BcryptCost:         testBcryptCost,
			CookieSecure:       &insecure,
		},
		Storage: config.StorageConfig{
			TempDir:        t.TempDir(),
			UploadMaxBytes: 1 << 20,
		},
	}

	database := openTestDB(t)
	uploader := &fakeUploader{}

	return &testEnv{
		server:   NewServer(cfg, database, uploader, nil),
		database: database,
		uploader: uploader,
		cfg:      cfg,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(method, path, body, accessToken string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return e.do(req)
}

// seedUser stores a user directly, bypassing registration.
func (e *testEnv) seedUser(t *testing.T, username, password string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(password, testBcryptCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	user, err := e.database.Users().Create(context.Background(), db.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: hash,
		Avatar:       "https://media.example.com/" + username + ".png",
	})
	if err != nil {
		t.Fatalf("Users().Create() error = %v", err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, username, password string) loginResponse {
	t.Helper()

	rr := e.doJSON(http.MethodPost, "/api/v1/users/login",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp loginResponse
	decodeData(t, rr, &resp)
	return resp
}

func (e *testEnv) findUser(t *testing.T, id string) *models.User {
	t.Helper()

	user, err := e.database.Users().FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	return user
}

type testEnvelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()

	var env testEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if env.StatusCode != rr.Code {
		t.Fatalf("statusCode = %d, want HTTP status %d", env.StatusCode, rr.Code)
	}
	return env
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()

	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("success = false, body=%q", rr.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("json.Unmarshal(data) error = %v, body=%q", err, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()

	if rr.Code != status {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, status, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Success {
		t.Fatalf("success = true, want false")
	}
	if env.Errors == nil {
		t.Fatalf("errors = null, want an array")
	}
	if message != "" && env.Message != message {
		t.Fatalf("message = %q, want %q", env.Message, message)
	}
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close() error = %v", err)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// fakeUploader hosts nothing; it checks the staged file exists and hands out
// sequential URLs. onUpload runs after each successful upload.
type fakeUploader struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	err      error
	onUpload func()
}

func (f *fakeUploader) Upload(_ context.Context, localPath string) (*media.Asset, error) {
	asset, hook, err := f.record(localPath)
	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook()
	}
	return asset, nil
}

func (f *fakeUploader) record(localPath string) (*media.Asset, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, nil, f.err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, nil, fmt.Errorf("staged file missing: %w", err)
	}

	f.uploaded = append(f.uploaded, localPath)
	key := fmt.Sprintf("%d.png", len(f.uploaded))
	return &media.Asset{
		Key:       key,
		URL:       "https://media.example.com/" + key,
		MimeType:  "image/png",
		SizeBytes: info.Size(),
	}, f.onUpload, nil
}

func (f *fakeUploader) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeUploader) calls() (uploaded, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.uploaded...), append([]string(nil), f.deleted...)
}

func httpRequestWithCookie(method, path, name, value string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
