package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/vaultetl/internal/config"
	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filesCSV = "NOME_ORIGINAL,NOME_ARQUIVO_HEX,CAMINHO_RAIZ_VAULT\n" +
	"a1.prt,A1,/vault\n" +
	"b2.prt,B2,/vault\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Import: config.ImportConfig{
			MaxFileSize: 1 << 20,
			TempDir:     t.TempDir(),
		},
		Vault: config.VaultConfig{
			Root:          "/vault",
			UseHexPadding: true,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Migrate(context.Background()))

	jobs := core.NewJobRegistry()
	t.Cleanup(jobs.Close)

	svc := core.NewService(st, jobs, core.Options{
		MaxConcurrent: 2,
		Workers:       2,
		Vault: core.VaultSettings{
			Root:          cfg.Vault.Root,
			UseHexPadding: cfg.Vault.UseHexPadding,
		},
	})
	return NewServer(svc, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, target, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mpw := multipart.NewWriter(&body)
	part, err := mpw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mpw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, code, resp.Code)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, resp.Message, resp.Error, "technical detail stays in the log")
}

func tempDirEmpty(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries) == 0
}

// ----
// Tests
// ----

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := decode[struct {
		Status  string             `json:"status"`
		Imports core.LimiterStatus `json:"imports"`
	}](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Imports.MaxConcurrent)
	assert.Equal(t, 0, body.Imports.Active)
}

func TestImport_Sync(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	rec := do(t, s, uploadRequest(t, "/api/import", "files.csv", filesCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[core.ImportResult](t, rec)
	assert.Equal(t, "files.csv", res.FileName)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, int64(len(filesCSV)), res.Bytes)
	assert.True(t, tempDirEmpty(t, cfg.Import.TempDir), "spooled upload is removed")

	rec = do(t, s, uploadRequest(t, "/api/import?batch_size=1", "files.csv", filesCSV))
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[core.ImportResult](t, rec)
	assert.Equal(t, 0, res.Inserted, "re-import inserts nothing")
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, res.Batches)
}

func TestImport_Async(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	rec := do(t, s, uploadRequest(t, "/api/import?async=true", "files.csv", filesCSV))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[map[string]string](t, rec)
	jobID := accepted["job_id"]
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/api/import/jobs/"+jobID, accepted["status_url"])

	var job core.ImportJob
	require.Eventually(t, func() bool {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, accepted["status_url"], nil))
		if rec.Code != http.StatusOK {
			return false
		}
		job = decode[core.ImportJob](t, rec)
		return job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, core.JobCompleted, job.Status, job.Error)
	assert.Equal(t, 2, job.Inserted)
	assert.Equal(t, 100.0, job.Progress)
	assert.True(t, tempDirEmpty(t, cfg.Import.TempDir))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[[]core.ImportJob](t, rec)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)
}

func TestImport_Errors(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{
			name:   "unsupported format",
			req:    uploadRequest(t, "/api/import", "files.xlsx", filesCSV),
			status: http.StatusBadRequest,
			code:   "FMT001",
		},
		{
			name:   "unknown record kind",
			req:    uploadRequest(t, "/api/import", "other.csv", "FOO,BAR\n1,2\n"),
			status: http.StatusBadRequest,
			code:   "FMT004",
		},
		{
			name:   "missing file field",
			req:    jsonRequest(http.MethodPost, "/api/import", "{}"),
			status: http.StatusBadRequest,
			code:   "REQ001",
		},
		{
			name:   "bad async flag",
			req:    uploadRequest(t, "/api/import?async=maybe", "files.csv", filesCSV),
			status: http.StatusBadRequest,
			code:   "REQ001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertErrorCode(t, do(t, s, tt.req), tt.status, tt.code)
		})
	}
	assert.True(t, tempDirEmpty(t, cfg.Import.TempDir))
}

func TestImport_NoFileField(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	var body bytes.Buffer
	mpw := multipart.NewWriter(&body)
	require.NoError(t, mpw.WriteField("note", "no file here"))
	require.NoError(t, mpw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mpw.FormDataContentType())

	assertErrorCode(t, do(t, s, req), http.StatusBadRequest, "FMT005")
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/jobs/nope", nil))
	assertErrorCode(t, rec, http.StatusNotFound, "JOB002")
}

func TestRestoreAndVerify(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, jsonRequest(http.MethodPost, "/api/restore", `{"file_ids":[]}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "RST001")

	rec = do(t, s, jsonRequest(http.MethodPost, "/api/restore", `{"unknown":true}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "REQ001")

	// Import files whose vault root does not exist, then verify them.
	rec = do(t, s, uploadRequest(t, "/api/import", "files.csv", filesCSV))
	require.Equal(t, http.StatusOK, rec.Code)

	root := t.TempDir()
	rec = do(t, s, jsonRequest(http.MethodPost, "/api/verify", `{"file_ids":[1,2,99],"vault_root":"`+root+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[struct {
		Verified int `json:"verified"`
		Failed   int `json:"failed"`
		Missing  []struct {
			FileID int64  `json:"file_id"`
			Reason string `json:"reason"`
		} `json:"missing"`
	}](t, rec)
	assert.Equal(t, 0, res.Verified)
	assert.Equal(t, 3, res.Failed)
	assert.Len(t, res.Missing, 3)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]store.MissingItem](t, rec)
	assert.Len(t, items, 2, "unknown ids are not persisted")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/missing?status=bogus", nil))
	assertErrorCode(t, rec, http.StatusBadRequest, "REQ001")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/logs?operation=verify", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]store.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, store.SeverityError, events[0].Severity)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[core.VaultSettings](t, rec)
	assert.Equal(t, "/vault", settings.Root)
	assert.True(t, settings.UseHexPadding)

	rec = do(t, s, jsonRequest(http.MethodPut, "/api/settings/use_hex_padding", `{"value":"false"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settings = decode[core.VaultSettings](t, rec)
	assert.False(t, settings.UseHexPadding)

	rec = do(t, s, jsonRequest(http.MethodPut, "/api/settings/use_hex_padding", `{"value":"sometimes"}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "RST006")

	rec = do(t, s, jsonRequest(http.MethodPut, "/api/settings/colour", `{"value":"blue"}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "RST005")
}

func TestExport(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := do(t, s, uploadRequest(t, "/api/import", "files.csv", filesCSV))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "files.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3, "header plus two files")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	files := decode[[]core.ExportedFile](t, rec)
	require.Len(t, files, 2)
	assert.Equal(t, "/vault/000000000000A1", files[0].PhysicalPath)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=xml", nil))
	assertErrorCode(t, rec, http.StatusBadRequest, "RST004")
}

func TestPathPreview(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/vault/path", nil))
	assertErrorCode(t, rec, http.StatusBadRequest, "REQ001")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/vault/path?hex=001f", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[core.PathPreview](t, rec)
	assert.True(t, p.Valid)
	assert.Equal(t, "1F", p.Hex)
	assert.Equal(t, "/vault/0000000000001F", p.PhysicalPath)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/vault/path?hex=xyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	p = decode[core.PathPreview](t, rec)
	assert.False(t, p.Valid)
	assert.Empty(t, p.PhysicalPath)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is public")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = do(t, s, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRateLimitEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
