package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sarpras-lapor/apiserver/config"
	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sarpras-lapor/apiserver/internal/mq"
	"github.com/sarpras-lapor/apiserver/internal/storage"
	"github.com/sarpras-lapor/apiserver/internal/store/storetest"
	"github.com/sarpras-lapor/apiserver/types"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 64))

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	broker  *mq.Memory
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Config{
		Auth:          config.AuthConfig{JWTSecret: "router-test-secret", TokenTTL: time.Hour, Issuer: "test"},
		Storage:       config.StorageConfig{MaxPhotoBytes: 1 << 20},
		CORS:          config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		AuthRateLimit: "1000-M",
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	logger, _ := logtest.NewNullLogger()
	db := storetest.New()
	broker := mq.NewMemory()
	handler, err := NewRouter(Deps{
		Config:      cfg,
		Logger:      logger,
		Users:       db.Users(),
		Sarpras:     db.Sarpras(),
		Laporan:     db.Laporan(),
		Dashboard:   db.Dashboard(),
		Revocations: storetest.NewRevocations(),
		Photos:      storage.NewStorage(storage.NewMemory("test")),
		Publisher:   events.NewPublisher(mq.New(broker), "laporan-events"),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return &testServer{t: t, handler: handler, broker: broker}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: invalid envelope %q", method, path, rec.Body.String())
		}
	}
	return rec, env
}

func (s *testServer) doJSON(method, path, token string, payload any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return s.do(method, path, token, body, "application/json")
}

func (s *testServer) expect(rec *httptest.ResponseRecorder, status int) {
	s.t.Helper()
	if rec.Code != status {
		s.t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func (s *testServer) register(username string, role types.Role) {
	s.t.Helper()
	rec, _ := s.doJSON(http.MethodPost, "/auth/register", "", map[string]any{
		"username": username,
		"password": "secret1",
		"nama":     username,
		"email":    username + "@example.com",
		"role":     role,
	})
	s.expect(rec, http.StatusCreated)
}

func (s *testServer) login(username string) string {
	s.t.Helper()
	rec, env := s.doJSON(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": "secret1"})
	s.expect(rec, http.StatusOK)
	var session struct {
		Token string     `json:"token"`
		User  types.User `json:"user"`
	}
	decode(s.t, env, &session)
	return session.Token
}

func (s *testServer) createAsset(token, code, location string) types.Sarpras {
	s.t.Helper()
	rec, env := s.doJSON(http.MethodPost, "/sarpras", token, map[string]string{
		"kode_sarpras": code,
		"nama_sarpras": "AC Split",
		"kategori":     "elektronik",
		"lokasi":       location,
	})
	s.expect(rec, http.StatusCreated)
	var item types.Sarpras
	decode(s.t, env, &item)
	return item
}

func (s *testServer) createReport(token string, fields map[string]string, photo []byte) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		_ = mw.WriteField(key, value)
	}
	if photo != nil {
		part, err := mw.CreateFormFile("foto", "foto.png")
		if err != nil {
			s.t.Fatalf("form file: %v", err)
		}
		_, _ = part.Write(photo)
	}
	_ = mw.Close()
	return s.do(http.MethodPost, "/laporan", token, &buf, mw.FormDataContentType())
}

func decode(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(http.MethodGet, "/healthz", "", nil, "")
	s.expect(rec, http.StatusOK)
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}

	rec, env = s.do(http.MethodGet, "/nope", "", nil, "")
	s.expect(rec, http.StatusNotFound)
	if env.Success || env.Message == "" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}

func TestRegisterLoginMeLogout(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.doJSON(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "budi", "password": "secret1", "nama": "Budi", "email": "budi@example.com",
	})
	s.expect(rec, http.StatusCreated)
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password data: %s", rec.Body.String())
	}
	var user types.User
	decode(t, env, &user)
	if user.Role != types.RoleUser {
		t.Fatalf("expected default role user, got %q", user.Role)
	}

	token := s.login("budi")
	rec, env = s.do(http.MethodGet, "/auth/me", token, nil, "")
	s.expect(rec, http.StatusOK)
	decode(t, env, &user)
	if user.Username != "budi" || user.Role != types.RoleUser {
		t.Fatalf("unexpected me %+v", user)
	}

	rec, _ = s.do(http.MethodPost, "/auth/logout", token, nil, "")
	s.expect(rec, http.StatusOK)
	rec, _ = s.do(http.MethodGet, "/auth/me", token, nil, "")
	s.expect(rec, http.StatusUnauthorized)
}

func TestLoginFailuresShareMessage(t *testing.T) {
	s := newTestServer(t)
	s.register("budi", "")

	wrong, wrongEnv := s.doJSON(http.MethodPost, "/auth/login", "", map[string]string{"username": "budi", "password": "nope-nope"})
	missing, missingEnv := s.doJSON(http.MethodPost, "/auth/login", "", map[string]string{"username": "ghost", "password": "secret1"})
	s.expect(wrong, http.StatusUnauthorized)
	s.expect(missing, http.StatusUnauthorized)
	if wrongEnv.Message != missingEnv.Message {
		t.Fatalf("messages differ: %q vs %q", wrongEnv.Message, missingEnv.Message)
	}

	rec, _ := s.doJSON(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "budi", "password": "secret1", "nama": "Budi", "email": "other@example.com",
	})
	s.expect(rec, http.StatusConflict)
	rec, _ = s.doJSON(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "eve", "password": "secret1", "nama": "Eve", "email": "eve@example.com", "role": "root",
	})
	s.expect(rec, http.StatusBadRequest)
}

func TestAuthorizationGate(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", types.RoleUser)
	token := s.login("alice")

	rec, _ := s.do(http.MethodGet, "/laporan", "", nil, "")
	s.expect(rec, http.StatusUnauthorized)
	rec, _ = s.do(http.MethodGet, "/laporan", "not-a-token", nil, "")
	s.expect(rec, http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/laporan", nil)
	req.Header.Set("Authorization", "Basic "+token)
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	s.expect(raw, http.StatusUnauthorized)

	rec, _ = s.do(http.MethodGet, "/admin/dashboard", token, nil, "")
	s.expect(rec, http.StatusForbidden)
	rec, _ = s.doJSON(http.MethodPost, "/sarpras", token, map[string]string{"kode_sarpras": "X-1", "nama_sarpras": "X"})
	s.expect(rec, http.StatusForbidden)
}

func TestScanResolveAndDuplicateCode(t *testing.T) {
	s := newTestServer(t)
	s.register("admin", types.RoleAdmin)
	admin := s.login("admin")
	created := s.createAsset(admin, "AC-101", "Ruang 101")

	rec, env := s.do(http.MethodGet, "/sarpras/qr/AC-101", admin, nil, "")
	s.expect(rec, http.StatusOK)
	var got types.Sarpras
	decode(t, env, &got)
	if got.ID != created.ID || got.Code != "AC-101" || !strings.HasPrefix(got.QRCode, "data:image/png;base64,") {
		t.Fatalf("unexpected asset %+v", got)
	}

	rec, _ = s.do(http.MethodGet, "/sarpras/qr/AC-999", admin, nil, "")
	s.expect(rec, http.StatusNotFound)

	rec, _ = s.doJSON(http.MethodPost, "/sarpras", admin, map[string]string{"kode_sarpras": "AC-101", "nama_sarpras": "Again"})
	s.expect(rec, http.StatusConflict)

	rec, env = s.do(http.MethodGet, "/sarpras", admin, nil, "")
	s.expect(rec, http.StatusOK)
	var items []types.Sarpras
	decode(t, env, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(items))
	}

	rec, _ = s.do(http.MethodGet, fmt.Sprintf("/sarpras/%d/qr.png", created.ID), admin, nil, "")
	s.expect(rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "image/png" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected png, got %q", rec.Header().Get("Content-Type"))
	}

	rec, _ = s.doJSON(http.MethodPut, fmt.Sprintf("/sarpras/%d", created.ID), admin, map[string]string{"kode_sarpras": "AC-102"})
	s.expect(rec, http.StatusBadRequest)
}

func TestReportLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.register("admin", types.RoleAdmin)
	s.register("alice", types.RoleUser)
	s.register("bob", types.RoleUser)
	admin, alice, bob := s.login("admin"), s.login("alice"), s.login("bob")
	asset := s.createAsset(admin, "AC-101", "Ruang 101")

	rec, env := s.createReport(alice, map[string]string{
		"kode_sarpras":    "AC-101",
		"deskripsi":       "AC bocor",
		"tanggal_laporan": "2026-02-10",
	}, pngBytes)
	s.expect(rec, http.StatusCreated)
	var report types.Laporan
	decode(t, env, &report)
	if report.Location != "Ruang 101" || report.Status != types.StatusPending || report.SarprasID != asset.ID {
		t.Fatalf("unexpected report %+v", report)
	}

	rec, _ = s.do(http.MethodGet, fmt.Sprintf("/laporan/%d/foto", report.ID), bob, nil, "")
	s.expect(rec, http.StatusOK)
	if !bytes.Equal(rec.Body.Bytes(), pngBytes) || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected photo response %q", rec.Header().Get("Content-Type"))
	}

	// A non-owner cannot delete, and the report stays listed.
	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/laporan/%d", report.ID), bob, nil, "")
	s.expect(rec, http.StatusForbidden)
	rec, env = s.do(http.MethodGet, "/laporan", bob, nil, "")
	s.expect(rec, http.StatusOK)
	var listed []types.Laporan
	decode(t, env, &listed)
	if len(listed) != 1 || listed[0].ID != report.ID {
		t.Fatalf("expected report to remain listed, got %+v", listed)
	}

	form := url.Values{"deskripsi": {"diedit"}}
	rec, _ = s.do(http.MethodPut, fmt.Sprintf("/laporan/%d", report.ID), bob, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	s.expect(rec, http.StatusForbidden)
	rec, env = s.do(http.MethodPut, fmt.Sprintf("/laporan/%d", report.ID), alice, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	s.expect(rec, http.StatusOK)
	decode(t, env, &report)
	if report.Description != "diedit" || report.Location != "Ruang 101" {
		t.Fatalf("unexpected edit result %+v", report)
	}

	statusPath := fmt.Sprintf("/admin/laporan/%d/status", report.ID)
	rec, _ = s.doJSON(http.MethodPatch, statusPath, alice, map[string]string{"status": "selesai"})
	s.expect(rec, http.StatusForbidden)
	rec, env = s.doJSON(http.MethodPatch, statusPath, admin, map[string]string{"status": "diproses", "catatan_admin": "dicek teknisi"})
	s.expect(rec, http.StatusOK)
	decode(t, env, &report)
	if report.Status != types.StatusInProgress || report.AdminNote != "dicek teknisi" {
		t.Fatalf("unexpected status result %+v", report)
	}
	rec, _ = s.doJSON(http.MethodPatch, statusPath, admin, map[string]string{"status": "menunggu"})
	s.expect(rec, http.StatusBadRequest)
	rec, _ = s.doJSON(http.MethodPatch, statusPath, admin, map[string]any{"status": "menunggu", "override": true})
	s.expect(rec, http.StatusOK)

	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/sarpras/%d", asset.ID), admin, nil, "")
	s.expect(rec, http.StatusConflict)

	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/laporan/%d", report.ID), alice, nil, "")
	s.expect(rec, http.StatusOK)
	rec, _ = s.do(http.MethodGet, fmt.Sprintf("/laporan/%d", report.ID), alice, nil, "")
	s.expect(rec, http.StatusNotFound)

	if msgs := s.broker.Drain("laporan-events"); len(msgs) == 0 {
		t.Fatal("expected domain events to be published")
	}
}

func TestCreateReportErrors(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", types.RoleUser)
	alice := s.login("alice")

	rec, _ := s.createReport(alice, map[string]string{"sarpras_id": "77", "deskripsi": "x", "tanggal_laporan": "2026-02-10"}, nil)
	s.expect(rec, http.StatusNotFound)
	rec, _ = s.createReport(alice, map[string]string{"sarpras_id": "abc", "deskripsi": "x", "tanggal_laporan": "2026-02-10"}, nil)
	s.expect(rec, http.StatusBadRequest)
	rec, _ = s.doJSON(http.MethodPost, "/laporan", alice, map[string]string{"deskripsi": "x"})
	s.expect(rec, http.StatusBadRequest)
	rec, _ = s.do(http.MethodGet, "/laporan?status=hilang", alice, nil, "")
	s.expect(rec, http.StatusBadRequest)
	rec, _ = s.do(http.MethodGet, "/laporan?page=0", alice, nil, "")
	s.expect(rec, http.StatusBadRequest)
}

func TestAdminUsersAndDashboard(t *testing.T) {
	s := newTestServer(t)
	s.register("admin", types.RoleAdmin)
	s.register("alice", types.RoleUser)
	admin := s.login("admin")

	rec, env := s.do(http.MethodGet, "/admin/users", admin, nil, "")
	s.expect(rec, http.StatusOK)
	var users []types.User
	decode(t, env, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	var self, other int
	for _, u := range users {
		if u.Username == "admin" {
			self = u.ID
		} else {
			other = u.ID
		}
	}

	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/admin/users/%d", self), admin, nil, "")
	s.expect(rec, http.StatusForbidden)
	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/admin/users/%d", other), admin, nil, "")
	s.expect(rec, http.StatusOK)
	rec, _ = s.do(http.MethodDelete, fmt.Sprintf("/admin/users/%d", other), admin, nil, "")
	s.expect(rec, http.StatusNotFound)

	rec, env = s.do(http.MethodGet, "/admin/dashboard", admin, nil, "")
	s.expect(rec, http.StatusOK)
	var dashboard map[string]json.RawMessage
	decode(t, env, &dashboard)
	for _, key := range []string{"totalLaporan", "statusCount", "totalSarpras", "kondisiCount", "recentLaporan"} {
		if _, ok := dashboard[key]; !ok {
			t.Fatalf("dashboard missing %q: %v", key, dashboard)
		}
	}
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.AuthRateLimit = "2-M" })

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last, _ = s.doJSON(http.MethodPost, "/auth/login", "", map[string]string{"username": "x", "password": "y"})
	}
	s.expect(last, http.StatusTooManyRequests)
}

func TestNewRouterRequiresSecret(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	if _, err := NewRouter(Deps{Logger: logger}); err == nil {
		t.Fatal("expected error without JWT secret")
	}
}

func TestScanResolveEscapedCodes(t *testing.T) {
	s := newTestServer(t)
	s.register("admin", types.RoleAdmin)
	admin := s.login("admin")

	tests := []struct {
		code string
		path string
	}{
		{code: "INV/2024/001", path: "/sarpras/qr/INV%2F2024%2F001"},
		{code: "RUANG 1", path: "/sarpras/qr/RUANG%201"},
		{code: "DISKON-50%", path: "/sarpras/qr/DISKON-50%25"},
		{code: "LAB/KIM 2", path: "/sarpras/qr/LAB%2FKIM%202"},
	}
	for _, tt := range tests {
		created := s.createAsset(admin, tt.code, "Gudang")
		t.Run(tt.code, func(t *testing.T) {
			rec, env := s.do(http.MethodGet, tt.path, admin, nil, "")
			s.expect(rec, http.StatusOK)
			var got types.Sarpras
			decode(t, env, &got)
			if got.ID != created.ID || got.Code != tt.code {
				t.Fatalf("expected asset %d %q, got %d %q", created.ID, tt.code, got.ID, got.Code)
			}
		})
	}

	rec, _ := s.do(http.MethodGet, "/sarpras/qr/INV%2F2024%2F999", admin, nil, "")
	s.expect(rec, http.StatusNotFound)
}
