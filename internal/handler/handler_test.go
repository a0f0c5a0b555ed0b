package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workforce/internal/attendance"
	"workforce/internal/auth"
	"workforce/internal/httpmiddleware"
	"workforce/internal/queue"
)

const (
	identityKey    = "identity-key"
	identityIssuer = "identity-provider"
	appKey         = "app-key"
	appIssuer      = "workforce"
)

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "handler.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := attendance.Migrate(db); err != nil {
		t.Fatal(err)
	}
	if err := auth.Migrate(db); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := attendance.NewService(
		attendance.NewRepository(db),
		attendance.NewWorkdayClock(time.UTC, time.Now),
		queue.NewInMemory(128),
		attendance.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	h := New(svc, auth.NewTokenStore(db), TokenConfig{
		Issuer:     appIssuer,
		SigningKey: appKey,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}, logger)

	r := gin.New()
	r.Use(httpmiddleware.RequestLogger(logger))
	h.Register(r,
		auth.Required(identityKey, identityIssuer),
		auth.Required(appKey, appIssuer),
		httpmiddleware.RateLimit(httpmiddleware.NewSimpleTokenBucket(1000, 1000)),
	)
	return &testServer{router: r}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func identityToken(t *testing.T, userID string) string {
	t.Helper()
	pair, err := auth.Issue(auth.Identity{UserID: userID, Role: "employee", Email: userID + "@example.com"},
		identityIssuer, identityKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return pair.AccessToken
}

func (s *testServer) login(t *testing.T, userID string) (string, string) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/auth/login", identityToken(t, userID), nil)
	if code != http.StatusOK {
		t.Fatalf("login status = %d body = %v", code, body)
	}
	token, _ := body["token"].(string)
	refresh, _ := body["refreshToken"].(string)
	if token == "" || refresh == "" {
		t.Fatalf("login did not return tokens: %v", body)
	}
	if body["userId"] != userID || body["loginTime"] == nil {
		t.Fatalf("unexpected login body %v", body)
	}
	return token, refresh
}

func TestBreakFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "emp-1")

	code, body := s.do(t, http.MethodGet, "/attendance/today", token, nil)
	if code != http.StatusOK || body["onBreak"] != false || body["loginTime"] == nil {
		t.Fatalf("today before break = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/attendance/break/start", token, nil)
	if code != http.StatusOK || body["message"] != "Break started" || body["breakStartTime"] == nil {
		t.Fatalf("start break = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/attendance/break/start", token, nil)
	if code != http.StatusBadRequest || body["error"] != "Break already active" {
		t.Fatalf("duplicate start = %d %v", code, body)
	}

	for _, path := range []string{"/attendance/current", "/employees/attendance/current"} {
		code, body = s.do(t, http.MethodGet, path, token, nil)
		if code != http.StatusOK || body["isOnBreak"] != true || body["breakStartTime"] == nil {
			t.Fatalf("%s during break = %d %v", path, code, body)
		}
	}

	code, body = s.do(t, http.MethodPost, "/attendance/break/end", token, nil)
	if code != http.StatusOK || body["message"] != "Break ended" {
		t.Fatalf("end break = %d %v", code, body)
	}
	if minutes, ok := body["breakMinutes"].(float64); !ok || minutes < 0 || minutes > 1 {
		t.Fatalf("breakMinutes = %v", body["breakMinutes"])
	}

	code, body = s.do(t, http.MethodPost, "/attendance/break/end", token, nil)
	if code != http.StatusBadRequest || body["error"] != "No active break" {
		t.Fatalf("second end = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/attendance/records", token, nil)
	if code != http.StatusOK {
		t.Fatalf("records = %d %v", code, body)
	}
	records, _ := body["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec, _ := records[0].(map[string]any)
	if breaks, _ := rec["breaks"].([]any); len(breaks) != 1 {
		t.Fatalf("record breaks = %v", rec["breaks"])
	}
}

func TestBreakRequiresSession(t *testing.T) {
	s := newTestServer(t)
	pair, err := auth.Issue(auth.Identity{UserID: "emp-2"}, appIssuer, appKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	code, body := s.do(t, http.MethodPost, "/attendance/break/start", pair.AccessToken, nil)
	if code != http.StatusBadRequest || body["error"] != "Attendance not found" {
		t.Fatalf("start without login = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/attendance/today", pair.AccessToken, nil)
	if code != http.StatusOK || body["onBreak"] != false {
		t.Fatalf("today without login = %d %v", code, body)
	}
	if _, ok := body["loginTime"]; ok {
		t.Fatalf("today without login should omit loginTime: %v", body)
	}
}

func TestLogoutClosesSessionOnce(t *testing.T) {
	s := newTestServer(t)
	token, refresh := s.login(t, "emp-3")

	if code, body := s.do(t, http.MethodPost, "/attendance/break/start", token, nil); code != http.StatusOK {
		t.Fatalf("start break = %d %v", code, body)
	}

	code, body := s.do(t, http.MethodPost, "/auth/logout", token, map[string]string{"refreshToken": refresh})
	if code != http.StatusOK || body["message"] != "Logged out successfully" || body["attendanceClosed"] != true {
		t.Fatalf("logout = %d %v", code, body)
	}
	if body["logoutTime"] == nil || body["totalWorkingMinutes"] == nil || body["totalBreakMinutes"] == nil {
		t.Fatalf("logout should report totals: %v", body)
	}

	code, body = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	if code != http.StatusOK || body["attendanceClosed"] != false {
		t.Fatalf("second logout = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/attendance/break/start", token, nil)
	if code != http.StatusBadRequest || body["error"] != "No active session" {
		t.Fatalf("start after logout = %d %v", code, body)
	}
}

func TestRefreshRotation(t *testing.T) {
	s := newTestServer(t)
	_, refresh := s.login(t, "emp-4")

	code, body := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if code != http.StatusOK {
		t.Fatalf("refresh = %d %v", code, body)
	}
	next, _ := body["refreshToken"].(string)
	if next == "" || next == refresh {
		t.Fatalf("expected a new refresh token, got %v", body)
	}

	code, _ = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token status = %d", code)
	}

	code, _ = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{})
	if code != http.StatusBadRequest {
		t.Fatalf("missing refresh token status = %d", code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/attendance/break/start", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", code)
	}

	// identity tokens are only accepted by login
	code, _ = s.do(t, http.MethodGet, "/attendance/current", identityToken(t, "emp-5"), nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("identity token on app route status = %d", code)
	}

	pair, err := auth.Issue(auth.Identity{UserID: "emp-5"}, appIssuer, appKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	code, _ = s.do(t, http.MethodPost, "/auth/login", pair.AccessToken, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("app token on login status = %d", code)
	}
}
