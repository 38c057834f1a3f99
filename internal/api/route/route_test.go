package route

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bassista/court_watch/internal/api/controller"
	"github.com/bassista/court_watch/internal/app"
	"github.com/bassista/court_watch/internal/cache"
	"github.com/bassista/court_watch/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeFeed(t *testing.T, path string, courts int) {
	t.Helper()
	body := `[{"District_Name":"Wan Chai","Venue_Name":"Victoria Park","Available_Date":"2024-01-15","Session_Start_Time":"10:00","Session_End_Time":"11:00","Available_Courts":` +
		strconv.Itoa(courts) + `}]`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
}

func setupTestApp(t *testing.T, burst int) (*app.App, *gin.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Feed: config.FeedConfig{
			Source:   "file",
			FilePath: filepath.Join(dir, "feed.json"),
			Attempts: 1,
			Timeout:  time.Second,
		},
		Store: config.StoreConfig{
			Type:     "file",
			FilePath: filepath.Join(dir, "data", "snapshot.json"),
		},
		Notify: config.NotifyConfig{Color: "never"},
		Server: config.ServerConfig{
			ShutDownTimeout:    time.Second,
			RequestTimeout:     5 * time.Second,
			TriggerInterval:    time.Millisecond,
			TriggerBurst:       burst,
			CORSAllowedOrigins: "http://dashboard.local",
		},
		Misc: config.MiscConfig{Schedule: "@every 1h", ScheduleTZ: "UTC"},
	}

	a, err := app.Bootstrap(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(a.Shutdown)

	l := logrus.New()
	l.SetOutput(io.Discard)
	return a, SetupRoutes(a, l), cfg.Feed.FilePath
}

func do(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	_, r, _ := setupTestApp(t, 1)

	w := do(r, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != `{"message":"UP"}` {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	_, r, _ := setupTestApp(t, 1)

	if w := do(r, http.MethodGet, "/api/nope"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestCycleFlowThroughAPI(t *testing.T) {
	_, r, feedPath := setupTestApp(t, 10)

	// nothing yet
	if w := do(r, http.MethodGet, "/api/snapshot"); w.Code != http.StatusNotFound {
		t.Errorf("snapshot: expected status 404, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/notification/latest"); w.Code != http.StatusNotFound {
		t.Errorf("notification: expected status 404, got %d", w.Code)
	}

	// missing feed file is a fetch failure
	if w := do(r, http.MethodPost, "/api/cycle"); w.Code != http.StatusBadGateway {
		t.Errorf("cycle without feed: expected status 502, got %d", w.Code)
	}

	writeFeed(t, feedPath, 0)
	if w := do(r, http.MethodPost, "/api/cycle"); w.Code != http.StatusOK {
		t.Fatalf("baseline cycle: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	writeFeed(t, feedPath, 2)
	w := do(r, http.MethodPost, "/api/cycle")
	if w.Code != http.StatusOK {
		t.Fatalf("second cycle: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var res controller.CycleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal cycle: %v", err)
	}
	if res.Result == nil || res.Notification == nil || len(res.Changes) != 1 {
		t.Fatalf("expected one change with a notification, got %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/snapshot?venue=Victoria+Park")
	var snap controller.SnapshotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Count != 1 || snap.Slots[0].AvailableCourts.Int() != 2 {
		t.Errorf("unexpected snapshot: %s", w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/notification/latest"); w.Code != http.StatusOK {
		t.Errorf("notification: expected status 200, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/status")
	var status cache.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Cycles != 3 || status.Failures != 1 {
		t.Errorf("expected 3 cycles and 1 failure, got %+v", status)
	}
	if status.LastCycle == nil || status.LastCycle.Trigger != "manual" {
		t.Errorf("expected manual last cycle, got %+v", status.LastCycle)
	}
}

func TestCycleRateLimit(t *testing.T) {
	a, r, feedPath := setupTestApp(t, 1)
	a.Config.Server.TriggerInterval = time.Hour
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	r = SetupRoutes(a, quiet)
	writeFeed(t, feedPath, 1)

	if w := do(r, http.MethodPost, "/api/cycle"); w.Code != http.StatusOK {
		t.Fatalf("first: expected status 200, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/cycle"); w.Code != http.StatusTooManyRequests {
		t.Errorf("second: expected status 429, got %d", w.Code)
	}
}

func TestConfigurationRoute(t *testing.T) {
	_, r, _ := setupTestApp(t, 1)

	w := do(r, http.MethodGet, "/api/configuration")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got controller.ConfigurationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.FeedSource != "file" || got.Schedule != "@every 1h" {
		t.Errorf("unexpected configuration: %+v", got)
	}
}

func TestCORSOnAPI(t *testing.T) {
	_, r, _ := setupTestApp(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Errorf("expected ACAO for dashboard origin, got %q", got)
	}
}

func TestCycleTimeoutThroughAPI(t *testing.T) {
	release := make(chan struct{})
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer feedServer.Close()
	defer close(release)

	dir := t.TempDir()
	cfg := &config.Config{
		Feed:   config.FeedConfig{Source: "http", URL: feedServer.URL, Attempts: 1, Timeout: time.Minute},
		Store:  config.StoreConfig{Type: "file", FilePath: filepath.Join(dir, "snapshot.json")},
		Notify: config.NotifyConfig{Color: "never"},
		Server: config.ServerConfig{
			RequestTimeout:  100 * time.Millisecond,
			TriggerInterval: time.Millisecond,
			TriggerBurst:    1,
		},
		Misc: config.MiscConfig{Schedule: "@every 1h", ScheduleTZ: "UTC"},
	}
	a, err := app.Bootstrap(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(a.Shutdown)
	l := logrus.New()
	l.SetOutput(io.Discard)

	w := do(SetupRoutes(a, l), http.MethodPost, "/api/cycle")
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["timeout"] != "100ms" {
		t.Errorf("unexpected body: %v", body)
	}
}
