package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/court_watch/internal/api/controller"
	"github.com/bassista/court_watch/internal/cycle"
)

// slowTrigger behaves like a cycle whose feed fetch takes delay and honours ctx.
type slowTrigger struct {
	delay    time.Duration
	deadline bool
}

func (s *slowTrigger) Trigger(ctx context.Context, trigger string) (*cycle.Result, error) {
	_, s.deadline = ctx.Deadline()
	res := &cycle.Result{CycleID: "c-1"}
	select {
	case <-time.After(s.delay):
		return res, nil
	case <-ctx.Done():
		return res, fmt.Errorf("%w: %w", cycle.ErrFetchFailed, ctx.Err())
	}
}

func cycleRouter(timeout time.Duration, trigger controller.CycleTrigger) *gin.Engine {
	r := gin.New()
	r.POST("/api/cycle", RequestTimeout(timeout), controller.NewCycleController(trigger, nil).RunCycle)
	return r
}

func TestRequestTimeout_ManualCycle(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		delay        time.Duration
		wantCode     int
		wantDeadline bool
	}{
		{name: "disabled", timeout: 0, delay: time.Millisecond, wantCode: http.StatusOK},
		{name: "negative disables", timeout: -time.Second, delay: time.Millisecond, wantCode: http.StatusOK},
		{name: "fetch within deadline", timeout: 5 * time.Second, delay: time.Millisecond, wantCode: http.StatusOK, wantDeadline: true},
		{name: "fetch past deadline", timeout: 50 * time.Millisecond, delay: time.Second, wantCode: http.StatusGatewayTimeout, wantDeadline: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &slowTrigger{delay: tt.delay}
			w := httptest.NewRecorder()
			cycleRouter(tt.timeout, trigger).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if trigger.deadline != tt.wantDeadline {
				t.Errorf("expected deadline %t, got %t", tt.wantDeadline, trigger.deadline)
			}
		})
	}
}

func TestRequestTimeout_GatewayTimeoutBody(t *testing.T) {
	w := httptest.NewRecorder()
	cycleRouter(50*time.Millisecond, &slowTrigger{delay: time.Second}).
		ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body["error"] != "request timeout" || body["timeout"] != "50ms" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRequestTimeout_WrittenResponseIsKept(t *testing.T) {
	r := gin.New()
	r.GET("/api/status", RequestTimeout(50*time.Millisecond), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"running": false})
		<-c.Request.Context().Done()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 (already written), got %d", w.Code)
	}
}
