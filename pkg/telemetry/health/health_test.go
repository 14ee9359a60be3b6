package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/evidence/storage"
)

func TestNew(t *testing.T) {
	if got := New(0).timeout; got != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", got)
	}
	if got := New(time.Second).timeout; got != time.Second {
		t.Errorf("timeout = %v, want 1s", got)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantStatus: "ready",
			wantChecks: map[string]string{},
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"evidence": func(context.Context) error { return nil },
				"recorder": func(context.Context) error { return nil },
			},
			wantStatus: "ready",
			wantChecks: map[string]string{"evidence": "ok", "recorder": "ok"},
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"evidence": func(context.Context) error { return nil },
				"recorder": func(context.Context) error { return errors.New("dropping") },
			},
			wantStatus: "degraded",
			wantChecks: map[string]string{"evidence": "ok", "recorder": "unhealthy"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"slow": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			wantStatus: "degraded",
			wantChecks: map[string]string{"slow": "unhealthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(20 * time.Millisecond)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			got := make(map[string]string, len(status.Checks))
			for name, result := range status.Checks {
				got[name] = result.Status
			}
			if diff := cmp.Diff(tt.wantChecks, got); diff != "" {
				t.Errorf("check statuses mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("b", func(context.Context) error { return nil })
	checker.RegisterCheck("a", func(context.Context) error { return nil })
	if diff := cmp.Diff([]string{"a", "b"}, checker.ListChecks()); diff != "" {
		t.Errorf("ListChecks() mismatch (-want +got):\n%s", diff)
	}
	checker.UnregisterCheck("a")
	if diff := cmp.Diff([]string{"b"}, checker.ListChecks()); diff != "" {
		t.Errorf("ListChecks() after unregister mismatch (-want +got):\n%s", diff)
	}
}

type brokenStorage struct{ *storage.MemoryStorage }

func (brokenStorage) Count(context.Context, *evidence.Query) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestStorageCheck(t *testing.T) {
	if err := StorageCheck(storage.NewMemoryStorage())(context.Background()); err != nil {
		t.Errorf("StorageCheck(memory) = %v, want nil", err)
	}
	if err := StorageCheck(brokenStorage{storage.NewMemoryStorage()})(context.Background()); err == nil {
		t.Error("StorageCheck(broken) = nil, want error")
	}
}

func TestDropCheck(t *testing.T) {
	var dropped int64
	check := DropCheck(func() int64 { return dropped }, 2)

	if err := check(context.Background()); err != nil {
		t.Errorf("check with 0 drops = %v", err)
	}
	dropped = 3
	if err := check(context.Background()); err == nil {
		t.Error("check with 3 drops = nil, want error")
	}
}

func TestEndpoints(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("recorder", func(context.Context) error { return errors.New("full") })

	mux := http.NewServeMux()
	Register(mux, checker, VersionInfo{Version: "1.2.3", Commit: "abc"})

	tests := []struct {
		method     string
		path       string
		wantCode   int
		wantStatus string
	}{
		{http.MethodGet, "/health", http.StatusOK, "ok"},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable, "degraded"},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantStatus == "" {
				return
			}
			var status Report
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}
}
