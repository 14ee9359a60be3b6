package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo is served by /version.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Register mounts the probes on mux:
//
//	GET /health   liveness, always 200 while the process serves
//	GET /ready    200 when every check passes, 503 otherwise
//	GET /version  build information
//
// A degraded readiness body names the failing checks:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "evidence": {"status": "ok"},
//	        "recorder": {"status": "unhealthy", "message": "12 evidence records dropped"}
//	    },
//	    "timestamp": "2026-03-01T10:30:00Z"
//	}
func Register(mux *http.ServeMux, checker *Checker, info VersionInfo) {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, http.StatusOK, checker.CheckLiveness(r.Context()))
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		report := checker.CheckReadiness(r.Context())
		code := http.StatusOK
		if report.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		respond(w, r, code, report)
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, http.StatusOK, info)
	})
}

// respond writes v as JSON; HEAD requests get the headers only.
func respond(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
