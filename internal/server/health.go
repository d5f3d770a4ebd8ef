package server

import "net/http"

// HealthHandler reports process liveness, matching the teacher's plain-text
// /healthz convention (internal/cmd/serve.go).
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}
