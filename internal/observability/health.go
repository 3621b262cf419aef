package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

// ReadyCheck reports whether a dependency is ready to serve traffic.
type ReadyCheck func(ctx context.Context) error

// HealthHandler always reports 200 ok; it answers "is the process alive",
// not "is it able to serve requests".
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		writeHealthJSON(rw, http.StatusOK, "ok")
	})
}

// ReadyHandler runs every check in order and reports 503 on the first
// failure, 200 once all pass.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			if err := check(hr.Context()); err != nil {
				writeHealthJSON(rw, http.StatusServiceUnavailable, "unavailable")

				return
			}
		}

		writeHealthJSON(rw, http.StatusOK, "ok")
	})
}

func writeHealthJSON(rw http.ResponseWriter, status int, state string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	writeOrDiscard(rw, map[string]string{"status": state})
}

func writeOrDiscard(rw http.ResponseWriter, body map[string]string) {
	_ = json.NewEncoder(rw).Encode(body)
}
