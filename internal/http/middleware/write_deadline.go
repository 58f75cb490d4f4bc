package middleware

import (
	"net/http"
	"time"
)

// NoWriteTimeout clears the connection write deadline for the given paths.
// The synchronous convert route blocks for the whole engine run, which can
// far exceed the server-wide write_timeout; without this the deadline
// expires before the handler responds and the client disconnect cancels the
// job mid-run.
func NoWriteTimeout(paths ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]bool, len(paths))
	for _, p := range paths {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				// a zero time clears the deadline
				rc := http.NewResponseController(w)
				_ = rc.SetWriteDeadline(time.Time{})
			}
			next.ServeHTTP(w, r)
		})
	}
}
