package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/devanshjainms/exitengine/pkg/applog"
)

// Recovery converts a panic in any downstream handler into a logged error
// and a 500 response, instead of taking the whole process down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				applog.L().Error("panic recovered in http handler",
					applog.Any("error", err),
					applog.String("stack", string(debug.Stack())),
				)
				http.Error(w, fmt.Sprintf("Internal Server Error: %v", err), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
