// internal/app/features/feedback/routes.go
package feedback

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the reviewer router, mounted under /feedback. Middlewares
// such as a rate limiter wrap every route.
func Routes(h *Handler, mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/{token}", h.ServeLink)
	r.Post("/{token}", h.HandleSubmit)
	return r
}
