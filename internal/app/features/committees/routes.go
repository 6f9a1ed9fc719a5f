// internal/app/features/committees/routes.go
package committees

import "github.com/go-chi/chi/v5"

// Routes returns the committee router, mounted under /committees.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreate)
	r.Get("/stats", h.ServeStats)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/progress", h.ServeProgress)
		r.Post("/dispatch", h.HandleDispatch)
		r.Post("/reminders", h.HandleReminders)
		r.Post("/cancel", h.HandleCancel)
	})
	return r
}
