package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/homefood-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса homefood.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.GetOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}", h.UpdateOrder)
		})

		r.Route("/makers", func(r chi.Router) {
			r.Post("/", h.RegisterMaker)
			r.Get("/{id}", h.GetMaker)
			r.Patch("/{id}", h.UpdateMaker)
			r.Get("/{id}/orders", h.GetPendingOrders)
		})

		r.Route("/dishes", func(r chi.Router) {
			r.Post("/", h.CreateDish)
			r.Get("/", h.GetDishes)
			r.Get("/{id}", h.GetDish)
			r.Patch("/{id}", h.UpdateDish)
			r.Delete("/{id}", h.DeleteDish)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
