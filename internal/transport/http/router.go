package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты API заказов.
// Идентичность приходит из заголовков гейтвея, поэтому все маршруты под GatewayAuth.
func NewRouter(handler *Handler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(GatewayAuth)
		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders/my", handler.MyOrders)
		r.Patch("/orders/{id}/cancel", handler.CancelOrder)
	})

	return r
}
