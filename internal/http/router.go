package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/middleware"
)

type RouterOptions struct {
	Logger       *zap.Logger
	AllowOrigins []string
}

func newBaseRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(opts.AllowOrigins))
	return r
}

func NewPOSRouter(h *POSHandler, opts RouterOptions) http.Handler {
	r := newBaseRouter(opts)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/settings", h.GetSettings)

		r.Get("/customers/lookup", h.LookupCustomer)
		r.Post("/customers", h.CreateCustomer)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/pending", h.ListPending)
			r.Delete("/pending/{orderId}", h.DeletePending)
			r.Get("/{orderId}", h.GetOrder)
		})

		r.Route("/terminal", func(r chi.Router) {
			r.Use(middleware.RequireTerminalID)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddItem)
			r.Patch("/cart/items/{productId}", h.UpdateQuantity)
			r.Delete("/cart/items/{productId}", h.RemoveItem)
			r.Put("/table", h.SetTable)
			r.Get("/suggestions", h.Suggestions)
			r.Post("/park", h.Park)
			r.Post("/recall/{orderId}", h.Recall)

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.StartCheckout)
				r.Get("/", h.GetCheckout)
				r.Delete("/", h.CancelCheckout)
				r.Post("/lookup", h.CheckoutLookup)
				r.Post("/enroll", h.CheckoutEnroll)
				r.Post("/guest", h.CheckoutGuest)
				r.Post("/proceed", h.CheckoutProceed)
				r.Post("/redeem", h.CheckoutRedeem)
				r.Post("/payment", h.CheckoutPayment)
				r.Post("/confirm", h.CheckoutConfirm)
				r.Post("/back", h.CheckoutBack)
			})
		})
	})

	return r
}

func NewKitchenRouter(h *KitchenHandler, opts RouterOptions) http.Handler {
	r := newBaseRouter(opts)

	r.Get("/health", h.Health)
	r.Get("/ws/kitchen", h.Live)

	r.Route("/api/kitchen", func(r chi.Router) {
		r.Get("/board", h.GetBoard)
		r.Post("/orders/{orderId}/advance", h.Advance)
	})

	return r
}
