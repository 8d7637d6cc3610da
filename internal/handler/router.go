package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/gophermarket/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса gophermarket.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.opts.Metrics.Middleware)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.MetricsHandler)
	}

	r.Get("/api/gateway/vnpay/callback", h.GatewayCallback)
	r.Get("/api/products/{productID}", h.GetProduct)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/api/products", h.CreateProduct)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{itemID}", h.UpdateCartItem)
			r.Delete("/items/{itemID}", h.RemoveCartItem)
		})

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.Checkout)
			r.Get("/", h.GetMyOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/cancel", h.CancelOrder)
		})

		r.Route("/api/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Post("/withdraw", h.Withdraw)
			r.Get("/withdrawals", h.GetWithdrawals)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(custommiddleware.RequireAdmin)

			r.Get("/carts", h.ListCarts)
			r.Get("/carts/{userID}", h.GetUserCart)

			r.Get("/orders", h.ListOrders)
			r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
			r.Delete("/orders/{orderID}", h.DeleteOrder)

			r.Get("/wallets", h.ListWallets)
			r.Get("/revenue", h.ListRevenue)
			r.Get("/revenue/total", h.TotalRevenue)
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
