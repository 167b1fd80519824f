// Package storefront_api is the JSON HTTP surface of the store: public
// catalog, customer area and the admin back office.
package storefront_api

import (
	"net/http"
	"time"

	"github.com/BearBump/xtreeshop/internal/services/admin"
	"github.com/BearBump/xtreeshop/internal/services/audit"
	"github.com/BearBump/xtreeshop/internal/services/auth"
	"github.com/BearBump/xtreeshop/internal/services/cart"
	"github.com/BearBump/xtreeshop/internal/services/catalog"
	"github.com/BearBump/xtreeshop/internal/services/checkout"
	"github.com/BearBump/xtreeshop/internal/services/help"
	"github.com/BearBump/xtreeshop/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const SessionCookie = "sid"

type Services struct {
	Auth     *auth.Service
	Catalog  *catalog.Service
	Cart     *cart.Service
	Checkout *checkout.Service
	Orders   *orders.Service
	Help     *help.Service
	Admin    *admin.Service
}

type Options struct {
	// SecureCookies marks the session cookie Secure (production).
	SecureCookies bool
	// Ready reports dependency health for /readyz. Nil means always ready.
	Ready func(r *http.Request) error
}

type API struct {
	svc  Services
	opts Options
	log  *zap.Logger
}

func New(svc Services, opts Options, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{svc: svc, opts: opts, log: log}
}

// Mount registers every route on r.
func (a *API) Mount(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.session)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "time": time.Now().UTC()})
	})
	r.Get("/readyz", a.readyz)

	r.Get("/api/products", a.listProducts)
	r.Get("/api/products/{id}", a.getProduct)
	r.Get("/shop/products", a.listShop)
	r.Get("/shop/products/{id}", a.getShopProduct)

	r.Post("/auth/register", a.register)
	r.Post("/auth/login", a.login)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Post("/auth/logout", a.logout)

		r.Get("/profile", a.getProfile)
		r.Put("/profile", a.updateProfile)
		r.Put("/profile/password", a.changePassword)

		r.Get("/cart", a.getCart)
		r.Get("/cart/count", a.cartCount)
		r.Post("/cart/items", a.addCartItem)
		r.Patch("/cart/items/{id}", a.updateCartItem)
		r.Delete("/cart/items/{id}", a.removeCartItem)
		r.Delete("/cart", a.clearCart)

		r.Get("/checkout", a.checkoutSummary)
		r.Post("/checkout", a.placeOrder)

		r.Get("/orders", a.listOrders)
		r.Get("/orders/{id}", a.getOrder)

		r.Get("/help/orders", a.linkableOrders)
		r.Get("/help/tickets", a.listTickets)
		r.Post("/help/tickets", a.createTicket)
		r.Get("/help/tickets/{id}", a.getTicket)
		r.Post("/help/tickets/{id}/replies", a.replyTicket)
		r.Post("/help/tickets/{id}/close", a.closeTicket)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Use(a.requireAdmin)

		r.Get("/dashboard", a.adminDashboard)

		r.Get("/products", a.adminListProducts)
		r.Post("/products", a.adminCreateProduct)
		r.Put("/products/{id}", a.adminUpdateProduct)
		r.Delete("/products/{id}", a.adminDeleteProduct)

		r.Get("/orders", a.adminListOrders)
		r.Get("/orders/{id}", a.getOrder)
		r.Post("/orders/{id}/problem", a.adminMarkProblem)
		r.Post("/orders/{id}/resolve", a.adminResolveProblem)
		r.Post("/orders/{id}/status", a.adminSetStatus)

		r.Get("/help", a.adminListTickets)
		r.Get("/help/{id}", a.adminGetTicket)
		r.Post("/help/{id}/replies", a.adminReplyTicket)

		r.Get("/users", a.adminListUsers)
		r.Patch("/users/{id}", a.adminUpdateUser)
	})
}

// Handler returns a router with every route mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	a.Mount(r)
	return r
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if a.opts.Ready != nil {
		if err := a.opts.Ready(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func actorOf(r *http.Request) audit.Actor {
	u := userFrom(r.Context())
	a := audit.Actor{IP: clientIP(r)}
	if u != nil {
		a.AdminID = u.ID
	}
	return a
}
