package storefront_api

import (
	"net/http"

	"github.com/BearBump/xtreeshop/internal/services/cart"
	"github.com/BearBump/xtreeshop/internal/services/checkout"
)

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.svc.Catalog.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, ps)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, p)
}

func (a *API) listShop(w http.ResponseWriter, r *http.Request) {
	ps, err := a.svc.Catalog.ListShop(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, ps)
}

func (a *API) getShopProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.svc.Catalog.GetShopProduct(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, p)
}

// Cart

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := a.svc.Cart.Get(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, c)
}

func (a *API) cartCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.Cart.Count(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]int64{"count": n})
}

func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	var in cart.AddInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	n, err := a.svc.Cart.Add(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]int64{"cart_count": n},
		Message: "added to cart",
	})
}

type cartUpdateRequest struct {
	Action string `json:"action"`
}

func (a *API) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in cartUpdateRequest
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.Cart.Update(r.Context(), userFrom(r.Context()).ID, id, in.Action)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, res)
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	n, err := a.svc.Cart.Remove(r.Context(), userFrom(r.Context()).ID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]int64{"cart_count": n})
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Cart.Clear(r.Context(), userFrom(r.Context()).ID); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "cart cleared")
}

// Checkout

func (a *API) checkoutSummary(w http.ResponseWriter, r *http.Request) {
	s, err := a.svc.Checkout.Summary(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, s)
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in checkout.PlaceOrderInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.Checkout.PlaceOrder(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, res, "order placed")
}

// Orders

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	os, err := a.svc.Orders.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, os)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.svc.Orders.Get(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, d)
}
