package storefront_api

import (
	"net/http"

	"github.com/BearBump/xtreeshop/internal/services/admin"
	"github.com/BearBump/xtreeshop/internal/services/help"
)

func (a *API) adminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.Admin.Dashboard(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, d)
}

// Products

func (a *API) adminListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.svc.Admin.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, ps)
}

func (a *API) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in admin.ProductInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.svc.Admin.CreateProduct(r.Context(), actorOf(r), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, p, "product created")
}

func (a *API) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in admin.ProductUpdateInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.svc.Admin.UpdateProduct(r.Context(), actorOf(r), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, p)
}

func (a *API) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.Admin.DeleteProduct(r.Context(), actorOf(r), id); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "product deleted")
}

// Orders

func (a *API) adminListOrders(w http.ResponseWriter, r *http.Request) {
	problemsOnly := r.URL.Query().Get("problems") == "1" || r.URL.Query().Get("problems") == "true"
	os, err := a.svc.Admin.ListOrders(r.Context(), problemsOnly)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, os)
}

func (a *API) adminMarkProblem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in admin.ProblemInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.Admin.MarkProblem(r.Context(), actorOf(r), id, in); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "problem reported")
}

func (a *API) adminResolveProblem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.Admin.ResolveProblem(r.Context(), actorOf(r), id); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "problem resolved")
}

func (a *API) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in admin.StatusInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.Admin.SetOrderStatus(r.Context(), actorOf(r), id, in); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "status updated")
}

// Help desk

func (a *API) adminListTickets(w http.ResponseWriter, r *http.Request) {
	ts, err := a.svc.Help.AdminList(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, ts)
}

func (a *API) adminGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.svc.Help.AdminGet(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, d)
}

func (a *API) adminReplyTicket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in help.AdminReplyInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	reply, err := a.svc.Help.AdminReply(r.Context(), actorOf(r), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, reply, "reply sent")
}

// Users

func (a *API) adminListUsers(w http.ResponseWriter, r *http.Request) {
	us, err := a.svc.Admin.ListUsers(r.Context(), userFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, us)
}

func (a *API) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in admin.UserUpdateInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.svc.Admin.UpdateUser(r.Context(), userFrom(r.Context()), actorOf(r), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, u)
}
