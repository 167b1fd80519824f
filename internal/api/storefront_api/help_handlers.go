package storefront_api

import (
	"net/http"

	"github.com/BearBump/xtreeshop/internal/services/help"
)

func (a *API) linkableOrders(w http.ResponseWriter, r *http.Request) {
	os, err := a.svc.Help.LinkableOrders(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, os)
}

func (a *API) listTickets(w http.ResponseWriter, r *http.Request) {
	ts, err := a.svc.Help.ListTickets(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, ts)
}

func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	var in help.TicketInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.svc.Help.CreateTicket(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, t, "ticket created, we will get back to you soon")
}

func (a *API) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.svc.Help.GetTicket(r.Context(), userFrom(r.Context()).ID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, d)
}

func (a *API) replyTicket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in help.ReplyInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	reply, err := a.svc.Help.Reply(r.Context(), userFrom(r.Context()).ID, id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, reply, "reply sent")
}

func (a *API) closeTicket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.Help.Close(r.Context(), userFrom(r.Context()).ID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "ticket closed")
}
