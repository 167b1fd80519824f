package storefront_api

import (
	"net/http"
	"time"

	"github.com/BearBump/xtreeshop/internal/services/auth"
)

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.svc.Auth.Register(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, u, "account created, you can now log in")
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.Auth.Login(r.Context(), in, clientIP(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	ok(w, res)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Auth.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		a.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	done(w, "logged out")
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Auth.Profile(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, p)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in auth.ProfileInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.svc.Auth.UpdateProfile(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, u)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var in auth.PasswordChangeInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.Auth.ChangePassword(r.Context(), userFrom(r.Context()).ID, in); err != nil {
		a.fail(w, r, err)
		return
	}
	done(w, "password updated")
}
