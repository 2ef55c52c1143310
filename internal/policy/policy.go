// Package policy decides whether the current session may enter a guarded region or perform a
// guarded action. Predicates are evaluated against the session state at the moment of the call.
package policy

import (
	"context"
	"net/url"
)

const (
	LoginPath = "/auth/login"
	HomePath  = "/"
)

type Session interface {
	IsAuthenticated(ctx context.Context) bool
	IsAuthor() bool
}

// Outcome is either Allowed or a redirect. ReturnTo carries the intended destination for a login redirect.
type Outcome struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	ReturnTo string `json:"returnTo,omitempty"`
}

var allowed = Outcome{Allowed: true}

// Location renders the redirect target, with the return destination as a query parameter.
func (o Outcome) Location() string {
	if o.Allowed {
		return ""
	}
	if o.ReturnTo == "" {
		return o.Redirect
	}
	return o.Redirect + "?returnUrl=" + url.QueryEscape(o.ReturnTo)
}

func (o Outcome) RequiresLogin() bool {
	return !o.Allowed && o.Redirect == LoginPath
}

func RequireAuthenticated(ctx context.Context, s Session, destination string) Outcome {
	if s.IsAuthenticated(ctx) {
		return allowed
	}
	return Outcome{Redirect: LoginPath, ReturnTo: destination}
}

func RequireAuthor(ctx context.Context, s Session, destination string) Outcome {
	if o := RequireAuthenticated(ctx, s, destination); !o.Allowed {
		return o
	}
	if s.IsAuthor() {
		return allowed
	}
	return Outcome{Redirect: HomePath}
}
