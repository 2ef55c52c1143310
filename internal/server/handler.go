package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/catalog"
	"bookcatalog/internal/policy"
	"bookcatalog/internal/query"
	"bookcatalog/internal/response"
	"bookcatalog/internal/session"
	"bookcatalog/internal/theme"
	"bookcatalog/internal/types"
)

const maxBodyBytes = 1 << 20

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SessionState describes the session slot as seen by the caller.
type SessionState struct {
	Authenticated bool        `json:"authenticated"`
	IsAuthor      bool        `json:"isAuthor"`
	TokenValid    bool        `json:"tokenValid"`
	User          *types.User `json:"user"`
}

type themeBody struct {
	Theme types.Theme `json:"theme"`
}

func Handler(cs *catalog.Service, ss *session.Store, ts *theme.Store, rr *response.Responder) http.Handler {
	r := chi.NewRouter()

	authenticated := guard(policy.RequireAuthenticated, ss, rr)
	author := guard(policy.RequireAuthor, ss, rr)

	r.Get("/books", func(w http.ResponseWriter, r *http.Request) {
		spec, err := specFromQuery(r.URL.Query())
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rows, err := cs.List(r.Context(), &spec)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), struct {
			Books []*types.Book `json:"books"`
		}{Books: rows})
	})

	r.Get("/books/featured", func(w http.ResponseWriter, r *http.Request) {
		rows, err := cs.Featured(r.Context(), getIntOrDefault("limit", r.URL.Query(), catalog.DefaultFeaturedLimit))
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), struct {
			Books []*types.Book `json:"books"`
		}{Books: rows})
	})

	r.Get("/genres", func(w http.ResponseWriter, r *http.Request) {
		rows, err := cs.Genres(r.Context())
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), struct {
			Genres []string `json:"genres"`
		}{Genres: rows})
	})

	r.Get("/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		b, err := cs.Get(r.Context(), id)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), b)
	})

	r.With(author).Post("/books", func(w http.ResponseWriter, r *http.Request) {
		var fields types.BookFields
		if err := decodeJson(w, r, &fields); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		b, err := cs.Create(r.Context(), fields, ss)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJsonStatus(w, r.Context(), http.StatusCreated, b)
	})

	r.With(author).Put("/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		var fields types.BookFields
		if err := decodeJson(w, r, &fields); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		b, err := cs.Update(r.Context(), id, fields, ss)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), b)
	})

	r.With(author).Delete("/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		if err := cs.Delete(r.Context(), id, ss); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	r.With(authenticated).Post("/books/{id}/purchase", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		u, err := cs.Purchase(r.Context(), id, ss)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), u)
	})

	r.Get("/books/{id}/access", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		ok, err := ss.HasAccessToBook(r.Context(), id)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), struct {
			HasAccess bool `json:"hasAccess"`
		}{HasAccess: ok})
	})

	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var c credentials
		if err := decodeJson(w, r, &c); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		u, err := ss.Login(r.Context(), c.Email, c.Password)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), u)
	})

	r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var reg types.Registration
		if err := decodeJson(w, r, &reg); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		u, err := ss.Register(r.Context(), reg)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJsonStatus(w, r.Context(), http.StatusCreated, u)
	})

	r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := ss.Logout(r.Context()); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	// ?refresh=true reloads the bound identity from the identity catalog first
	r.Get("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if raw := r.URL.Query().Get("refresh"); raw != "" {
			refresh, err := strconv.ParseBool(raw)
			if err != nil {
				rr.RespondError(w, r.Context(), apperr.Invalid("refresh", "must be a boolean"))
				return
			}
			if refresh {
				if _, err := ss.Refresh(r.Context()); err != nil {
					rr.RespondError(w, r.Context(), err)
					return
				}
			}
		}

		rr.SendJson(w, r.Context(), SessionState{
			Authenticated: ss.IsAuthenticated(r.Context()),
			IsAuthor:      ss.IsAuthor(),
			TokenValid:    ss.TokenValid(r.Context()),
			User:          ss.Current(),
		})
	})

	r.With(authenticated).Patch("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		var upd types.ProfileUpdate
		if err := decodeJson(w, r, &upd); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		u, err := ss.UpdateProfile(r.Context(), upd)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), u)
	})

	r.With(authenticated).Post("/auth/password", func(w http.ResponseWriter, r *http.Request) {
		var pc passwordChange
		if err := decodeJson(w, r, &pc); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		if err := ss.ChangePassword(r.Context(), pc.CurrentPassword, pc.NewPassword); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		u, err := ss.GetUser(r.Context(), id)
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), u)
	})

	r.Get("/theme", func(w http.ResponseWriter, r *http.Request) {
		rr.SendJson(w, r.Context(), themeBody{Theme: ts.Current()})
	})

	r.Put("/theme", func(w http.ResponseWriter, r *http.Request) {
		var body themeBody
		if err := decodeJson(w, r, &body); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		if err := ts.Set(r.Context(), body.Theme); err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), themeBody{Theme: ts.Current()})
	})

	r.Post("/theme/toggle", func(w http.ResponseWriter, r *http.Request) {
		t, err := ts.Toggle(r.Context())
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), themeBody{Theme: t})
	})

	return r
}

// guard turns a policy predicate into middleware. A denial that needs a login answers 401 and
// any other denial 403, with the redirect location in the body.
func guard(check func(context.Context, policy.Session, string) policy.Outcome,
	s policy.Session, rr *response.Responder) func(http.Handler) http.Handler {

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			o := check(r.Context(), s, r.URL.RequestURI())
			if o.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			status := http.StatusForbidden
			if o.RequiresLogin() {
				status = http.StatusUnauthorized
			}

			rr.Redirect(w, r.Context(), status, o.Location())
		})
	}
}

func specFromQuery(q url.Values) (query.Spec, error) {
	key, err := query.ParseSortKey(q.Get("sort"))
	if err != nil {
		return query.Spec{}, err
	}

	dir, err := query.ParseDirection(q.Get("order"))
	if err != nil {
		return query.Spec{}, err
	}

	return query.Spec{
		Search:    q.Get("search"),
		Genre:     strings.TrimSpace(q.Get("genre")),
		SortBy:    key,
		Direction: dir,
	}, nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "must be a positive integer")
	}

	return id, nil
}

func decodeJson(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Invalid("body", "must not be empty")
		case errors.As(err, &mbe):
			return apperr.Invalid("body", fmt.Sprintf("must not be larger than %d bytes", mbe.Limit))
		default:
			return apperr.Invalid("body", "malformed JSON: "+err.Error())
		}
	}

	return nil
}

func getIntOrDefault(key string, q url.Values, default_ int) int {
	if ls := q.Get(key); ls != "" {
		limit, err := strconv.Atoi(ls)
		if err == nil {
			return limit
		}
	}

	return default_
}
