package http

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/vadimbarashkov/shortlink-core/internal/resolver"
	"github.com/vadimbarashkov/shortlink-core/internal/visit"
)

const sessionCookieName = "shortlink_session"

// passwordPage is the gating response for protected links. It is not an
// admin surface, just the minimal form the visitor needs.
var passwordPage = template.Must(template.New("password").Parse(`<!DOCTYPE html>
<html>
<head><title>Protected link</title></head>
<body>
<h1>This link is protected</h1>
{{if .Error}}<p>{{.Error}}</p>{{end}}
<form method="post" action="/{{.Slug}}">
<input type="password" name="password" autofocus>
<button type="submit">Continue</button>
</form>
</body>
</html>`))

type passwordPageData struct {
	Slug  string
	Error string
}

// sessionID returns the visitor's session identifier, minting one into a
// cookie when absent.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id, err := gonanoid.New(21)
	if err != nil {
		// Degrades to a per-request session; password unlocks simply
		// won't stick.
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// RedirectHandler is the single front-door entry point. A request that does
// not resolve to a usable short link is handed to next, which carries the
// host application's normal routing.
type RedirectHandler struct {
	resolver *resolver.Resolver
	next     http.Handler
}

func NewRedirectHandler(res *resolver.Resolver, next http.Handler) *RedirectHandler {
	if next == nil {
		next = http.NotFoundHandler()
	}

	return &RedirectHandler{
		resolver: res,
		next:     next,
	}
}

func (h *RedirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug := strings.Trim(r.URL.Path, "/")
	if slug == "" || strings.Contains(slug, "/") {
		h.next.ServeHTTP(w, r)
		return
	}

	snap := visit.Snapshot(r)
	sess := sessionID(w, r)

	var decision resolver.Decision
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		decision = h.resolver.Resolve(r.Context(), slug, sess, snap)
	case http.MethodPost:
		decision = h.resolver.SubmitPassword(r.Context(), slug, sess, r.PostFormValue("password"), snap)
	default:
		h.next.ServeHTTP(w, r)
		return
	}

	h.render(w, r, decision)
}

func (h *RedirectHandler) render(w http.ResponseWriter, r *http.Request, decision resolver.Decision) {
	switch decision.Kind {
	case resolver.DecisionRedirect:
		if len(decision.RelAttrs) > 0 {
			w.Header().Set("Link", fmt.Sprintf("<%s>; rel=%q",
				decision.Location, strings.Join(decision.RelAttrs, " ")))
		}
		http.Redirect(w, r, decision.Location, decision.Status)
	case resolver.DecisionPasswordRequired:
		h.renderPasswordPage(w, decision.Slug, "")
	case resolver.DecisionPasswordRejected:
		h.renderPasswordPage(w, decision.Slug, "The password is incorrect. Please try again.")
	default:
		h.next.ServeHTTP(w, r)
	}
}

func (h *RedirectHandler) renderPasswordPage(w http.ResponseWriter, slug, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	status := http.StatusOK
	if errMsg != "" {
		status = http.StatusUnauthorized
	}
	w.WriteHeader(status)

	_ = passwordPage.Execute(w, passwordPageData{Slug: slug, Error: errMsg})
}
