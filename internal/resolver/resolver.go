// Package resolver decides what happens to an inbound slug: redirect, show
// a password gate, or pass the request back to the host application. The
// hot path costs one store read and never waits on visit recording.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vadimbarashkov/shortlink-core/internal/database"
	"github.com/vadimbarashkov/shortlink-core/internal/models"
	"github.com/vadimbarashkov/shortlink-core/internal/session"
	"github.com/vadimbarashkov/shortlink-core/internal/slug"
	"github.com/vadimbarashkov/shortlink-core/internal/visit"
)

// DecisionKind enumerates resolver outcomes.
type DecisionKind string

const (
	// DecisionPass means the path is not a usable short link; the host
	// application's normal routing should proceed. Missing, inactive and
	// expired slugs all collapse into Pass so nothing about disabled links
	// leaks outward. Store failures also fail open to Pass.
	DecisionPass DecisionKind = "pass"
	// DecisionRedirect carries the final redirect response.
	DecisionRedirect DecisionKind = "redirect"
	// DecisionPasswordRequired asks the visitor for the link password.
	DecisionPasswordRequired DecisionKind = "password_required"
	// DecisionPasswordRejected re-prompts after a wrong password.
	DecisionPasswordRejected DecisionKind = "password_rejected"
)

// Decision is the resolver's answer for one request.
type Decision struct {
	Kind     DecisionKind
	Location string
	Status   int
	RelAttrs []string
	Slug     string
}

// RedirectStore is the single store read on the hot path.
type RedirectStore interface {
	GetForRedirect(ctx context.Context, slug string, caseSensitive bool) (*models.RedirectRecord, error)
}

// VisitDispatcher hands a visit off for asynchronous recording.
type VisitDispatcher interface {
	Dispatch(rec *models.RedirectRecord, snap visit.RequestSnapshot)
}

// Options configures the resolver from host settings.
type Options struct {
	CaseSensitiveSlugs bool
	// UnlockTTL bounds how long a password unlock lives. Zero means the
	// unlock lasts as long as the session.
	UnlockTTL time.Duration
}

// Resolver is the redirect decision state machine.
type Resolver struct {
	store      RedirectStore
	unlocks    session.UnlockStore
	dispatcher VisitDispatcher
	opts       Options
	logger     *slog.Logger
}

func New(store RedirectStore, unlocks session.UnlockStore, dispatcher VisitDispatcher, opts Options, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		unlocks:    unlocks,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
	}
}

// Resolve runs the state machine for a GET of the given slug.
func (r *Resolver) Resolve(ctx context.Context, rawSlug, sessionID string, snap visit.RequestSnapshot) Decision {
	rec, ok := r.lookup(ctx, rawSlug)
	if !ok {
		return Decision{Kind: DecisionPass}
	}

	if rec.PasswordHash != "" {
		unlocked, err := r.unlocks.Unlocked(ctx, sessionID, rec.ID)
		if err != nil {
			r.logger.Warn("unlock store check failed", slog.String("slug", rec.Slug), slog.Any("err", err))
		}
		if !unlocked {
			return Decision{Kind: DecisionPasswordRequired, Slug: rec.Slug}
		}
	}

	return r.redirect(rec, snap)
}

// SubmitPassword handles a password form submission for the given slug.
func (r *Resolver) SubmitPassword(ctx context.Context, rawSlug, sessionID, password string, snap visit.RequestSnapshot) Decision {
	rec, ok := r.lookup(ctx, rawSlug)
	if !ok {
		return Decision{Kind: DecisionPass}
	}

	if rec.PasswordHash == "" {
		// Link lost its password since the form rendered; just redirect.
		return r.redirect(rec, snap)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return Decision{Kind: DecisionPasswordRejected, Slug: rec.Slug}
	}

	if err := r.unlocks.Unlock(ctx, sessionID, rec.ID, r.opts.UnlockTTL); err != nil {
		// The redirect still happens; the visitor will just be asked again
		// next time.
		r.logger.Warn("failed to persist unlock", slog.String("slug", rec.Slug), slog.Any("err", err))
	}

	return r.redirect(rec, snap)
}

// lookup fetches the redirect record and applies the existence checks that
// collapse into Pass: invalid slug, miss, inactive, expired, store failure.
func (r *Resolver) lookup(ctx context.Context, rawSlug string) (*models.RedirectRecord, bool) {
	if !slug.IsValid(rawSlug) {
		return nil, false
	}

	rec, err := r.store.GetForRedirect(ctx, rawSlug, r.opts.CaseSensitiveSlugs)
	if err != nil {
		if !errors.Is(err, database.ErrLinkNotFound) {
			r.logger.Error("redirect lookup failed", slog.String("slug", rawSlug), slog.Any("err", err))
		}
		return nil, false
	}

	if !rec.IsActive || rec.Expired(time.Now()) {
		return nil, false
	}

	return rec, true
}

// redirect builds the terminal decision and fires visit recording without
// waiting for it.
func (r *Resolver) redirect(rec *models.RedirectRecord, snap visit.RequestSnapshot) Decision {
	location := rec.Destination
	if rec.ForwardQueryParams {
		location = appendQuery(location, snap.QueryString)
	}

	var rel []string
	if rec.Nofollow {
		rel = append(rel, "nofollow")
	}
	if rec.Sponsored {
		rel = append(rel, "sponsored")
	}

	if r.dispatcher != nil {
		r.dispatcher.Dispatch(rec, snap)
	}

	return Decision{
		Kind:     DecisionRedirect,
		Location: location,
		Status:   rec.RedirectKind.Status(),
		RelAttrs: rel,
		Slug:     rec.Slug,
	}
}

// appendQuery joins the inbound query string onto the destination, using
// '&' when the destination already carries a query.
func appendQuery(destination, query string) string {
	if query == "" {
		return destination
	}

	sep := "?"
	if strings.Contains(destination, "?") {
		sep = "&"
	}

	return destination + sep + query
}
