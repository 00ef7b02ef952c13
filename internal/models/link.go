package models

import "time"

// RedirectKind selects the HTTP status family used for a redirect response.
type RedirectKind string

const (
	// RedirectPermanent issues a 301 Moved Permanently.
	RedirectPermanent RedirectKind = "permanent"
	// RedirectTemporary issues a 302 Found.
	RedirectTemporary RedirectKind = "temporary"
	// RedirectTemporaryStrict issues a 307 Temporary Redirect, which
	// preserves the request method.
	RedirectTemporaryStrict RedirectKind = "temporary_strict"
)

// ParseRedirectKind normalizes s into a known RedirectKind. Unknown values
// fall back to RedirectPermanent so that a corrupted stored value can never
// break the redirect path.
func ParseRedirectKind(s string) RedirectKind {
	switch RedirectKind(s) {
	case RedirectTemporary:
		return RedirectTemporary
	case RedirectTemporaryStrict:
		return RedirectTemporaryStrict
	default:
		return RedirectPermanent
	}
}

// Status returns the HTTP status code for the redirect kind.
func (k RedirectKind) Status() int {
	switch k {
	case RedirectTemporary:
		return 302
	case RedirectTemporaryStrict:
		return 307
	default:
		return 301
	}
}

// Link represents a short link and its associated metadata.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// Slug is the short token appended to the base domain to form the
	// visible short URL. Globally unique; the case rule is configurable.
	Slug string
	// Destination is the full-length URL the slug redirects to.
	Destination string
	// Title and Description are optional display metadata.
	Title       string
	Description string
	// CreatedBy records who created the link.
	CreatedBy string
	// ExpiresAt, when set, disables redirects past the given instant.
	ExpiresAt *time.Time
	// PasswordHash, when non-empty, gates the redirect behind a password.
	PasswordHash string
	// RedirectKind selects the HTTP status used for the redirect.
	RedirectKind RedirectKind
	// Nofollow and Sponsored attach the corresponding rel attributes.
	Nofollow  bool
	Sponsored bool
	// ForwardQueryParams appends the inbound query string to Destination.
	ForwardQueryParams bool
	// TrackVisits enables visit recording for this link.
	TrackVisits bool
	// IsActive disables the link entirely when false.
	IsActive bool
	// VisitCount tracks how many times the link has been visited. It only
	// ever increases.
	VisitCount int64
	// GroupID is the optional group the link belongs to.
	GroupID *int64
	// CreatedAt and UpdatedAt are record timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the link is past its expiry at the given instant.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// RedirectRecord is the narrow projection of a Link loaded on the redirect
// hot path. It carries only the fields needed to decide the outcome.
type RedirectRecord struct {
	ID                 int64
	Slug               string
	Destination        string
	RedirectKind       RedirectKind
	PasswordHash       string
	Nofollow           bool
	Sponsored          bool
	ForwardQueryParams bool
	TrackVisits        bool
	IsActive           bool
	ExpiresAt          *time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *RedirectRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
