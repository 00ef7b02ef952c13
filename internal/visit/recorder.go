// Package visit captures analytics for successful redirects: privacy
// filtering, user-agent and geo enrichment, and the durable write of a
// visit record with its counter increment.
package visit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
	"github.com/vadimbarashkov/shortlink-core/internal/useragent"
)

// RecordStatus is the outcome of a recording attempt.
type RecordStatus string

const (
	// StatusRecorded means the visit row was written and the counter bumped.
	StatusRecorded RecordStatus = "recorded"
	// StatusSkipped means a privacy or configuration rule filtered the visit.
	StatusSkipped RecordStatus = "skipped"
	// StatusFailed means persistence failed; the counter was not touched.
	StatusFailed RecordStatus = "failed"
)

// RecordResult reports what happened to one visit.
type RecordResult struct {
	Status RecordStatus
	Reason string
}

// RequestSnapshot is a serializable copy of the request context captured at
// dispatch time, so recording never touches the live *http.Request.
type RequestSnapshot struct {
	RemoteAddr  string
	UserAgent   string
	Referrer    string
	QueryString string
	Headers     map[string]string
	ObservedAt  time.Time
}

// forwardedHeader is the RFC 7239 header; its for= directives need their
// own parsing.
const forwardedHeader = "Forwarded"

// ipHeaders lists proxy headers carrying the visitor IP, most trusted first.
var ipHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	forwardedHeader,
}

// Snapshot captures the fields of r that recording needs.
func Snapshot(r *http.Request) RequestSnapshot {
	headers := make(map[string]string, len(ipHeaders))
	for _, h := range ipHeaders {
		if v := r.Header.Get(h); v != "" {
			headers[h] = v
		}
	}

	return RequestSnapshot{
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		Referrer:    r.Referer(),
		QueryString: r.URL.RawQuery,
		Headers:     headers,
		ObservedAt:  time.Now(),
	}
}

// GeoResolver resolves an IP to a best-effort location.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) models.GeoInfo
}

// VisitStore persists visit records together with the counter increment.
type VisitStore interface {
	RecordVisit(ctx context.Context, visit *models.Visit) (int64, error)
}

// Options carries the privacy and tracking settings the recorder applies.
type Options struct {
	TrackingEnabled bool
	FilterBots      bool
	AnonymizeIPs    bool
	// ExcludeIPs holds single addresses or CIDR prefixes that never record.
	ExcludeIPs []string
}

// Recorder runs the visit pipeline for one redirect.
type Recorder struct {
	store    VisitStore
	geo      GeoResolver
	opts     Options
	excluded []netip.Prefix
	logger   *slog.Logger
}

func NewRecorder(store VisitStore, geo GeoResolver, opts Options, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		geo:      geo,
		opts:     opts,
		excluded: parseExclusions(opts.ExcludeIPs, logger),
		logger:   logger,
	}
}

func parseExclusions(entries []string, logger *slog.Logger) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p)
			continue
		}

		if addr, err := netip.ParseAddr(entry); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		logger.Warn("ignoring invalid ip exclusion entry", slog.String("entry", entry))
	}

	return prefixes
}

// Record runs the pipeline for one visit. Each step may exit early with
// Skipped; only a persistence failure produces Failed. The visit counter is
// only ever incremented together with the successfully written row.
func (r *Recorder) Record(ctx context.Context, rec *models.RedirectRecord, snap RequestSnapshot) RecordResult {
	const op = "visit.Recorder.Record"

	if !r.opts.TrackingEnabled {
		return RecordResult{Status: StatusSkipped, Reason: "tracking disabled"}
	}
	if !rec.TrackVisits {
		return RecordResult{Status: StatusSkipped, Reason: "tracking disabled for link"}
	}

	visitorIP := extractVisitorIP(snap)

	ua := useragent.Classify(snap.UserAgent)
	if ua.IsBot && r.opts.FilterBots {
		return RecordResult{Status: StatusSkipped, Reason: "bot filtered"}
	}

	if r.isExcluded(visitorIP) {
		return RecordResult{Status: StatusSkipped, Reason: "ip excluded"}
	}

	// Anonymization happens before the geo lookup, trading geo precision
	// for privacy.
	if r.opts.AnonymizeIPs {
		visitorIP = AnonymizeIP(visitorIP)
	}

	visit := &models.Visit{
		LinkID:         rec.ID,
		VisitorIP:      visitorIP.String(),
		UserAgent:      snap.UserAgent,
		Referrer:       snap.Referrer,
		VisitedAt:      snap.ObservedAt,
		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceType:     ua.DeviceType,
		Geo:            r.geo.Resolve(ctx, visitorIP.String()),
	}

	if _, err := r.store.RecordVisit(ctx, visit); err != nil {
		r.logger.Warn("failed to persist visit",
			slog.Int64("link_id", rec.ID),
			slog.Any("err", fmt.Errorf("%s: %w", op, err)))
		return RecordResult{Status: StatusFailed, Reason: "store failure"}
	}

	return RecordResult{Status: StatusRecorded}
}

func (r *Recorder) isExcluded(ip netip.Addr) bool {
	for _, p := range r.excluded {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// extractVisitorIP walks the proxy headers in priority order, taking the
// first syntactically valid address, then falls back to the connection
// address and finally loopback.
func extractVisitorIP(snap RequestSnapshot) netip.Addr {
	for _, h := range ipHeaders {
		v, ok := snap.Headers[h]
		if !ok {
			continue
		}

		// X-Forwarded-For may hold a chain; the client is the first hop.
		candidates := strings.Split(v, ",")
		if h == forwardedHeader {
			candidates = forwardedFor(v)
		}

		for _, candidate := range candidates {
			if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
				return addr.Unmap()
			}
		}
	}

	host := snap.RemoteAddr
	if h, _, err := net.SplitHostPort(snap.RemoteAddr); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap()
	}

	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

// forwardedFor extracts the for= node identifiers from an RFC 7239
// Forwarded header, in chain order. Quotes, brackets, and ports are
// stripped; obfuscated nodes like "_hidden" fall out later when they fail
// to parse as addresses.
func forwardedFor(v string) []string {
	var nodes []string

	for _, elem := range strings.Split(v, ",") {
		for _, pair := range strings.Split(elem, ";") {
			key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "for") {
				continue
			}

			val = strings.Trim(strings.TrimSpace(val), `"`)
			if host, _, err := net.SplitHostPort(val); err == nil {
				val = host
			}
			nodes = append(nodes, strings.Trim(val, "[]"))
		}
	}

	return nodes
}

// AnonymizeIP truncates an address for storage: the last octet of an IPv4
// address is zeroed, and only the first 64 bits of an IPv6 address are kept.
func AnonymizeIP(addr netip.Addr) netip.Addr {
	if addr.Is4() {
		b := addr.As4()
		b[3] = 0
		return netip.AddrFrom4(b)
	}

	b := addr.As16()
	for i := 8; i < 16; i++ {
		b[i] = 0
	}
	return netip.AddrFrom16(b)
}
