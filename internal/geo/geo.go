// Package geo resolves visitor IPs to coarse locations. Lookups are
// best-effort: private addresses short-circuit to an empty result and
// provider failures never propagate to the caller.
package geo

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

// Provider performs the actual location lookup for a public IP.
type Provider interface {
	Lookup(ctx context.Context, ip string) (models.GeoInfo, error)
}

// Resolver wraps a Provider with the private-range short-circuit and a
// lookup timeout.
type Resolver struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

func NewResolver(provider Provider, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Resolver{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Resolve returns the location for ip, or a zero GeoInfo when the address is
// private, unparsable, or the provider fails. It never returns an error: geo
// enrichment must not fail the visit path.
func (r *Resolver) Resolve(ctx context.Context, ip string) models.GeoInfo {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return models.GeoInfo{}
	}

	if isPrivate(addr) {
		return models.GeoInfo{}
	}

	if r.provider == nil {
		return models.GeoInfo{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	info, err := r.provider.Lookup(ctx, ip)
	if err != nil {
		r.logger.Warn("geo lookup failed", slog.String("ip", ip), slog.Any("err", err))
		return models.GeoInfo{}
	}

	return info
}

// isPrivate reports whether addr must never be sent to an external provider:
// loopback, RFC1918, link-local, and IPv6 ULA (fc00::/7) ranges.
func isPrivate(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
