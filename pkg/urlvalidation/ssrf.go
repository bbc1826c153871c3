// Package urlvalidation guards outbound hook and webhook calls against
// server-side request forgery.
package urlvalidation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrBlockedURL is returned for URLs the bot must not call.
var ErrBlockedURL = errors.New("blocked URL")

// LookupFunc resolves a hostname to addresses.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// Option configures URL validation behavior.
type Option func(*validationConfig)

type validationConfig struct {
	allowPrivate bool
	lookup       LookupFunc
}

// AllowPrivateIPs disables the private IP check. Use only in tests and
// local development.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) {
		c.allowPrivate = true
	}
}

// WithLookup replaces DNS resolution.
func WithLookup(fn LookupFunc) Option {
	return func(c *validationConfig) {
		c.lookup = fn
	}
}

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// blockedPrefixes lists private, loopback, link-local and reserved ranges.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// ValidateURL checks that rawURL uses http(s) and that its host does not
// resolve to a private or reserved address.
func ValidateURL(ctx context.Context, rawURL string, opts ...Option) error {
	cfg := validationConfig{lookup: defaultLookup}
	for _, opt := range opts {
		opt(&cfg)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" {
		return fmt.Errorf("%w: scheme %q not allowed; use http or https", ErrBlockedURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: URL must have a hostname", ErrBlockedURL)
	}
	if cfg.allowPrivate {
		return nil
	}

	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{addr}
	} else {
		addrs, err = cfg.lookup(ctx, host)
		if err != nil {
			return fmt.Errorf("%w: cannot resolve hostname %q: %v", ErrBlockedURL, host, err)
		}
	}

	for _, addr := range addrs {
		if IsPrivate(addr) {
			return fmt.Errorf("%w: %s resolves to reserved address %s", ErrBlockedURL, host, addr)
		}
	}
	return nil
}

var broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// IsPrivate reports whether addr lies in a range outbound calls must avoid.
func IsPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr == broadcast {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
