package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"teamreg/pkg/requestcontext"
)

// Resolver determines the client IP. Forwarding headers are honoured only
// when the direct peer is a trusted proxy.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver parses trusted proxies given as single IPs or CIDR prefixes.
func NewResolver(trustedProxies []string) (*Resolver, error) {
	r := &Resolver{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := ParseProxy(raw)
		if err != nil {
			return nil, err
		}
		r.trusted = append(r.trusted, prefix)
	}
	return r, nil
}

// ParseProxy parses one trusted proxy entry ("10.0.0.1" or "10.0.0.0/8").
func ParseProxy(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context. Apply it early in the chain.
func (res *Resolver) ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), res.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the peer address unless the peer is a trusted proxy. Behind
// trusted proxies it walks X-Forwarded-For from the right and returns the
// first hop that is not itself trusted.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := remoteIP(r.RemoteAddr)
	if !res.isTrusted(peer) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	if len(hops) == 0 {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if addr, err := netip.ParseAddr(xri); err == nil {
				return addr.Unmap().String()
			}
		}
		return peer
	}

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			// Garbage in the chain was written by someone we do not trust.
			return client
		}
		client = addr.Unmap().String()
		if !res.isTrusted(client) {
			return client
		}
	}
	return client
}

func (res *Resolver) isTrusted(ip string) bool {
	if len(res.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

var direct = &Resolver{}

// ClientMetadata is the middleware for services exposed without a proxy:
// forwarding headers are ignored.
func ClientMetadata(next http.Handler) http.Handler {
	return direct.ClientMetadata(next)
}

// ClientIPFromRequest returns the peer address, ignoring forwarding headers.
func ClientIPFromRequest(r *http.Request) string {
	return direct.ClientIP(r)
}

// remoteIP strips the port from "ip:port" or "[::1]:port".
func remoteIP(addr string) string {
	if addr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = strings.Trim(addr, "[]")
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return ip.Unmap().String()
	}
	return host
}
