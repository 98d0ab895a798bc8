package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamreg/pkg/requestcontext"
)

func TestClientIPFromRequestIgnoresForwardingHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"spoofed forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "203.0.113.7:1", "203.0.113.7"},
		{"spoofed real ip", map[string]string{"X-Real-IP": "10.1.1.1"}, "203.0.113.7:1", "203.0.113.7"},
		{"remote ipv4", nil, "192.168.1.5:5555", "192.168.1.5"},
		{"remote ipv6", nil, "[::1]:8080", "::1"},
		{"ipv4-mapped ipv6", nil, "[::ffff:192.0.2.4]:80", "192.0.2.4"},
		{"empty remote", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r))
		})
	}
}

func TestResolverBehindTrustedProxies(t *testing.T) {
	res, err := NewResolver([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    []string
		realIP string
		want   string
	}{
		{"untrusted peer ignores headers", "203.0.113.7:1", []string{"1.2.3.4"}, "", "203.0.113.7"},
		{"single proxy hop", "10.0.0.5:1", []string{"198.51.100.1"}, "", "198.51.100.1"},
		{"client-supplied prefix is skipped", "10.0.0.5:1", []string{"1.1.1.1, 198.51.100.1"}, "", "198.51.100.1"},
		{"chain of trusted proxies", "192.0.2.10:1", []string{"198.51.100.2, 10.1.1.1"}, "", "198.51.100.2"},
		{"multiple header lines", "10.0.0.5:1", []string{"1.1.1.1", "198.51.100.3"}, "", "198.51.100.3"},
		{"garbage hop stops the walk", "10.0.0.5:1", []string{"198.51.100.1, not-an-ip"}, "", "10.0.0.5"},
		{"all hops trusted", "10.0.0.5:1", []string{"10.2.2.2, 10.3.3.3"}, "", "10.2.2.2"},
		{"real ip from trusted proxy", "10.0.0.5:1", nil, "198.51.100.9", "198.51.100.9"},
		{"no headers from trusted proxy", "10.0.0.5:1", nil, "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, res.ClientIP(r))
		})
	}
}

func TestNewResolverRejectsInvalidProxy(t *testing.T) {
	_, err := NewResolver([]string{"10.0.0.0/33"})
	assert.Error(t, err)

	_, err = NewResolver([]string{"proxy.internal"})
	assert.Error(t, err)

	res, err := NewResolver([]string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, res.trusted)
}

func TestClientMetadata(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.2.3.4:999"
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("X-Forwarded-For", "6.6.6.6")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "10.2.3.4", gotIP)
	assert.Equal(t, "curl/8.0", gotUA)
}
