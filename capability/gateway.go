package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultMaxBodySize  = 1 << 20 // 1MB
	DefaultFetchTimeout = 30 * time.Second
)

// DefaultAllowedDomains is the stock egress allowlist. A hostname passes if it
// equals an entry or is a subdomain of one.
var DefaultAllowedDomains = []string{
	"pokeapi.co", // testing until Tana infra is ready
	"tana.dev",
	"api.tana.dev",
	"blockchain.tana.dev",
	"localhost", // local development
	"127.0.0.1",
}

type GatewayConfig struct {
	AllowedDomains []string
	MaxBodySize    int64
	Timeout        time.Duration
}

// Gateway is the only path by which guest code reaches the network. Every
// fetch is validated against the domain allowlist before a connection is
// attempted.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if len(cfg.AllowedDomains) == 0 {
		cfg.AllowedDomains = DefaultAllowedDomains
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultFetchTimeout
	}

	return &Gateway{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Fetch performs a GET against an allowlisted URL and returns the response
// body as text.
func (g *Gateway) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &ValidationError{fmt.Sprintf("Invalid URL: %v", err)}
	}

	host := parsed.Hostname()
	if host == "" {
		return "", &ValidationError{"Invalid hostname"}
	}

	if !g.allowed(host) {
		return "", &BlockedDomainError{Host: host, Allowed: g.cfg.AllowedDomains}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &ValidationError{fmt.Sprintf("Invalid URL: %v", err)}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &TransportError{fmt.Sprintf("fetch failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.cfg.MaxBodySize))
	if err != nil {
		return "", &TransportError{fmt.Sprintf("failed to read response body: %v", err)}
	}

	return string(body), nil
}

func (g *Gateway) allowed(host string) bool {
	for _, domain := range g.cfg.AllowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
