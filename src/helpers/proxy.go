package helpers

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// ProxyManager rotates through configured outbound proxies and user agents.
type ProxyManager struct {
	proxies   []string
	userAgent string
	index     int
	mu        sync.Mutex
}

// -----------------------------------------------------------------------------

// NewProxyManager keeps only the proxies that parse as URLs. A non-empty
// userAgent pins the User-Agent header instead of rotating.
func NewProxyManager(proxies []string, userAgent string) *ProxyManager {
	var valid []string
	for _, p := range proxies {
		if ValidateProxy(p) {
			valid = append(valid, FormatProxy(p))
		}
	}
	return &ProxyManager{proxies: valid, userAgent: userAgent}
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetCurrentProxy() (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return "", nil
	}
	return pm.proxies[pm.index], nil
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) RotateProxy() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) <= 1 {
		return
	}
	pm.index = (pm.index + 1) % len(pm.proxies)
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) HasProxies() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies) > 0
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetUserAgent() string {
	if pm.userAgent != "" {
		return pm.userAgent
	}
	return defaultUserAgents[rand.Intn(len(defaultUserAgents))]
}

// -----------------------------------------------------------------------------

// ValidateProxy accepts host:port or a full http(s)/socks5 URL.
func ValidateProxy(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return false
	}
	u, err := url.Parse(FormatProxy(p))
	if err != nil {
		return false
	}
	return u.Host != "" && u.Port() != ""
}

// -----------------------------------------------------------------------------

// FormatProxy prefixes a bare host:port with http://.
func FormatProxy(p string) string {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "://") {
		return p
	}
	return fmt.Sprintf("http://%s", p)
}
