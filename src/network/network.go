package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"
)

const retryBaseDelay = 250 * time.Millisecond

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger

	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	c := nm.createClient()

	nm.mu.Lock()
	nm.client = c
	nm.mu.Unlock()
}

func (nm *AsyncNetworkManager) currentClient() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.client
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation. Client errors
// other than 403/429 are returned without retrying.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	attempt := 0
	return helpers.RetryWithBackoff(ctx, nm.Logger, "GET "+reqURL.Host+reqURL.Path, nm.Config.Network.MaxRetries, retryBaseDelay,
		func(ctx context.Context) ([]byte, error) {
			if attempt > 0 {
				nm.rotateProxy()
			}
			attempt++
			return nm.do(ctx, finalURL)
		})
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, helpers.Permanent(err)
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := nm.currentClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, helpers.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		nm.Logger.Info("Request blocked (%d). Rotating proxy.", resp.StatusCode)
		return nil, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, helpers.Permanent(fmt.Errorf("bad status: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}
