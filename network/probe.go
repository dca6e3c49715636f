package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/getlantern/netwatch/source"
	"github.com/getlantern/netwatch/traces"
)

// Probe defaults.
const (
	DefaultProbeURL      = "http://clients3.google.com/generate_204"
	DefaultProbeHost     = "www.google.com"
	DefaultProbePort     = 80
	DefaultProbeInterval = 2 * time.Second
	DefaultProbeTimeout  = 2 * time.Second
)

// Strategy decides whether the Internet is reachable right now.
type Strategy interface {
	Reachable(ctx context.Context) bool
}

// SocketStrategy reports the Internet as reachable when a TCP connection to Host:Port succeeds.
type SocketStrategy struct {
	Host    string
	Port    int
	Timeout time.Duration
	Logger  *slog.Logger
}

func (s *SocketStrategy) Reachable(ctx context.Context) bool {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	d := net.Dialer{Timeout: s.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() == nil {
			logger(s.Logger).Debug("Could not establish connection with socket strategy", "addr", addr, "error", err)
		}
		return false
	}
	conn.Close()
	return true
}

// WalledGardenStrategy reports the Internet as reachable when a GET of URL returns
// ExpectedStatus. Captive portals answer such requests with a redirect or a login page, so a
// plain successful connection is not enough.
type WalledGardenStrategy struct {
	url            string
	expectedStatus int
	client         *retryablehttp.Client
	logger         *slog.Logger
}

// WalledGardenOptions configures a WalledGardenStrategy.
type WalledGardenOptions struct {
	// URL defaults to DefaultProbeURL. A URL without scheme is treated as https.
	URL string
	// Port overrides the URL's port when non-zero.
	Port int
	// ExpectedStatus defaults to 204.
	ExpectedStatus int
	Timeout        time.Duration
	// Retries is how many times a failed request is retried within one probe.
	Retries int
	Logger  *slog.Logger
}

// NewWalledGardenStrategy validates opts and builds the strategy.
func NewWalledGardenStrategy(opts WalledGardenOptions) (*WalledGardenStrategy, error) {
	target, err := adjustURL(opts.URL, opts.Port)
	if err != nil {
		return nil, err
	}
	if opts.ExpectedStatus == 0 {
		opts.ExpectedStatus = http.StatusNoContent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProbeTimeout
	}
	if opts.Retries < 0 {
		return nil, errors.New("retries must not be negative")
	}
	lg := logger(opts.Logger)

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = opts.Timeout
	client.Logger = lg
	client.HTTPClient = &http.Client{
		Timeout:   opts.Timeout,
		Transport: traces.NewRoundTripper(nil, "walled-garden"),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	// a redirect or error page still means "not connected", never retry on it.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return false, nil
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &WalledGardenStrategy{
		url:            target,
		expectedStatus: opts.ExpectedStatus,
		client:         client,
		logger:         lg,
	}, nil
}

func (w *WalledGardenStrategy) Reachable(ctx context.Context) bool {
	ctx, span := traces.Start(ctx, "walled_garden_probe")
	defer span.End()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		traces.RecordError(ctx, err)
		return false
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			traces.RecordError(ctx, err)
			w.logger.Debug("Could not establish connection with walled garden strategy", "url", w.url, "error", err)
		}
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == w.expectedStatus
}

func adjustURL(raw string, port int) (string, error) {
	if raw == "" {
		raw = DefaultProbeURL
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid probe url %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid probe url %q: missing host", raw)
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("invalid probe port %d", port)
	}
	if port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u.String(), nil
}

// Internet returns a source that probes reachability after initialDelay and then every
// interval, emitting only when the answer changes.
func Internet(s Strategy, initialDelay, interval time.Duration) source.Source[bool] {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return source.Distinct(source.Poll(initialDelay, interval, s.Reachable))
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
