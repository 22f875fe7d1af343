package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// FetcherConfig controls retries, redirects and pacing of a Session
type FetcherConfig struct {
	Retries       int
	RetryDelay    time.Duration
	MaxRedirects  int
	Timeout       time.Duration
	RatePerSecond float64 // <= 0 disables pacing
	Headers       map[string]string
}

// DefaultFetcherConfig returns 3 attempts 100ms apart, a 10-hop redirect cap and browser-like headers
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Retries:       3,
		RetryDelay:    100 * time.Millisecond,
		MaxRedirects:  10,
		Timeout:       30 * time.Second,
		RatePerSecond: 5,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language": "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		},
	}
}

// Response is the final, non-redirect answer of a fetch
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Session fetches URLs with a private cookie jar; create one per source per run
type Session struct {
	cfg     FetcherConfig
	client  *resty.Client
	jar     http.CookieJar
	limiter *rate.Limiter
}

// NewSession builds a session whose client never follows redirects on its own
func NewSession(cfg FetcherConfig) (*Session, error) {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = 0
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetCookieJar(jar).
		SetHeaders(cfg.Headers).
		SetLogger(logrus.StandardLogger()).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			// hand every 3xx back so cookies are captured hop by hop
			return http.ErrUseLastResponse
		}))

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Session{
		cfg:     cfg,
		client:  client,
		jar:     jar,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Fetch GETs rawURL, following redirects manually, retrying transient failures
func (s *Session) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		resp, err := s.follow(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var loop *RedirectLoopError
		if errors.As(err, &loop) || ctx.Err() != nil {
			return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: err}
		}

		logrus.WithFields(logrus.Fields{
			"url":     rawURL,
			"attempt": attempt,
		}).Debugf("Fetch attempt failed: %v", err)

		if attempt < s.cfg.Retries {
			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(s.cfg.RetryDelay):
			}
		}
	}

	return nil, &FetchError{URL: rawURL, Attempts: s.cfg.Retries, Err: lastErr}
}

func (s *Session) follow(ctx context.Context, rawURL string) (*Response, error) {
	current := rawURL

	for hops := 0; ; hops++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := s.client.R().SetContext(ctx).Get(current)
		if err != nil {
			return nil, err
		}

		status := resp.StatusCode()
		if isRedirect(status) {
			if hops >= s.cfg.MaxRedirects {
				return nil, &RedirectLoopError{URL: rawURL, Hops: hops}
			}
			location := resp.Header().Get("Location")
			if location == "" {
				return nil, fmt.Errorf("redirect %d from %s has no Location header", status, current)
			}
			next, err := resolve(current, location)
			if err != nil {
				return nil, err
			}
			if err := s.carryCookies(current, next); err != nil {
				return nil, err
			}
			logrus.Debugf("Following redirect %d: %s -> %s", status, current, next)
			current = next
			continue
		}

		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("unexpected status %d from %s", status, current)
		}

		return &Response{URL: current, StatusCode: status, Body: resp.Body()}, nil
	}
}

// isRedirect treats every 3xx as a hop; one without a Location fails the attempt
func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// carryCookies replays the cookies captured for from onto a redirect target on another host
func (s *Session) carryCookies(from, to string) error {
	src, err := url.Parse(from)
	if err != nil {
		return err
	}
	dst, err := url.Parse(to)
	if err != nil {
		return err
	}
	if src.Host == dst.Host {
		return nil
	}
	if cookies := s.jar.Cookies(src); len(cookies) > 0 {
		s.jar.SetCookies(dst, cookies)
	}
	return nil
}

func resolve(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", base, err)
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location %q: %w", location, err)
	}
	return b.ResolveReference(l).String(), nil
}
