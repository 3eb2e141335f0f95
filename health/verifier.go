package health

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Token is the literal the liveness endpoint must return in its body.
const Token = "healthy"

// Config holds the verifier settings.
type Config struct {
	// Attempts is the total number of polls before giving up.
	Attempts int

	// Interval is the fixed delay between polls.
	Interval time.Duration

	// WarmUp is an optional delay before the first poll, giving a freshly
	// started service time to bind its listener.
	WarmUp time.Duration

	// RequestTimeout bounds a single poll.
	RequestTimeout time.Duration

	// InsecureTLS skips certificate verification. Needed for the post-
	// bootstrap check while the proxy may still serve the self-signed
	// placeholder, which is a legal end state.
	InsecureTLS bool
}

// Verifier polls an HTTP liveness endpoint with bounded retries. A failed
// check is reported as false and logged, never as an error: health is
// observed, the caller decides whether it gates anything.
type Verifier struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

// NewVerifier creates a health verifier. Zero config values get defaults of
// 2 attempts, 15s interval and a 10s per-request timeout.
func NewVerifier(cfg Config, log *slog.Logger) *Verifier {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	transport := &http.Transport{}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		log:    log,
	}
}

// Check polls url until the response body contains the liveness token or the
// attempts are exhausted.
func (v *Verifier) Check(ctx context.Context, url string) bool {
	if v.cfg.WarmUp > 0 {
		select {
		case <-time.After(v.cfg.WarmUp):
		case <-ctx.Done():
			return false
		}
	}

	backoff := retry.WithMaxRetries(uint64(v.cfg.Attempts-1), retry.NewConstant(v.cfg.Interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := v.poll(ctx, url); err != nil {
			v.log.Warn("Health check attempt failed", "url", url, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		v.log.Warn("Health check failed", "url", url, "attempts", v.cfg.Attempts)
		return false
	}

	v.log.Info("Health check passed", "url", url)
	return true
}

func (v *Verifier) poll(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	if !containsToken(string(body)) {
		return &tokenError{body: string(body)}
	}
	return nil
}

// containsToken reports whether body carries the liveness token as a whole
// word. A plain substring match would accept "unhealthy".
func containsToken(body string) bool {
	for i := 0; ; i++ {
		j := strings.Index(body[i:], Token)
		if j < 0 {
			return false
		}
		i += j

		before := i == 0 || !wordByte(body[i-1])
		end := i + len(Token)
		after := end == len(body) || !wordByte(body[end])
		if before && after {
			return true
		}
	}
}

func wordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}

type tokenError struct{ body string }

func (e *tokenError) Error() string {
	return "liveness token missing from response: " + e.body
}
