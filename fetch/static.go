package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// maxRedirects bounds redirect chasing per attempt.
	maxRedirects = 10

	// maxBody caps the response body read to prevent unbounded memory use.
	maxBody = 10 << 20
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Spec generation failing leaves the zero spec; the dialer falls
		// back to the stock Chrome hello in that case.
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// StaticFetcher performs a single lightweight network retrieval of a URL
// without executing any scripts. It uses a Chrome TLS fingerprint so that
// fingerprint-based bot walls see an ordinary browser handshake.
//
// The fetcher does not retry: retry policy lives in the arbiter, and every
// failure is returned as data on the FetchAttempt.
type StaticFetcher struct {
	client *http.Client
}

// NewStaticFetcher creates a StaticFetcher with the Chrome-fingerprint
// transport.
func NewStaticFetcher() *StaticFetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			if len(chromeH1Spec.Extensions) == 0 {
				tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloChrome_Auto)
				if err := tlsConn.HandshakeContext(ctx); err != nil {
					conn.Close()
					return nil, err
				}
				return tlsConn, nil
			}
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("static: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return NewStaticFetcherWithClient(&http.Client{Transport: transport})
}

// NewStaticFetcherWithClient creates a StaticFetcher over a caller-supplied
// http.Client. The redirect cap is installed on the client.
func NewStaticFetcherWithClient(client *http.Client) *StaticFetcher {
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return nil
	}
	return &StaticFetcher{client: client}
}

// Fetch issues one GET with the given timeout and returns a FetchAttempt.
// Timeouts, connection errors and non-success statuses are recorded as
// Succeeded=false with a FailureReason, never returned as Go errors, so the
// arbiter can reason about all outcomes uniformly.
func (f *StaticFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) models.FetchAttempt {
	start := time.Now()
	attempt := models.FetchAttempt{Method: models.MethodStatic}

	fail := func(reason string) models.FetchAttempt {
		attempt.Elapsed = time.Since(start)
		attempt.FailureReason = reason
		return attempt
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Sprintf("build request: %v", err))
	}

	// Simulate browser-like headers.
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail("timeout")
		}
		return fail(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fail(fmt.Sprintf("read body: %v", err))
	}

	attempt.ContentType = resp.Header.Get("Content-Type")
	attempt.Elapsed = time.Since(start)

	if resp.StatusCode >= 400 {
		attempt.FailureReason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return attempt
	}

	attempt.Content = string(body)
	attempt.Succeeded = true
	return attempt
}
