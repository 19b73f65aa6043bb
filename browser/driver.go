package browser

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// rodDriver drives a rod page through the fetch protocol.
type rodDriver struct {
	page    *rod.Page
	stealth bool
}

func (r *rodDriver) Navigate(ctx context.Context, target string) error {
	p := r.page.Context(ctx)

	// Stealth JS only takes effect for navigations after it is installed.
	if r.stealth {
		if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// A Google search Referer makes some paywalled sites serve full content.
	if u, err := url.Parse(target); err == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(p)
	}

	if err := p.Navigate(target); err != nil {
		return err
	}

	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

func (r *rodDriver) Extract(ctx context.Context) (string, error) {
	return r.page.Context(ctx).HTML()
}

func (r *rodDriver) Scroll(ctx context.Context) error {
	_, err := r.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
