package browser

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// Launch starts a headless browser process and builds a session pool on top
// of it. Closing the pool kills the browser.
func Launch(cfg config.BrowserConfig) (*Pool, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// Flags that suppress the obvious automation tells and the background
	// throttling that stalls rendering in headless mode.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewFetchError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	pool := NewPool(cfg.PoolCapacity, cfg.AcquireTimeout, func() (*rod.Page, error) {
		return b.Page(proto.TargetCreateTarget{})
	})
	pool.onClose = func() {
		if err := b.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}
	pool.Warm()
	slog.Info("session pool ready", "capacity", cfg.PoolCapacity)

	return pool, nil
}
