package e2e

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/web/auth"
)

// Options configure a Driver.
type Options struct {
	// BaseURL is the shell origin, e.g. http://localhost:8080.
	BaseURL string
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string
	BrowserBin string
	Headless   bool
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Driver owns a browser connection.
type Driver struct {
	opts     Options
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *zap.Logger
}

// Launch connects to opts.ControlURL or launches a browser.
func Launch(ctx context.Context, opts Options) (*Driver, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	d := &Driver{opts: opts, logger: opts.Logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(opts.Headless)
		if opts.BrowserBin != "" {
			l = l.Bin(opts.BrowserBin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		d.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	d.browser = browser
	d.logger.Debug("browser connected", zap.String("control_url", controlURL))
	return d, nil
}

// Open creates a page at path, relative to BaseURL.
func (d *Driver) Open(ctx context.Context, path string) (*rod.Page, error) {
	page, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: d.opts.BaseURL + path})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return page, nil
}

// Result is the outcome of SelectLocation.
type Result struct {
	Location string
	URL      string
	Token    string
}

// SelectLocation opens path, which redirects to the location picker for a
// fresh session, picks the first location and waits for the shell to land
// back on a page.
func (d *Driver) SelectLocation(ctx context.Context, path string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	page, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	sel := WatchLocation(ctx, page, d.opts.Timeout, d.logger)
	if err := page.Context(ctx).Navigate(d.opts.BaseURL + path); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	select {
	case <-sel.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := sel.Err(); err != nil {
		return nil, err
	}

	// The confirm click submits the form; wait until the picker is gone.
	for {
		info, err := page.Context(ctx).Info()
		if err != nil {
			return nil, fmt.Errorf("page info: %w", err)
		}
		if !IsLocationURL(info.URL) {
			if err := page.Context(ctx).WaitLoad(); err != nil {
				return nil, fmt.Errorf("wait load: %w", err)
			}
			res := &Result{Location: sel.Selected(), URL: info.URL}
			res.Token = d.sessionToken(page)
			return res, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (d *Driver) sessionToken(page *rod.Page) string {
	cookies, err := page.Cookies([]string{d.opts.BaseURL})
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == auth.CookieName {
			return c.Value
		}
	}
	return ""
}

// Close disconnects and stops a launched browser.
func (d *Driver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	d.cleanup()
	return err
}

func (d *Driver) cleanup() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
}
