package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/models"
)

// RodDriver launches one headless Chrome per session through go-rod.
type RodDriver struct {
	Headless  bool
	Bin       string
	Stealth   bool
	UserAgent string
}

func (d *RodDriver) Name() string { return "rod" }

// Launch starts a browser process and connects to it.
// Each call creates a fresh launcher since launchers can only launch once.
func (d *RodDriver) Launch(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Not bound to ctx: the process must outlive the acquiring call.
	l := launcher.New().
		Headless(d.Headless).
		NoSandbox(true).
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")
	if d.Bin != "" {
		l = l.Bin(d.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Debug().Str("control_url", u).Msg("Browser launched")
	return &rodHandle{browser: b, launcher: l, driver: d}, nil
}

type rodHandle struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	driver   *RodDriver
}

func (h *rodHandle) newPage() (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if h.driver.Stealth {
		page, err = stealth.Page(h.browser)
	} else {
		page, err = h.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, err
	}

	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1280, Height: 800})
	if h.driver.UserAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: h.driver.UserAgent})
	}
	return page, nil
}

// open creates a page, navigates and waits until the network is quiet.
// The returned page is bound to the wait timeout; raw is the unbound page
// used for closing. Callers must release the timeout with bound.CancelTimeout.
func (h *rodHandle) open(ctx context.Context, url string, wait WaitPolicy) (bound, raw *rod.Page, err error) {
	raw, err = h.newPage()
	if err != nil {
		return nil, nil, &models.FetchError{URL: url, Err: err}
	}

	bound = raw.Context(ctx).Timeout(wait.Timeout)
	waitIdle := bound.WaitRequestIdle(wait.Idle, nil, nil, nil)
	if err := bound.Navigate(url); err != nil {
		bound.CancelTimeout()
		_ = raw.Close()
		return nil, nil, &models.FetchError{URL: url, Err: err}
	}
	waitIdle()
	if err := bound.WaitLoad(); err != nil {
		bound.CancelTimeout()
		_ = raw.Close()
		return nil, nil, &models.FetchError{URL: url, Err: err}
	}
	return bound, raw, nil
}

func (h *rodHandle) Navigate(ctx context.Context, url string, wait WaitPolicy) (Page, error) {
	bound, raw, err := h.open(ctx, url, wait)
	if err != nil {
		return nil, err
	}
	return &rodPage{page: bound, raw: raw, url: url}, nil
}

func (h *rodHandle) FetchBinary(ctx context.Context, url string, wait WaitPolicy) ([]byte, error) {
	bound, raw, err := h.open(ctx, url, wait)
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	defer bound.CancelTimeout()

	body, err := bound.GetResource(url)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	if len(body) == 0 {
		return nil, &models.FetchError{URL: url, Err: models.ErrEmptyPayload}
	}
	return body, nil
}

func (h *rodHandle) Terminate() error {
	err := h.browser.Close()
	h.launcher.Kill()
	return err
}

type rodPage struct {
	page *rod.Page
	raw  *rod.Page
	url  string
}

func (p *rodPage) URL() string { return p.url }

func (p *rodPage) QueryAll(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = rodElement{el}
	}
	return out, nil
}

func (p *rodPage) Close() error {
	p.page.CancelTimeout()
	return p.raw.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Attribute(name string) (*string, error) {
	return e.el.Attribute(name)
}
