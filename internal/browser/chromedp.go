package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"ImageHarvester/internal/models"
)

// ChromedpDriver launches one Chrome per session through the DevTools protocol.
type ChromedpDriver struct {
	Headless  bool
	Bin       string
	UserAgent string
}

func (d *ChromedpDriver) Name() string { return "chromedp" }

func (d *ChromedpDriver) Launch(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1280, 800),
	)
	if d.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.UserAgent))
	}
	if d.Bin != "" {
		opts = append(opts, chromedp.ExecPath(d.Bin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromedpHandle{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

type chromedpHandle struct {
	browserCtx context.Context
	cancel     context.CancelFunc
}

// tab opens a new target bounded by wait.Timeout and by ctx.
func (h *chromedpHandle) tab(ctx context.Context, wait WaitPolicy) (context.Context, context.CancelFunc) {
	tabCtx, tabCancel := chromedp.NewContext(h.browserCtx)
	runCtx, runCancel := context.WithTimeout(tabCtx, wait.Timeout)
	stop := context.AfterFunc(ctx, runCancel)
	return runCtx, func() {
		stop()
		runCancel()
		tabCancel()
	}
}

func (h *chromedpHandle) Navigate(ctx context.Context, url string, wait WaitPolicy) (Page, error) {
	runCtx, cancel := h.tab(ctx, wait)
	if err := chromedp.Run(runCtx, chromedp.Navigate(url), chromedp.Sleep(wait.Idle)); err != nil {
		cancel()
		return nil, &models.FetchError{URL: url, Err: err}
	}
	return &chromedpPage{ctx: runCtx, cancel: cancel, url: url}, nil
}

func (h *chromedpHandle) FetchBinary(ctx context.Context, url string, wait WaitPolicy) ([]byte, error) {
	runCtx, cancel := h.tab(ctx, wait)
	defer cancel()

	ids := make(chan network.RequestID, 1)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Response != nil && e.Response.URL == url {
			select {
			case ids <- e.RequestID:
			default:
			}
		}
	})

	if err := chromedp.Run(runCtx, network.Enable(), chromedp.Navigate(url), chromedp.Sleep(wait.Idle)); err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}

	var id network.RequestID
	select {
	case id = <-ids:
	default:
		select {
		case id = <-ids:
		case <-time.After(wait.Idle + 100*time.Millisecond):
			return nil, &models.FetchError{URL: url, Err: errors.New("no response received")}
		}
	}

	var body []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	if len(body) == 0 {
		return nil, &models.FetchError{URL: url, Err: models.ErrEmptyPayload}
	}
	return body, nil
}

func (h *chromedpHandle) Terminate() error {
	h.cancel()
	return nil
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string
}

func (p *chromedpPage) URL() string { return p.url }

func (p *chromedpPage) QueryAll(selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(p.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = chromedpElement{n}
	}
	return out, nil
}

func (p *chromedpPage) Close() error {
	p.cancel()
	return nil
}

type chromedpElement struct {
	node *cdp.Node
}

func (e chromedpElement) Attribute(name string) (*string, error) {
	v, ok := e.node.Attribute(name)
	if !ok {
		return nil, nil
	}
	return &v, nil
}
