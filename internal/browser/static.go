package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"ImageHarvester/internal/models"
)

// StaticDriver fetches pages over plain HTTP and queries the parsed HTML.
// It runs no JavaScript, so it only suits server-rendered catalogs.
type StaticDriver struct {
	UserAgent string
	// Client is shared by every session when set; otherwise each session
	// gets its own client with a private cookie jar.
	Client *http.Client
}

func (d *StaticDriver) Name() string { return "static" }

func (d *StaticDriver) Launch(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := d.Client
	if client == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("could not create cookie jar: %w", err)
		}
		client = &http.Client{Jar: jar}
	}
	return &staticHandle{client: client, userAgent: d.UserAgent}, nil
}

type staticHandle struct {
	client    *http.Client
	userAgent string
}

func (h *staticHandle) get(ctx context.Context, url string, wait WaitPolicy) ([]byte, error) {
	if wait.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.FetchError{URL: url, Err: fmt.Errorf("received non-200 status code: %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	return body, nil
}

func (h *staticHandle) Navigate(ctx context.Context, url string, wait WaitPolicy) (Page, error) {
	body, err := h.get(ctx, url, wait)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	return &staticPage{doc: doc, url: url}, nil
}

func (h *staticHandle) FetchBinary(ctx context.Context, url string, wait WaitPolicy) ([]byte, error) {
	body, err := h.get(ctx, url, wait)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &models.FetchError{URL: url, Err: models.ErrEmptyPayload}
	}
	return body, nil
}

func (h *staticHandle) Terminate() error {
	h.client.CloseIdleConnections()
	return nil
}

type staticPage struct {
	doc *goquery.Document
	url string
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) QueryAll(selector string) ([]Element, error) {
	var out []Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, staticElement{s})
	})
	return out, nil
}

func (p *staticPage) Close() error {
	p.doc = nil
	return nil
}

type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Attribute(name string) (*string, error) {
	v, ok := e.sel.Attr(name)
	if !ok {
		return nil, nil
	}
	return &v, nil
}
