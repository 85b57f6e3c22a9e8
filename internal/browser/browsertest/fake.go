// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"ImageHarvester/internal/browser"
	"ImageHarvester/internal/models"
)

// ErrNavigation is returned when navigating to an unregistered page.
var ErrNavigation = errors.New("navigation failed")

// Driver serves canned pages and images.
type Driver struct {
	mu       sync.Mutex
	pages    map[string][]*string
	images   map[string][]byte
	failNext int

	// BeforeFetch, when set, runs at the start of every FetchBinary.
	BeforeFetch func(url string)

	Launches   atomic.Int32
	Terminates atomic.Int32
	OpenPages  atomic.Int32
	Fetches    atomic.Int32
}

// NewDriver returns an empty fake driver.
func NewDriver() *Driver {
	return &Driver{
		pages:  make(map[string][]*string),
		images: make(map[string][]byte),
	}
}

func (d *Driver) Name() string { return "fake" }

// AddPage registers a page whose matching img elements carry the given src
// values. An empty string stands for an element without src.
func (d *Driver) AddPage(url string, srcs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	els := make([]*string, len(srcs))
	for i := range srcs {
		if srcs[i] != "" {
			s := srcs[i]
			els[i] = &s
		}
	}
	d.pages[url] = els
}

// AddImage registers an image body.
func (d *Driver) AddImage(url string, body []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images[url] = body
}

// FailLaunches makes the next n launches fail.
func (d *Driver) FailLaunches(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

func (d *Driver) Launch(ctx context.Context) (browser.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		d.failNext--
		return nil, errors.New("chrome not found")
	}
	d.Launches.Add(1)
	return &handle{d: d}, nil
}

type handle struct {
	d *Driver
}

func (h *handle) Navigate(ctx context.Context, url string, _ browser.WaitPolicy) (browser.Page, error) {
	h.d.mu.Lock()
	els, ok := h.d.pages[url]
	h.d.mu.Unlock()
	if !ok {
		return nil, &models.FetchError{URL: url, Err: ErrNavigation}
	}
	h.d.OpenPages.Add(1)
	return &page{d: h.d, url: url, els: els}, nil
}

func (h *handle) FetchBinary(ctx context.Context, url string, _ browser.WaitPolicy) ([]byte, error) {
	h.d.Fetches.Add(1)
	if h.d.BeforeFetch != nil {
		h.d.BeforeFetch(url)
	}
	h.d.mu.Lock()
	body, ok := h.d.images[url]
	h.d.mu.Unlock()
	if !ok {
		return nil, &models.FetchError{URL: url, Err: fmt.Errorf("404")}
	}
	if len(body) == 0 {
		return nil, &models.FetchError{URL: url, Err: models.ErrEmptyPayload}
	}
	return body, nil
}

func (h *handle) Terminate() error {
	h.d.Terminates.Add(1)
	return nil
}

type page struct {
	d      *Driver
	url    string
	els    []*string
	closed atomic.Bool
}

func (p *page) URL() string { return p.url }

func (p *page) QueryAll(string) ([]browser.Element, error) {
	out := make([]browser.Element, len(p.els))
	for i, src := range p.els {
		out[i] = element{src}
	}
	return out, nil
}

func (p *page) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.d.OpenPages.Add(-1)
	}
	return nil
}

type element struct {
	src *string
}

func (e element) Attribute(name string) (*string, error) {
	if name != "src" {
		return nil, nil
	}
	return e.src, nil
}
