// Package snapshot serves server-rendered catalog pages as a read-only
// rendering target. It fetches the page once with colly and answers
// selector queries from the parsed goquery document.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/gocolly/colly/v2"
)

// ErrNoDocument is returned by queries issued before a successful Navigate.
var ErrNoDocument = errors.New("snapshot: no document loaded")

// ErrStatic is returned when a control is activated on a static snapshot.
var ErrStatic = errors.New("snapshot: static pages cannot activate controls")

// Options configures the HTTP fetch.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Page implements scraper.Page over a fetched HTML document.
type Page struct {
	collector *colly.Collector
	logger    *slog.Logger

	doc    *goquery.Document
	status int
	err    error
}

var _ scraper.Page = (*Page)(nil)

// New builds a Page with its own collector.
func New(opts Options) *Page {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collectorOpts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}
	collector := colly.NewCollector(collectorOpts...)
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}

	p := &Page{
		collector: collector,
		logger:    logger.With(slog.String("component", "snapshot")),
	}
	collector.OnResponse(func(r *colly.Response) {
		p.status = r.StatusCode
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			p.err = fmt.Errorf("parse %s: %w", r.Request.URL, err)
			return
		}
		p.doc = doc
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			p.status = r.StatusCode
		}
		p.err = err
	})
	return p
}

// Navigate fetches url and replaces the current document.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.doc, p.status, p.err = nil, 0, nil

	visitErr := p.collector.Visit(url)
	if p.err == nil {
		p.err = visitErr
	}
	if p.err != nil {
		err := classifyError(p.err, p.status)
		p.logger.Warn("snapshot fetch failed",
			slog.String("url", url),
			slog.Int("status", p.status),
			slog.Any("error", err),
		)
		return err
	}
	if p.doc == nil {
		return fmt.Errorf("fetch %s: empty response", url)
	}
	p.logger.Debug("snapshot loaded", slog.String("url", url), slog.Int("status", p.status))
	return nil
}

func (p *Page) FindAll(selector string) ([]scraper.Node, error) {
	if p.doc == nil {
		return nil, ErrNoDocument
	}
	return wrap(p.doc.Find(selector)), nil
}

// ScrollIntoView is a no-op on a static document.
func (p *Page) ScrollIntoView(scraper.Node) error { return nil }

func (p *Page) Activate(scraper.Node) error { return ErrStatic }

func (p *Page) ActivateScript(scraper.Node) error { return ErrStatic }

type node struct {
	sel *goquery.Selection
}

func wrap(sel *goquery.Selection) []scraper.Node {
	nodes := make([]scraper.Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, node{sel: s})
	})
	return nodes
}

func (n node) Find(selector string) ([]scraper.Node, error) {
	return wrap(n.sel.Find(selector)), nil
}

func (n node) Text() (string, error) {
	return n.sel.Text(), nil
}

func (n node) Attribute(name string) (string, error) {
	return n.sel.AttrOr(name, ""), nil
}

// IsDisplayed reports false when the element or an ancestor is hidden by
// attribute or inline style.
func (n node) IsDisplayed() (bool, error) {
	for s := n.sel; s.Length() > 0; s = s.Parent() {
		if hidden(s) {
			return false, nil
		}
	}
	return true, nil
}

// IsInteractable is always false: nothing on a snapshot can be activated.
func (n node) IsInteractable() (bool, error) {
	return false, nil
}

func hidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func classifyError(err error, statusCode int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return scraper.ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return scraper.ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return scraper.ErrTransient{Err: err}
	}

	switch {
	case statusCode == http.StatusTooManyRequests, statusCode >= http.StatusInternalServerError:
		return scraper.ErrTransient{Err: fmt.Errorf("http status %d: %w", statusCode, err)}
	case statusCode >= http.StatusBadRequest:
		return fmt.Errorf("http status %d: %w", statusCode, err)
	}
	return err
}
