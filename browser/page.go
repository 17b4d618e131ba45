package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/playwright-community/playwright-go"
)

// Page adapts a playwright page to scraper.Page.
type Page struct {
	page   playwright.Page
	logger *slog.Logger
}

var _ scraper.Page = (*Page)(nil)

// Navigate loads url. A 5xx response is transient.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return classify(fmt.Errorf("goto %s: %w", url, err))
	}
	if resp != nil && resp.Status() >= 500 {
		return scraper.ErrTransient{Err: fmt.Errorf("goto %s: status %d", url, resp.Status())}
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("goto %s: status %d", url, resp.Status())
	}
	return nil
}

// FindAll returns every element matching selector.
func (p *Page) FindAll(selector string) ([]scraper.Node, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, classify(err)
	}
	return wrap(handles), nil
}

// ScrollIntoView scrolls node into the viewport if needed.
func (p *Page) ScrollIntoView(node scraper.Node) error {
	el, err := handle(node)
	if err != nil {
		return err
	}
	return classify(el.ScrollIntoViewIfNeeded())
}

// Activate clicks node.
func (p *Page) Activate(node scraper.Node) error {
	el, err := handle(node)
	if err != nil {
		return err
	}
	return classify(el.Click())
}

// ActivateScript clicks node from page script.
func (p *Page) ActivateScript(node scraper.Node) error {
	el, err := handle(node)
	if err != nil {
		return err
	}
	_, err = el.Evaluate("el => el.click()")
	return classify(err)
}

// Close closes the underlying tab.
func (p *Page) Close() error {
	return p.page.Close()
}

type node struct {
	el playwright.ElementHandle
}

func wrap(handles []playwright.ElementHandle) []scraper.Node {
	nodes := make([]scraper.Node, len(handles))
	for i, h := range handles {
		nodes[i] = node{el: h}
	}
	return nodes
}

func handle(n scraper.Node) (playwright.ElementHandle, error) {
	pn, ok := n.(node)
	if !ok {
		return nil, fmt.Errorf("node %T does not belong to a browser page", n)
	}
	return pn.el, nil
}

func (n node) Find(selector string) ([]scraper.Node, error) {
	handles, err := n.el.QuerySelectorAll(selector)
	if err != nil {
		return nil, classify(err)
	}
	return wrap(handles), nil
}

func (n node) Text() (string, error) {
	text, err := n.el.InnerText()
	return text, classify(err)
}

func (n node) Attribute(name string) (string, error) {
	value, err := n.el.GetAttribute(name)
	return value, classify(err)
}

func (n node) IsDisplayed() (bool, error) {
	visible, err := n.el.IsVisible()
	return visible, classify(err)
}

func (n node) IsInteractable() (bool, error) {
	enabled, err := n.el.IsEnabled()
	return enabled, classify(err)
}

// staleMarkers are driver messages produced when a handle outlives the DOM
// node or frame it pointed at.
var staleMarkers = []string{
	"not attached",
	"Execution context was destroyed",
	"Element is detached",
	"Cannot find context with specified id",
	"frame was detached",
}

// classify maps playwright failures onto the scraper error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return scraper.ErrTransient{Err: err}
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return err
	}
	msg := err.Error()
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return scraper.ErrTransient{Err: err}
		}
	}
	return err
}
