package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

var errStale = ErrTransient{Err: errors.New("stale element reference: element is not attached to the page document")}

type fakeNode struct {
	text         string
	attrs        map[string]string
	children     map[string][]*fakeNode
	displayed    bool
	interactable bool

	// stale makes the next n Find calls fail with a transient error.
	stale int
	finds int
}

func (n *fakeNode) Find(selector string) ([]Node, error) {
	n.finds++
	if n.stale > 0 {
		n.stale--
		return nil, errStale
	}
	kids := n.children[selector]
	out := make([]Node, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out, nil
}

func (n *fakeNode) Text() (string, error) { return n.text, nil }

func (n *fakeNode) Attribute(name string) (string, error) { return n.attrs[name], nil }

func (n *fakeNode) IsDisplayed() (bool, error) { return n.displayed, nil }

func (n *fakeNode) IsInteractable() (bool, error) { return n.interactable, nil }

type cardSpec struct {
	title     string
	titleAttr string
	price     string
	stars     int
	reviews   string
	omit      string
}

func testSelectors() config.Selectors {
	return config.Selectors{
		Card:             ".card",
		LoadMoreButton:   ".load-more",
		Title:            ".title",
		Price:            ".price",
		Description:      ".description",
		RatingsContainer: ".ratings",
		StarIcon:         ".star",
		Reviews:          ".reviews",
	}
}

func newCard(spec cardSpec) *fakeNode {
	sel := testSelectors()
	if spec.reviews == "" {
		spec.reviews = "3 reviews"
	}
	stars := make([]*fakeNode, spec.stars)
	for i := range stars {
		stars[i] = &fakeNode{displayed: true}
	}
	children := map[string][]*fakeNode{
		sel.Title:            {{text: spec.title, attrs: map[string]string{"title": spec.titleAttr}}},
		sel.Price:            {{text: spec.price}},
		sel.Description:      {{text: "Description of " + spec.title}},
		sel.RatingsContainer: {{children: map[string][]*fakeNode{sel.StarIcon: stars}}},
		sel.Reviews:          {{text: spec.reviews}},
	}
	if spec.omit != "" {
		delete(children, spec.omit)
	}
	return &fakeNode{children: children, displayed: true}
}

func numberedCards(n int) []*fakeNode {
	cards := make([]*fakeNode, n)
	for i := range cards {
		cards[i] = newCard(cardSpec{
			title: "Item " + strconv.Itoa(i),
			price: fmt.Sprintf("$%d.99", i+1),
			stars: i % 6,
		})
	}
	return cards
}

type fakePage struct {
	cards   []*fakeNode
	visible int
	batch   int
	button  *fakeNode
	// hideWhenDone hides the button once every card is visible.
	hideWhenDone bool
	// noop makes activations render nothing.
	noop bool
	// rollbackAfter undoes each reveal once that many card lookups have
	// seen the grown list, as a page that re-renders its previous batch.
	rollbackAfter int
	rollbackTo    int
	sinceReveal   int

	clickErrs    []error
	scriptErrs   []error
	navigateErrs []error
	// cardStale makes the next n FindAll(card) calls fail with a transient error.
	cardStale int

	navigations int
	activations int
	scripts     int
	scrolls     int
}

func newFakePage(cards []*fakeNode, initial, batch int) *fakePage {
	return &fakePage{
		cards:        cards,
		visible:      initial,
		batch:        batch,
		button:       &fakeNode{displayed: true, interactable: true},
		hideWhenDone: true,
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigations++
	if len(p.navigateErrs) > 0 {
		err := p.navigateErrs[0]
		p.navigateErrs = p.navigateErrs[1:]
		return err
	}
	return nil
}

func (p *fakePage) FindAll(selector string) ([]Node, error) {
	sel := testSelectors()
	switch selector {
	case sel.Card:
		if p.cardStale > 0 {
			p.cardStale--
			return nil, errStale
		}
		out := make([]Node, p.visible)
		for i := 0; i < p.visible; i++ {
			out[i] = p.cards[i]
		}
		if p.rollbackAfter > 0 && p.sinceReveal > 0 {
			p.sinceReveal--
			if p.sinceReveal == 0 {
				p.visible = p.rollbackTo
			}
		}
		return out, nil
	case sel.LoadMoreButton:
		if p.button == nil {
			return nil, nil
		}
		return []Node{p.button}, nil
	}
	return nil, nil
}

func (p *fakePage) ScrollIntoView(node Node) error {
	p.scrolls++
	return nil
}

func (p *fakePage) Activate(node Node) error {
	p.activations++
	if len(p.clickErrs) > 0 {
		err := p.clickErrs[0]
		p.clickErrs = p.clickErrs[1:]
		if err != nil {
			return err
		}
	}
	p.reveal()
	return nil
}

func (p *fakePage) ActivateScript(node Node) error {
	p.scripts++
	if len(p.scriptErrs) > 0 {
		err := p.scriptErrs[0]
		p.scriptErrs = p.scriptErrs[1:]
		if err != nil {
			return err
		}
	}
	p.reveal()
	return nil
}

func (p *fakePage) reveal() {
	if p.noop {
		return
	}
	p.rollbackTo = p.visible
	p.sinceReveal = p.rollbackAfter
	p.visible = min(p.visible+p.batch, len(p.cards))
	if p.hideWhenDone && p.visible == len(p.cards) {
		p.button.displayed = false
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.Category = "laptops"
	cfg.Selectors = testSelectors()
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.Backoff = time.Millisecond
	cfg.Timeouts.Wait = 50 * time.Millisecond
	cfg.Timeouts.Growth = 30 * time.Millisecond
	cfg.Timeouts.Poll = time.Millisecond
	cfg.MaxStaleRetries = 3
	return cfg
}
