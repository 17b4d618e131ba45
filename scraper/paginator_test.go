package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

func newTestPaginator(page *fakePage, cfg *config.Config) (*Paginator, *Retrier) {
	logger := quietLogger()
	retrier := NewRetrier(RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
	}, nil, WithSleep(noSleep))
	ex := NewExtractor(cfg.Selectors, retrier, logger, nil)
	p := NewPaginator(page, ex, retrier, PaginatorOptions{
		Selectors:       cfg.Selectors,
		Timeouts:        cfg.Timeouts,
		MaxStaleRetries: cfg.MaxStaleRetries,
		MaxLoadCycles:   cfg.MaxLoadCycles,
	}, logger, nil)
	return p, retrier
}

func assertResolvedAll(t *testing.T, state *models.RunState, total int) {
	t.Helper()
	raw, failures := state.RawItems(), state.Failures()
	if len(raw)+len(failures) != total {
		t.Fatalf("raw(%d)+failures(%d) = %d, want %d cards observed", len(raw), len(failures), len(raw)+len(failures), total)
	}
	for i, o := range state.Outcomes() {
		if o.Position() != i {
			t.Fatalf("outcome %d resolved index %d, want index order", i, o.Position())
		}
	}
}

func TestPaginatorLoadsUntilButtonHides(t *testing.T) {
	cards := numberedCards(10)
	page := newFakePage(cards, 4, 3)
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}

	if p.State() != StateDone {
		t.Fatalf("state = %s, want done", p.State())
	}
	if p.Cycles() != 2 || page.activations != 2 {
		t.Fatalf("cycles = %d activations = %d, want 2", p.Cycles(), page.activations)
	}
	if page.scrolls != 2 {
		t.Fatalf("scrolls = %d, want one per activation", page.scrolls)
	}
	assertResolvedAll(t, state, 10)
	if len(state.Failures()) != 0 {
		t.Fatalf("unexpected failures: %v", state.Failures())
	}
	for i, card := range cards {
		if card.finds != 5 {
			t.Fatalf("card %d looked up %d times, want a single read", i, card.finds)
		}
	}
}

func TestPaginatorStallsWhenActivationIsNoop(t *testing.T) {
	page := newFakePage(numberedCards(8), 3, 3)
	page.noop = true
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.State() != StateDone {
		t.Fatalf("state = %s, want done", p.State())
	}
	if page.activations != 1 {
		t.Fatalf("activations = %d, want 1 before the growth timeout", page.activations)
	}
	assertResolvedAll(t, state, 3)
}

func TestPaginatorDoneWhenCountStable(t *testing.T) {
	page := newFakePage(numberedCards(6), 3, 3)
	page.hideWhenDone = false
	// The growth poll and the extraction read see six cards, then the page
	// falls back to the three it showed before the click.
	page.rollbackAfter = 2
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.State() != StateDone {
		t.Fatalf("state = %s, want done", p.State())
	}
	if page.activations != 1 || p.Cycles() != 1 {
		t.Fatalf("activations = %d cycles = %d, want no activation once the count repeats", page.activations, p.Cycles())
	}
	if !page.button.displayed || !page.button.interactable {
		t.Fatalf("load more control should still be usable")
	}
	assertResolvedAll(t, state, 6)
}

func TestPaginatorDoneWithoutControl(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakePage)
	}{
		{name: "absent", mutate: func(p *fakePage) { p.button = nil }},
		{name: "hidden", mutate: func(p *fakePage) { p.button.displayed = false }},
		{name: "disabled", mutate: func(p *fakePage) { p.button.interactable = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage(numberedCards(5), 5, 1)
			tt.mutate(page)
			p, _ := newTestPaginator(page, testConfig())

			state := &models.RunState{}
			if err := p.Run(context.Background(), state); err != nil {
				t.Fatalf("run: %v", err)
			}
			if page.activations != 0 {
				t.Fatalf("activations = %d, want 0", page.activations)
			}
			assertResolvedAll(t, state, 5)
		})
	}
}

func TestPaginatorCollectsFailuresWithoutAborting(t *testing.T) {
	cards := numberedCards(6)
	cards[1] = newCard(cardSpec{title: "no price", omit: testSelectors().Price})
	cards[4] = newCard(cardSpec{title: "bad reviews", price: "$3", reviews: "lots"})
	page := newFakePage(cards, 3, 3)
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertResolvedAll(t, state, 6)

	failures := state.Failures()
	if len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}
	if failures[0].Index != 1 || failures[0].Kind != models.MissingElement {
		t.Fatalf("first failure = %+v", failures[0])
	}
	if failures[1].Index != 4 || failures[1].Kind != models.Unexpected {
		t.Fatalf("second failure = %+v", failures[1])
	}
	if len(state.RawItems()) != 4 {
		t.Fatalf("raw items = %d, want 4", len(state.RawItems()))
	}
}

func TestPaginatorToleratesStalePolling(t *testing.T) {
	page := newFakePage(numberedCards(6), 2, 2)
	page.cardStale = 2
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertResolvedAll(t, state, 6)
}

func TestPaginatorAbortsAfterRepeatedStaleness(t *testing.T) {
	page := newFakePage(numberedCards(6), 2, 2)
	page.cardStale = 100
	cfg := testConfig()
	cfg.MaxStaleRetries = 2
	p, _ := newTestPaginator(page, cfg)

	err := p.Run(context.Background(), &models.RunState{})
	var fatal ErrFatal
	if !errors.As(err, &fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("fatal error must not be reported as transient")
	}
}

func TestPaginatorFallsBackToScriptActivation(t *testing.T) {
	page := newFakePage(numberedCards(6), 3, 3)
	page.clickErrs = []error{errStale}
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}
	if page.scripts != 1 {
		t.Fatalf("script activations = %d, want 1", page.scripts)
	}
	assertResolvedAll(t, state, 6)
}

func TestPaginatorAbortsWhenActivationExhausted(t *testing.T) {
	page := newFakePage(numberedCards(6), 3, 3)
	page.clickErrs = []error{errStale, errStale, errStale}
	page.scriptErrs = []error{errStale, errStale, errStale}
	p, _ := newTestPaginator(page, testConfig())

	state := &models.RunState{}
	err := p.Run(context.Background(), state)
	var fatal ErrFatal
	if !errors.As(err, &fatal) || fatal.Stage != "activate load more" {
		t.Fatalf("expected activation fatal error, got %v", err)
	}
	if page.activations != 3 || page.scripts != 3 {
		t.Fatalf("activations = %d scripts = %d, want 3 each", page.activations, page.scripts)
	}
	assertResolvedAll(t, state, 3)
}

func TestPaginatorRespectsCycleLimit(t *testing.T) {
	page := newFakePage(numberedCards(10), 4, 3)
	cfg := testConfig()
	cfg.MaxLoadCycles = 1
	p, _ := newTestPaginator(page, cfg)

	state := &models.RunState{}
	if err := p.Run(context.Background(), state); err != nil {
		t.Fatalf("run: %v", err)
	}
	if page.activations != 1 {
		t.Fatalf("activations = %d, want 1", page.activations)
	}
	assertResolvedAll(t, state, 7)
}

func TestPaginatorCanceledContext(t *testing.T) {
	page := newFakePage(numberedCards(4), 4, 1)
	p, _ := newTestPaginator(page, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, &models.RunState{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateInitial:        "initial",
		StateAwaitingGrowth: "awaiting_growth",
		StateStalled:        "stalled",
		StateDone:           "done",
		State(9):            "state(9)",
	} {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
