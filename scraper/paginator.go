package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// errStaleHandle stops a wait on an element handle that can never recover.
var errStaleHandle = errors.New("load more handle went stale")

// State is a pagination controller state.
type State int

const (
	StateInitial State = iota
	StateAwaitingGrowth
	StateStalled
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitingGrowth:
		return "awaiting_growth"
	case StateStalled:
		return "stalled"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PaginatorOptions configures a Paginator.
type PaginatorOptions struct {
	Selectors       config.Selectors
	Timeouts        config.TimeoutConfig
	MaxStaleRetries int
	// MaxLoadCycles caps load-more activations. Zero means no cap.
	MaxLoadCycles int
}

// Paginator drives the load-more loop and extracts each card exactly once.
type Paginator struct {
	page      Page
	extractor *Extractor
	retrier   *Retrier
	opts      PaginatorOptions
	logger    *slog.Logger
	metrics   *Metrics

	state  State
	cycles int
}

// NewPaginator builds a Paginator. Activation runs through retrier.
func NewPaginator(page Page, extractor *Extractor, retrier *Retrier, opts PaginatorOptions, logger *slog.Logger, metrics *Metrics) *Paginator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{
		page:      page,
		extractor: extractor,
		retrier:   retrier,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// State returns the current controller state.
func (p *Paginator) State() State {
	return p.state
}

// Cycles returns how many load-more activations have succeeded.
func (p *Paginator) Cycles() int {
	return p.cycles
}

// cursor tracks the next card index to extract and the visible card count
// seen before the last activation.
type cursor struct {
	next     int
	previous int
}

// Run loads and extracts every card, recording outcomes on state. On error
// state still holds everything resolved so far.
func (p *Paginator) Run(ctx context.Context, state *models.RunState) error {
	p.state = StateInitial
	p.cycles = 0
	cur := cursor{}
	stale := 0

	p.logger.Info("loading and parsing products incrementally",
		slog.String("card_selector", p.opts.Selectors.Card),
		slog.String("load_more_button_selector", p.opts.Selectors.LoadMoreButton),
	)

	for {
		if p.state == StateDone {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return ErrFatal{Stage: "pagination", Err: err}
		}

		next, err := p.step(ctx, state, &cur)
		if err != nil {
			if !IsTransient(err) {
				var fatal ErrFatal
				if errors.As(err, &fatal) {
					return err
				}
				return ErrFatal{Stage: "pagination", Err: err}
			}
			stale++
			if stale > p.opts.MaxStaleRetries {
				return ErrFatal{Stage: "pagination", Err: fmt.Errorf("page kept re-rendering after %d stale reads: %w", stale-1, err)}
			}
			// The count read before the fault may predate the re-render.
			cur.previous = 0
			p.logger.Info("page refreshing with new content, continuing",
				slog.String("state", p.state.String()),
				slog.Int("stale_count", stale),
			)
			continue
		}
		stale = 0

		if next != p.state {
			p.logger.Debug("pagination state change",
				slog.String("from", p.state.String()),
				slog.String("to", next.String()),
			)
		}
		p.state = next
	}
}

func (p *Paginator) step(ctx context.Context, state *models.RunState, cur *cursor) (State, error) {
	switch p.state {
	case StateInitial:
		cards, err := p.page.FindAll(p.opts.Selectors.Card)
		if err != nil {
			return p.state, err
		}
		p.extract(ctx, state, cards, cur)
		p.logger.Info("initially processed products", slog.Int("count", cur.next))
		return StateAwaitingGrowth, nil
	case StateAwaitingGrowth:
		return p.awaitGrowth(ctx, state, cur)
	case StateStalled:
		return p.finish(ctx, state, cur)
	default:
		return StateDone, nil
	}
}

func (p *Paginator) awaitGrowth(ctx context.Context, state *models.RunState, cur *cursor) (State, error) {
	cards, err := p.page.FindAll(p.opts.Selectors.Card)
	if err != nil {
		return p.state, err
	}
	// Cards left behind by an earlier stale read.
	p.extract(ctx, state, cards, cur)

	count := len(cards)
	if count > 0 && count == cur.previous {
		p.logger.Info("no new products loaded, all products loaded", slog.Int("product_count", count))
		return p.finish(ctx, state, cur)
	}
	cur.previous = count

	if p.opts.MaxLoadCycles > 0 && p.cycles >= p.opts.MaxLoadCycles {
		p.logger.Info("load cycle limit reached", slog.Int("cycles", p.cycles))
		return p.finish(ctx, state, cur)
	}

	button, ok, err := p.loadMore()
	if err != nil {
		return p.state, err
	}
	if !ok {
		p.logger.Info("no more products to load, button absent, hidden or disabled")
		return p.finish(ctx, state, cur)
	}

	if err := p.retrier.Run(ctx, "scroll_load_more", func() error {
		return p.page.ScrollIntoView(button)
	}); err != nil {
		return p.state, err
	}
	var staleErr error
	err = waitUntil(ctx, p.opts.Timeouts.Wait, p.opts.Timeouts.Poll, func() (bool, error) {
		visible, err := button.IsDisplayed()
		if IsTransient(err) {
			staleErr = err
			return false, errStaleHandle
		}
		return visible, err
	})
	if err != nil {
		if errors.Is(err, errStaleHandle) {
			return p.state, ErrTransient{Err: staleErr}
		}
		if IsTimeout(err) {
			p.logger.Info("load more button never became visible, all products loaded")
			return p.finish(ctx, state, cur)
		}
		return p.state, err
	}

	if err := p.activate(ctx, button); err != nil {
		return p.state, ErrFatal{Stage: "activate load more", Err: err}
	}
	p.cycles++
	p.metrics.IncLoadCycle()

	started := time.Now()
	err = waitUntil(ctx, p.opts.Timeouts.Growth, p.opts.Timeouts.Poll, func() (bool, error) {
		visible, err := p.page.FindAll(p.opts.Selectors.Card)
		if err != nil {
			return false, err
		}
		return len(visible) > count, nil
	})
	if err != nil {
		if IsTimeout(err) {
			p.logger.Info("no new products loaded after clicking load more, all products loaded",
				slog.Int("product_count", count),
			)
			return StateStalled, nil
		}
		return p.state, err
	}
	p.metrics.ObserveGrowthWait(time.Since(started))

	cards, err = p.page.FindAll(p.opts.Selectors.Card)
	if err != nil {
		return p.state, err
	}
	p.logger.Info("loaded more products", slog.Int("product_count", len(cards)))
	p.extract(ctx, state, cards, cur)
	p.logger.Info("processed products so far", slog.Int("processed_count", cur.next))
	return StateAwaitingGrowth, nil
}

// loadMore returns the load-more control when it is present, displayed and
// interactable.
func (p *Paginator) loadMore() (Node, bool, error) {
	buttons, err := p.page.FindAll(p.opts.Selectors.LoadMoreButton)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(buttons) == 0 {
		return nil, false, nil
	}
	button := buttons[0]

	displayed, err := button.IsDisplayed()
	if err != nil {
		return nil, false, err
	}
	interactable, err := button.IsInteractable()
	if err != nil {
		return nil, false, err
	}
	return button, displayed && interactable, nil
}

// activate tries a direct click and falls back to a script click within the
// same attempt.
func (p *Paginator) activate(ctx context.Context, button Node) error {
	return p.retrier.Run(ctx, "activate_load_more", func() error {
		err := p.page.Activate(button)
		if err == nil {
			p.logger.Debug("clicked load more button")
			return nil
		}
		p.logger.Warn("direct click failed",
			slog.String("error_type", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		if serr := p.page.ActivateScript(button); serr != nil {
			return errors.Join(serr, err)
		}
		p.logger.Debug("clicked load more button using script")
		return nil
	})
}

// finish extracts any cards that appeared since the last extraction and
// moves to Done.
func (p *Paginator) finish(ctx context.Context, state *models.RunState, cur *cursor) (State, error) {
	cards, err := p.page.FindAll(p.opts.Selectors.Card)
	if err != nil {
		return p.state, err
	}
	p.extract(ctx, state, cards, cur)
	return StateDone, nil
}

func (p *Paginator) extract(ctx context.Context, state *models.RunState, cards []Node, cur *cursor) {
	outcomes, next := p.extractor.ExtractFrom(ctx, cards, cur.next)
	state.Record(outcomes...)
	cur.next = next
}
