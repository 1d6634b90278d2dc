// Package portal drives the procurement search page with headless Chrome.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// Config controls the browser and the page selectors.
type Config struct {
	SearchURL         string
	SearchInput       string
	SubmitButton      string
	ResultsTable      string
	UserAgent         string
	Headless          bool
	NavigationTimeout time.Duration
	RenderTimeout     time.Duration
	PollInterval      time.Duration
	Settle            time.Duration
	SearchesPerSecond float64
}

// Chromedp opens search sessions in a fresh headless Chrome.
type Chromedp struct {
	cfg    Config
	logger *zap.Logger
}

// NewChromedp validates cfg and returns a portal backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	if cfg.SearchURL == "" {
		return nil, fmt.Errorf("search url is required")
	}
	if cfg.SearchInput == "" || cfg.SubmitButton == "" || cfg.ResultsTable == "" {
		return nil, fmt.Errorf("search input, submit button and results table selectors are required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 20 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chromedp{cfg: cfg, logger: logger}, nil
}

func (p *Chromedp) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
	)
	if !p.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// Open starts the browser and loads the search page. Nothing is left running
// when it returns an error.
func (p *Chromedp) Open(ctx context.Context) (tender.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, p.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	s := &Session{
		cfg:           p.cfg,
		logger:        p.logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}
	if p.cfg.SearchesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(p.cfg.SearchesPerSecond), 1)
	}

	if err := chromedp.Run(browserCtx); err != nil {
		s.release()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	navCtx, cancel := context.WithTimeout(browserCtx, p.cfg.NavigationTimeout)
	defer cancel()
	tasks := chromedp.Tasks{}
	if p.cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(p.cfg.UserAgent))
	}
	tasks = append(tasks,
		chromedp.Navigate(p.cfg.SearchURL),
		chromedp.WaitVisible(p.cfg.SearchInput, chromedp.ByQuery),
	)
	if err := chromedp.Run(navCtx, tasks); err != nil {
		s.release()
		return nil, fmt.Errorf("load %s: %w", p.cfg.SearchURL, err)
	}
	return s, nil
}

// Session is one loaded search page.
type Session struct {
	cfg           Config
	logger        *zap.Logger
	limiter       *rate.Limiter
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
	closeErr      error
}

// Search submits phrase and returns the rows of the rendered results table.
func (s *Session) Search(ctx context.Context, phrase string) ([]tender.Row, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait search slot: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}

	opCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.NavigationTimeout+s.cfg.RenderTimeout)
	defer cancel()

	before, _, err := s.snapshot(opCtx)
	if err != nil {
		return nil, err
	}
	if err := s.clearInput(opCtx); err != nil {
		return nil, err
	}
	err = chromedp.Run(opCtx,
		chromedp.SendKeys(s.cfg.SearchInput, phrase, chromedp.ByQuery),
		chromedp.Click(s.cfg.SubmitButton, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}

	html, err := s.waitResults(opCtx, before)
	if err != nil {
		return nil, err
	}
	rows, rowErrs, err := ParseRows(html)
	if err != nil {
		return nil, err
	}
	for _, rowErr := range rowErrs {
		s.logger.Error("An error occurred while processing row data",
			zap.String("phrase", phrase),
			zap.Error(rowErr),
		)
	}
	s.logger.Info("Found results", zap.String("phrase", phrase), zap.Int("rows", len(rows)))
	return rows, nil
}

// clearInput resets the live value of the search box. chromedp.Clear only
// rewrites the value attribute, which leaves typed text in place.
func (s *Session) clearInput(ctx context.Context) error {
	var value string
	err := chromedp.Run(ctx,
		chromedp.WaitVisible(s.cfg.SearchInput, chromedp.ByQuery),
		chromedp.SetValue(s.cfg.SearchInput, "", chromedp.ByQuery),
		chromedp.Value(s.cfg.SearchInput, &value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("clear search input: %w", err)
	}
	if value != "" {
		return fmt.Errorf("clear search input: still holds %q", value)
	}
	return nil
}

func (s *Session) waitResults(ctx context.Context, before string) (string, error) {
	ready := newReadiness(before, time.Now(), s.cfg.RenderTimeout, s.cfg.Settle)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		html, present, err := s.snapshot(ctx)
		if err != nil {
			return "", err
		}
		ok, err := ready.observe(html, present, time.Now())
		if err != nil {
			return "", fmt.Errorf("wait for %s: %w", s.cfg.ResultsTable, err)
		}
		if ok {
			return html, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("wait for %s: %w", s.cfg.ResultsTable, ctx.Err())
		case <-ticker.C:
		}
	}
}

type tableSnapshot struct {
	Present bool   `json:"present"`
	HTML    string `json:"html"`
}

// snapshot returns the outer HTML of the table holding the results selector.
func (s *Session) snapshot(ctx context.Context) (string, bool, error) {
	sel, err := json.Marshal(s.cfg.ResultsTable)
	if err != nil {
		return "", false, fmt.Errorf("encode selector: %w", err)
	}
	expr := fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) { return {present: false, html: ""}; }
	const table = el.closest("table") || el;
	return {present: true, html: table.outerHTML};
})()`, sel)
	var snap tableSnapshot
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &snap)); err != nil {
		return "", false, fmt.Errorf("read results table: %w", err)
	}
	return snap.HTML, snap.Present, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.release()
	})
	return s.closeErr
}

func (s *Session) release() {
	s.browserCancel()
	s.allocCancel()
}
