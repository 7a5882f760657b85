package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/internal/config"
)

// Session is one live browser tab. It implements schemas.PageSession and is
// not safe for concurrent use; the executor owns it exclusively.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	tabCtx    context.Context
	tabCancel context.CancelFunc
}

func newSession(allocatorCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuid.NewString()
	tabCtx, tabCancel := chromedp.NewContext(allocatorCtx)

	s := &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger.Named("session").With(zap.String("session_id", id)),
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
	}

	// Materialize the tab eagerly so session startup failures surface here
	// rather than on the first action.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Navigate loads a URL and waits for the page body to be ready. Exceeding
// the navigation timeout is reported as a timeout failure.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(s.runCtx(ctx), timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if s.cfg.DisableCache {
				return network.SetCacheDisabled(true).Do(ctx)
			}
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.PostLoadWait),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation timeout after %s loading %s", timeout, url)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Click activates the element at selector. A selector that never resolves is
// reported as such rather than as a bare deadline error.
func (s *Session) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(s.runCtx(ctx), s.actionTimeout())
	defer cancel()

	err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("selector not found: %s", selector)
		}
		return fmt.Errorf("click on selector %s failed: %w", selector, err)
	}
	return nil
}

// Fill sets the value of the element at selector.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	fillCtx, cancel := context.WithTimeout(s.runCtx(ctx), s.actionTimeout())
	defer cancel()

	err := chromedp.Run(fillCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("selector not found: %s", selector)
		}
		return fmt.Errorf("fill of selector %s failed: %w", selector, err)
	}
	return nil
}

// Wait pauses for the given duration, respecting both the caller's context
// and the session lifetime.
func (s *Session) Wait(ctx context.Context, ms int) error {
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.tabCtx.Done():
		return s.tabCtx.Err()
	}
}

// Capture takes a full-page screenshot and writes it under the evidence
// directory, returning the file path as the evidence reference.
func (s *Session) Capture(ctx context.Context) (string, error) {
	capCtx, cancel := context.WithTimeout(s.runCtx(ctx), s.actionTimeout())
	defer cancel()

	var buf []byte
	if err := chromedp.Run(capCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}

	dir := s.cfg.EvidenceDir
	if dir == "" {
		dir = "evidence"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create evidence dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("evidence_%d_%s.png", time.Now().UnixMilli(), s.id[:8]))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write evidence file: %w", err)
	}

	s.logger.Debug("Captured evidence", zap.String("path", path))
	return path, nil
}

// Close releases the tab. Safe to call once; the manager's handle guards
// against double release.
func (s *Session) Close(context.Context) error {
	s.tabCancel()
	return nil
}

// runCtx returns the context chromedp actions must run on. Actions are tied
// to the tab context; in-flight actions run to completion or failure rather
// than being cancelled by the caller.
func (s *Session) runCtx(context.Context) context.Context {
	return s.tabCtx
}

func (s *Session) actionTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return 30 * time.Second
}
