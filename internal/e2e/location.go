// Package e2e drives a browser through the shell for end-to-end checks.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Selectors of the location picker.
const (
	LocationSelect = "#location"
	LocationOption = "#location option"
	ConfirmButton  = "#confirm-location"
)

// locationRoute is the path suffix of the location picker.
const locationRoute = "login/location"

// IsLocationURL reports whether raw points at the location picker.
func IsLocationURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.TrimSuffix(u.Path, "/")
	return p == "/"+locationRoute || strings.HasSuffix(p, "/"+locationRoute)
}

// LocationSelector watches a page and, the first time its main frame
// navigates to the location picker, selects the first location and
// confirms. It acts once and does not retry.
type LocationSelector struct {
	page    *rod.Page
	logger  *zap.Logger
	timeout time.Duration

	once sync.Once
	done chan struct{}
	err  error
	pick string
}

// WatchLocation starts watching page until ctx ends or the selection ran.
func WatchLocation(ctx context.Context, page *rod.Page, timeout time.Duration, logger *zap.Logger) *LocationSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &LocationSelector{page: page, logger: logger, timeout: timeout, done: make(chan struct{})}

	wait := page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) bool {
		if ev.Frame == nil || ev.Frame.ParentID != "" || !IsLocationURL(ev.Frame.URL) {
			return false
		}
		s.once.Do(func() {
			s.logger.Debug("location picker reached", zap.String("url", ev.Frame.URL))
			s.pick, s.err = s.selectFirst(ctx)
			close(s.done)
		})
		return true
	})
	go func() {
		wait()
		s.once.Do(func() {
			s.err = ctx.Err()
			if s.err == nil {
				s.err = errors.New("page closed before the location picker")
			}
			close(s.done)
		})
	}()
	return s
}

func (s *LocationSelector) selectFirst(ctx context.Context) (string, error) {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()

	opt, err := p.Element(LocationOption)
	if err != nil {
		return "", fmt.Errorf("find first location: %w", err)
	}
	label, err := opt.Text()
	if err != nil {
		return "", fmt.Errorf("read first location: %w", err)
	}
	sel, err := p.Element(LocationSelect)
	if err != nil {
		return "", fmt.Errorf("find location select: %w", err)
	}
	if err := sel.Select([]string{label}, true, rod.SelectorTypeText); err != nil {
		return "", fmt.Errorf("select %q: %w", label, err)
	}

	btn, err := p.Element(ConfirmButton)
	if err != nil {
		return "", fmt.Errorf("find confirm button: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("confirm location: %w", err)
	}
	s.logger.Info("location selected", zap.String("location", label))
	return label, nil
}

// Done is closed once the selection ran or watching stopped.
func (s *LocationSelector) Done() <-chan struct{} { return s.done }

// Err is the outcome of the selection. It is valid after Done.
func (s *LocationSelector) Err() error {
	<-s.done
	return s.err
}

// Selected is the label of the chosen location. It is valid after Done.
func (s *LocationSelector) Selected() string {
	<-s.done
	return s.pick
}
