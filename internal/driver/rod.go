package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// defaultOpTimeout bounds individual page operations so a wedged renderer
// surfaces as an error instead of hanging the pool's rotation.
const defaultOpTimeout = 30 * time.Second

// Session is a rod-backed Driver attached to a pool's remote-debugging
// endpoint. Not safe for concurrent use; a pool's channels are processed
// strictly sequentially against its single session.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
}

// Connect attaches to the remote-debugging endpoint at addr (host:port).
// It adopts the browser's first existing page — the signed-in window the
// operator or launcher left open — and only creates a blank page when the
// browser has none.
func Connect(addr string) (*Session, error) {
	u, err := launcher.ResolveURL(addr)
	if err != nil {
		return nil, fmt.Errorf("resolving debug endpoint %s: %w", addr, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser at %s: %w", addr, err)
	}

	pages, err := browser.Pages()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("listing pages: %w", err)
	}

	var page *rod.Page
	if len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			_ = browser.Close()
			return nil, fmt.Errorf("opening page: %w", err)
		}
	}

	return &Session{
		browser: browser,
		page:    page,
		timeout: defaultOpTimeout,
	}, nil
}

// Navigate loads the URL and waits for the load event.
func (s *Session) Navigate(url string) error {
	if s.page == nil {
		return ErrNotConnected
	}
	page := s.page.Timeout(s.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for %s to load: %w", url, err)
	}
	return nil
}

// Eval runs a page script and unmarshals its JSON result into out.
func (s *Session) Eval(js string, out any) error {
	if s.page == nil {
		return ErrNotConnected
	}
	res, err := s.page.Timeout(s.timeout).Eval(js)
	if err != nil {
		return fmt.Errorf("evaluating page script: %w", err)
	}
	if out == nil {
		return nil
	}
	data, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("reading script result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding script result: %w", err)
	}
	return nil
}

// CurrentURL reports the page's current location.
func (s *Session) CurrentURL() (string, error) {
	if s.page == nil {
		return "", ErrNotConnected
	}
	info, err := s.page.Timeout(s.timeout).Info()
	if err != nil {
		return "", fmt.Errorf("reading page info: %w", err)
	}
	return info.URL, nil
}

// Close detaches from the browser without killing the process. The browser
// keeps running; only this handle is released.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	s.page = nil
	return err
}
