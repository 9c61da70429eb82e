// Package browser drives Chrome through go-rod: launch or attach, open the
// task page, annotate interactive elements and play supervised actions.
package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"browsernerd-agent/internal/config"
	"browsernerd-agent/internal/supervisor"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

//go:embed scripts/mark_page.js
var markPageJS string

const stealthJS = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || {};
window.chrome.runtime = window.chrome.runtime || {};
`

// ErrNotStarted is returned by page operations before Open succeeds.
var ErrNotStarted = errors.New("browser not started")

// Annotation is one observation of the page: the interactive elements, the
// clean screenshot that is saved, and the boxed copy the model sees.
type Annotation struct {
	Elements   []supervisor.Element
	Screenshot []byte
	Annotated  []byte
}

// Driver owns one Chrome instance and the single page a task runs in.
type Driver struct {
	cfg     config.BrowserConfig
	timings Timings
	logger  *zap.Logger

	mu       sync.Mutex
	launch   *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	controlU string
}

func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := DefaultTimings()
	t.AfterClick = cfg.ActionPause()
	return &Driver{cfg: cfg, timings: t, logger: logger.Named("browser")}
}

// Start connects to debugger_url or launches a local Chrome.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		d.logger.Warn("stale browser connection, reconnecting")
		d.closeLocked()
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().
			Headless(d.cfg.IsHeadless()).
			Set("disable-blink-features", "AutomationControlled").
			Delete("enable-automation")
		if d.cfg.Bin != "" {
			l = l.Bin(d.cfg.Bin)
		}
		if d.cfg.UserDataDir != "" {
			l = l.UserDataDir(d.cfg.UserDataDir)
		}
		for _, raw := range d.cfg.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		d.launch = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	d.browser = b
	d.controlU = controlURL
	d.logger.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

// Open creates the task page, sizes the viewport and navigates to url.
// A profile directory keeps the default context so stored logins apply.
func (d *Driver) Open(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return ErrNotStarted
	}
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}

	owner := d.browser
	if d.cfg.UserDataDir == "" && d.cfg.DebuggerURL == "" {
		incognito, err := d.browser.Incognito()
		if err != nil {
			return fmt.Errorf("incognito context: %w", err)
		}
		owner = incognito
	}

	page, err := owner.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.GetViewportWidth(),
		Height:            d.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		d.logger.Warn("set viewport failed", zap.Error(err))
	}
	if _, err := page.EvalOnNewDocument(stealthJS); err != nil {
		d.logger.Debug("stealth script not installed", zap.Error(err))
	}

	nav := page.Context(ctx).Timeout(d.cfg.NavigationTimeout())
	if err := nav.Navigate(url); err != nil {
		_ = page.Close()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		d.logger.Warn("page load wait timed out, continuing", zap.String("url", url), zap.Error(err))
	}

	d.page = page
	d.logger.Info("page opened", zap.String("url", url))
	pause(ctx, d.timings.Wait)
	return nil
}

func (d *Driver) current() (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil, ErrNotStarted
	}
	return d.page, nil
}

// Eval runs a JS function expression in the page and decodes its result into out.
func (d *Driver) Eval(ctx context.Context, js string, out any) error {
	page, err := d.current()
	if err != nil {
		return err
	}
	res, err := page.Context(ctx).Eval(js)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	raw, err := json.Marshal(res.Value.Val())
	if err != nil {
		return fmt.Errorf("encode eval result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// Annotate collects interactive elements and captures the clean and boxed screenshots.
// The page itself is never modified.
func (d *Driver) Annotate(ctx context.Context) (Annotation, error) {
	var ann Annotation
	if err := d.Eval(ctx, markPageJS, &ann.Elements); err != nil {
		return ann, fmt.Errorf("collect elements: %w", err)
	}

	shot, err := d.Screenshot(ctx)
	if err != nil {
		return ann, err
	}
	ann.Screenshot = shot

	boxed, err := DrawBoxes(shot, ann.Elements)
	if err != nil {
		d.logger.Warn("annotation overlay failed, sending clean screenshot", zap.Error(err))
		boxed = shot
	}
	ann.Annotated = boxed
	d.logger.Debug("page annotated", zap.Int("elements", len(ann.Elements)))
	return ann, nil
}

// Screenshot captures the viewport as PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	page, err := d.current()
	if err != nil {
		return nil, err
	}
	shot, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return shot, nil
}

// Execute plays action on the page and returns the observation string.
func (d *Driver) Execute(ctx context.Context, action supervisor.Action, elements []supervisor.Element) string {
	page, err := d.current()
	if err != nil {
		return "Error: No page available"
	}
	return Play(ctx, rodInput{page: page}, d.timings, action, elements)
}

// URL returns the current page URL, or "" before Open.
func (d *Driver) URL(ctx context.Context) string {
	info := d.info(ctx)
	if info == nil {
		return ""
	}
	return info.URL
}

// Title returns the current page title, or "" before Open.
func (d *Driver) Title(ctx context.Context) string {
	info := d.info(ctx)
	if info == nil {
		return ""
	}
	return info.Title
}

func (d *Driver) info(ctx context.Context) *proto.TargetTargetInfo {
	page, err := d.current()
	if err != nil {
		return nil
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return nil
	}
	return info
}

// ControlURL returns the DevTools endpoint of the connected browser.
func (d *Driver) ControlURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controlU
}

// Close shuts the page and browser, and kills a launched Chrome.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Driver) closeLocked() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.launch != nil {
		d.launch.Kill()
		d.launch.Cleanup()
		d.launch = nil
	}
	d.controlU = ""
	return err
}

type rodInput struct {
	page *rod.Page
}

func (r rodInput) ClickAt(ctx context.Context, x, y float64) error {
	p := r.page.Context(ctx)
	if err := p.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("move mouse: %w", err)
	}
	return p.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (r rodInput) ClearAndType(ctx context.Context, text string) error {
	p := r.page.Context(ctx)
	modifier := input.ControlLeft
	if runtime.GOOS == "darwin" {
		modifier = input.MetaLeft
	}
	if err := p.KeyActions().Press(modifier).Type(input.KeyA).Do(); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	if err := p.Keyboard.Type(input.Backspace); err != nil {
		return fmt.Errorf("clear field: %w", err)
	}
	if text == "" {
		return nil
	}
	return p.InsertText(text)
}

func (r rodInput) ScrollBy(ctx context.Context, dy float64) error {
	return r.page.Context(ctx).Mouse.Scroll(0, dy, 1)
}
