package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aicodereview/page-smoke-tests/framework"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const describeTimeout = time.Second * 2

// Returns the deepest elements under body whose text content contains the argument, with
// whitespace collapsed the same way collapseWhitespace does.
const findByTextJS = `(want) => {
	const norm = (s) => s.replace(/\s+/g, ' ').trim();
	const skip = new Set(['SCRIPT', 'STYLE', 'TEMPLATE', 'NOSCRIPT']);
	const matches = (el) => !skip.has(el.tagName) && norm(el.textContent).includes(want);
	const found = [];
	const walk = (el) => {
		if (!matches(el)) return false;
		let deeper = false;
		for (const c of el.children) {
			if (walk(c)) deeper = true;
		}
		if (!deeper) found.push(el);
		return true;
	};
	if (document.body) walk(document.body);
	return found;
}`

// True if the element or any ancestor has a computed opacity of zero.
const transparentJS = `() => {
	for (let el = this; el; el = el.parentElement) {
		if (parseFloat(getComputedStyle(el).opacity) === 0) return true;
	}
	return false;
}`

// ChromeBrowser drives a headless Chromium through the DevTools protocol.
type ChromeBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   framework.Logger
}

// OpenChrome launches Chromium and connects to it. If bin is empty, an installed browser
// is used if one can be found; otherwise one is downloaded.
func OpenChrome(bin string, headless bool, logger framework.Logger) (*ChromeBrowser, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	l := launcher.New().Headless(headless)
	if bin != "" {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	logger.Printf("Launched browser, control URL %s", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	return &ChromeBrowser{launcher: l, browser: b, logger: logger}, nil
}

// Visit opens url in a new incognito context, so that nothing from earlier visits is
// visible to it. The context is discarded when the page is closed. ctx only bounds the
// navigation; the page stays usable after it is done.
func (b *ChromeBrowser) Visit(ctx context.Context, url string, logger framework.Logger) (Page, error) {
	if logger == nil {
		logger = b.logger
	}
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	p := &chromePage{url: url, page: page, incognito: incognito}

	navigating := page.Context(ctx)
	status := 0
	waitResponse := navigating.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		return true
	})

	logger.Printf("Navigating to %s", url)
	if err := navigating.Navigate(url); err != nil {
		_ = p.Close()
		return nil, &NavigationError{URL: url, Err: err}
	}
	waitResponse()
	if err := ctx.Err(); err != nil {
		_ = p.Close()
		return nil, &NavigationError{URL: url, Err: err}
	}
	if status < 200 || status >= 300 {
		_ = p.Close()
		return nil, &NavigationError{URL: url, Reason: fmt.Sprintf("server responded with HTTP status %d", status)}
	}
	if err := navigating.WaitLoad(); err != nil {
		_ = p.Close()
		return nil, &NavigationError{URL: url, Reason: "page did not finish loading", Err: err}
	}
	if info, err := page.Info(); err == nil {
		p.url = info.URL
	}
	logger.Printf("Loaded %s", p.url)
	return p, nil
}

func (b *ChromeBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	return err
}

type chromePage struct {
	url       string
	page      *rod.Page
	incognito *rod.Browser
}

func (p *chromePage) URL() string {
	return p.url
}

func (p *chromePage) Find(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (p *chromePage) FindByText(ctx context.Context, text string) ([]Element, error) {
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(findByTextJS, collapseWhitespace(text)))
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (p *chromePage) Close() error {
	err := p.page.Close()
	if cerr := p.incognito.Close(); err == nil {
		err = cerr
	}
	return err
}

func wrapElements(els rod.Elements) []Element {
	ret := make([]Element, 0, len(els))
	for _, el := range els {
		ret = append(ret, &chromeElement{el: el})
	}
	return ret
}

type chromeElement struct {
	el *rod.Element
}

// Visible adds an opacity check to rod's, which only looks at layout and visibility.
func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	el := e.el.Context(ctx)
	visible, err := el.Visible()
	if err != nil || !visible {
		return false, err
	}
	res, err := el.Eval(transparentJS)
	if err != nil {
		return false, err
	}
	return !res.Value.Bool(), nil
}

// Describe may be called after the context the element was found with is done, so it
// uses its own.
func (e *chromeElement) Describe() string {
	ctx, cancel := context.WithTimeout(context.Background(), describeTimeout)
	defer cancel()
	res, err := e.el.Context(ctx).Eval(`() => {
		let s = '<' + this.tagName.toLowerCase();
		if (this.id) s += ' id="' + this.id + '"';
		if (this.className) s += ' class="' + this.className + '"';
		return s + '>';
	}`)
	if err != nil {
		return "<element>"
	}
	return strings.TrimSpace(res.Value.Str())
}
