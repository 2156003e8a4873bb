package automation

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
)

// elementScanScript collects visible interactive elements with a generated
// CSS selector, role, text and position. The driver's heuristic detection
// scores these candidates client-side.
const elementScanScript = `
(() => {
	const interactive = document.querySelectorAll('a, button, input, [role], [onclick], [contenteditable]');
	const results = [];
	let index = 0;
	for (const el of interactive) {
		const rect = el.getBoundingClientRect();
		const visible = rect.width > 0 && rect.height > 0 && window.getComputedStyle(el).visibility !== 'hidden';
		let selector = el.tagName.toLowerCase();
		if (el.id) {
			selector = '#' + CSS.escape(el.id);
		} else {
			el.setAttribute('data-warmup-scan', String(index));
			selector = '[data-warmup-scan="' + index + '"]';
		}
		results.push({
			selector: selector,
			role: el.getAttribute('role') || el.tagName.toLowerCase(),
			text: (el.innerText || el.value || el.getAttribute('aria-label') || '').slice(0, 120),
			x: rect.x,
			y: rect.y,
			visible: visible,
		});
		index++;
	}
	return results;
})()
`

// ChromeBrowser drives a headless Chrome session over the DevTools protocol.
type ChromeBrowser struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func NewChromeBrowser(parent context.Context, headless bool) (*ChromeBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Spin up the browser process eagerly so construction fails fast when
	// Chrome is unavailable.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, errors.Wrap(err, "failed to start browser session")
	}

	return &ChromeBrowser{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

func (b *ChromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (b *ChromeBrowser) Type(ctx context.Context, selector, text string) error {
	return b.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (b *ChromeBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	var exists bool
	script := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	err := b.run(ctx, chromedp.Evaluate(script, &exists))
	return exists, err
}

func (b *ChromeBrowser) VisibleElements(ctx context.Context) ([]interfaces.BrowserElement, error) {
	var elements []interfaces.BrowserElement
	err := b.run(ctx, chromedp.Evaluate(elementScanScript, &elements))
	return elements, err
}

func (b *ChromeBrowser) Close() error {
	b.cancelCtx()
	b.cancelAlloc()
	return nil
}

// run executes actions on the browser context while honoring the caller's
// deadline.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := b.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(b.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}
