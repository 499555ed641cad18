package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/streaming"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// bindingName is the function the page calls to report surface callbacks.
const bindingName = "flowdesignerEmit"

// BrowserSurface drives a designer page in a headless browser. The page must
// expose window.flowdesigner with createSurface, loadGraph, readGraph,
// addNode, updateNode, updateNodeSize, setGridColor and disposeSurface, and
// report user interaction by calling window.flowdesignerEmit with a JSON
// StreamEvent.
type BrowserSurface struct {
	hub    streaming.EventHub
	logger *slog.Logger

	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// BrowserOptions configures NewBrowserSurface.
type BrowserOptions struct {
	URL      string
	Headless bool
	Hub      streaming.EventHub
	Logger   *slog.Logger
}

// NewBrowserSurface launches a browser, opens opts.URL and waits until the
// page exposes the designer API.
func NewBrowserSurface(ctx context.Context, opts BrowserOptions) (*BrowserSurface, error) {
	if opts.URL == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "browser surface requires a page URL")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	b := &BrowserSurface{
		hub:         opts.Hub,
		logger:      logger,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == bindingName {
			go b.emit(e.Payload)
		}
	})

	var ready bool
	err := b.run(ctx,
		runtime.AddBinding(bindingName),
		chromedp.Navigate(opts.URL),
		chromedp.Poll("typeof window.flowdesigner === 'object'", &ready),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open designer page %s: %w", opts.URL, err)
	}
	logger.Info("browser surface ready", slog.String("url", opts.URL))
	return b, nil
}

// Close shuts the browser down.
func (b *BrowserSurface) Close() {
	b.cancelTab()
	b.cancelAlloc()
}

func (b *BrowserSurface) Create(ctx context.Context, containerID string, readOnly bool) (Handle, error) {
	var h string
	if err := b.call(ctx, &h, "createSurface", containerID, readOnly); err != nil {
		return "", err
	}
	return Handle(h), nil
}

func (b *BrowserSurface) LoadGraph(ctx context.Context, h Handle, g *diagram.Graph) error {
	return b.call(ctx, nil, "loadGraph", h, g)
}

func (b *BrowserSurface) ReadGraph(ctx context.Context, h Handle) (*diagram.Graph, error) {
	var g diagram.Graph
	if err := b.call(ctx, &g, "readGraph", h); err != nil {
		return nil, err
	}
	return &g, nil
}

func (b *BrowserSurface) AddNode(ctx context.Context, h Handle, n *diagram.Node) error {
	return b.call(ctx, nil, "addNode", h, n)
}

func (b *BrowserSurface) UpdateNode(ctx context.Context, h Handle, nodeID string, activity *schema.Activity, ports []diagram.NodePort) error {
	return b.call(ctx, nil, "updateNode", h, nodeID, activity, ports)
}

func (b *BrowserSurface) UpdateNodeSize(ctx context.Context, h Handle, nodeID string, size schema.Size, portCount int) error {
	return b.call(ctx, nil, "updateNodeSize", h, nodeID, size, portCount)
}

func (b *BrowserSurface) SetGridColor(ctx context.Context, h Handle, color string) error {
	return b.call(ctx, nil, "setGridColor", h, color)
}

func (b *BrowserSurface) Dispose(ctx context.Context, h Handle) error {
	return b.call(ctx, nil, "disposeSurface", h)
}

// call invokes window.flowdesigner.<fn> with JSON-encoded arguments and
// awaits the returned promise. res receives the JSON result; nil discards it.
func (b *BrowserSurface) call(ctx context.Context, res any, fn string, args ...any) error {
	js, err := jsCall(fn, args...)
	if err != nil {
		return err
	}
	await := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}
	if err := b.run(ctx, chromedp.Evaluate(js, res, await)); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

// run executes actions on the tab, aborting when ctx is done.
func (b *BrowserSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (b *BrowserSurface) emit(payload string) {
	var ev streaming.StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("malformed surface event", slog.String("error", err.Error()))
		return
	}
	if b.hub == nil {
		return
	}
	if err := b.hub.Publish(b.tabCtx, ev); err != nil {
		b.logger.Warn("publish surface event", slog.String("error", err.Error()))
	}
}

// jsCall renders `window.flowdesigner.fn(arg1, arg2, ...)`.
func jsCall(fn string, args ...any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode %s argument %d: %w", fn, i, err)
		}
		parts[i] = string(raw)
	}
	return fmt.Sprintf("window.flowdesigner.%s(%s)", fn, strings.Join(parts, ", ")), nil
}

var _ Surface = (*BrowserSurface)(nil)
