// File: internal/mocks/fakedom.go
package mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

// -- Fake DOM --
//
// The fake DOM implements browser.Browser, browser.Page and browser.Element in memory.
// Nodes answer to literal selector strings rather than real CSS: a query selector list
// is split on commas and a node matches when any part equals one of its Selectors.

// Recorded event kinds.
const (
	EventClick    = "click"
	EventDispatch = "dispatch"
	EventClear    = "clear"
	EventType     = "type"
	EventSetValue = "set_value"
	EventPress    = "press"
	EventNavigate = "navigate"
	EventReload   = "reload"
	EventScroll   = "scroll"
)

// Event is one recorded interaction with the fake page.
type Event struct {
	Kind   string
	Target string
	Value  string
}

// FakeNode is a scripted DOM node.
type FakeNode struct {
	ID        string
	Selectors []string
	Text      string
	Hidden    bool
	Disabled  bool
	Removed   bool

	// Present, when set, decides whether the node is part of the current document.
	Present func(p *FakePage) bool
	// HiddenProbes makes the first N visibility probes report false.
	HiddenProbes int
	// NativeClickFailures makes the first N native clicks fail.
	NativeClickFailures int
	// ClickErr fails every native click.
	ClickErr error
	// DispatchErr fails every synthetic click.
	DispatchErr error
	// DetachOnClick removes the node before the click lands.
	DetachOnClick bool
	// Delay blocks each click for the given time or until the context ends.
	Delay time.Duration

	OnClick func(p *FakePage)
	OnPress func(p *FakePage, key string)

	Value string
}

// Button is a shorthand for a visible, enabled button node.
func Button(id, text string, selectors ...string) *FakeNode {
	if len(selectors) == 0 {
		selectors = []string{"button"}
	}
	return &FakeNode{ID: id, Text: text, Selectors: selectors}
}

// FakePage is an in-memory browsing context.
type FakePage struct {
	mu sync.Mutex

	id      string
	browser *FakeBrowser

	url        string
	title      string
	lastStatus int
	generation int
	nodes      []*FakeNode
	events     []Event

	// statuses holds per-URL scripted navigation statuses, consumed in order.
	statuses map[string][]int
	// State is free-form storage for node hooks.
	State map[string]string
	// DefaultStatus is returned once a URL's script is exhausted. Zero means 200.
	DefaultStatus int
	// NotFoundTitle replaces the title while the last status is 404.
	NotFoundTitle string
}

// NewFakePage creates a standalone page; use FakeBrowser.AddPage to attach one to a browser.
func NewFakePage(id, url, title string) *FakePage {
	return &FakePage{
		id:            id,
		url:           url,
		title:         title,
		lastStatus:    200,
		statuses:      make(map[string][]int),
		State:         make(map[string]string),
		NotFoundTitle: "404 Page Not Found",
	}
}

// Add appends nodes to the document in order.
func (p *FakePage) Add(nodes ...*FakeNode) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = append(p.nodes, nodes...)
	return p
}

// ScriptStatuses queues statuses returned by successive loads of url.
func (p *FakePage) ScriptStatuses(url string, statuses ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[url] = append(p.statuses[url], statuses...)
}

// Remove detaches the node with the given id from the document.
func (p *FakePage) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.nodes {
		if n.ID == id {
			n.Removed = true
		}
	}
}

// SetURL performs a same-document transition (history.pushState) without invalidating handles.
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Get reads a State entry.
func (p *FakePage) Get(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.State[key]
}

// Set writes a State entry.
func (p *FakePage) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State[key] = value
}

// Browser returns the owning fake browser, or nil for a standalone page.
func (p *FakePage) Browser() *FakeBrowser { return p.browser }

// Events returns a copy of the recorded interaction log.
func (p *FakePage) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Count returns how many events of the given kind hit the target. An empty target counts all.
func (p *FakePage) Count(kind, target string) int {
	n := 0
	for _, e := range p.Events() {
		if e.Kind == kind && (target == "" || e.Target == target) {
			n++
		}
	}
	return n
}

// Activations counts native and synthetic clicks on the target.
func (p *FakePage) Activations(target string) int {
	return p.Count(EventClick, target) + p.Count(EventDispatch, target)
}

// Node returns the node with the given id.
func (p *FakePage) Node(id string) *FakeNode {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (p *FakePage) record(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *FakePage) ID() string { return p.id }

func (p *FakePage) load(url string, kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.DefaultStatus
	if status == 0 {
		status = 200
	}
	if script := p.statuses[url]; len(script) > 0 {
		status = script[0]
		p.statuses[url] = script[1:]
	}
	p.url = url
	p.lastStatus = status
	p.generation++
	p.events = append(p.events, Event{Kind: kind, Value: url})
	return status
}

func (p *FakePage) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.load(url, EventNavigate), nil
}

func (p *FakePage) Reload(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()
	return p.load(url, EventReload), nil
}

func (p *FakePage) QueryAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts := strings.Split(q.Selector, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p.mu.Lock()
	nodes := make([]*FakeNode, len(p.nodes))
	copy(nodes, p.nodes)
	gen := p.generation
	p.mu.Unlock()

	var out []browser.Element
	for _, n := range nodes {
		if len(out) >= q.EffectiveLimit() {
			break
		}
		if !p.present(n) || !matches(n, parts) {
			continue
		}
		out = append(out, &fakeElement{page: p, node: n, gen: gen})
	}
	return out, nil
}

func matches(n *FakeNode, parts []string) bool {
	for _, part := range parts {
		for _, sel := range n.Selectors {
			if part == sel {
				return true
			}
		}
	}
	return false
}

func (p *FakePage) present(n *FakeNode) bool {
	p.mu.Lock()
	removed := n.Removed
	p.mu.Unlock()
	if removed {
		return false
	}
	return n.Present == nil || n.Present(p)
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastStatus == 404 {
		return p.NotFoundTitle, nil
	}
	return p.title, nil
}

// LastStatus returns the status of the most recent load.
func (p *FakePage) LastStatus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStatus
}

func (p *FakePage) Scroll(ctx context.Context, dy float64) error {
	p.record(Event{Kind: EventScroll, Value: fmt.Sprintf("%.0f", dy)})
	return nil
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("\x89PNG fake"), nil
}

func (p *FakePage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("<html><head><title>%s</title></head><body></body></html>", p.title), nil
}

// -- Fake Element --

type fakeElement struct {
	page *FakePage
	node *FakeNode
	gen  int
}

func (e *fakeElement) live() error {
	e.page.mu.Lock()
	gen := e.page.generation
	e.page.mu.Unlock()
	if gen != e.gen || !e.page.present(e.node) {
		return browser.ErrStaleElement
	}
	return nil
}

func (e *fakeElement) Describe() string { return fmt.Sprintf("fake#%s", e.node.ID) }

func (e *fakeElement) Text() string { return e.node.Text }

func (e *fakeElement) Visible(ctx context.Context) (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.node.HiddenProbes > 0 {
		e.node.HiddenProbes--
		return false, nil
	}
	return !e.node.Hidden, nil
}

func (e *fakeElement) Enabled(ctx context.Context) (bool, error) {
	if err := e.live(); err != nil {
		return false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return !e.node.Disabled, nil
}

func (e *fakeElement) ScrollIntoView(ctx context.Context) error {
	return e.live()
}

func (e *fakeElement) wait(ctx context.Context) error {
	if e.node.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.node.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *fakeElement) Click(ctx context.Context) error {
	if err := e.wait(ctx); err != nil {
		return err
	}
	if err := e.live(); err != nil {
		return err
	}

	e.page.mu.Lock()
	if e.node.DetachOnClick {
		e.node.Removed = true
		e.page.mu.Unlock()
		return browser.ErrStaleElement
	}
	if e.node.NativeClickFailures > 0 {
		e.node.NativeClickFailures--
		e.page.mu.Unlock()
		return errors.New("click intercepted by overlay")
	}
	clickErr := e.node.ClickErr
	e.page.mu.Unlock()
	if clickErr != nil {
		return clickErr
	}

	e.page.record(Event{Kind: EventClick, Target: e.node.ID})
	if e.node.OnClick != nil {
		e.node.OnClick(e.page)
	}
	return nil
}

func (e *fakeElement) DispatchClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.live(); err != nil {
		return err
	}
	if e.node.DispatchErr != nil {
		return e.node.DispatchErr
	}
	e.page.record(Event{Kind: EventDispatch, Target: e.node.ID})
	if e.node.OnClick != nil {
		e.node.OnClick(e.page)
	}
	return nil
}

func (e *fakeElement) Clear(ctx context.Context) error {
	if err := e.live(); err != nil {
		return err
	}
	e.page.mu.Lock()
	e.node.Value = ""
	e.page.mu.Unlock()
	e.page.record(Event{Kind: EventClear, Target: e.node.ID})
	return nil
}

func (e *fakeElement) TypeRune(ctx context.Context, r rune) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.live(); err != nil {
		return err
	}
	e.page.mu.Lock()
	e.node.Value += string(r)
	e.page.mu.Unlock()
	e.page.record(Event{Kind: EventType, Target: e.node.ID, Value: string(r)})
	return nil
}

func (e *fakeElement) SetValue(ctx context.Context, value string) error {
	if err := e.live(); err != nil {
		return err
	}
	e.page.mu.Lock()
	e.node.Value = value
	e.page.mu.Unlock()
	e.page.record(Event{Kind: EventSetValue, Target: e.node.ID, Value: value})
	return nil
}

func (e *fakeElement) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.live(); err != nil {
		return err
	}
	e.page.record(Event{Kind: EventPress, Target: e.node.ID, Value: key})
	if e.node.OnPress != nil {
		e.node.OnPress(e.page, key)
	}
	return nil
}

// -- Fake Browser --

// FakeBrowser holds fake pages and notifies watchers of newly opened ones.
type FakeBrowser struct {
	mu       sync.Mutex
	pages    []*FakePage
	watchers map[chan browser.Page]struct{}
	closed   bool
	seq      int
}

// NewFakeBrowser creates a browser with a single blank primary page.
func NewFakeBrowser() *FakeBrowser {
	b := &FakeBrowser{watchers: make(map[chan browser.Page]struct{})}
	b.AddPage("about:blank", "")
	return b
}

// Primary returns the first page.
func (b *FakeBrowser) Primary() *FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[0]
}

// AddPage attaches a page without notifying watchers.
func (b *FakeBrowser) AddPage(url, title string) *FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	p := NewFakePage(fmt.Sprintf("page-%d", b.seq), url, title)
	p.browser = b
	b.pages = append(b.pages, p)
	return p
}

// OpenPage simulates a link that opens a new tab and notifies watchers.
func (b *FakeBrowser) OpenPage(url, title string) *FakePage {
	p := b.AddPage(url, title)

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.watchers {
		select {
		case ch <- p:
		default:
		}
	}
	return p
}

// Closed reports whether Close was called.
func (b *FakeBrowser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *FakeBrowser) Pages(ctx context.Context) ([]browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]browser.Page, 0, len(b.pages))
	for _, p := range b.pages {
		out = append(out, p)
	}
	return out, nil
}

func (b *FakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	return b.AddPage("about:blank", ""), nil
}

func (b *FakeBrowser) WatchNewPage(ctx context.Context) <-chan browser.Page {
	ch := make(chan browser.Page, 4)
	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *FakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var (
	_ browser.Browser = (*FakeBrowser)(nil)
	_ browser.Page    = (*FakePage)(nil)
	_ browser.Element = (*fakeElement)(nil)
)
