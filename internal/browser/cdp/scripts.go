// internal/browser/cdp/scripts.go
package cdp

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// registryJS returns the per-document handle registry, creating it on first use.
// The token changes with every new document, so handles from a previous page never
// resolve against nodes of the next one.
const registryJS = `(() => {
  let reg = window.__lancetRegistry;
  if (!reg) {
    reg = { token: Math.random().toString(36).slice(2), seq: 0, nodes: new Map(), ids: new WeakMap() };
    Object.defineProperty(window, '__lancetRegistry', { value: reg, enumerable: false });
  }
  return reg;
})()`

// queryJS collects matches from the document and every same-origin frame.
const queryJS = `(selector, limit) => {
  const reg = ` + registryJS + `;
  const docs = [document];
  for (const f of document.querySelectorAll('iframe, frame')) {
    try { if (f.contentDocument) docs.push(f.contentDocument); } catch (e) {}
  }
  const out = [];
  for (const doc of docs) {
    for (const n of doc.querySelectorAll(selector)) {
      if (out.length >= limit) return out;
      let id = reg.ids.get(n);
      if (!id) {
        id = reg.token + ':' + (++reg.seq);
        reg.ids.set(n, id);
        reg.nodes.set(id, n);
      }
      const text = (n.getAttribute('aria-label') || n.innerText || n.value || n.getAttribute('placeholder') || '').trim();
      out.push({ id: id, text: text, tag: n.tagName.toLowerCase() });
    }
  }
  return out;
}`

// elementJS wraps body, a function of (node, arg), with the handle lookup.
const elementJS = `(id, arg) => {
  const reg = window.__lancetRegistry;
  const n = reg && reg.nodes.get(id);
  if (!n || !n.isConnected) return { stale: true };
  return { stale: false, value: (%s)(n, arg) };
}`

const (
	visibleBody = `n => {
  const r = n.getBoundingClientRect();
  const s = n.ownerDocument.defaultView.getComputedStyle(n);
  return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none' && parseFloat(s.opacity || '1') > 0;
}`
	enabledBody = `n => !(n.disabled || n.getAttribute('aria-disabled') === 'true' || n.closest('fieldset[disabled]'))`
	scrollBody  = `n => { n.scrollIntoView({ block: 'center', inline: 'center' }); return true; }`
	// centerBody reports the viewport centre of the node, offset by enclosing frames,
	// and whether the node (or a descendant) receives a hit at that point.
	centerBody = `n => {
  const r = n.getBoundingClientRect();
  const lx = r.left + r.width / 2, ly = r.top + r.height / 2;
  const top = n.ownerDocument.elementFromPoint(lx, ly);
  let x = lx, y = ly, w = n.ownerDocument.defaultView;
  while (w && w.frameElement) {
    const fr = w.frameElement.getBoundingClientRect();
    x += fr.left; y += fr.top; w = w.parent;
  }
  return { x: x, y: y, hit: !!top && (top === n || n.contains(top)) };
}`
	dispatchClickBody = `n => { n.click(); return true; }`
	focusBody         = `n => { if (n.ownerDocument.activeElement !== n) n.focus(); return true; }`
	setValueBody      = `(n, v) => {
  const d = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(n), 'value');
  if (d && d.set) { d.set.call(n, v); } else { n.value = v; }
  n.dispatchEvent(new Event('input', { bubbles: true }));
  n.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
}`
)

const viewportCenterJS = `[window.innerWidth / 2, window.innerHeight / 2]`

const contentJS = `document.documentElement ? document.documentElement.outerHTML : ''`

// call renders fn applied to the JSON encoded args.
func call(fn string, args ...any) (string, error) {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		b, err := json.ConfigCompatibleWithStandardLibrary.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument %d: %w", i, err)
		}
		if i > 0 {
			encoded = append(encoded, ',')
		}
		encoded = append(encoded, b...)
	}
	return fmt.Sprintf("(%s)(%s)", fn, encoded), nil
}

// elementCall renders body against the node registered under id.
func elementCall(id, body string, arg any) (string, error) {
	return call(fmt.Sprintf(elementJS, body), id, arg)
}

type queryResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

type elementResult struct {
	Stale bool            `json:"stale"`
	Value json.RawMessage `json:"value"`
}

type point struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Hit bool    `json:"hit"`
}
