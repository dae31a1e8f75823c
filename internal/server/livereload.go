package server

import (
	"bufio"
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/kart/internal/logfields"
)

// Live reload endpoints.
const (
	LiveReloadPath       = "/_kart/livereload"
	LiveReloadScriptPath = "/_kart/livereload.js"
)

// LiveReloadScript connects to the hub and reloads the page when the
// snapshot hash changes.
const LiveReloadScript = `(() => {
  if (window.__KART_LR__) return;
  window.__KART_LR__ = true;
  function connect() {
    const es = new EventSource('` + LiveReloadPath + `');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.hash; return; }
        if (p.hash && p.hash !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`

// LiveReloadHub manages SSE clients for snapshot hash broadcasts.
type LiveReloadHub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	closed   bool
	lastHash string
	// Heartbeat is the keep-alive interval.
	Heartbeat time.Duration
}

type lrClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewLiveReloadHub creates an empty hub.
func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]*lrClient{}, Heartbeat: 30 * time.Second}
}

// ServeHTTP implements the SSE endpoint.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &lrClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	current := h.lastHash
	h.mu.Unlock()
	defer h.removeClient(client.id)

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("livereload write", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	greeting := ": connected\n\n"
	if current != "" {
		greeting += hashEvent(current)
	}
	if !send(greeting) {
		return
	}

	hb := time.NewTicker(h.Heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case hash := <-client.ch:
			if !send(hashEvent(hash)) {
				return
			}
		}
	}
}

func hashEvent(hash string) string {
	return "data: {\"hash\":\"" + hash + "\"}\n\n"
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected clients.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends hash to every client. Repeated hashes are ignored; clients
// whose buffers are full are dropped.
func (h *LiveReloadHub) Broadcast(hash string) {
	h.mu.Lock()
	if h.closed || hash == "" || hash == h.lastHash {
		h.mu.Unlock()
		return
	}
	h.lastHash = hash
	clients := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range clients {
		select {
		case c.ch <- hash:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", logfields.Snapshot(hash), slog.Int("clients", len(clients)), slog.Int("dropped", dropped))
}

// Shutdown disconnects every client and stops future broadcasts.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

// ServeScript serves the client script.
func ServeScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(LiveReloadScript))
}

// InjectScript adds the live reload script tag to the end of the body of
// an HTML document. Documents that fail to parse are returned unchanged.
func InjectScript(doc []byte) []byte {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return doc
	}
	body := findElement(root, atom.Body)
	if body == nil {
		return doc
	}
	body.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     []html.Attribute{{Key: "src", Val: LiveReloadScriptPath}, {Key: "async"}},
	})

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return doc
	}
	return out.Bytes()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// htmlBuffer collects a rendered response so the script can be injected
// before it is written.
type htmlBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newHTMLBuffer() *htmlBuffer {
	return &htmlBuffer{header: http.Header{}, status: http.StatusOK}
}

func (b *htmlBuffer) Header() http.Header         { return b.header }
func (b *htmlBuffer) WriteHeader(code int)        { b.status = code }
func (b *htmlBuffer) Write(p []byte) (int, error) { return b.body.Write(p) }

// flush copies the buffered response to w, injecting the script into
// HTML bodies.
func (b *htmlBuffer) flush(w http.ResponseWriter, inject bool) {
	body := b.body.Bytes()
	for k, v := range b.header {
		w.Header()[k] = v
	}
	if inject && isHTML(b.header.Get("Content-Type")) {
		body = InjectScript(body)
		w.Header().Del("Content-Length")
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(body)
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html")
}
