//go:build e2e

package surface

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rendis/flowdesigner/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPage implements the designer page API on plain objects.
const stubPage = `<!doctype html>
<html><body><div id="canvas"></div>
<script>
const instances = {};
let seq = 0;
window.flowdesigner = {
  async createSurface(container, readOnly) {
    const h = "s" + (++seq);
    instances[h] = {graph: {nodes: [], edges: []}, readOnly, grid: ""};
    return h;
  },
  loadGraph(h, g) { instances[h].graph = g; },
  readGraph(h) { return instances[h].graph; },
  addNode(h, n) { instances[h].graph.nodes.push(n); },
  updateNode(h, id, activity, ports) {
    const n = instances[h].graph.nodes.find(n => n.id === id);
    n.ports = ports;
  },
  updateNodeSize(h, id, size) {
    instances[h].graph.nodes.find(n => n.id === id).size = size;
  },
  setGridColor(h, c) { instances[h].grid = c; },
  disposeSurface(h) { delete instances[h]; },
  select(h, id) {
    window.flowdesignerEmit(JSON.stringify({surface: h, event_type: "node_selected", activity_id: id}));
  },
};
</script></body></html>`

func TestBrowserSurface_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(stubPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub := streaming.NewMemoryHub()
	b, err := NewBrowserSurface(ctx, BrowserOptions{URL: srv.URL, Headless: true, Hub: hub})
	require.NoError(t, err)
	defer b.Close()

	c := NewClient(b, nil)
	h, err := c.Open(ctx, "canvas", false)
	require.NoError(t, err)
	assert.Equal(t, Handle("s1"), h)

	require.NoError(t, c.LoadGraph(ctx, sampleGraph()))
	g, err := c.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders", g.Title)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "Start", g.Nodes[0].Label)

	ch, unsub, err := hub.Subscribe(ctx, streaming.EventFilter{Surface: string(h)})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, b.call(ctx, nil, "select", h, "a"))
	select {
	case ev := <-ch:
		assert.Equal(t, streaming.EventNodeSelected, ev.EventType)
		assert.Equal(t, "a", ev.ActivityID)
	case <-time.After(5 * time.Second):
		t.Fatal("binding event not received")
	}

	require.NoError(t, c.Close(ctx))
}
