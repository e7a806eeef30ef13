package launcher

import (
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/xcawolfe-amzn/greenroom/internal/registry"
)

// poolFor returns a Pool pointing at the test server's listener.
func poolFor(t *testing.T, srv *httptest.Server) registry.Pool {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return registry.Pool{ID: "test", Host: host, Port: port}
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"Browser":"Chrome/120.0"}`))
	}))
	defer srv.Close()

	c := NewChrome(t.TempDir(), log.New(io.Discard, "", 0))
	if !c.Reachable(poolFor(t, srv)) {
		t.Error("Reachable = false for live endpoint")
	}

	srv.Close()
	if c.Reachable(poolFor(t, srv)) {
		t.Error("Reachable = true for closed endpoint")
	}
}

func TestLaunchSkipsWhenReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewChrome(t.TempDir(), log.New(io.Discard, "", 0))
	// The endpoint already answers, so no browser process is started.
	if err := c.Launch(poolFor(t, srv), false); err != nil {
		t.Fatalf("Launch on reachable pool: %v", err)
	}
}
