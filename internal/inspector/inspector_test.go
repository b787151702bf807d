package inspector

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dunerun/dune/internal/eventloop"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	loop := eventloop.New(1)
	t.Cleanup(loop.Close)

	srv := New("127.0.0.1:0", "test target", loop.Handle())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) ([]byte, int) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return body, resp.StatusCode
}

func TestJSONVersionEndpoint(t *testing.T) {
	srv := startTestServer(t)
	body, status := get(t, "http://"+srv.addr+"/json/version")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var v Versions
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("unmarshaling: %v (body %s)", err, body)
	}
	if v.ProtocolVersion == "" {
		t.Error("expected a non-empty Protocol-Version")
	}
}

func TestJSONListEndpointDescribesOneTarget(t *testing.T) {
	srv := startTestServer(t)
	body, status := get(t, "http://"+srv.addr+"/json/list")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	var details []Details
	if err := json.Unmarshal(body, &details); err != nil {
		t.Fatalf("unmarshaling: %v (body %s)", err, body)
	}
	if len(details) != 1 {
		t.Fatalf("len(details) = %d, want 1", len(details))
	}
	if details[0].Title != "test target" {
		t.Errorf("Title = %q, want %q", details[0].Title, "test target")
	}
	if !strings.HasPrefix(details[0].WebSocketDebuggerURL, "ws://") {
		t.Errorf("WebSocketDebuggerURL = %q, want a ws:// URL", details[0].WebSocketDebuggerURL)
	}
}

// The test closes waitCh directly, the same step handleWS takes when a
// client sends Runtime.runIfWaitingForDebugger.
func TestWaitForDebuggerBlocksUntilWaitChClosed(t *testing.T) {
	srv := startTestServer(t)

	done := make(chan struct{})
	go func() {
		srv.WaitForDebugger()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForDebugger returned before any client attached")
	case <-time.After(50 * time.Millisecond):
	}

	srv.waitOnce.Do(func() { close(srv.waitCh) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForDebugger did not unblock after waitCh was closed")
	}
}
