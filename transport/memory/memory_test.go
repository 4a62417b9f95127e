package memory

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/IvanBrykalov/rescache/transport"
)

func do(t *testing.T, b *Backend, method, addr string, body any) (*transport.Response, error) {
	t.Helper()
	return b.Do(context.Background(), &transport.Request{Method: method, Addr: addr, Body: body})
}

func TestBackend_CRUD(t *testing.T) {
	t.Parallel()

	b := New(Options{NewID: func() string { return "n1" }})
	b.Seed("/items/1", map[string]any{"id": 1})

	res, err := do(t, b, http.MethodGet, "/items", nil)
	if err != nil {
		t.Fatal(err)
	}
	if list := res.Data.([]any); len(list) != 1 {
		t.Fatalf("list want 1 item, got %v", list)
	}

	res, err = do(t, b, http.MethodPost, "/items", map[string]any{"name": "x"})
	if err != nil || res.Status != http.StatusCreated {
		t.Fatalf("post: %v %v", res, err)
	}
	if _, ok := b.Item("/items/n1"); !ok {
		t.Fatal("posted item must be stored under the assigned id")
	}

	if _, err := do(t, b, http.MethodPut, "/items/1", map[string]any{"name": "one"}); err != nil {
		t.Fatal(err)
	}
	if it, _ := b.Item("/items/1"); it["name"] != "one" || it["id"] != 1 {
		t.Fatalf("put must merge, got %v", it)
	}

	if _, err := do(t, b, http.MethodDelete, "/items/1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := do(t, b, http.MethodGet, "/items/1", nil); !transport.IsNotFound(err) {
		t.Fatalf("want 404 after delete, got %v", err)
	}
	if _, err := do(t, b, http.MethodDelete, "/items/1", nil); !transport.IsNotFound(err) {
		t.Fatalf("second delete: want 404, got %v", err)
	}
	if b.Calls(http.MethodDelete) != 2 || b.TotalCalls() != 6 {
		t.Fatalf("calls: delete=%d total=%d", b.Calls(http.MethodDelete), b.TotalCalls())
	}
}

// Default ids come from uuid.
func TestBackend_UUIDIDs(t *testing.T) {
	t.Parallel()

	b := New(Options{})
	res, err := do(t, b, http.MethodPost, "/things", nil)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.Data.(map[string]any)["id"].(string)
	if len(id) != 36 {
		t.Fatalf("want a uuid id, got %q", id)
	}
}

// Held calls are counted immediately and complete after Release.
func TestBackend_HoldRelease(t *testing.T) {
	t.Parallel()

	b := New(Options{})
	b.Collection("/empty")
	b.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := do(t, b, http.MethodGet, "/empty", nil)
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for b.Calls(http.MethodGet) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("call must block while held")
	case <-time.After(10 * time.Millisecond):
	}
	b.Release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
