package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, sessionID)
	}))
	t.Cleanup(ts.Close)

	before := h.Clients()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == before {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestHubFiltersBySession(t *testing.T) {
	h := NewHub()
	defer h.Close()
	alice := dialHub(t, h, "alice")
	bob := dialHub(t, h, "bob")

	h.Publish(Event{Type: TypeJob, SessionID: "alice", Data: map[string]string{"status": "running"}})
	h.Publish(Event{Type: TypeMediaAdded, Data: MediaChange{Path: "a.mp4", Name: "a.mp4"}})

	if ev := readEvent(t, alice); ev.Type != TypeJob || ev.SessionID != "alice" {
		t.Errorf("alice first event %+v", ev)
	}
	if ev := readEvent(t, alice); ev.Type != TypeMediaAdded {
		t.Errorf("alice second event %+v", ev)
	}
	if ev := readEvent(t, bob); ev.Type != TypeMediaAdded {
		t.Errorf("bob should only see the broadcast, got %+v", ev)
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h, "s")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMediaWatcher(t *testing.T) {
	root := t.TempDir()
	got := make(chan Event, 10)
	w, err := WatchMedia(root, func(ev Event) { got <- ev })
	if err != nil {
		t.Fatalf("WatchMedia: %v", err)
	}
	defer w.Close()

	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "talk.mp4"), []byte("x"), 0644)

	select {
	case ev := <-got:
		if ev.Type != TypeMediaAdded {
			t.Fatalf("event type %s", ev.Type)
		}
		data, _ := json.Marshal(ev.Data)
		if !strings.Contains(string(data), `"path":"talk.mp4"`) {
			t.Errorf("payload %s", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no media.added event")
	}

	os.Remove(filepath.Join(root, "talk.mp4"))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-got:
			if ev.Type == TypeMediaRemoved {
				return
			}
		case <-deadline:
			t.Fatal("no media.removed event")
		}
	}
}
