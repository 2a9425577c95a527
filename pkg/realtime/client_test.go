package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxlab/go-dictate/pkg/credentials"
)

// fakeService is a websocket endpoint that performs the session handshake
// and hands the connection to a per-test scenario.
type fakeService struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	sessionUpdate map[string]json.RawMessage
	received      []map[string]json.RawMessage
}

func newFakeService(t *testing.T, scenario func(conn *websocket.Conn, svc *fakeService)) *fakeService {
	t.Helper()
	svc := &fakeService{t: t}
	svc.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
			t.Errorf("missing bearer token, got %q", got)
		}
		conn, err := svc.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Every session starts with the client's session.update.
		var update map[string]json.RawMessage
		if err := conn.ReadJSON(&update); err != nil {
			t.Errorf("reading session.update: %v", err)
			return
		}
		svc.mu.Lock()
		svc.sessionUpdate = update
		svc.mu.Unlock()

		if err := conn.WriteJSON(map[string]string{"type": "session.created"}); err != nil {
			return
		}

		if scenario != nil {
			scenario(conn, svc)
		} else {
			// Keep the connection open until the client leaves.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(svc.srv.Close)
	return svc
}

func (s *fakeService) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// collect reads n client messages off the connection.
func (s *fakeService) collect(conn *websocket.Conn, n int) {
	for i := 0; i < n; i++ {
		var msg map[string]json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()
	}
}

func (s *fakeService) receivedTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.received))
	for i, msg := range s.received {
		var typ string
		_ = json.Unmarshal(msg["type"], &typ)
		types[i] = typ
	}
	return types
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		Credentials:      credentials.Static("test-token"),
		URL:              url,
		HandshakeTimeout: 2 * time.Second,
		ReadTimeout:      2 * time.Second,
		WriteTimeout:     2 * time.Second,
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestClientConnect(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		c := NewClient(Config{})
		err := c.Connect(context.Background())
		if !errors.Is(err, ErrMissingCredential) {
			t.Errorf("expected ErrMissingCredential, got %v", err)
		}
		if !IsCredentialError(err) {
			t.Error("IsCredentialError should match")
		}
	})

	t.Run("empty token rejected", func(t *testing.T) {
		c := NewClient(Config{Credentials: credentials.Static("")})
		if err := c.Connect(context.Background()); !errors.Is(err, ErrMissingCredential) {
			t.Errorf("expected ErrMissingCredential, got %v", err)
		}
	})

	t.Run("declares session configuration", func(t *testing.T) {
		svc := newFakeService(t, nil)
		c := newTestClient(svc.url())

		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		if !c.IsConnected() {
			t.Error("should be connected")
		}
		waitFor(t, c.Ready, "session never became ready")

		svc.mu.Lock()
		update := svc.sessionUpdate
		svc.mu.Unlock()

		var typ string
		_ = json.Unmarshal(update["type"], &typ)
		if typ != "session.update" {
			t.Errorf("first message type: got %q, want session.update", typ)
		}

		var session map[string]json.RawMessage
		if err := json.Unmarshal(update["session"], &session); err != nil {
			t.Fatalf("session payload: %v", err)
		}
		if string(session["turn_detection"]) != "null" {
			t.Errorf("turn_detection must be explicit null, got %s", session["turn_detection"])
		}
		if string(session["tools"]) != "[]" {
			t.Errorf("tools must be an empty array, got %s", session["tools"])
		}
		if string(session["input_audio_format"]) != `"pcm16"` {
			t.Errorf("input format: got %s", session["input_audio_format"])
		}
		var trans map[string]string
		_ = json.Unmarshal(session["input_audio_transcription"], &trans)
		if trans["model"] != DefaultTranscriptionModel {
			t.Errorf("transcription model: got %q", trans["model"])
		}
	})

	t.Run("second connect rejected", func(t *testing.T) {
		svc := newFakeService(t, nil)
		c := newTestClient(svc.url())

		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		if err := c.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("expected ErrAlreadyConnected, got %v", err)
		}
	})

	t.Run("dial failure is a connection error", func(t *testing.T) {
		c := newTestClient("ws://127.0.0.1:1")
		err := c.Connect(context.Background())
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			t.Errorf("expected ConnectionError, got %v", err)
		}
		if c.State() != StateDisconnected {
			t.Errorf("state after failed dial: %v", c.State())
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		svc := newFakeService(t, nil)
		c := newTestClient(svc.url())
		_ = c.Connect(context.Background())

		if err := c.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("second close failed: %v", err)
		}
		if c.IsConnected() {
			t.Error("should be disconnected")
		}
	})
}

func TestClientSubmission(t *testing.T) {
	collected := make(chan struct{})
	svc := newFakeService(t, func(conn *websocket.Conn, s *fakeService) {
		s.collect(conn, 3)
		close(collected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := newTestClient(svc.url())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if err := c.SendAudio(pcm); err != nil {
		t.Fatalf("send audio failed: %v", err)
	}
	if err := c.CommitAudio(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := c.CreateResponse(); err != nil {
		t.Fatalf("create response failed: %v", err)
	}

	select {
	case <-collected:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the submission")
	}

	types := svc.receivedTypes()
	want := []string{"input_audio_buffer.append", "input_audio_buffer.commit", "response.create"}
	if len(types) != 3 {
		t.Fatalf("got %d messages, want 3", len(types))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("message %d: got %q, want %q", i, types[i], want[i])
		}
	}

	svc.mu.Lock()
	appendMsg := svc.received[0]
	respMsg := svc.received[2]
	svc.mu.Unlock()

	var audioB64 string
	_ = json.Unmarshal(appendMsg["audio"], &audioB64)
	decoded, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		t.Fatalf("audio payload not base64: %v", err)
	}
	if string(decoded) != string(pcm) {
		t.Error("audio payload mismatch")
	}

	var resp struct {
		Modalities   []string `json:"modalities"`
		Instructions string   `json:"instructions"`
	}
	_ = json.Unmarshal(respMsg["response"], &resp)
	if len(resp.Modalities) != 1 || resp.Modalities[0] != "text" {
		t.Errorf("response modalities: got %v, want [text]", resp.Modalities)
	}
	if resp.Instructions == "" {
		t.Error("response should carry transcription instructions")
	}
}

func TestClientTerminalShapes(t *testing.T) {
	shapes := []struct {
		name  string
		event string
	}{
		{"text done", `{"type":"response.text.done","text":"hello world"}`},
		{"audio transcript done", `{"type":"response.audio_transcript.done","transcript":"hello world"}`},
		{"content part done", `{"type":"response.content_part.done","part":{"type":"text","text":"hello world"}}`},
		{"output item done", `{"type":"response.output_item.done","item":{"type":"message","content":[{"type":"text","text":"hello world"}]}}`},
		{"response done", `{"type":"response.done","response":{"output":[{"type":"message","content":[{"type":"text","text":"hello world"}]}]}}`},
	}

	for _, tc := range shapes {
		t.Run(tc.name, func(t *testing.T) {
			svc := newFakeService(t, func(conn *websocket.Conn, s *fakeService) {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.text.delta","delta":"hello "}`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.text.delta","delta":"world"}`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(tc.event))
				// A trailing response.done always follows the specific shape.
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.done","response":{"output":[{"content":[{"type":"text","text":"hello world"}]}]}}`))
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			})

			c := newTestClient(svc.url())

			var mu sync.Mutex
			var finals []string
			var versions []uint64
			c.OnTranscriptFinal(func(text string, version uint64) {
				mu.Lock()
				finals = append(finals, text)
				versions = append(versions, version)
				mu.Unlock()
			})

			c.BeginTurn()
			if err := c.Connect(context.Background()); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			defer c.Close()

			waitFor(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(finals) > 0
			}, "no final transcript received")

			// Give the duplicate terminal a chance to (wrongly) fire.
			time.Sleep(100 * time.Millisecond)

			mu.Lock()
			defer mu.Unlock()
			if len(finals) != 1 {
				t.Fatalf("final fired %d times, want exactly 1", len(finals))
			}
			if finals[0] != "hello world" {
				t.Errorf("final text: got %q, want %q", finals[0], "hello world")
			}
			if versions[0] != 1 {
				t.Errorf("version: got %d, want 1", versions[0])
			}
		})
	}
}

func TestClientResilience(t *testing.T) {
	t.Run("malformed message does not kill the session", func(t *testing.T) {
		svc := newFakeService(t, func(conn *websocket.Conn, s *fakeService) {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json at all`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"rate_limits.updated"}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.text.done","text":"still alive"}`))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		})

		c := newTestClient(svc.url())
		final := make(chan string, 1)
		c.OnTranscriptFinal(func(text string, version uint64) {
			final <- text
		})

		c.BeginTurn()
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		select {
		case text := <-final:
			if text != "still alive" {
				t.Errorf("final: got %q", text)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("session died on malformed message")
		}
	})

	t.Run("service error surfaces as APIError", func(t *testing.T) {
		svc := newFakeService(t, func(conn *websocket.Conn, s *fakeService) {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":{"code":"invalid_request","message":"boom"}}`))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		})

		c := newTestClient(svc.url())
		errCh := make(chan error, 1)
		c.OnError(func(err error) { errCh <- err })

		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		select {
		case err := <-errCh:
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != "invalid_request" || apiErr.Message != "boom" {
				t.Errorf("error payload mismatch: %v", apiErr)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("error never surfaced")
		}
	})

	t.Run("server drop fires disconnect", func(t *testing.T) {
		svc := newFakeService(t, func(conn *websocket.Conn, s *fakeService) {
			conn.Close()
		})

		c := newTestClient(svc.url())
		disconnected := make(chan struct{}, 1)
		c.OnDisconnect(func() { disconnected <- struct{}{} })

		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		select {
		case <-disconnected:
		case <-time.After(3 * time.Second):
			t.Fatal("disconnect callback never fired")
		}
		if c.IsConnected() {
			t.Error("should report disconnected")
		}
	})

	t.Run("deliberate close stays silent", func(t *testing.T) {
		svc := newFakeService(t, nil)
		c := newTestClient(svc.url())

		disconnected := make(chan struct{}, 1)
		c.OnDisconnect(func() { disconnected <- struct{}{} })

		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		_ = c.Close()

		select {
		case <-disconnected:
			t.Error("deliberate close must not fire the disconnect callback")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("send after disconnect fails cleanly", func(t *testing.T) {
		c := newTestClient(fmt.Sprintf("ws://127.0.0.1:%d", 1))
		if err := c.SendAudio([]byte{1}); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})
}
