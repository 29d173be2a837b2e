package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestApplyConfigUpdatesState(t *testing.T) {
	state := &connectionState{topicID: "t1", category: "algebra", includeHistory: true}

	state.applyConfig(ConfigMessage{Category: strPtr(" calculus "), IncludeHistory: boolPtr(false)})

	if state.topicID != "t1" {
		t.Fatalf("expected topic unchanged, got %s", state.topicID)
	}
	if state.category != "calculus" {
		t.Fatalf("expected category calculus, got %s", state.category)
	}
	if state.includeHistory {
		t.Fatal("expected history disabled")
	}
}

func dial(t *testing.T, svc *stubStreamer) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	NewWebSocketHandler(svc, nil).RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?topicId=t9"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) outgoingMessage {
	t.Helper()
	var msg outgoingMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketStreamsReply(t *testing.T) {
	svc := &stubStreamer{chunks: []string{"4", "2"}}
	conn := dial(t, svc)

	if msg := readMessage(t, conn); msg.Type != "connected" {
		t.Fatalf("expected connected, got %s", msg.Type)
	}

	data, _ := json.Marshal(TextMessage{Text: "6*7"})
	if err := conn.WriteJSON(inboundMessage{Type: "text", Data: data}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var types []string
	var final outgoingMessage
	for {
		msg := readMessage(t, conn)
		types = append(types, msg.Type)
		if msg.Type == "message" || msg.Type == "error" {
			final = msg
			break
		}
	}

	if strings.Join(types, ",") != "delta,delta,message" {
		t.Fatalf("unexpected event order %v", types)
	}
	payload, _ := final.Data.(map[string]any)
	if payload["content"] != "42" || payload["topicId"] != "t9" {
		t.Fatalf("unexpected final payload %v", final.Data)
	}
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	conn := dial(t, &stubStreamer{})
	readMessage(t, conn)

	if err := conn.WriteJSON(inboundMessage{Type: "audio"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
}
