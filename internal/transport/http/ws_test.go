package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/transport/ws"
)

func dialWS(t *testing.T, ctx context.Context, env *testEnv, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := wsjson.Write(ctx, conn, ws.Frame{Event: event, Data: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// mustFrame reads frames until one with the wanted event name arrives.
func mustFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) ws.Frame {
	t.Helper()

	deadline, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for {
		var frame ws.Frame
		if err := wsjson.Read(deadline, conn, &frame); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if frame.Event == event {
			return frame
		}
	}
}

func decodeData[T any](t *testing.T, frame ws.Frame) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(frame.Data, &out); err != nil {
		t.Fatalf("decode %s data: %v", frame.Event, err)
	}
	return out
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws?token=garbage"
	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil {
		t.Fatal("expected dial with bad token to fail")
	}
}

func TestWebSocketRoomFlow(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupUser(t, "alice")
	bobToken := env.signupUser(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, env, aliceToken)
	bob := dialWS(t, ctx, env, bobToken)

	sendEvent(t, ctx, alice, core.EventJoinRoom, core.RoomPayload{Room: "r1", Username: "alice"})
	ack := decodeData[core.SystemNotice](t, mustFrame(t, ctx, alice, core.EventSystem))
	if ack.Message != "Joined room: r1" {
		t.Fatalf("alice's join ack = %q", ack.Message)
	}

	sendEvent(t, ctx, bob, core.EventJoinRoom, core.RoomPayload{Room: "r1", Username: "bob"})
	ack = decodeData[core.SystemNotice](t, mustFrame(t, ctx, bob, core.EventSystem))
	if ack.Message != "Joined room: r1" {
		t.Fatalf("bob's join ack = %q", ack.Message)
	}
	notice := decodeData[core.SystemNotice](t, mustFrame(t, ctx, alice, core.EventSystem))
	if notice.Message != "bob joined r1" {
		t.Fatalf("alice's member notice = %q", notice.Message)
	}

	sendEvent(t, ctx, alice, core.EventGroupMessage, core.GroupMessagePayload{
		FromUser: "alice", Room: "r1", Message: "hello room",
	})
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		msg := decodeData[core.GroupMessageEvent](t, mustFrame(t, ctx, conn, core.EventGroupMessage))
		if msg.FromUser != "alice" || msg.Room != "r1" || msg.Message != "hello room" || msg.ID == 0 {
			t.Fatalf("%s received unexpected group message: %+v", name, msg)
		}
	}
}

func TestWebSocketPrivateMessageAndTyping(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupUser(t, "alice")
	bobToken := env.signupUser(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// alice opens two tabs; the handshake registers both connections.
	alice1 := dialWS(t, ctx, env, aliceToken)
	alice2 := dialWS(t, ctx, env, aliceToken)
	bob := dialWS(t, ctx, env, bobToken)

	// A join round-trip per connection proves the server has finished each
	// handshake, presence registration included.
	for name, conn := range map[string]*websocket.Conn{"alice1": alice1, "alice2": alice2, "bob": bob} {
		sendEvent(t, ctx, conn, core.EventJoinRoom, core.RoomPayload{Room: "sync", Username: name})
		mustFrame(t, ctx, conn, core.EventSystem)
	}

	sendEvent(t, ctx, bob, core.EventTypingPrivate, core.TypingSignal{
		FromUser: "bob", ToUser: "alice", IsTyping: true,
	})
	for name, conn := range map[string]*websocket.Conn{"alice1": alice1, "alice2": alice2} {
		signal := decodeData[core.TypingSignal](t, mustFrame(t, ctx, conn, core.EventTypingPrivate))
		if signal.FromUser != "bob" || !signal.IsTyping {
			t.Fatalf("%s received unexpected typing signal: %+v", name, signal)
		}
	}

	sendEvent(t, ctx, bob, core.EventPrivateMessage, core.PrivateMessagePayload{
		FromUser: "bob", ToUser: "alice", Message: "hi",
	})
	for name, conn := range map[string]*websocket.Conn{"alice1": alice1, "alice2": alice2, "bob": bob} {
		msg := decodeData[core.PrivateMessageEvent](t, mustFrame(t, ctx, conn, core.EventPrivateMessage))
		if msg.FromUser != "bob" || msg.ToUser != "alice" || msg.Message != "hi" {
			t.Fatalf("%s received unexpected private message: %+v", name, msg)
		}
	}

	// The exchange is persisted and retrievable over the history API.
	resp := getWithToken(t, env.server.URL+"/api/private/messages?userA=alice&userB=bob", bobToken)
	defer resp.Body.Close()
	history := decodeBody[PrivateHistoryResponse](t, resp)
	if len(history.Messages) != 1 || history.Messages[0].Message != "hi" {
		t.Fatalf("unexpected history: %+v", history.Messages)
	}
}
