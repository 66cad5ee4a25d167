package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/hotowire-server/internal/config"
	"github.com/vovakirdan/hotowire-server/internal/core"
	"github.com/vovakirdan/hotowire-server/internal/proto"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := core.NewHub(nil, core.HubOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	logger := zerolog.Nop()
	server := NewServer(hub, config.Config{
		Addr:              ":0",
		WSPath:            "/ws",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func wsBaseURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func dialAs(t *testing.T, ctx context.Context, ts *httptest.Server, id, name, role string) *websocket.Conn {
	t.Helper()

	q := url.Values{}
	q.Set("userId", id)
	q.Set("userName", name)
	q.Set("userRole", role)
	conn, _, err := websocket.Dial(ctx, wsBaseURL(ts)+"?"+q.Encode(), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", id, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readUntil discards frames until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			t.Fatalf("read while waiting for %s: %v", wantType, err)
		}
		var env proto.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Type == wantType {
			return raw
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWSRejectsIncompleteIdentity(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// userRole missing: the upgrade must be refused.
	_, _, err := websocket.Dial(ctx, wsBaseURL(ts)+"?userId=a&userName=alice", nil)
	if err == nil {
		t.Fatal("expected handshake failure for incomplete identity")
	}
}

func TestWSRejectsWrongPath(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrong := strings.Replace(ts.URL, "http", "ws", 1) + "/socket?userId=a&userName=alice&userRole=ADMIN"
	_, _, err := websocket.Dial(ctx, wrong, nil)
	if err == nil {
		t.Fatal("expected handshake failure for wrong path")
	}
}

func TestHandoverEndToEnd(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialAs(t, ctx, ts, "alice-1", "Alice", "ADMIN")
	readUntil(t, ctx, alice, proto.TypeWelcome)
	bob := dialAs(t, ctx, ts, "bob-1", "Bob", "RQ")
	readUntil(t, ctx, bob, proto.TypeWelcome)

	err := wsjson.Write(ctx, alice, proto.Inbound{
		Type:         proto.TypeHandoverRequest,
		FromUserID:   "alice-1",
		FromUserName: "Alice",
		FromUserRole: "ADMIN",
		ToUserID:     "bob-1",
		StoreID:      "7",
		StoreName:    "Shop7",
	})
	if err != nil {
		t.Fatalf("write request: %v", err)
	}

	var inv proto.HandoverInvitation
	if err := json.Unmarshal(readUntil(t, ctx, bob, proto.TypeHandoverInvitation), &inv); err != nil {
		t.Fatalf("unmarshal invitation: %v", err)
	}
	if inv.FromUserID != "alice-1" || inv.StoreID != "7" || inv.StoreName != "Shop7" {
		t.Fatalf("unexpected invitation: %+v", inv)
	}

	var sent proto.HandoverSent
	if err := json.Unmarshal(readUntil(t, ctx, alice, proto.TypeHandoverSent), &sent); err != nil {
		t.Fatalf("unmarshal sent: %v", err)
	}
	if sent.TargetUserID != "bob-1" || sent.TargetUserName != "Bob" {
		t.Fatalf("unexpected sent confirmation: %+v", sent)
	}

	// Bob accepts; both sides hear about it.
	accepted := true
	err = wsjson.Write(ctx, bob, proto.Inbound{
		Type:       proto.TypeHandoverResponse,
		FromUserID: "alice-1",
		ToUserID:   "bob-1",
		Accepted:   &accepted,
	})
	if err != nil {
		t.Fatalf("write response: %v", err)
	}

	var acc proto.HandoverAccepted
	if err := json.Unmarshal(readUntil(t, ctx, alice, proto.TypeHandoverAccepted), &acc); err != nil {
		t.Fatalf("unmarshal accepted: %v", err)
	}
	if acc.ToUserName != "Bob" {
		t.Fatalf("unexpected accepted notice: %+v", acc)
	}
	readUntil(t, ctx, bob, proto.TypeHandoverConfirmed)
}

func TestUnknownTypeYieldsProtocolError(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialAs(t, ctx, ts, "a", "alice", "MEMBER")
	readUntil(t, ctx, conn, proto.TypeWelcome)

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "pairing_start"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var protoErr proto.Error
	if err := json.Unmarshal(readUntil(t, ctx, conn, proto.TypeError), &protoErr); err != nil {
		t.Fatalf("unmarshal error frame: %v", err)
	}
	if protoErr.Code != core.ErrCodeProtocol {
		t.Fatalf("unexpected error code: %+v", protoErr)
	}

	// The connection survives a protocol error.
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.TypeGetOnlineUsers, UserID: "a"}); err != nil {
		t.Fatalf("write after error: %v", err)
	}
	readUntil(t, ctx, conn, proto.TypeOnlineUsers)
}

func TestOnlineProjectionEndpoint(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialAs(t, ctx, ts, "a", "alice", "ADMIN")
	readUntil(t, ctx, conn, proto.TypeWelcome)

	resp, err := ts.Client().Get(ts.URL + "/api/online")
	if err != nil {
		t.Fatalf("online request failed: %v", err)
	}
	defer resp.Body.Close()

	var list proto.OnlineUsers
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.OnlineUsers) != 1 || list.OnlineUsers[0].UserID != "a" {
		t.Fatalf("unexpected projection: %+v", list.OnlineUsers)
	}
}
