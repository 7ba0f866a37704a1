package relay

import (
	"testing"
	"time"
)

func TestRegistry_OnlineOfflineLifecycle(t *testing.T) {
	r := NewClientRegistry()
	conn := &ClientConn{}
	now := time.Now().UTC()

	replaced := r.SetOnline(ClientInfo{ClientID: "term-1", Status: ClientStatusOnline, ConnectedAt: now}, conn)
	if replaced != nil {
		t.Fatalf("no connection to replace, got %v", replaced)
	}

	rec, ok := r.Get("term-1")
	if !ok || rec.Conn != conn {
		t.Fatalf("Get after SetOnline: ok=%v rec=%+v", ok, rec)
	}

	r.SetOffline("term-1", conn, now.Add(time.Second))
	rec, ok = r.Get("term-1")
	if !ok {
		t.Fatal("record should survive going offline")
	}
	if rec.Conn != nil || rec.Info.Status != ClientStatusOffline {
		t.Fatalf("offline record = %+v", rec)
	}
}

func TestRegistry_ReconnectReplacesConn(t *testing.T) {
	r := NewClientRegistry()
	first := &ClientConn{}
	second := &ClientConn{}
	r.SetOnline(ClientInfo{ClientID: "term-1", Status: ClientStatusOnline}, first)

	replaced := r.SetOnline(ClientInfo{ClientID: "term-1", Status: ClientStatusOnline}, second)
	if replaced != first {
		t.Fatalf("expected first conn back, got %v", replaced)
	}

	// The stale conn going away must not knock the new one offline.
	r.SetOffline("term-1", first, time.Now().UTC())
	rec, _ := r.Get("term-1")
	if rec.Conn != second || rec.Info.Status != ClientStatusOnline {
		t.Fatalf("record after stale offline = %+v", rec)
	}
}

func TestRegistry_SnapshotOnlyOnline(t *testing.T) {
	r := NewClientRegistry()
	conn := &ClientConn{}
	r.SetOnline(ClientInfo{ClientID: "a", Status: ClientStatusOnline}, conn)
	r.SetOnline(ClientInfo{ClientID: "b", Status: ClientStatusOnline}, &ClientConn{})
	r.SetOffline("b", nil, time.Now().UTC())

	all := r.Snapshot(false)
	if len(all) != 2 {
		t.Fatalf("full snapshot = %d entries", len(all))
	}
	online := r.Snapshot(true)
	if len(online) != 1 || online[0].ClientID != "a" {
		t.Fatalf("online snapshot = %+v", online)
	}
}

func TestRegistry_MarkSeenUpdatesLastSeen(t *testing.T) {
	r := NewClientRegistry()
	r.SetOnline(ClientInfo{ClientID: "a", Status: ClientStatusOnline}, &ClientConn{})
	seen := time.Now().UTC().Add(time.Minute)
	r.MarkSeen("a", seen)
	rec, _ := r.Get("a")
	if !rec.Info.LastSeen.Equal(seen) {
		t.Fatalf("last seen = %v, want %v", rec.Info.LastSeen, seen)
	}
}
