package relay

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

type ClientStatus string

const (
	ClientStatusOnline  ClientStatus = "online"
	ClientStatusOffline ClientStatus = "offline"
)

type ClientInfo struct {
	ClientID    string       `json:"client_id"`
	Name        string       `json:"name,omitempty"`
	Version     string       `json:"version,omitempty"`
	Status      ClientStatus `json:"status"`
	RemoteAddr  string       `json:"remote_addr,omitempty"`
	ConnectedAt time.Time    `json:"connected_at,omitempty"`
	LastSeen    time.Time    `json:"last_seen,omitempty"`
}

// ClientConn serializes writes to one websocket connection.
type ClientConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *ClientConn) Close(status websocket.StatusCode, reason string) {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Close(status, reason)
}

func (c *ClientConn) WriteText(ctx context.Context, data []byte) error {
	if c == nil || c.conn == nil {
		return context.Canceled
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

type ClientRecord struct {
	Info ClientInfo
	Conn *ClientConn
}

type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*ClientRecord
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*ClientRecord)}
}

func (r *ClientRegistry) SetOnline(info ClientInfo, conn *ClientConn) (replaced *ClientConn) {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients == nil {
		r.clients = make(map[string]*ClientRecord)
	}
	rec := r.clients[info.ClientID]
	if rec == nil {
		rec = &ClientRecord{}
		r.clients[info.ClientID] = rec
	}
	replaced = rec.Conn
	rec.Info = info
	rec.Conn = conn
	return replaced
}

func (r *ClientRegistry) SetOffline(clientID string, conn *ClientConn, lastSeen time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.clients[clientID]
	if rec == nil {
		return
	}
	if conn != nil && rec.Conn != conn {
		return
	}
	rec.Conn = nil
	rec.Info.Status = ClientStatusOffline
	if !lastSeen.IsZero() {
		rec.Info.LastSeen = lastSeen
	}
}

func (r *ClientRegistry) MarkSeen(clientID string, when time.Time) {
	if r == nil {
		return
	}
	if when.IsZero() {
		when = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.clients[clientID]
	if rec == nil {
		return
	}
	rec.Info.LastSeen = when
	if rec.Conn != nil {
		rec.Info.Status = ClientStatusOnline
	}
}

func (r *ClientRegistry) Get(clientID string) (*ClientRecord, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := r.clients[clientID]
	if rec == nil {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (r *ClientRegistry) Snapshot(onlyOnline bool) []ClientInfo {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientInfo, 0, len(r.clients))
	for _, rec := range r.clients {
		if rec == nil {
			continue
		}
		if onlyOnline && (rec.Conn == nil || rec.Info.Status != ClientStatusOnline) {
			continue
		}
		out = append(out, rec.Info)
	}
	return out
}
