package relay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

const (
	DefaultPingInterval   = 20 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

type ClientOptions struct {
	ServerURL          string
	Secret             []byte
	ClientID           string
	Name               string
	Version            string
	PingInterval       time.Duration
	RequestTimeout     time.Duration
	MaxMessageBytes    int64
	InsecureSkipVerify bool
	Logf               func(format string, args ...any)
}

// Client is the terminal side of the relay: it holds one websocket to the
// server and turns raw commands into actions by asking the server to parse
// them. It satisfies chat.Interpreter; a request that outlives the timeout
// degrades that one command, a dead connection degrades the whole session.
// There is no reconnect: once the transport drops the client stays down.
type Client struct {
	serverURL       string
	secret          []byte
	clientID        string
	name            string
	version         string
	pingInterval    time.Duration
	requestTimeout  time.Duration
	maxMessageBytes int64
	tlsConfig       *tls.Config
	logf            func(format string, args ...any)

	mu      sync.Mutex
	conn    *ClientConn
	pending map[string]chan ResponseFrame
	down    bool
	cancel  context.CancelFunc
}

func NewClient(opts ClientOptions) (*Client, error) {
	url := strings.TrimSpace(opts.ServerURL)
	if url == "" {
		return nil, errors.New("server url is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("relay secret is required")
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = NewID("client")
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = DefaultPingInterval
	}
	reqTimeout := opts.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = DefaultRequestTimeout
	}
	maxMsg := opts.MaxMessageBytes
	if maxMsg <= 0 {
		maxMsg = 1 << 20
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	var tlsCfg *tls.Config
	if strings.HasPrefix(strings.ToLower(url), "wss://") {
		tlsCfg = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify} //nolint:gosec
	}
	return &Client{
		serverURL:       url,
		secret:          opts.Secret,
		clientID:        clientID,
		name:            strings.TrimSpace(opts.Name),
		version:         strings.TrimSpace(opts.Version),
		pingInterval:    ping,
		requestTimeout:  reqTimeout,
		maxMessageBytes: maxMsg,
		tlsConfig:       tlsCfg,
		logf:            logf,
		pending:         make(map[string]chan ResponseFrame),
	}, nil
}

func (c *Client) ClientID() string {
	if c == nil {
		return ""
	}
	return c.clientID
}

// Connected reports whether the websocket is still up. Status output uses it.
func (c *Client) Connected() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.down
}

// Connect dials, registers and starts the read and keepalive loops. It is
// called once at startup; a failed dial means the run starts standalone.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return errors.New("relay client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var dialOpts websocket.DialOptions
	if c.tlsConfig != nil {
		dialOpts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: c.tlsConfig,
			},
		}
	}
	conn, _, err := websocket.Dial(dialCtx, c.serverURL, &dialOpts)
	if err != nil {
		return err
	}
	conn.SetReadLimit(c.maxMessageBytes)
	cc := &ClientConn{conn: conn}

	if err := c.sendRegister(ctx, cc); err != nil {
		cc.Close(websocket.StatusNormalClosure, "bye")
		return err
	}
	ack, err := c.waitRegisterAck(ctx, conn)
	if err != nil {
		cc.Close(websocket.StatusNormalClosure, "bye")
		return err
	}
	if !ack.Accepted {
		cc.Close(websocket.StatusNormalClosure, "bye")
		return fmt.Errorf("register rejected: %s", strings.TrimSpace(ack.Reason))
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = cc
	c.down = false
	c.cancel = runCancel
	c.mu.Unlock()

	go c.readLoop(runCtx, conn)
	go c.keepalive(runCtx, cc)
	c.logf("relay: connected client_id=%s server=%s", c.clientID, ack.ClientID)
	return nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	cc := c.conn
	cancel := c.cancel
	c.conn = nil
	c.down = true
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	cc.Close(websocket.StatusNormalClosure, "bye")
	c.failPending()
}

func (c *Client) sendRegister(ctx context.Context, cc *ClientConn) error {
	now := time.Now().UTC().Unix()
	nonce := NewID("n")
	sig, err := SignRegister(c.secret, c.clientID, now, nonce)
	if err != nil {
		return err
	}
	frame := RegisterFrame{
		Header:  NewHeader(MsgTypeRegister, c.clientID, NewID("req")),
		Name:    c.name,
		Version: c.version,
		Auth: RegisterAuth{
			TS:    now,
			Nonce: nonce,
			Sig:   sig,
		},
	}
	data, err := marshalFrame(frame)
	if err != nil {
		return err
	}
	return cc.WriteText(ctx, data)
}

func (c *Client) waitRegisterAck(ctx context.Context, conn *websocket.Conn) (RegisterAckFrame, error) {
	ackCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		mt, data, err := conn.Read(ackCtx)
		if err != nil {
			return RegisterAckFrame{}, err
		}
		if mt != websocket.MessageText {
			continue
		}
		typ, err := PeekType(data)
		if err != nil || typ != MsgTypeRegisterAck {
			continue
		}
		var ack RegisterAckFrame
		if err := json.Unmarshal(data, &ack); err != nil {
			return RegisterAckFrame{}, err
		}
		return ack, nil
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			c.markDown(err)
			return
		}
		if mt != websocket.MessageText {
			continue
		}
		typ, err := PeekType(data)
		if err != nil {
			continue
		}
		switch typ {
		case MsgTypePong:
			// keepalive answered
		case MsgTypeResponse:
			var resp ResponseFrame
			if err := json.Unmarshal(data, &resp); err != nil {
				continue
			}
			c.deliver(resp)
		case MsgTypeError:
			var ef ErrorFrame
			if err := json.Unmarshal(data, &ef); err != nil {
				continue
			}
			c.logf("relay: server error: %s", ef.Error)
		default:
			// ignore
		}
	}
}

func (c *Client) keepalive(ctx context.Context, cc *ClientConn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := marshalFrame(PingFrame{Header: NewHeader(MsgTypePing, c.clientID, NewID("ping"))})
			if err != nil {
				continue
			}
			if err := cc.WriteText(ctx, data); err != nil {
				c.markDown(err)
				return
			}
		}
	}
}

func (c *Client) markDown(cause error) {
	c.mu.Lock()
	alreadyDown := c.down
	c.down = true
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if !alreadyDown {
		c.logf("relay: connection lost client_id=%s err=%v", c.clientID, cause)
	}
	c.failPending()
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan ResponseFrame)
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

func (c *Client) deliver(resp ResponseFrame) {
	id := strings.TrimSpace(resp.RequestID)
	if id == "" {
		return
	}
	c.mu.Lock()
	ch := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ch == nil {
		return
	}
	ch <- resp
	close(ch)
}

// Interpret sends the command to the server and waits for the matching
// response. The context snapshot rides on the frame so the server needs no
// prior state for this client.
func (c *Client) Interpret(ctx context.Context, rawText string, sess *chat.Session) (chat.Action, error) {
	if c == nil {
		return chat.Action{}, chat.ErrInterpreterUnavailable
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	cc := c.conn
	down := c.down
	var ch chan ResponseFrame
	reqID := NewID("req")
	if cc != nil && !down {
		ch = make(chan ResponseFrame, 1)
		c.pending[reqID] = ch
	}
	c.mu.Unlock()

	if ch == nil {
		return chat.Action{}, fmt.Errorf("relay transport is down: %w", chat.ErrInterpreterUnavailable)
	}
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	frame := CommandFrame{
		Header:  NewHeader(MsgTypeCommand, c.clientID, reqID),
		Command: rawText,
		Context: CommandContext{
			LastContact: sess.LastContactName(),
			ContactList: sess.ContactNames(),
		},
	}
	data, err := marshalFrame(frame)
	if err != nil {
		return chat.Action{}, err
	}
	if err := cc.WriteText(ctx, data); err != nil {
		c.markDown(err)
		return chat.Action{}, fmt.Errorf("relay write failed: %w", chat.ErrInterpreterUnavailable)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	select {
	case resp, ok := <-ch:
		if !ok {
			return chat.Action{}, fmt.Errorf("relay connection closed: %w", chat.ErrInterpreterUnavailable)
		}
		// ai_parse_error still carries an error action the executor can
		// render, so both response types surface as actions.
		return resp.Content, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return chat.Action{}, ctx.Err()
		}
		return chat.Action{}, fmt.Errorf("no response within %s: %w", c.requestTimeout, chat.ErrInterpreterTimeout)
	}
}
