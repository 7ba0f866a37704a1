package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

type ServerOptions struct {
	Secret            []byte
	InstanceID        string
	Completer         chat.Completer
	Registry          *ClientRegistry
	Sessions          SessionStore
	SessionTTLSeconds int
	MaxMessageBytes   int64
	AllowedClockSkew  time.Duration
	NonceCache        *NonceCache
	RegisterTimeout   time.Duration
	AcceptOriginAny   bool
	AllowedOrigins    []string
	Logf              func(format string, args ...any)
}

// Server accepts terminal clients, authenticates their register frames and
// answers whatsapp_ai_command frames with resolved actions. The model call
// happens here; the client executes the returned action against its own
// automation driver.
type Server struct {
	secret            []byte
	instanceID        string
	parser            *chat.Parser
	registry          *ClientRegistry
	sessions          SessionStore
	sessionTTLSeconds int
	maxMessageBytes   int64
	registerTimeout   time.Duration
	originPatterns    []string

	auth AuthVerifier
	logf func(format string, args ...any)
}

func NewServer(opts ServerOptions) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("relay secret is required")
	}
	if opts.Completer == nil {
		return nil, errors.New("completer is required")
	}
	instanceID := strings.TrimSpace(opts.InstanceID)
	if instanceID == "" {
		instanceID = NewID("relay")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewClientRegistry()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = NoopSessionStore{}
	}
	ttlSeconds := opts.SessionTTLSeconds
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	maxMsg := opts.MaxMessageBytes
	if maxMsg <= 0 {
		maxMsg = 1 << 20
	}
	regTimeout := opts.RegisterTimeout
	if regTimeout <= 0 {
		regTimeout = 10 * time.Second
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	skew := opts.AllowedClockSkew
	if skew <= 0 {
		skew = DefaultAuthSkew
	}
	nonces := opts.NonceCache
	if nonces == nil {
		nonces = NewNonceCache(DefaultNonceTTL, DefaultNonceMax)
	}
	originPatterns := opts.AllowedOrigins
	if opts.AcceptOriginAny || len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}

	return &Server{
		secret:            opts.Secret,
		instanceID:        instanceID,
		parser:            &chat.Parser{Completer: opts.Completer, Logf: logf},
		registry:          reg,
		sessions:          sessions,
		sessionTTLSeconds: ttlSeconds,
		maxMessageBytes:   maxMsg,
		registerTimeout:   regTimeout,
		originPatterns:    originPatterns,
		auth: AuthVerifier{
			Secret: opts.Secret,
			Skew:   skew,
			Nonces: nonces,
			Now:    func() time.Time { return time.Now().UTC() },
		},
		logf: logf,
	}, nil
}

func (s *Server) InstanceID() string {
	if s == nil {
		return ""
	}
	return s.instanceID
}

func (s *Server) Registry() *ClientRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(s.handleWS)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s == nil {
		http.Error(w, "server not configured", http.StatusInternalServerError)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		return
	}
	conn.SetReadLimit(s.maxMessageBytes)
	go s.handleConn(conn, strings.TrimSpace(r.RemoteAddr))
}

func (s *Server) handleConn(conn *websocket.Conn, remoteAddr string) {
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	regCtx, cancel := context.WithTimeout(context.Background(), s.registerTimeout)
	defer cancel()

	mt, data, err := conn.Read(regCtx)
	if err != nil {
		s.logf("relay: read register failed remote=%s err=%v", remoteAddr, err)
		_ = conn.Close(websocket.StatusPolicyViolation, "register required")
		return
	}
	if mt != websocket.MessageText {
		_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
		return
	}
	typ, err := PeekType(data)
	if err != nil || typ != MsgTypeRegister {
		_ = conn.Close(websocket.StatusPolicyViolation, "register required")
		return
	}
	var reg RegisterFrame
	if err := json.Unmarshal(data, &reg); err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "invalid register frame")
		return
	}
	reg.ClientID = strings.TrimSpace(reg.ClientID)
	if reg.ClientID == "" {
		_ = conn.Close(websocket.StatusPolicyViolation, "client_id required")
		return
	}
	if err := s.auth.VerifyRegister(reg.ClientID, reg.Auth); err != nil {
		s.logf("relay: register auth failed client_id=%s remote=%s err=%v", reg.ClientID, remoteAddr, err)
		s.writeFrame(context.Background(), &ClientConn{conn: conn}, RegisterAckFrame{
			Header:   NewHeader(MsgTypeRegisterAck, s.instanceID, reg.RequestID),
			Accepted: false,
			Reason:   "auth failed",
		})
		_ = conn.Close(websocket.StatusPolicyViolation, "auth failed")
		return
	}

	now := time.Now().UTC()
	info := ClientInfo{
		ClientID:    reg.ClientID,
		Name:        strings.TrimSpace(reg.Name),
		Version:     strings.TrimSpace(reg.Version),
		Status:      ClientStatusOnline,
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		LastSeen:    now,
	}
	cc := &ClientConn{conn: conn}
	if replaced := s.registry.SetOnline(info, cc); replaced != nil && replaced != cc {
		replaced.Close(websocket.StatusPolicyViolation, "replaced by new connection")
	}

	s.writeFrame(context.Background(), cc, RegisterAckFrame{
		Header:   NewHeader(MsgTypeRegisterAck, s.instanceID, reg.RequestID),
		Accepted: true,
	})
	s.logf("relay: client registered client_id=%s name=%s remote=%s", info.ClientID, info.Name, remoteAddr)

	lastSeen := now
	for {
		mt, data, err := conn.Read(context.Background())
		if err != nil {
			break
		}
		if mt != websocket.MessageText {
			continue
		}
		typ, err := PeekType(data)
		if err != nil {
			continue
		}
		switch typ {
		case MsgTypePing:
			lastSeen = time.Now().UTC()
			s.registry.MarkSeen(info.ClientID, lastSeen)
			var ping PingFrame
			if err := json.Unmarshal(data, &ping); err != nil {
				continue
			}
			s.writeFrame(context.Background(), cc, PongFrame{
				Header: NewHeader(MsgTypePong, s.instanceID, ping.RequestID),
			})
		case MsgTypeCommand:
			var cmd CommandFrame
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			go s.handleCommand(cc, info.ClientID, cmd)
		default:
			// ignore
		}
	}

	s.registry.SetOffline(info.ClientID, cc, lastSeen)
	s.logf("relay: client disconnected client_id=%s remote=%s", info.ClientID, remoteAddr)
}

const commandParseTimeout = 30 * time.Second

func (s *Server) handleCommand(cc *ClientConn, clientID string, cmd CommandFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), commandParseTimeout)
	defer cancel()

	command := strings.TrimSpace(cmd.Command)
	if command == "" {
		s.writeFrame(ctx, cc, ResponseFrame{
			Header:       NewHeader(MsgTypeResponse, s.instanceID, cmd.RequestID),
			ResponseType: ResponseTypeParseError,
			Content:      chat.ErrorAction("empty command"),
			Error:        "empty command",
		})
		return
	}

	sess := s.sessionFor(ctx, clientID, cmd.Context)
	parsed := s.parser.Parse(ctx, command, sess)
	action := parsed.Action
	if parsed.Kind != chat.ParsedAction {
		// help/quit are terminal-side literals; a client that forwards one
		// anyway gets told to handle it itself.
		action = chat.ErrorAction("handled by the terminal")
	}

	responseType := ResponseTypeCommandResult
	errText := ""
	if action.Kind == chat.KindError {
		responseType = ResponseTypeParseError
		errText = action.Message
	} else if action.Contact != "" {
		if resolved, ok := chat.ResolveContact(action.Contact, sess.Contacts); ok {
			action.Contact = resolved.DisplayName
			sess.SetLastContact(resolved)
		}
	}

	s.storeSession(ctx, clientID, sess)

	s.writeFrame(ctx, cc, ResponseFrame{
		Header:       NewHeader(MsgTypeResponse, s.instanceID, cmd.RequestID),
		ResponseType: responseType,
		Content:      action,
		Error:        errText,
	})
}

// sessionFor rebuilds the parse context for one command: fields carried on
// the frame win, the stored session fills in what the frame omits.
func (s *Server) sessionFor(ctx context.Context, clientID string, frameCtx CommandContext) *chat.Session {
	stored, ok, err := s.sessions.Get(ctx, clientID)
	if err != nil {
		s.logf("relay: session load failed client_id=%s err=%v", clientID, err)
	}

	last := strings.TrimSpace(frameCtx.LastContact)
	contacts := frameCtx.ContactList
	if ok {
		if last == "" {
			last = stored.LastContact
		}
		if len(contacts) == 0 {
			contacts = stored.ContactList
		}
	}

	sess := chat.NewSession("relay")
	if last != "" {
		sess.SetLastContact(chat.Contact{DisplayName: last})
	}
	known := make([]chat.Contact, 0, len(contacts))
	for _, name := range contacts {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		known = append(known, chat.Contact{DisplayName: name})
	}
	sess.ReplaceContacts(known)
	return sess
}

func (s *Server) storeSession(ctx context.Context, clientID string, sess *chat.Session) {
	stored := SessionContext{
		LastContact: sess.LastContactName(),
		ContactList: sess.ContactNames(),
	}
	if err := s.sessions.Put(ctx, clientID, stored, s.sessionTTLSeconds); err != nil {
		s.logf("relay: session store failed client_id=%s err=%v", clientID, err)
	}
}

func (s *Server) writeFrame(ctx context.Context, cc *ClientConn, frame any) {
	data, err := marshalFrame(frame)
	if err != nil {
		return
	}
	if err := cc.WriteText(ctx, data); err != nil {
		s.logf("relay: write failed err=%v", err)
	}
}
