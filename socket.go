package zmqcore

import (
	"context"
	"io"
	"sync"

	"code.hybscloud.com/zmqcore/config"
	"code.hybscloud.com/zmqcore/streamframe"
	zmq4 "github.com/luxfi/zmq/v4"
)

// Role identifies a Socket's fixed transport pattern. Role is set at
// construction and never changes.
type Role int

const (
	RolePair Role = iota + 1
	RolePublisher
	RoleSubscriber
	RoleRequester
	RoleReplier
	RoleDealer
	RoleRouter
	RolePuller
	RolePusher
	RoleXPub
	RoleXSub
	RoleStream
)

// Socket is a role-typed wrapper over the underlying transport's socket
// primitive. Construction fixes the role and a stable Identifier; settings
// and curve/ZAP/SOCKS state accumulate on the Socket value until the
// underlying transport socket is realised by the first Bind, Connect,
// Send, Receive or subscription call, after which those fields are
// immutable (see DESIGN.md's lazy-construction Open Question resolution).
// Subscription filters are not accumulated: SetSubscription and
// SetUnsubscription realise the socket and apply the filter at once.
type Socket struct {
	mu       sync.Mutex
	ctx      *Context
	role     Role
	id       Identifier
	settings Settings
	domain   string
	socks    string

	curveServer    bool
	curvePublicKey [32]byte
	curveSecretKey [32]byte
	curveServerKey [32]byte
	curveSet       bool

	realized  bool
	closed    bool
	under     zmq4.Socket
	closeOnce sync.Once

	outgoing [][]byte
	incoming [][]byte

	// REQUESTER half-duplex state: a send must be followed by a receive
	// before the next send is permitted.
	awaitingReply bool
}

// NewSocket constructs a Socket of the given role bound to ctx, with
// settings seeded from opts (see DefaultSettings).
func NewSocket(ctx *Context, role Role, opts ...Option) *Socket {
	return &Socket{
		ctx:      ctx,
		role:     role,
		id:       newIdentifier(),
		settings: NewSettings(opts...),
	}
}

// ID returns the socket's stable identifier, valid even after Stop.
func (s *Socket) ID() Identifier { return s.id }

// Role returns the socket's fixed role.
func (s *Socket) Role() Role { return s.role }

// SetCurveServer marks this socket as a CURVE server. Must be called
// before the first Bind/Connect.
func (s *Socket) SetCurveServer() Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return ErrSocketState
	}
	s.curveServer = true
	s.curveSet = true
	return 0
}

// SetCurveServerKey sets the expected server public key for a CURVE
// client socket. Must be called before the first Bind/Connect.
func (s *Socket) SetCurveServerKey(pub [32]byte) Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return ErrSocketState
	}
	s.curveServerKey = pub
	s.curveSet = true
	return 0
}

// SetPublicKey sets this socket's own CURVE public key. Must be called
// before the first Bind/Connect.
func (s *Socket) SetPublicKey(pub [32]byte) Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return ErrSocketState
	}
	s.curvePublicKey = pub
	s.curveSet = true
	return 0
}

// SetPrivateKey sets this socket's own CURVE private key. Must be called
// before the first Bind/Connect.
func (s *Socket) SetPrivateKey(priv [32]byte) Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return ErrSocketState
	}
	s.curveSecretKey = priv
	s.curveSet = true
	return 0
}

// SetCertificate sets both halves of this socket's CURVE keypair at once.
func (s *Socket) SetCertificate(kp Keypair) Error {
	if err := s.SetPublicKey(kp.Public); err != 0 {
		return err
	}
	return s.SetPrivateKey(kp.Private)
}

// SetAuthenticationDomain advertises a ZAP domain to the authenticator. An
// empty name is accepted and becomes a no-op.
func (s *Socket) SetAuthenticationDomain(name string) Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return ErrSocketState
	}
	s.domain = name
	return 0
}

// SetSubscription adds a subscription filter prefix. Valid only for
// SUBSCRIBER and XSUB roles.
func (s *Socket) SetSubscription(prefix []byte) Error {
	if s.role != RoleSubscriber && s.role != RoleXSub {
		return ErrUnsupportedOperation
	}
	if err := s.ensureRealized(); err != 0 {
		return err
	}
	if err := s.under.SetOption(zmq4.OptionSubscribe, string(prefix)); err != nil {
		return fromTransport(err)
	}
	return 0
}

// SetUnsubscription removes a subscription filter prefix. Valid only for
// SUBSCRIBER and XSUB roles.
func (s *Socket) SetUnsubscription(prefix []byte) Error {
	if s.role != RoleSubscriber && s.role != RoleXSub {
		return ErrUnsupportedOperation
	}
	if err := s.ensureRealized(); err != 0 {
		return err
	}
	if err := s.under.SetOption(zmq4.OptionUnsubscribe, string(prefix)); err != nil {
		return fromTransport(err)
	}
	return 0
}

// SetSocksProxy configures a SOCKS5 proxy for outbound connections. Must
// be called before the first Bind/Connect.
func (s *Socket) SetSocksProxy(a config.Authority) Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return ErrSocketState
	}
	s.socks = a.String()
	return 0
}

// Bind starts listening on endpoint.
func (s *Socket) Bind(endpoint config.Endpoint) Error {
	if err := s.ensureRealized(); err != 0 {
		return err
	}
	if err := s.under.Listen(endpoint.String()); err != nil {
		return fromTransport(err)
	}
	return 0
}

// Connect dials endpoint.
func (s *Socket) Connect(endpoint config.Endpoint) Error {
	if err := s.ensureRealized(); err != 0 {
		return err
	}
	if err := s.under.Dial(endpoint.String()); err != nil {
		return fromTransport(err)
	}
	return 0
}

// Stop closes the socket's underlying handle. Idempotent after the first
// successful call, and safe to call either before or after the owning
// Context's Stop: both paths converge on closeUnderlying, which closes
// the transport handle at most once.
func (s *Socket) Stop() Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	if s.under == nil {
		return 0
	}
	if err := s.closeUnderlying(); err != nil {
		return fromTransport(err)
	}
	return 0
}

// closeUnderlying closes the transport handle exactly once, regardless of
// whether it is reached via Socket.Stop or the Context's registered
// close-on-Stop callback (context.go's register). Without this guard a
// socket stopped directly and then again via Context.Stop would invoke
// the underlying Close twice, and a transport that errors on double-close
// would surface that error through Context.Stop's errgroup.Wait, breaking
// its idempotent-success contract.
func (s *Socket) closeUnderlying() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.under.Close()
	})
	return err
}

// Send moves message over the socket, delegating to Message.Send.
func (s *Socket) Send(message *Message) Error {
	if s.role == RoleRequester {
		s.mu.Lock()
		if s.awaitingReply {
			s.mu.Unlock()
			return ErrSocketState
		}
		s.mu.Unlock()
	}
	err := message.Send(s)
	if s.role == RoleRequester && err == 0 {
		s.mu.Lock()
		s.awaitingReply = true
		s.mu.Unlock()
	}
	return err
}

// Receive reads one logical message from the socket, delegating to
// Message.Receive.
func (s *Socket) Receive(message *Message) Error {
	err := message.Receive(s)
	if s.role == RoleRequester && err == 0 {
		s.mu.Lock()
		s.awaitingReply = false
		s.mu.Unlock()
	}
	return err
}

// ensureRealized constructs the underlying transport socket on first use,
// applying every confirmed-wirable setting accumulated so far. Settings
// are applied fail-fast: any setter failure closes the socket.
func (s *Socket) ensureRealized() Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realized {
		return 0
	}
	opts := s.buildOptionsLocked()

	under, err := newUnderlying(s.ctx.goContext(), s.role, opts)
	if err != 0 {
		return err
	}

	if s.role == RoleSubscriber {
		// Subscribers are auto-subscribed to all messages at construction.
		if e := under.SetOption(zmq4.OptionSubscribe, ""); e != nil {
			under.Close()
			return fromTransport(e)
		}
	}
	if hwm := s.settings.highWater(); hwm > 0 {
		if e := under.SetOption(zmq4.OptionHWM, hwm); e != nil {
			under.Close()
			return fromTransport(e)
		}
	}
	// s.domain and the curve* fields are recorded for the Authenticator
	// (see authenticator.go's Apply/reply, which enforces ZAP policy as an
	// in-process RFC 27 replier) but are not passed to the underlying
	// zmq4.Socket: no retrieved example confirms a ZAP-domain or CURVE
	// SetOption surface on zmq4.Socket, and guessing option-key constants
	// here would repeat the exact compile risk this package was flagged
	// for. See DESIGN.md's CURVE/ZAP transport-wiring entry.

	s.under = under
	s.realized = true
	s.ctx.register(func() error { return s.closeUnderlying() })
	return 0
}

func (s *Socket) buildOptionsLocked() []zmq4.Option {
	var opts []zmq4.Option
	opts = append(opts, zmq4.WithID(zmq4.SocketIdentity(identityFor(s.id))))
	if t := s.settings.sendTimeout(); t > 0 {
		opts = append(opts, zmq4.WithTimeout(t))
	}
	base, max, disabled := s.settings.reconnectInterval()
	if !disabled {
		opts = append(opts, zmq4.WithDialerRetry(base))
		opts = append(opts, zmq4.WithAutomaticReconnect(true))
		_ = max // ceiling is enforced by the dialer's own retry count cap.
	} else {
		opts = append(opts, zmq4.WithAutomaticReconnect(false))
	}
	return opts
}

// bufferOutgoing appends payload to the socket's pending outgoing frame
// buffer. When last is true, the buffered frames are flushed as one
// logical multi-part message. On flush failure the entire buffered
// message remains queued for retry (the underlying transport sends a
// multi-frame message atomically, so there is no finer-grained partial
// progress to report than "the whole message", unlike a per-frame wire
// protocol).
func (s *Socket) bufferOutgoing(payload []byte, last bool) Error {
	if err := s.ensureRealized(); err != 0 {
		return err
	}
	s.mu.Lock()
	s.outgoing = append(s.outgoing, payload)
	if !last {
		s.mu.Unlock()
		return 0
	}
	frames := s.outgoing
	s.mu.Unlock()

	msg := zmq4.NewMsgFrom(frames...)
	if err := s.under.SendMulti(msg); err != nil {
		return fromTransport(err)
	}
	s.mu.Lock()
	s.outgoing = nil
	s.mu.Unlock()
	return 0
}

// nextIncoming pops the next buffered frame, fetching a fresh multi-part
// message from the transport when the buffer is empty. more reports
// whether further frames of the same logical message remain queued.
func (s *Socket) nextIncoming() (payload []byte, more bool, err Error) {
	if e := s.ensureRealized(); e != 0 {
		return nil, false, e
	}
	s.mu.Lock()
	if len(s.incoming) == 0 {
		s.mu.Unlock()
		msg, e := s.under.Recv()
		if e != nil {
			return nil, false, fromTransport(e)
		}
		s.mu.Lock()
		s.incoming = msg.Frames
	}
	if len(s.incoming) == 0 {
		s.mu.Unlock()
		return nil, false, ErrInvalidMessage
	}
	payload = s.incoming[0]
	s.incoming = s.incoming[1:]
	more = len(s.incoming) > 0
	s.mu.Unlock()
	return payload, more, 0
}

// identityFor derives a deterministic socket identity string from a
// process-local Identifier, used as the transport's ZMQ_IDENTITY/routing
// id seed for DEALER/ROUTER-style sockets.
func identityFor(id Identifier) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 0, 16)
	n := uint64(id)
	for i := 0; i < 8; i++ {
		buf = append(buf, hex[(n>>(uint(i)*8+4))&0xf], hex[(n>>(uint(i)*8))&0xf])
	}
	return string(buf)
}

func newUnderlying(ctx context.Context, role Role, opts []zmq4.Option) (zmq4.Socket, Error) {
	switch role {
	case RolePair:
		return zmq4.NewPair(ctx, opts...), 0
	case RolePublisher:
		return zmq4.NewPub(ctx, opts...), 0
	case RoleSubscriber:
		return zmq4.NewSub(ctx, opts...), 0
	case RoleRequester:
		return zmq4.NewReq(ctx, opts...), 0
	case RoleReplier:
		return zmq4.NewRep(ctx, opts...), 0
	case RoleDealer:
		return zmq4.NewDealer(ctx, opts...), 0
	case RoleRouter:
		return zmq4.NewRouter(ctx, opts...), 0
	case RolePuller:
		return zmq4.NewPull(ctx, opts...), 0
	case RolePusher:
		return zmq4.NewPush(ctx, opts...), 0
	case RoleXPub:
		return zmq4.NewXPub(ctx, opts...), 0
	case RoleXSub:
		return zmq4.NewXSub(ctx, opts...), 0
	case RoleStream:
		return zmq4.NewStream(ctx), 0
	default:
		return nil, ErrUnsupportedOperation
	}
}

// BridgeStream relays inbound bytes from conn into discrete Messages
// delivered to recv, and outbound Messages from send into framed bytes
// written to conn, using streamframe to delimit message boundaries on
// conn's otherwise boundary-less byte pipe. This is how a STREAM-role
// socket interoperates with a plain TCP peer that frames its own
// application messages rather than speaking the host transport's wire
// format directly. BridgeStream blocks until conn reaches EOF, send is
// closed, the socket's context is stopped, or a read or write on conn
// fails.
func (s *Socket) BridgeStream(conn io.ReadWriter, send <-chan *Message, recv chan<- *Message, opts ...streamframe.Option) Error {
	if s.role != RoleStream {
		return ErrUnsupportedOperation
	}
	reader := streamframe.NewReader(conn, opts...)
	writer := streamframe.NewWriter(conn, opts...)
	done := s.ctx.done()

	errs := make(chan Error, 2)
	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				m := NewMessage()
				m.EnqueueBytes(buf[:n])
				select {
				case recv <- m:
				case <-done:
					errs <- ErrContextTerminated
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					errs <- 0
					return
				}
				if err == streamframe.ErrWouldBlock || err == streamframe.ErrMore {
					continue
				}
				errs <- ErrInvalidMessage
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case m, ok := <-send:
				if !ok {
					errs <- 0
					return
				}
				for !m.Empty() {
					payload, _ := m.DequeueBytes()
					if _, err := writer.Write(payload); err != nil && err != streamframe.ErrMore {
						errs <- ErrInvalidMessage
						return
					}
				}
			case <-done:
				errs <- ErrContextTerminated
				return
			}
		}
	}()
	return <-errs
}
