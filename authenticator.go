package zmqcore

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/zmqcore/config"
	"github.com/rs/zerolog"
)

// zapEndpoint is the well-known in-process ZAP endpoint RFC 27 requires
// every ZeroMQ Authentication Protocol implementation to bind.
const zapEndpoint = "inproc://zeromq.zap.01"

// authenticatorActive enforces the process-wide singleton: at most one
// Authenticator may be started per process, since the ZAP endpoint is
// itself a process-wide singleton.
var authenticatorActive atomic.Bool

// Authenticator is a specialised Worker: an in-process ZAP (RFC 27)
// replier that gates NULL and CURVE mechanisms against an IP allow/deny
// policy and a public-key whitelist. It contains a Context (composition,
// not inheritance) that owns its ZAP-replying Socket.
type Authenticator struct {
	*Worker

	ctx    *Context
	socket *Socket
	log    zerolog.Logger

	propsMu     sync.RWMutex
	privateKey  [32]byte
	havePrivate bool
	whitelist   map[[32]byte]struct{}
	policy      map[string]bool // true=allow, false=deny; first writer wins
	restrictive bool            // set once any allow entry has been added
	weakDomains map[string]struct{}
}

// NewAuthenticator constructs an Authenticator with its own Context,
// ready for Start.
func NewAuthenticator() *Authenticator {
	a := &Authenticator{
		ctx:         NewContext(true),
		whitelist:   make(map[[32]byte]struct{}),
		policy:      make(map[string]bool),
		weakDomains: make(map[string]struct{}),
		log:         zerolog.Nop(),
	}
	a.Worker = NewWorker(PriorityNormal, a.work)
	return a
}

// SetLogger attaches a structured logger for ZAP decision and lifecycle
// events. Key material is never logged.
func (a *Authenticator) SetLogger(log zerolog.Logger) {
	a.log = log
	a.Worker.SetLogger(log)
}

// Context returns the Authenticator's owned Context.
func (a *Authenticator) Context() *Context { return a.ctx }

// SetPrivateKey sets the authenticator's CURVE server private key, applied
// to sockets via Apply(secure=true).
func (a *Authenticator) SetPrivateKey(priv [32]byte) {
	a.propsMu.Lock()
	defer a.propsMu.Unlock()
	a.privateKey = priv
	a.havePrivate = true
}

// AllowKey adds pub to the CURVE client public-key whitelist. An empty
// whitelist means "any key acceptable".
func (a *Authenticator) AllowKey(pub [32]byte) {
	a.propsMu.Lock()
	defer a.propsMu.Unlock()
	a.whitelist[pub] = struct{}{}
}

// Allow marks address as allowed. First writer wins: if address already
// has an allow or deny entry, this call is a no-op.
func (a *Authenticator) Allow(address string) {
	a.propsMu.Lock()
	defer a.propsMu.Unlock()
	if _, exists := a.policy[address]; exists {
		return
	}
	a.policy[address] = true
	a.restrictive = true
}

// Deny marks address as denied. First writer wins: if address already has
// an allow or deny entry, this call is a no-op.
func (a *Authenticator) Deny(address string) {
	a.propsMu.Lock()
	defer a.propsMu.Unlock()
	if _, exists := a.policy[address]; exists {
		return
	}
	a.policy[address] = false
}

// addressAllowed implements the address policy: if no allow entry has
// ever been added, every address is allowed unless explicitly denied; if
// at least one allow entry has been added, only explicitly allowed
// addresses are admitted.
func (a *Authenticator) addressAllowed(address string) bool {
	a.propsMu.RLock()
	defer a.propsMu.RUnlock()
	allow, exists := a.policy[address]
	if !a.restrictive {
		return !(exists && !allow)
	}
	return exists && allow
}

// Apply wires socket into the authenticator: socket's ZAP domain is
// recorded and its curve/domain settings configured so its traffic is
// routed through this authenticator's policy.
func (a *Authenticator) Apply(socket *Socket, domain string, secure bool) Error {
	a.propsMu.Lock()
	hasWhitelist := len(a.whitelist) > 0
	havePrivate := a.havePrivate
	privateKey := a.privateKey
	hasPolicy := len(a.policy) > 0
	if hasWhitelist && !havePrivate {
		a.propsMu.Unlock()
		return ErrSocketState
	}
	if !secure {
		if hasPolicy && domain == "" {
			a.propsMu.Unlock()
			return ErrSocketState
		}
		a.weakDomains[domain] = struct{}{}
	}
	a.propsMu.Unlock()

	if secure {
		if err := socket.SetPrivateKey(privateKey); err != 0 {
			return err
		}
		if err := socket.SetCurveServer(); err != 0 {
			return err
		}
	}
	return socket.SetAuthenticationDomain(domain)
}

func (a *Authenticator) domainRegistered(domain string) bool {
	a.propsMu.RLock()
	defer a.propsMu.RUnlock()
	_, ok := a.weakDomains[domain]
	return ok
}

func (a *Authenticator) keyAllowed(pub [32]byte) bool {
	a.propsMu.RLock()
	defer a.propsMu.RUnlock()
	if len(a.whitelist) == 0 {
		return true
	}
	_, ok := a.whitelist[pub]
	return ok
}

// Start enforces the process-wide singleton (at most one Authenticator
// bound to the ZAP endpoint), starts the owned Context and launches the
// reply loop.
func (a *Authenticator) Start() Error {
	if !authenticatorActive.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	a.ctx.Start()
	if err := a.Worker.Start(); err != 0 {
		authenticatorActive.Store(false)
		return err
	}
	return 0
}

// Stop terminates the reply loop and releases the process-wide singleton
// guard. The owned Context is stopped first so that the loop's pending
// Receive returns.
func (a *Authenticator) Stop() Error {
	a.ctx.Stop()
	err := a.Worker.Stop()
	authenticatorActive.Store(false)
	return err
}

func (a *Authenticator) work(w *Worker) error {
	ep, epErr := config.ParseEndpoint(zapEndpoint)
	if epErr != nil {
		w.PublishStarted(false)
		return epErr
	}
	sock := NewSocket(a.ctx, RoleReplier)
	if err := sock.Bind(ep); err != 0 {
		w.PublishStarted(false)
		return nil
	}
	a.socket = sock
	w.PublishStarted(true)
	a.log.Debug().Str("endpoint", zapEndpoint).Msg("authenticator bound")

	for !w.Stopped() {
		req := NewMessage()
		if err := sock.Receive(req); err != 0 {
			if err == ErrContextTerminated {
				break
			}
			continue
		}
		resp := a.reply(req)
		sock.Send(resp)
	}
	sock.Stop()
	w.PublishFinished(true)
	return nil
}

// reply implements the ZAP request/response decision tree of RFC 27. See
// DESIGN.md for the grounding source.
func (a *Authenticator) reply(req *Message) *Message {
	version, _ := req.DequeueText()
	sequence, _ := req.DequeueText()
	domain, _ := req.DequeueText()
	address, _ := req.DequeueText()
	identity, _ := req.DequeueText()
	mechanism, _ := req.DequeueText()
	var mechFrames [][]byte
	for !req.Empty() {
		b, _ := req.DequeueBytes()
		mechFrames = append(mechFrames, b)
	}

	if version != "1.0" || sequence == "" || identity != "" {
		a.log.Debug().Msg("zap: internal error")
		return zapResponse(version, sequence, "500", "Internal error.", "", "")
	}

	if !a.addressAllowed(address) {
		a.log.Debug().Str("address", address).Msg("zap: address not enabled")
		return zapResponse(version, sequence, "400", "Address not enabled for access.", "", "")
	}

	switch mechanism {
	case "NULL":
		if len(mechFrames) != 0 {
			return zapResponse(version, sequence, "400", "Incorrect NULL parameterization.", "", "")
		}
		if domain == "" {
			return zapResponse(version, sequence, "400", "NULL mechanism requires domain.", "", "")
		}
		if !a.domainRegistered(domain) {
			return zapResponse(version, sequence, "400", "NULL mechanism not authorized.", "", "")
		}
		a.log.Debug().Str("domain", domain).Msg("zap: NULL authorized")
		return zapResponse(version, sequence, "200", "OK", "anonymous", "")

	case "CURVE":
		if len(mechFrames) != 1 {
			return zapResponse(version, sequence, "400", "Incorrect CURVE parameterization.", "", "")
		}
		if len(mechFrames[0]) != 32 {
			return zapResponse(version, sequence, "400", "Invalid public key.", "", "")
		}
		var pub [32]byte
		copy(pub[:], mechFrames[0])
		if !a.keyAllowed(pub) {
			return zapResponse(version, sequence, "400", "Public key not authorized.", "", "")
		}
		a.log.Debug().Msg("zap: CURVE authorized")
		return zapResponse(version, sequence, "200", "OK", "unspecified", "")

	case "PLAIN":
		if len(mechFrames) != 2 {
			return zapResponse(version, sequence, "400", "Incorrect PLAIN parameterization.", "", "")
		}
		return zapResponse(version, sequence, "400", "PLAIN mechanism not supported.", "", "")

	default:
		return zapResponse(version, sequence, "400", "Security mechanism not supported.", "", "")
	}
}

func zapResponse(version, sequence, status, statusText, userID, metadata string) *Message {
	m := NewMessage()
	m.EnqueueText(version)
	m.EnqueueText(sequence)
	m.EnqueueText(status)
	m.EnqueueText(statusText)
	m.EnqueueText(userID)
	m.EnqueueText(metadata)
	return m
}
