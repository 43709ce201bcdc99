package zmqcore

import "time"

// Settings is an immutable value object carrying socket tunables, applied
// exactly once at Socket construction (see Socket's lazy-realisation note
// in socket.go). DefaultSettings and NewSettings carry the package
// defaults; a zero Settings has every tunable at zero (unlimited high
// water, reconnection disabled, no send deadline).
//
// Settings only carries fields this package can actually apply to the
// underlying zmq4.Socket. spec.md §4.3 also names a message-size limit and
// ping/inactivity heartbeat deadlines, but no retrieved zmq4 example
// confirms an option surface for any of the three — only OptionIdentity,
// OptionHWM, OptionSubscribe and OptionUnsubscribe are confirmed (see
// other_examples/31423fa8_luxfi-zmq__zmq4_targeted_test.go.go). Carrying
// fields this package cannot wire would mean either guessing option-key
// constants (the exact compile risk flagged elsewhere in this package) or
// silently accepting and discarding them, so they are left out of
// Settings entirely; see DESIGN.md's Settings entry for the full
// accounting.
type Settings struct {
	SendHighWater    int
	ReceiveHighWater int
	ReconnectSeconds int
	SendMilliseconds int
}

// DefaultSettings returns the package default tunables: send/receive high
// water of 100, a 1 second reconnect ceiling, and an unbounded send
// deadline.
func DefaultSettings() Settings {
	return Settings{
		SendHighWater:    100,
		ReceiveHighWater: 100,
		ReconnectSeconds: 1,
	}
}

// Option configures a Settings value during construction.
type Option func(*Settings)

// WithSendHighWater sets the maximum number of buffered outbound
// messages; zero means unlimited.
func WithSendHighWater(n int) Option { return func(s *Settings) { s.SendHighWater = n } }

// WithReceiveHighWater sets the maximum number of buffered inbound
// messages; zero means unlimited.
func WithReceiveHighWater(n int) Option { return func(s *Settings) { s.ReceiveHighWater = n } }

// WithReconnectSeconds sets the client reconnect ceiling; zero disables
// reconnection entirely (see DESIGN.md's Open Question resolution),
// rather than setting a zero interval.
func WithReconnectSeconds(n int) Option { return func(s *Settings) { s.ReconnectSeconds = n } }

// WithSendMilliseconds sets the blocking send deadline; zero means
// unlimited (the only way to obtain a non-blocking send is a positive,
// finite value).
func WithSendMilliseconds(n int) Option { return func(s *Settings) { s.SendMilliseconds = n } }

// NewSettings builds a Settings starting from DefaultSettings and applying
// opts in order.
func NewSettings(opts ...Option) Settings {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// reconnectInterval maps ReconnectSeconds to the (base, max) delay pair the
// underlying transport's dialer retry options expect: zero disables
// reconnection; a positive value sets the ceiling with a fixed 100ms
// floor, matching the source implementation's clamping rule.
func (s Settings) reconnectInterval() (base, max time.Duration, disabled bool) {
	if s.ReconnectSeconds <= 0 {
		return 0, 0, true
	}
	return 100 * time.Millisecond, time.Duration(s.ReconnectSeconds) * time.Second, false
}

// sendTimeout maps SendMilliseconds to a time.Duration; zero means
// unlimited, represented by a zero Duration (interpreted by Socket as "no
// deadline").
func (s Settings) sendTimeout() time.Duration {
	if s.SendMilliseconds <= 0 {
		return 0
	}
	return time.Duration(s.SendMilliseconds) * time.Millisecond
}

// highWater returns the single OptionHWM value applied to the underlying
// socket at realisation. zmq4's confirmed runtime option surface exposes
// one generic high-water mark rather than distinct send/receive knobs
// (other_examples/31423fa8_luxfi-zmq__zmq4_targeted_test.go.go calls
// sock.SetOption(zmq4.OptionHWM, 1000) directly), so the stricter of the
// two configured marks applies: zero ("unlimited") only when both are
// zero.
func (s Settings) highWater() int {
	switch {
	case s.SendHighWater <= 0:
		return s.ReceiveHighWater
	case s.ReceiveHighWater <= 0:
		return s.SendHighWater
	case s.SendHighWater < s.ReceiveHighWater:
		return s.SendHighWater
	default:
		return s.ReceiveHighWater
	}
}
