package zmqcore

import (
	"testing"

	"code.hybscloud.com/zmqcore/config"
	zmq4 "github.com/luxfi/zmq/v4"
)

func TestSocketIDStableAfterStop(t *testing.T) {
	ctx := NewContext(true)
	defer ctx.Stop()
	s := NewSocket(ctx, RolePair)
	id := s.ID()
	if err := s.Stop(); err != 0 {
		t.Fatalf("Stop: %v", err)
	}
	if s.ID() != id {
		t.Fatal("identifier changed after Stop")
	}
}

func TestSocketStopIdempotent(t *testing.T) {
	ctx := NewContext(true)
	defer ctx.Stop()
	s := NewSocket(ctx, RolePuller)
	if err := s.Stop(); err != 0 {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(); err != 0 {
		t.Fatalf("second Stop (idempotent): %v", err)
	}
}

func TestSocketCurveSetterRejectedAfterRealize(t *testing.T) {
	ctx := NewContext(true)
	defer ctx.Stop()
	s := NewSocket(ctx, RolePuller)
	if err := s.Bind(mustEndpoint(t, "tcp://127.0.0.1:0")); err != 0 {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.SetCurveServer(); err != ErrSocketState {
		t.Fatalf("expected ErrSocketState after realize, got %v", err)
	}
}

func TestSocketSubscriptionWrongRole(t *testing.T) {
	ctx := NewContext(true)
	defer ctx.Stop()
	s := NewSocket(ctx, RolePusher)
	if err := s.SetSubscription([]byte("topic")); err != ErrUnsupportedOperation {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestRequesterSendWithoutReceiveFails(t *testing.T) {
	ctx := NewContext(true)
	defer ctx.Stop()
	s := NewSocket(ctx, RoleRequester)
	if err := s.Connect(mustEndpoint(t, "tcp://127.0.0.1:9")); err != 0 {
		t.Fatalf("Connect: %v", err)
	}
	m1 := NewMessage()
	m1.EnqueueText("hello world!")
	if err := s.Send(m1); err != 0 {
		t.Fatalf("first send: %v", err)
	}
	m2 := NewMessage()
	m2.EnqueueText("again")
	if err := s.Send(m2); err != ErrSocketState {
		t.Fatalf("expected ErrSocketState on out-of-order send, got %v", err)
	}
}

func TestSocketHighWaterReachesUnderlyingSocket(t *testing.T) {
	ctx := NewContext(true)
	defer ctx.Stop()
	s := NewSocket(ctx, RolePuller, WithSendHighWater(7), WithReceiveHighWater(250))
	if err := s.Bind(mustEndpoint(t, "tcp://127.0.0.1:0")); err != 0 {
		t.Fatalf("Bind: %v", err)
	}
	got, err := s.under.GetOption(zmq4.OptionHWM)
	if err != nil {
		t.Fatalf("GetOption(OptionHWM): %v", err)
	}
	if got != 7 {
		t.Fatalf("OptionHWM = %v, want 7 (the stricter of SendHighWater=7/ReceiveHighWater=250)", got)
	}
}

func TestSocketStopThenContextStopIdempotent(t *testing.T) {
	ctx := NewContext(true)
	s := NewSocket(ctx, RolePuller)
	if err := s.Bind(mustEndpoint(t, "tcp://127.0.0.1:0")); err != 0 {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.Stop(); err != 0 {
		t.Fatalf("Socket.Stop: %v", err)
	}
	if err := ctx.Stop(); err != nil {
		t.Fatalf("Context.Stop after Socket.Stop should still succeed idempotently, got %v", err)
	}
}

func mustEndpoint(t *testing.T, s string) config.Endpoint {
	t.Helper()
	ep, err := config.ParseEndpoint(s)
	if err != nil {
		t.Fatalf("parse endpoint %q: %v", s, err)
	}
	return ep
}
