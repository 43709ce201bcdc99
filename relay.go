package zmqcore

import "context"

// Relay forwards exactly one logical message from one socket to another:
// a receive on from followed by a send on to. Grounded on the source
// implementation's worker-level forward(from, to) helper and generalised
// from the teacher's byte-stream Forwarder to whole Messages.
func Relay(from, to *Socket) Error {
	m := NewMessage()
	if err := from.Receive(m); err != 0 {
		return err
	}
	return to.Send(m)
}

// RunProxy relays messages between front and back in both directions
// until ctx is done, mirroring the steady-state loop a zmq4.Proxy(front,
// back) call would run, but expressed over this package's typed Sockets
// rather than raw zmq4.Socket handles.
func RunProxy(ctx context.Context, front, back *Socket) Error {
	errs := make(chan Error, 2)
	go func() {
		for {
			select {
			case <-ctx.Done():
				errs <- 0
				return
			default:
			}
			if err := Relay(front, back); err != 0 {
				errs <- err
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				errs <- 0
				return
			default:
			}
			if err := Relay(back, front); err != 0 {
				errs <- err
				return
			}
		}
	}()
	return <-errs
}
