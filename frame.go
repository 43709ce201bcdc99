package zmqcore

// Frame is a single physical message part: a payload plus a flag
// indicating whether further frames follow in the same logical message. A
// Frame exclusively owns its payload; after Send or Receive it is
// restartable (reinitialised and ready for reuse).
type Frame struct {
	payload []byte
	more    bool
}

// NewFrame constructs a Frame ready for Send, carrying an immutable copy
// of payload.
func NewFrame(payload []byte) Frame {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return Frame{payload: cp}
}

// Payload returns the frame's current payload bytes.
func (f Frame) Payload() []byte { return f.payload }

// More reports whether further frames follow this one in the same
// message, as learned during Receive.
func (f Frame) More() bool { return f.more }

// Send transmits the frame's payload over socket. last indicates this is
// the final frame of the logical message; when false, the socket buffers
// the payload and signals that further frames will follow. Must be
// invoked on the socket's owning thread.
func (f *Frame) Send(socket *Socket, last bool) Error {
	err := socket.bufferOutgoing(f.payload, last)
	if err == 0 {
		f.payload = nil
	}
	return err
}

// Receive populates the frame from the socket's next queued part and sets
// More from the socket's read state. Must be invoked on the socket's
// owning thread.
func (f *Frame) Receive(socket *Socket) Error {
	payload, more, err := socket.nextIncoming()
	if err != 0 {
		return err
	}
	f.payload = payload
	f.more = more
	return 0
}
