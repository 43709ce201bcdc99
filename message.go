package zmqcore

import "encoding/binary"

const (
	routeSize = 5
	hashSize  = 32
)

// Message is a FIFO of frame payloads: semantically, an ordered sequence
// of message parts moved over a Socket as one logical multi-part message.
// size equals the number of enqueued frames; empty iff size==0. Typed
// dequeues that find a width mismatch pop the offending frame and report
// failure — a deliberate forward-progress choice so a malformed peer
// cannot wedge the queue.
type Message struct {
	queue [][]byte
}

// NewMessage returns an empty Message.
func NewMessage() *Message { return &Message{} }

// Size returns the number of enqueued frames.
func (m *Message) Size() int { return len(m.queue) }

// Empty reports whether the message holds no frames.
func (m *Message) Empty() bool { return len(m.queue) == 0 }

// Clear discards every enqueued frame.
func (m *Message) Clear() { m.queue = m.queue[:0] }

// Enqueue appends an empty frame — the envelope delimiter convention used
// between a routing envelope and its payload.
func (m *Message) Enqueue() {
	m.queue = append(m.queue, []byte{})
}

// EnqueueBytes appends a raw byte payload.
func (m *Message) EnqueueBytes(value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.queue = append(m.queue, cp)
}

// EnqueueText appends the UTF-8 bytes of value.
func (m *Message) EnqueueText(value string) {
	m.queue = append(m.queue, []byte(value))
}

// EnqueueRoute appends a fixed 5-byte routing identifier.
func (m *Message) EnqueueRoute(value [routeSize]byte) {
	m.queue = append(m.queue, append([]byte(nil), value[:]...))
}

// EnqueueHash appends a fixed 32-byte hash digest.
func (m *Message) EnqueueHash(value [hashSize]byte) {
	m.queue = append(m.queue, append([]byte(nil), value[:]...))
}

// EnqueueUint16LE appends v encoded as 2 little-endian bytes.
func (m *Message) EnqueueUint16LE(v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	m.queue = append(m.queue, b)
}

// EnqueueUint32LE appends v encoded as 4 little-endian bytes.
func (m *Message) EnqueueUint32LE(v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	m.queue = append(m.queue, b)
}

// EnqueueUint64LE appends v encoded as 8 little-endian bytes.
func (m *Message) EnqueueUint64LE(v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	m.queue = append(m.queue, b)
}

// Dequeue pops the front frame and discards it, reporting whether a frame
// was present.
func (m *Message) Dequeue() bool {
	if len(m.queue) == 0 {
		return false
	}
	m.queue = m.queue[1:]
	return true
}

// DequeueBytes pops the front frame's raw bytes.
func (m *Message) DequeueBytes() ([]byte, bool) {
	if len(m.queue) == 0 {
		return nil, false
	}
	v := m.queue[0]
	m.queue = m.queue[1:]
	return v, true
}

// DequeueText pops the front frame and returns it as a string.
func (m *Message) DequeueText() (string, bool) {
	v, ok := m.DequeueBytes()
	if !ok {
		return "", false
	}
	return string(v), true
}

// DequeueRoute pops the front frame as a 5-byte routing identifier. If the
// front frame's width differs from 5, the frame is still popped and false
// is returned.
func (m *Message) DequeueRoute() ([routeSize]byte, bool) {
	var out [routeSize]byte
	if len(m.queue) == 0 {
		return out, false
	}
	front := m.queue[0]
	m.queue = m.queue[1:]
	if len(front) != routeSize {
		return out, false
	}
	copy(out[:], front)
	return out, true
}

// DequeueHash pops the front frame as a 32-byte hash digest. If the front
// frame's width differs from 32, the frame is still popped and false is
// returned.
func (m *Message) DequeueHash() ([hashSize]byte, bool) {
	var out [hashSize]byte
	if len(m.queue) == 0 {
		return out, false
	}
	front := m.queue[0]
	m.queue = m.queue[1:]
	if len(front) != hashSize {
		return out, false
	}
	copy(out[:], front)
	return out, true
}

// DequeueUint16LE pops the front frame as a little-endian uint16. Width
// mismatch pops the frame and returns false.
func (m *Message) DequeueUint16LE() (uint16, bool) {
	if len(m.queue) == 0 {
		return 0, false
	}
	front := m.queue[0]
	m.queue = m.queue[1:]
	if len(front) != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(front), true
}

// DequeueUint32LE pops the front frame as a little-endian uint32. Width
// mismatch pops the frame and returns false.
func (m *Message) DequeueUint32LE() (uint32, bool) {
	if len(m.queue) == 0 {
		return 0, false
	}
	front := m.queue[0]
	m.queue = m.queue[1:]
	if len(front) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(front), true
}

// DequeueUint64LE pops the front frame as a little-endian uint64. Width
// mismatch pops the frame and returns false.
func (m *Message) DequeueUint64LE() (uint64, bool) {
	if len(m.queue) == 0 {
		return 0, false
	}
	front := m.queue[0]
	m.queue = m.queue[1:]
	if len(front) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(front), true
}

// Send moves the queue over socket as a sequence of frames terminated by
// a frame with more=false. A partial failure leaves the remaining frames
// in the queue so the caller may retry or inspect state.
func (m *Message) Send(socket *Socket) Error {
	for len(m.queue) > 0 {
		payload := m.queue[0]
		last := len(m.queue) == 1
		var f Frame
		f.payload = payload
		if err := f.Send(socket, last); err != 0 {
			return err
		}
		m.queue = m.queue[1:]
	}
	return 0
}

// Receive clears the queue, then reads frames from socket until one
// arrives with more=false.
func (m *Message) Receive(socket *Socket) Error {
	m.Clear()
	for {
		var f Frame
		if err := f.Receive(socket); err != 0 {
			return err
		}
		m.queue = append(m.queue, f.payload)
		if !f.more {
			return 0
		}
	}
}
