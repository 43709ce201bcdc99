package zmqcore

import (
	"crypto/rand"
	"strings"

	zmq4 "github.com/luxfi/zmq/v4"
	"golang.org/x/crypto/curve25519"
)

// NullPublicKey is the well-known Z85-encoded public key corresponding to
// a zero (32 zero bytes) private key.
const NullPublicKey = "fxERSn6LHg6!4!qu+m-(f-Q<1UF!=7)u0-ysJ-^F"

const maxRestrictedAttempts = 255

// Keypair is a (public, private) pair of 32-byte curve values. The zero
// value is uninitialised (both keys zero); Initialised reports whether
// both halves are non-zero.
type Keypair struct {
	Public     [32]byte
	Private    [32]byte
	restricted bool
}

// Initialised reports whether both the public and private halves are
// non-zero.
func (k Keypair) Initialised() bool {
	return k.Public != [32]byte{} && k.Private != [32]byte{}
}

// Restricted reports whether this keypair was generated avoiding the '#'
// character in its Z85 text form, so that it survives round-tripping
// through a settings file.
func (k Keypair) Restricted() bool { return k.restricted }

// PublicText returns the 40-character Z85 (base85) text encoding of the
// public key.
func (k Keypair) PublicText() string { return zmq4.Z85encode(k.Public[:]) }

// PrivateText returns the 40-character Z85 text encoding of the private
// key.
func (k Keypair) PrivateText() string { return zmq4.Z85encode(k.Private[:]) }

// DerivePublic computes the public key for a given 32-byte private scalar
// via X25519 base-point scalar multiplication.
func DerivePublic(private [32]byte) ([32]byte, error) {
	var out [32]byte
	pub, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		return out, err
	}
	copy(out[:], pub)
	return out, nil
}

// NewKeypair constructs a Keypair from an explicit private key. If private
// is the zero key, a fresh keypair is generated instead (full key space,
// may contain '#' in its Z85 form).
func NewKeypair(private [32]byte) (Keypair, error) {
	if private == ([32]byte{}) {
		return GenerateKeypair(false)
	}
	pub, err := DerivePublic(private)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Public: pub, Private: private}, nil
}

// GenerateKeypair creates a fresh random keypair. When restricted is true,
// generation retries (up to maxRestrictedAttempts times) until neither
// key's Z85 text form contains the '#' character, so the pair survives
// round-tripping through a settings file.
func GenerateKeypair(restricted bool) (Keypair, error) {
	for attempt := 0; attempt < maxRestrictedAttempts; attempt++ {
		var priv [32]byte
		if _, err := rand.Read(priv[:]); err != nil {
			return Keypair{}, err
		}
		// Clamp per X25519 convention so the scalar is a valid Curve25519
		// private key.
		priv[0] &= 248
		priv[31] &= 127
		priv[31] |= 64

		pub, err := DerivePublic(priv)
		if err != nil {
			return Keypair{}, err
		}
		kp := Keypair{Public: pub, Private: priv, restricted: restricted}
		if !restricted || (okSetting(kp.PublicText()) && okSetting(kp.PrivateText())) {
			return kp, nil
		}
	}
	return Keypair{}, ErrUnknown
}

func okSetting(z85 string) bool {
	return !strings.ContainsRune(z85, '#')
}

// ParseKeypairText decodes a 40-character Z85 private-key text form into a
// Keypair, deriving the public half.
func ParseKeypairText(privateText string) (Keypair, error) {
	raw, err := zmq4.Z85decode(privateText)
	if err != nil {
		return Keypair{}, err
	}
	if len(raw) != 32 {
		return Keypair{}, ErrInvalidMessage
	}
	var priv [32]byte
	copy(priv[:], raw)
	return NewKeypair(priv)
}
