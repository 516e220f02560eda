package clock

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// encode36 renders a ULID timestamp (milliseconds since epoch) as base36.
func encode36(ms uint64) string {
	return strconv.FormatUint(ms, 36)
}

// base32To36 reinterprets a ULID's 10-byte entropy payload as base36 text,
// giving 80 bits of randomness in the id's random segment.
func base32To36(entropy [10]byte) string {
	n := new(big.Int).SetBytes(entropy[:])
	return n.Text(36)
}

// newRandReader returns the io.Reader behind ulid.Monotonic. It reads
// crypto/rand directly; the time argument is ignored.
func newRandReader(_ time.Time) *cryptoRandReader {
	return &cryptoRandReader{}
}

type cryptoRandReader struct{}

func (r *cryptoRandReader) Read(p []byte) (int, error) {
	return rand.Read(p)
}
