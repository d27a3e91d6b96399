package oracle

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/lox/dicepoker/internal/game"
)

// FallbackNumbers derives count numbers starting at index start from
// SHA-256(timestamp, requester, index). The output is predictable and is
// not a substitute for oracle randomness.
func FallbackNumbers(at time.Time, requester game.Identity, start, count int) []uint64 {
	out := make([]uint64, count)
	buf := make([]byte, 0, 16+len(requester))
	for i := range out {
		buf = buf[:0]
		buf = binary.BigEndian.AppendUint64(buf, uint64(at.UnixNano()))
		buf = append(buf, requester...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(start+i))
		sum := sha256.Sum256(buf)
		out[i] = binary.BigEndian.Uint64(sum[:8])
	}
	return out
}
