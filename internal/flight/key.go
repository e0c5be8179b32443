package flight

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"flightsurety/pkg/domain"
)

// Key derives the flight handle as Keccak-256 over the packed encoding of
// (airline, code, departure): the airline as raw address bytes when it is a
// hex address and as UTF-8 otherwise, the code as UTF-8, and the departure as
// a 32-byte big-endian unix timestamp in seconds.
//
// Key reads no state, so callers can compute handles offline.
func Key(airline domain.Principal, code string, departure time.Time) domain.FlightKey {
	h := sha3.NewLegacyKeccak256()
	h.Write(principalBytes(airline))
	h.Write([]byte(code))

	var ts [32]byte
	binary.BigEndian.PutUint64(ts[24:], uint64(departure.Unix()))
	h.Write(ts[:])

	var key domain.FlightKey
	h.Sum(key[:0])
	return key
}

func principalBytes(p domain.Principal) []byte {
	s := p.String()
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		if b, err := hex.DecodeString(rest); err == nil {
			return b
		}
	}
	return []byte(s)
}
