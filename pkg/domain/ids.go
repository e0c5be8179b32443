package domain

import (
	"encoding/hex"
	"math/bits"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "flightsurety/pkg/domain-errors"
)

const maxPrincipalLength = 128

// Principal identifies a caller: an airline, a passenger, an oracle feeder or
// the administrator. The identity provider decides the format; hex addresses
// ("0x…") are normalised to lower case so the same account always maps to the
// same key.
type Principal string

// ParsePrincipal validates a principal at a trust boundary.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) > maxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal must not contain whitespace or control characters")
		}
	}
	if isHexAddress(s) {
		s = strings.ToLower(s)
	}
	return Principal(s), nil
}

func isHexAddress(s string) bool {
	if len(s) < 3 || (s[:2] != "0x" && s[:2] != "0X") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func (p Principal) String() string { return string(p) }

func (p Principal) IsNil() bool { return p == "" }

// FlightKey is the fixed-size handle of a flight, derived from
// (airline, flight code, scheduled departure).
type FlightKey [32]byte

// ParseFlightKey accepts the 0x-prefixed hex form produced by String.
func ParseFlightKey(s string) (FlightKey, error) {
	var key FlightKey
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != hex.EncodedLen(len(key)) {
		return FlightKey{}, dErrors.New(dErrors.CodeInvalidInput, "flight key must be 32 bytes of hex")
	}
	if _, err := hex.Decode(key[:], []byte(s)); err != nil {
		return FlightKey{}, dErrors.New(dErrors.CodeInvalidInput, "flight key must be 32 bytes of hex")
	}
	return key, nil
}

func (k FlightKey) String() string { return "0x" + hex.EncodeToString(k[:]) }

func (k FlightKey) IsNil() bool { return k == FlightKey{} }

func (k FlightKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *FlightKey) UnmarshalText(b []byte) error {
	parsed, err := ParseFlightKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Amount is an opaque count of value units. All arithmetic is checked.
type Amount uint64

// Add returns a+b, or false on overflow.
func (a Amount) Add(b Amount) (Amount, bool) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	return Amount(sum), carry == 0
}

// Sub returns a-b, or false on underflow.
func (a Amount) Sub(b Amount) (Amount, bool) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	return Amount(diff), borrow == 0
}

// MulRat returns floor(a*num/den), or false when the result does not fit.
func (a Amount) MulRat(num, den uint64) (Amount, bool) {
	if den == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), num)
	if hi >= den {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, den)
	return Amount(q), true
}

func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }
