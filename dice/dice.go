// Package dice implements five-dice poker hands: faces, parsing and the
// additive scoring table used to decide showdowns.
//
// # Scoring
//
// Scores stack rather than rank. A hand collects every bonus it qualifies for:
//
//	pair             +200 per pair
//	three of a kind  +300
//	four of a kind   +400
//	full house       +600 on top of the pair and three bonuses
//	straight         +500 (five consecutive faces)
//	five of a kind   5000, returned immediately
//
// This is not standard poker ordering: two pair (400) ties four of a kind and
// beats three of a kind. The table is preserved exactly because settled hands
// must score the same way everywhere the game is hosted.
package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HandSize is the number of dice in a hand.
const HandSize = 5

// Face is the value shown by a single die. Zero means the die is unset.
type Face uint8

const (
	Unset   Face = 0
	MinFace Face = 1
	MaxFace Face = 6

	// AcceptRandom marks a position in a roll request that should take its face
	// from the fulfilled randomness instead of from the request.
	AcceptRandom Face = 1
)

// Valid reports whether f is a face a die can show.
func (f Face) Valid() bool {
	return f >= MinFace && f <= MaxFace
}

// FromNumber maps an arbitrary random number onto a die face.
func FromNumber(n uint64) Face {
	return Face(n%uint64(MaxFace)) + MinFace
}

// Hand is an ordered set of five dice.
type Hand [HandSize]Face

// ErrInvalidHand is returned when a hand cannot be parsed or holds a face
// outside 1..6.
var ErrInvalidHand = errors.New("dice: invalid hand")

// Valid reports whether every die in the hand has been set to a legal face.
func (h Hand) Valid() bool {
	for _, f := range h {
		if !f.Valid() {
			return false
		}
	}
	return true
}

// IsZero reports whether no die has been set.
func (h Hand) IsZero() bool {
	return h == Hand{}
}

func (h Hand) String() string {
	var b strings.Builder
	for _, f := range h {
		b.WriteByte('0' + byte(f))
	}
	return b.String()
}

// Parse reads a hand written either as five digits ("12345") or as five
// separated values ("1,2,3,4,5" or "1 2 3 4 5").
func Parse(s string) (Hand, error) {
	var h Hand
	s = strings.TrimSpace(s)

	var fields []string
	if strings.ContainsAny(s, ", ") {
		fields = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	} else {
		fields = strings.Split(s, "")
	}

	if len(fields) != HandSize {
		return h, fmt.Errorf("%w: want %d dice, got %d", ErrInvalidHand, HandSize, len(fields))
	}

	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil || v < int(MinFace) || v > int(MaxFace) {
			return Hand{}, fmt.Errorf("%w: die %d is %q", ErrInvalidHand, i+1, field)
		}
		h[i] = Face(v)
	}
	return h, nil
}
