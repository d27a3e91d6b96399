package game

import (
	"time"

	"github.com/lox/dicepoker/dice"
)

// EventType represents a game event type with type safety
type EventType string

// EventType constants for game domain events
const (
	EventTypePlayerJoined        EventType = "player_joined"
	EventTypeBetPlaced           EventType = "bet_placed"
	EventTypeFolded              EventType = "folded"
	EventTypeRandomnessRequested EventType = "randomness_requested"
	EventTypeRandomnessFulfilled EventType = "randomness_fulfilled"
	EventTypeDiceRolled          EventType = "dice_rolled"
	EventTypeWinnerDeclared      EventType = "winner_declared"
	EventTypeSettlementFailed    EventType = "settlement_failed"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent represents anything that happens at a table.
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

// BetKind says which betting action produced a BetPlacedEvent.
type BetKind string

const (
	BetKindBet   BetKind = "bet"
	BetKindRaise BetKind = "raise"
	BetKindCall  BetKind = "call"
)

// PlayerJoinedEvent is published when a player takes a seat.
type PlayerJoinedEvent struct {
	Player    Identity `json:"player"`
	Slot      int      `json:"slot"`
	timestamp time.Time
}

func (e PlayerJoinedEvent) EventType() EventType { return EventTypePlayerJoined }
func (e PlayerJoinedEvent) Timestamp() time.Time { return e.timestamp }

// BetPlacedEvent is published for every bet, raise and call.
type BetPlacedEvent struct {
	Player     Identity `json:"player"`
	Slot       int      `json:"slot"`
	Kind       BetKind  `json:"kind"`
	Amount     uint64   `json:"amount"`
	CurrentBet uint64   `json:"current_bet"`
	Pot        uint64   `json:"pot"`
	timestamp  time.Time
}

func (e BetPlacedEvent) EventType() EventType { return EventTypeBetPlaced }
func (e BetPlacedEvent) Timestamp() time.Time { return e.timestamp }

// FoldedEvent is published when a player gives up the hand.
type FoldedEvent struct {
	Player    Identity `json:"player"`
	Slot      int      `json:"slot"`
	timestamp time.Time
}

func (e FoldedEvent) EventType() EventType { return EventTypeFolded }
func (e FoldedEvent) Timestamp() time.Time { return e.timestamp }

// RandomnessRequestedEvent is published when a player's randomness request
// is handed to the source.
type RandomnessRequestedEvent struct {
	Player    Identity `json:"player"`
	RequestID string   `json:"request_id"`
	timestamp time.Time
}

func (e RandomnessRequestedEvent) EventType() EventType { return EventTypeRandomnessRequested }
func (e RandomnessRequestedEvent) Timestamp() time.Time { return e.timestamp }

// RandomnessFulfilledEvent is published when numbers arrive for a request,
// either from the oracle network or from the fallback generator.
type RandomnessFulfilledEvent struct {
	Player    Identity `json:"player"`
	RequestID string   `json:"request_id"`
	Fallback  bool     `json:"fallback"`
	timestamp time.Time
}

func (e RandomnessFulfilledEvent) EventType() EventType { return EventTypeRandomnessFulfilled }
func (e RandomnessFulfilledEvent) Timestamp() time.Time { return e.timestamp }

// NewRandomnessFulfilledEvent creates a fulfillment event. Fulfillment is
// observed by the table rather than the session, hence the export.
func NewRandomnessFulfilledEvent(at time.Time, player Identity, requestID string, fallback bool) RandomnessFulfilledEvent {
	return RandomnessFulfilledEvent{
		Player:    player,
		RequestID: requestID,
		Fallback:  fallback,
		timestamp: at,
	}
}

// DiceRolledEvent is published after a player's dice are fixed.
type DiceRolledEvent struct {
	Player    Identity  `json:"player"`
	Slot      int       `json:"slot"`
	Dice      dice.Hand `json:"dice"`
	Score     int       `json:"score"`
	Round     int       `json:"round"`
	Fallback  bool      `json:"fallback"`
	timestamp time.Time
}

func (e DiceRolledEvent) EventType() EventType { return EventTypeDiceRolled }
func (e DiceRolledEvent) Timestamp() time.Time { return e.timestamp }

// WinnerDeclaredEvent is published once the pot has been paid out.
type WinnerDeclaredEvent struct {
	Settlement Settlement `json:"settlement"`
	timestamp  time.Time
}

func (e WinnerDeclaredEvent) EventType() EventType { return EventTypeWinnerDeclared }
func (e WinnerDeclaredEvent) Timestamp() time.Time { return e.timestamp }

// SettlementFailedEvent is published when a payout transfer fails. The pot
// stays in place until RetrySettlement succeeds.
type SettlementFailedEvent struct {
	Settlement Settlement `json:"settlement"`
	Error      string     `json:"error"`
	timestamp  time.Time
}

func (e SettlementFailedEvent) EventType() EventType { return EventTypeSettlementFailed }
func (e SettlementFailedEvent) Timestamp() time.Time { return e.timestamp }

// Listener receives every event a session publishes.
type Listener interface {
	OnEvent(GameEvent)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(GameEvent)

func (f ListenerFunc) OnEvent(e GameEvent) { f(e) }

// NullListener is a no-op implementation.
type NullListener struct{}

func (NullListener) OnEvent(GameEvent) {}

// MultiListener fans events out to several listeners.
type MultiListener struct {
	listeners []Listener
}

// NewMultiListener builds a composite listener, pruning nil entries and
// returning a NullListener when none remain.
func NewMultiListener(listeners ...Listener) Listener {
	filtered := make([]Listener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			filtered = append(filtered, l)
		}
	}

	switch len(filtered) {
	case 0:
		return NullListener{}
	case 1:
		return filtered[0]
	default:
		return MultiListener{listeners: filtered}
	}
}

func (m MultiListener) OnEvent(e GameEvent) {
	for _, l := range m.listeners {
		l.OnEvent(e)
	}
}
