package table

import "github.com/lox/dicepoker/internal/game"

// Observer is notified from a table's goroutine. Implementations must not
// call back into the same table synchronously.
type Observer interface {
	// OnEvent is called for every game event in the order it happened.
	OnEvent(tableID string, e game.GameEvent)
	// OnSnapshot is called after each command that reached the session.
	OnSnapshot(snap game.Snapshot)
}

// NullObserver is a no-op implementation.
type NullObserver struct{}

func (NullObserver) OnEvent(string, game.GameEvent) {}
func (NullObserver) OnSnapshot(game.Snapshot)       {}

// MultiObserver fans notifications out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver builds a composite observer, pruning nil entries and
// returning a NullObserver when none remain.
func NewMultiObserver(observers ...Observer) Observer {
	filtered := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}

	switch len(filtered) {
	case 0:
		return NullObserver{}
	case 1:
		return filtered[0]
	default:
		return MultiObserver{observers: filtered}
	}
}

func (m MultiObserver) OnEvent(tableID string, e game.GameEvent) {
	for _, o := range m.observers {
		o.OnEvent(tableID, e)
	}
}

func (m MultiObserver) OnSnapshot(snap game.Snapshot) {
	for _, o := range m.observers {
		o.OnSnapshot(snap)
	}
}
