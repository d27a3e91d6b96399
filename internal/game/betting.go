package game

// Ledger tracks the stake each slot has put into the pot and the amount
// both slots must reach. It performs no validation; the session checks
// every action before touching it.
type Ledger struct {
	Bets       [2]uint64
	CurrentBet uint64
}

// CallAmount is what slot still has to put in to match CurrentBet.
func (l *Ledger) CallAmount(slot int) uint64 {
	if l.Bets[slot] >= l.CurrentBet {
		return 0
	}
	return l.CurrentBet - l.Bets[slot]
}

// Pot is the sum of both stakes.
func (l *Ledger) Pot() uint64 {
	return l.Bets[0] + l.Bets[1]
}

// Place adds a bet for slot. A stake above CurrentBet becomes the new
// amount to match.
func (l *Ledger) Place(slot int, amount uint64) {
	l.Bets[slot] += amount
	if l.Bets[slot] > l.CurrentBet {
		l.CurrentBet = l.Bets[slot]
	}
}

// Raise adds amount to both slot's stake and CurrentBet. A raiser who still
// owed a call can end below CurrentBet; nothing tops them up.
func (l *Ledger) Raise(slot int, amount uint64) {
	l.Bets[slot] += amount
	l.CurrentBet += amount
}

// Match adds a call to slot's stake.
func (l *Ledger) Match(slot int, amount uint64) {
	l.Bets[slot] += amount
}

// Reset clears both stakes.
func (l *Ledger) Reset() {
	*l = Ledger{}
}
