package game

// Draw is a fulfilled batch of random numbers for one requester.
type Draw struct {
	RequestID string
	Numbers   []uint64
	// Fallback is set when some or all numbers came from the local
	// generator. Those numbers are predictable and must not be treated as
	// oracle output.
	Fallback bool
}

// RandomnessSource supplies random numbers asynchronously. Request returns
// at once; the numbers become visible through Ready some time later.
type RandomnessSource interface {
	// Request asks for count numbers on behalf of requester and returns the
	// request ID. It fails with RequestAlreadyPending while the requester
	// holds an unconsumed request.
	Request(requester Identity, count int) (string, error)
	// Ready returns the fulfilled draw for requester without consuming it.
	Ready(requester Identity) (Draw, bool)
	// Consume returns the fulfilled draw and discards the request.
	Consume(requester Identity) (Draw, bool)
}
