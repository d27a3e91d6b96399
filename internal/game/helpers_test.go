package game

import (
	"context"
	"fmt"
	"testing"

	"github.com/lox/dicepoker/dice"
)

// fakeSource is a RandomnessSource fulfilled by hand from tests.
type fakeSource struct {
	seq      int
	pending  map[Identity]string
	ready    map[Identity]Draw
	requests []Identity
	// failWith, when set, is returned by every Request.
	failWith error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pending: make(map[Identity]string),
		ready:   make(map[Identity]Draw),
	}
}

func (f *fakeSource) Request(requester Identity, count int) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	_, waiting := f.pending[requester]
	_, held := f.ready[requester]
	if waiting || held {
		return "", NewError(RequestAlreadyPending, "request", "%q", requester)
	}
	f.seq++
	id := fmt.Sprintf("req-%d", f.seq)
	f.pending[requester] = id
	f.requests = append(f.requests, requester)
	return id, nil
}

func (f *fakeSource) Ready(requester Identity) (Draw, bool) {
	d, ok := f.ready[requester]
	return d, ok
}

func (f *fakeSource) Consume(requester Identity) (Draw, bool) {
	d, ok := f.ready[requester]
	delete(f.ready, requester)
	return d, ok
}

// fulfill completes requester's pending request so that rolling with every
// die set to dice.AcceptRandom produces hand.
func (f *fakeSource) fulfill(t *testing.T, requester Identity, hand dice.Hand) {
	t.Helper()
	id, ok := f.pending[requester]
	if !ok {
		t.Fatalf("no pending request for %q", requester)
	}
	delete(f.pending, requester)
	f.ready[requester] = Draw{RequestID: id, Numbers: numbersFor(hand)}
}

func numbersFor(h dice.Hand) []uint64 {
	out := make([]uint64, len(h))
	for i, f := range h {
		// FromNumber maps n to n%6+1; add a multiple of six to show the
		// reduction is applied.
		out[i] = uint64(f-1) + 6*uint64(i)
	}
	return out
}

var allRandom = dice.Hand{1, 1, 1, 1, 1}

type transfer struct {
	to     Identity
	amount uint64
}

// recordingPayout records transfers and fails while err is set.
type recordingPayout struct {
	transfers []transfer
	err       error
	during    func()
}

func (p *recordingPayout) Transfer(_ context.Context, to Identity, amount uint64) error {
	if p.during != nil {
		p.during()
	}
	if p.err != nil {
		return p.err
	}
	p.transfers = append(p.transfers, transfer{to: to, amount: amount})
	return nil
}

// recorder collects event types.
type recorder struct {
	events []GameEvent
}

func (r *recorder) OnEvent(e GameEvent) { r.events = append(r.events, e) }

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func newTestSession(t *testing.T, opts ...SessionOption) (*Session, *fakeSource, *recordingPayout) {
	t.Helper()
	src := newFakeSource()
	pay := &recordingPayout{}
	seq := 0
	opts = append([]SessionOption{WithHandIDs(func() string {
		seq++
		return fmt.Sprintf("hand-%d", seq)
	})}, opts...)
	return NewSession(src, pay, opts...), src, pay
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// seat joins A and B.
func seat(t *testing.T, s *Session) {
	t.Helper()
	mustDo(t, s.Join("A"))
	mustDo(t, s.Join("B"))
}

// toRoll plays A bet 100, B call 100.
func toRoll(t *testing.T, s *Session) {
	t.Helper()
	seat(t, s)
	mustDo(t, s.Bet("A", 100, 100))
	mustDo(t, s.Call("B", 100))
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %v error, got %v (%v)", kind, got, err)
	}
}
