package dataflow

import (
	"testing"

	"github.com/NebulousLabs/fastrand"
	"github.com/stretchr/testify/require"
)

func newPorts(nInputs, nOutputs int) ([]*InputPort, []*OutputPort) {
	ins := make([]*InputPort, nInputs)
	for i := range ins {
		ins[i] = NewInputPort()
	}
	outs := make([]*OutputPort, nOutputs)
	for i := range outs {
		outs[i] = NewOutputPort()
	}
	return ins, outs
}

// Scenario 1: Resize 2->1, both inputs have data.
func TestResizeTwoToOneBothHaveData(t *testing.T) {
	ins, outs := newPorts(2, 1)
	ins[0].Push(Chunk{Seq: 1})
	ins[1].Push(Chunk{Seq: 2})

	r := NewResize(ins, outs)

	// First call forwards c1 from input 0; output 0 is now full so the
	// verdict is PortFull, not a terminal one.
	if got := r.Prepare(); got != PortFull {
		t.Fatalf("prepare 1: got %v, want PortFull", got)
	}
	c, ok := outs[0].Drain()
	if !ok || c.Seq != 1 {
		t.Fatalf("expected c1 forwarded, got %+v ok=%v", c, ok)
	}

	if got := r.Prepare(); got != PortFull {
		t.Fatalf("prepare 2: got %v, want PortFull", got)
	}
	c, ok = outs[0].Drain()
	if !ok || c.Seq != 2 {
		t.Fatalf("expected c2 forwarded, got %+v ok=%v", c, ok)
	}

	ins[0].Finish()
	ins[1].Finish()

	if got := r.Prepare(); got != Finished {
		t.Fatalf("prepare 3: got %v, want Finished", got)
	}
	if !outs[0].IsFinished() {
		t.Fatal("output should be finished")
	}
}

// Scenario 2: Resize 1->2, only one output ready.
func TestResizeOneToTwoOnlyOneOutputReady(t *testing.T) {
	ins, outs := newPorts(1, 2)
	ins[0].Push(Chunk{Seq: 1})
	outs[1].Push(Chunk{}) // output 1 full, cannot accept

	r := NewResize(ins, outs)

	if got := r.Prepare(); got != PortFull {
		t.Fatalf("prepare 1: got %v, want PortFull", got)
	}

	if got := r.Prepare(); got != PortFull {
		t.Fatalf("prepare 2: got %v, want PortFull (both outputs now full)", got)
	}

	c, ok := outs[0].Drain()
	if !ok || c.Seq != 1 {
		t.Fatalf("expected forward to output 0, got %+v ok=%v", c, ok)
	}
}

func TestResizeZeroOutputsFinishesImmediately(t *testing.T) {
	ins, outs := newPorts(2, 0)
	r := NewResize(ins, outs)
	if got := r.Prepare(); got != Finished {
		t.Fatalf("got %v, want Finished", got)
	}
	for _, in := range ins {
		if !in.IsFinished() {
			t.Fatal("all inputs should be closed")
		}
	}
}

func TestResizeZeroInputsFinishesImmediately(t *testing.T) {
	ins, outs := newPorts(0, 2)
	r := NewResize(ins, outs)
	if got := r.Prepare(); got != Finished {
		t.Fatalf("got %v, want Finished", got)
	}
	for _, out := range outs {
		if !out.IsFinished() {
			t.Fatal("all outputs should be finished")
		}
	}
}

func TestResizeFairnessRoundRobin(t *testing.T) {
	ins, outs := newPorts(3, 1)
	r := NewResize(ins, outs)

	for round := 0; round < 3; round++ {
		for i, in := range ins {
			in.Push(Chunk{Seq: uint64(round*10 + i)})
		}
		for i := 0; i < 3; i++ {
			r.Prepare()
			c, ok := outs[0].Drain()
			if !ok {
				t.Fatalf("round %d step %d: expected a chunk", round, i)
			}
			if int(c.Seq%10) != i {
				t.Fatalf("round %d: expected input %d serviced in order, got seq %d", round, i, c.Seq)
			}
		}
	}
}

func TestEventResizeTwoToOneBothHaveData(t *testing.T) {
	ins, outs := newPorts(2, 1)
	ins[0].Push(Chunk{Seq: 1})
	ins[1].Push(Chunk{Seq: 2})

	r := NewEventResize(ins, outs)

	got := r.Prepare([]int{0, 1}, []int{0})
	if got != PortFull {
		t.Fatalf("prepare 1: got %v, want PortFull", got)
	}
	c, ok := outs[0].Drain()
	if !ok || c.Seq != 1 {
		t.Fatalf("expected c1 forwarded, got %+v ok=%v", c, ok)
	}

	got = r.Prepare(nil, []int{0})
	if got != PortFull {
		t.Fatalf("prepare 2: got %v, want PortFull", got)
	}
	c, ok = outs[0].Drain()
	if !ok || c.Seq != 2 {
		t.Fatalf("expected c2 forwarded, got %+v ok=%v", c, ok)
	}

	ins[0].Finish()
	ins[1].Finish()

	got = r.Prepare([]int{0, 1}, []int{0})
	if got != Finished {
		t.Fatalf("prepare 3: got %v, want Finished", got)
	}
	if !outs[0].IsFinished() {
		t.Fatal("output should be finished")
	}
}

func TestEventResizeZeroOutputsFinishesImmediately(t *testing.T) {
	ins, outs := newPorts(2, 0)
	r := NewEventResize(ins, outs)
	if got := r.Prepare(nil, nil); got != Finished {
		t.Fatalf("got %v, want Finished", got)
	}
	for _, in := range ins {
		if !in.IsFinished() {
			t.Fatal("all inputs should be closed")
		}
	}
}

func TestEventResizeZeroInputsFinishesImmediately(t *testing.T) {
	ins, outs := newPorts(0, 2)
	r := NewEventResize(ins, outs)
	if got := r.Prepare(nil, nil); got != Finished {
		t.Fatalf("got %v, want Finished", got)
	}
	for _, out := range outs {
		if !out.IsFinished() {
			t.Fatal("all outputs should be finished")
		}
	}
}

// A drained input keeps its needed flag set: the forward loop does not
// clear it, so a producer that keeps feeding a wanted input sees no gap
// in demand signaling between successive chunks.
func TestEventResizeNeededFlagSurvivesDrain(t *testing.T) {
	ins, outs := newPorts(1, 1)
	r := NewEventResize(ins, outs)

	r.Prepare(nil, []int{0})
	if !ins[0].Needed() {
		t.Fatal("input should be marked needed after initial demand management")
	}

	ins[0].Push(Chunk{Seq: 42})
	r.Prepare([]int{0}, nil)

	if !ins[0].Needed() {
		t.Fatal("needed flag should survive the forward-loop drain")
	}
}

func indexRange(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// TestEventResizeRandomizedNoDropNoDup drives EventResize through a
// randomized sequence of port events (varying port counts, feed order and
// drain order) and checks the no-drop/no-dup invariant holds regardless of
// the particular interleaving chosen.
func TestEventResizeRandomizedNoDropNoDup(t *testing.T) {
	nInputs := 1 + fastrand.Intn(3)
	nOutputs := 1 + fastrand.Intn(3)
	const chunksPerInput = 4

	ins, outs := newPorts(nInputs, nOutputs)
	r := NewEventResize(ins, outs)

	pending := make([][]uint64, nInputs)
	var seq uint64
	for i := range pending {
		for c := 0; c < chunksPerInput; c++ {
			pending[i] = append(pending[i], seq)
			seq++
		}
	}
	totalChunks := int(seq)

	inputFinished := make([]bool, nInputs)
	seen := map[uint64]int{}
	drain := func() {
		for o := range outs {
			if c, ok := outs[o].Drain(); ok {
				seen[c.Seq]++
			}
		}
	}

	status := r.Prepare(indexRange(nInputs), indexRange(nOutputs))

	for iter := 0; status != Finished && iter < 10000; iter++ {
		var updatedIns, updatedOuts []int

		for _, i := range fastrand.Perm(nInputs) {
			if inputFinished[i] || ins[i].HasData() || !ins[i].Needed() {
				continue
			}
			if len(pending[i]) > 0 {
				ins[i].Push(Chunk{Seq: pending[i][0]})
				pending[i] = pending[i][1:]
			} else {
				ins[i].Finish()
				inputFinished[i] = true
			}
			updatedIns = append(updatedIns, i)
		}

		for _, o := range fastrand.Perm(nOutputs) {
			if c, ok := outs[o].Drain(); ok {
				seen[c.Seq]++
				updatedOuts = append(updatedOuts, o)
			}
		}

		if len(updatedIns) == 0 && len(updatedOuts) == 0 {
			allDone := true
			for i := range inputFinished {
				if !inputFinished[i] {
					allDone = false
				}
			}
			if !allDone {
				continue
			}
			updatedIns = indexRange(nInputs)
		}

		status = r.Prepare(updatedIns, updatedOuts)
	}
	drain()

	require.Equal(t, Finished, status, "resize should terminate within the iteration budget")
	require.Len(t, seen, totalChunks, "every chunk should be forwarded exactly once")
	for s, n := range seen {
		require.Equal(t, 1, n, "chunk %d seen %d times", s, n)
	}
}

func TestEventResizeNoDropNoDup(t *testing.T) {
	ins, outs := newPorts(2, 2)
	r := NewEventResize(ins, outs)

	r.Prepare(nil, []int{0, 1})

	seen := map[uint64]int{}
	for round := 0; round < 5; round++ {
		for i, in := range ins {
			in.Push(Chunk{Seq: uint64(round*10 + i)})
		}
		r.Prepare([]int{0, 1}, nil)
		for _, out := range outs {
			if c, ok := out.Drain(); ok {
				seen[c.Seq]++
			}
		}
		r.Prepare(nil, []int{0, 1})
		for _, out := range outs {
			if c, ok := out.Drain(); ok {
				seen[c.Seq]++
			}
		}
	}
	for seq, n := range seen {
		if n != 1 {
			t.Fatalf("chunk %d seen %d times, want 1", seq, n)
		}
	}
	if len(seen) != 10 {
		t.Fatalf("expected 10 distinct chunks forwarded, got %d", len(seen))
	}
}
