package dataflow

import "sync"

// InputPort is a single-slot synchronized channel feeding one Resize input.
// Observable state mirrors spec.md §3: finished, has-data, and a needed
// flag expressing downstream demand toward the upstream producer.
type InputPort struct {
	mu       sync.Mutex
	finished bool
	data     *Chunk
	needed   bool
}

// NewInputPort returns an empty, unfinished input port.
func NewInputPort() *InputPort { return &InputPort{} }

// IsFinished reports whether the upstream producer has closed this port.
func (p *InputPort) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// HasData reports whether a chunk is queued and ready to Pull.
func (p *InputPort) HasData() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data != nil
}

// Needed reports whether SetNeeded was called more recently than
// SetNotNeeded.
func (p *InputPort) Needed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needed
}

// SetNeeded signals the upstream producer that this port wants data.
func (p *InputPort) SetNeeded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needed = true
}

// SetNotNeeded withdraws demand signaled by SetNeeded.
func (p *InputPort) SetNotNeeded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needed = false
}

// Pull removes and returns the queued chunk. After Pull, HasData is false
// until the upstream pushes again. Pull panics if no data is queued; per
// spec.md's failure model, any misuse of a port operation is fatal to the
// processor.
func (p *InputPort) Pull() Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		panic("dataflow: Pull called on input port with no data")
	}
	c := *p.data
	p.data = nil
	return c
}

// PullData is the low-level form used by the event-driven variant;
// semantically identical to Pull.
func (p *InputPort) PullData() Chunk { return p.Pull() }

// Close marks the input permanently finished, discarding any queued
// chunk. Called by Resize once all outputs have finished.
func (p *InputPort) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	p.data = nil
}

// Push deposits a chunk for the consuming processor to Pull. Used by test
// harnesses and upstream producers driving a port from outside Resize.
func (p *InputPort) Push(c Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data != nil {
		panic("dataflow: Push called on input port that already has data")
	}
	p.data = &c
}

// Finish marks the port finished from the producer side, used by test
// harnesses simulating an upstream that has no more chunks to offer.
func (p *InputPort) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
}

// OutputPort is a single-slot synchronized channel draining one Resize
// output. Observable state: finished, and can-push (no chunk currently
// occupying the slot).
type OutputPort struct {
	mu       sync.Mutex
	finished bool
	data     *Chunk
}

// NewOutputPort returns an empty, unfinished output port.
func NewOutputPort() *OutputPort { return &OutputPort{} }

// IsFinished reports whether Resize has finished this output.
func (p *OutputPort) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// CanPush reports whether the port is unfinished and its single slot is
// empty.
func (p *OutputPort) CanPush() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.finished && p.data == nil
}

// Push deposits a chunk into the port's slot. After Push, CanPush is
// false until the downstream consumer pulls.
func (p *OutputPort) Push(c Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		panic("dataflow: Push called on a finished output port")
	}
	if p.data != nil {
		panic("dataflow: Push called on output port that already has data")
	}
	p.data = &c
}

// PushData is the low-level form used by the event-driven variant;
// semantically identical to Push.
func (p *OutputPort) PushData(c Chunk) { p.Push(c) }

// Finish closes an output; Resize calls this once the corresponding
// input side has drained.
func (p *OutputPort) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
}

// Drain removes and returns the queued chunk, used by test harnesses
// simulating a downstream consumer.
func (p *OutputPort) Drain() (Chunk, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return Chunk{}, false
	}
	c := *p.data
	p.data = nil
	return c, true
}
