package dataflow

// Resize is the stateless round-robin variant of the Resize processor
// (spec.md §4.1 Variant A). It holds no state beyond two cursors, scanning
// forward from them on every Prepare call to find a forwarding pair.
//
// Prepare is not reentrant: the host guarantees it is never called again
// for the same instance while a previous call is still executing.
type Resize struct {
	inputs  []*InputPort
	outputs []*OutputPort

	currentInput  int
	currentOutput int
}

// NewResize constructs a Resize processor over the given fixed input and
// output port sets.
func NewResize(inputs []*InputPort, outputs []*OutputPort) *Resize {
	return &Resize{inputs: inputs, outputs: outputs}
}

// Prepare inspects port states and forwards as many chunks as it can in
// one call, returning the verdict the host scheduler should act on.
func (r *Resize) Prepare() Status {
	for {
		outIdx, verdict, ok := r.findOutput()
		if !ok {
			return verdict
		}

		inIdx, verdict, ok := r.findInput()
		if !ok {
			return verdict
		}

		chunk := r.inputs[inIdx].Pull()
		r.outputs[outIdx].Push(chunk)

		r.currentOutput = (outIdx + 1) % len(r.outputs)
		r.currentInput = (inIdx + 1) % len(r.inputs)
	}
}

// findOutput scans forward from currentOutput, wrapping once, for an
// output that is not finished and can push. If none is found it resolves
// the terminal verdict per spec.md §4.1 step 1.
func (r *Resize) findOutput() (int, Status, bool) {
	if len(r.outputs) == 0 {
		r.closeAllInputs()
		return 0, Finished, false
	}

	allFinished := true
	for i := 0; i < len(r.outputs); i++ {
		idx := (r.currentOutput + i) % len(r.outputs)
		out := r.outputs[idx]
		if out.IsFinished() {
			continue
		}
		allFinished = false
		if out.CanPush() {
			return idx, 0, true
		}
	}

	if allFinished {
		r.closeAllInputs()
		return 0, Finished, false
	}
	for _, in := range r.inputs {
		in.SetNotNeeded()
	}
	return 0, PortFull, false
}

// findInput scans forward from currentInput, wrapping once, for an input
// that is not finished and has data, priming every unfinished input it
// visits with SetNeeded. If none is found it resolves the terminal
// verdict per spec.md §4.1 step 2.
func (r *Resize) findInput() (int, Status, bool) {
	if len(r.inputs) == 0 {
		r.finishAllOutputs()
		return 0, Finished, false
	}

	allFinished := true
	found := -1
	for i := 0; i < len(r.inputs); i++ {
		idx := (r.currentInput + i) % len(r.inputs)
		in := r.inputs[idx]
		if in.IsFinished() {
			continue
		}
		allFinished = false
		in.SetNeeded()
		if found < 0 && in.HasData() {
			found = idx
		}
	}

	if found >= 0 {
		return found, 0, true
	}
	if allFinished {
		r.finishAllOutputs()
		return 0, Finished, false
	}
	return 0, NeedData, false
}

func (r *Resize) closeAllInputs() {
	for _, in := range r.inputs {
		in.Close()
	}
}

func (r *Resize) finishAllOutputs() {
	for _, out := range r.outputs {
		out.Finish()
	}
}
