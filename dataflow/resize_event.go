package dataflow

// EventResize is the event-driven variant of the Resize processor (spec.md
// §4.1 Variant B). Unlike Resize, it does not rescan every port on every
// call: the host reports only the input and output indices whose state
// changed since the last Prepare, and EventResize maintains FIFO queues of
// outputs waiting for data and inputs that have data or are not needed.
//
// Prepare is not reentrant: the host guarantees it is never called again
// for the same instance while a previous call is still executing.
type EventResize struct {
	inputs  []*InputPort
	outputs []*OutputPort

	initialized bool

	inputStatus  []inputStatus
	outputStatus []outputStatus

	waitingOutputs  []int
	inputsWithData  []int
	notNeededInputs []int

	numFinishedInputs  int
	numFinishedOutputs int
}

// NewEventResize constructs an EventResize processor over the given fixed
// input and output port sets.
func NewEventResize(inputs []*InputPort, outputs []*OutputPort) *EventResize {
	return &EventResize{inputs: inputs, outputs: outputs}
}

// Prepare absorbs the reported port updates, forwards as many chunks as it
// can, refreshes demand on newly-idle inputs, and returns the verdict the
// host scheduler should act on. updatedInputs/updatedOutputs are indices
// into the port slices passed to NewEventResize.
func (r *EventResize) Prepare(updatedInputs, updatedOutputs []int) Status {
	if !r.initialized {
		r.initialized = true

		r.inputStatus = make([]inputStatus, len(r.inputs))
		r.notNeededInputs = r.notNeededInputs[:0]
		for i := range r.inputs {
			r.inputStatus[i] = inputNotNeeded
			r.notNeededInputs = append(r.notNeededInputs, i)
		}

		r.outputStatus = make([]outputStatus, len(r.outputs))
		for i := range r.outputs {
			r.outputStatus[i] = outputNotActive
		}
	}

	for _, oi := range updatedOutputs {
		out := r.outputs[oi]

		if out.IsFinished() {
			if r.outputStatus[oi] != outputFinished {
				r.numFinishedOutputs++
				r.outputStatus[oi] = outputFinished
			}
			continue
		}

		if out.CanPush() {
			if r.outputStatus[oi] != outputNeedData {
				r.outputStatus[oi] = outputNeedData
				r.waitingOutputs = append(r.waitingOutputs, oi)
			}
		}
	}

	if r.numFinishedOutputs == len(r.outputs) {
		r.closeAllInputs()
		return Finished
	}

	for _, ii := range updatedInputs {
		in := r.inputs[ii]

		if in.IsFinished() {
			if r.inputStatus[ii] != inputFinished {
				r.inputStatus[ii] = inputFinished
				r.numFinishedInputs++
			}
			continue
		}

		if in.HasData() {
			if r.inputStatus[ii] != inputHasData {
				r.inputStatus[ii] = inputHasData
				r.inputsWithData = append(r.inputsWithData, ii)
			}
		} else {
			in.SetNotNeeded()

			if r.inputStatus[ii] != inputNotNeeded {
				r.inputStatus[ii] = inputNotNeeded
				r.notNeededInputs = append(r.notNeededInputs, ii)
			}
		}
	}

	for len(r.waitingOutputs) > 0 && len(r.inputsWithData) > 0 {
		oi := r.waitingOutputs[0]
		r.waitingOutputs = r.waitingOutputs[1:]

		ii := r.inputsWithData[0]
		r.inputsWithData = r.inputsWithData[1:]

		r.outputs[oi].PushData(r.inputs[ii].PullData())
		// The drained input's status moves to NotNeeded without
		// re-entering notNeededInputs and without clearing the port's
		// own needed flag: the producer is left believing this input
		// is still wanted, since in steady state it usually is.
		r.inputStatus[ii] = inputNotNeeded
		r.outputStatus[oi] = outputNotActive

		if r.inputs[ii].IsFinished() {
			if r.inputStatus[ii] != inputFinished {
				r.inputStatus[ii] = inputFinished
				r.numFinishedInputs++
			}
		}
	}

	if r.numFinishedInputs == len(r.inputs) {
		r.finishAllOutputs()
		return Finished
	}

	numNeededInputs := len(r.waitingOutputs)
	for len(r.notNeededInputs) > 0 && numNeededInputs > 0 {
		ii := r.notNeededInputs[0]
		r.notNeededInputs = r.notNeededInputs[1:]

		r.inputs[ii].SetNeeded()
		r.inputStatus[ii] = inputNeeded
		numNeededInputs--
	}

	if len(r.waitingOutputs) > 0 {
		return NeedData
	}
	return PortFull
}

func (r *EventResize) closeAllInputs() {
	for _, in := range r.inputs {
		in.Close()
	}
}

func (r *EventResize) finishAllOutputs() {
	for _, out := range r.outputs {
		out.Finish()
	}
}
