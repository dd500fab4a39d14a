// Command resizebench drives the event-driven Resize variant over
// synthetic ports and reports how many Prepare calls it took.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NebulousLabs/fastrand"
	"github.com/NebulousLabs/threadgroup"
	"github.com/urfave/cli/v2"

	"gitlab.com/columnstore/columnstore/dataflow"
	"gitlab.com/columnstore/columnstore/persist"
)

func main() {
	app := &cli.App{
		Name:  "resizebench",
		Usage: "benchmark the event-driven Resize processor over synthetic ports",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a single benchmark pass",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "inputs", Usage: "number of input ports", Value: 4},
					&cli.IntFlag{Name: "outputs", Usage: "number of output ports", Value: 4},
					&cli.IntFlag{Name: "chunks", Usage: "chunks fed per input", Value: 1000},
					&cli.StringFlag{Name: "log", Usage: "append progress to this log file instead of discarding it"},
				},
				Action: runCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	nInputs := c.Int("inputs")
	nOutputs := c.Int("outputs")
	chunksPerInput := c.Int("chunks")
	if nInputs < 0 || nOutputs < 0 || chunksPerInput < 0 {
		return cli.Exit("inputs, outputs and chunks must be non-negative", 1)
	}

	var log *persist.Logger
	if logPath := c.String("log"); logPath != "" {
		l, err := persist.NewLogger(logPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("could not open log file: %v", err), 1)
		}
		defer l.Close()
		log = l
	}

	var tg threadgroup.ThreadGroup
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		tg.Stop()
	}()

	if err := tg.Add(); err != nil {
		return cli.Exit(fmt.Sprintf("could not start benchmark: %v", err), 1)
	}
	defer tg.Done()

	result, err := bench(nInputs, nOutputs, chunksPerInput, tg.StopChan(), log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("inputs=%d outputs=%d chunks_per_input=%d\n", nInputs, nOutputs, chunksPerInput)
	fmt.Printf("prepare calls: %d\n", result.prepareCalls)
	fmt.Printf("chunks forwarded: %d\n", result.chunksForwarded)
	fmt.Printf("elapsed: %v\n", result.elapsed)
	fmt.Println("verdict histogram:")
	for _, v := range []dataflow.Status{dataflow.Finished, dataflow.PortFull, dataflow.NeedData} {
		fmt.Printf("  %-9s %d\n", v, result.verdicts[v])
	}
	return nil
}

type benchResult struct {
	prepareCalls    int
	chunksForwarded int
	elapsed         time.Duration
	verdicts        map[dataflow.Status]int
}

// bench wires nInputs/nOutputs synthetic ports around an EventResize and
// drives it to completion, feeding chunksPerInput chunks through each
// input in randomized interleaving with draining. stop, when closed,
// cuts the run short (the partial result is still returned).
func bench(nInputs, nOutputs, chunksPerInput int, stop <-chan struct{}, log *persist.Logger) (benchResult, error) {
	ins := make([]*dataflow.InputPort, nInputs)
	for i := range ins {
		ins[i] = dataflow.NewInputPort()
	}
	outs := make([]*dataflow.OutputPort, nOutputs)
	for i := range outs {
		outs[i] = dataflow.NewOutputPort()
	}
	r := dataflow.NewEventResize(ins, outs)

	pending := make([]int, nInputs)
	for i := range pending {
		pending[i] = chunksPerInput
	}
	finished := make([]bool, nInputs)

	result := benchResult{verdicts: make(map[dataflow.Status]int)}
	start := time.Now()

	allIdx := func(n int) []int {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	status := r.Prepare(allIdx(nInputs), allIdx(nOutputs))
	result.prepareCalls++
	result.verdicts[status]++

	var seq uint64
	for status != dataflow.Finished {
		select {
		case <-stop:
			result.elapsed = time.Since(start)
			return result, nil
		default:
		}

		var updatedIns, updatedOuts []int
		for _, i := range fastrand.Perm(nInputs) {
			if finished[i] || ins[i].HasData() || !ins[i].Needed() {
				continue
			}
			if pending[i] > 0 {
				ins[i].Push(dataflow.Chunk{Seq: seq})
				seq++
				pending[i]--
			} else {
				ins[i].Finish()
				finished[i] = true
			}
			updatedIns = append(updatedIns, i)
		}
		for _, o := range fastrand.Perm(nOutputs) {
			if _, ok := outs[o].Drain(); ok {
				result.chunksForwarded++
				updatedOuts = append(updatedOuts, o)
			}
		}

		if len(updatedIns) == 0 && len(updatedOuts) == 0 {
			allDone := true
			for i := range finished {
				if !finished[i] {
					allDone = false
				}
			}
			if !allDone {
				continue
			}
			updatedIns = allIdx(nInputs)
		}

		status = r.Prepare(updatedIns, updatedOuts)
		result.prepareCalls++
		result.verdicts[status]++
		if log != nil && result.prepareCalls%1000 == 0 {
			log.Println("DEBUG: prepare call", result.prepareCalls, "verdict", status)
		}
	}

	result.elapsed = time.Since(start)
	return result, nil
}
