package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/davidrt/driver/simdriver"
	"github.com/sarchlab/davidrt/monitoring"
	"github.com/sarchlab/davidrt/stream"
	"github.com/sarchlab/davidrt/task"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit kernel launches on several streams.",
	Long: "`run --streams N --tasks M` submits M kernel launches on each of " +
		"N streams and waits for all of them to complete.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		numStreams, _ := cmd.Flags().GetInt("streams")
		numTasks, _ := cmd.Flags().GetInt("tasks")
		argsSize, _ := cmd.Flags().GetInt("args-size")
		syncEach, _ := cmd.Flags().GetBool("sync")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if numStreams <= 0 || numTasks <= 0 {
			return fmt.Errorf("streams and tasks must be positive")
		}

		s, err := newSession(cmd, simdriver.MakeBuilder().Build("Device[0]"))
		if err != nil {
			return err
		}
		defer s.close()

		return runStreams(cmd.Context(), s, runParams{
			numStreams: numStreams,
			numTasks:   numTasks,
			argsSize:   argsSize,
			syncEach:   syncEach,
			timeout:    timeout,
		})
	},
}

type runParams struct {
	numStreams int
	numTasks   int
	argsSize   int
	syncEach   bool
	timeout    time.Duration
}

func runStreams(ctx context.Context, s *session, p runParams) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streams := make([]*stream.Stream, 0, p.numStreams)
	for range p.numStreams {
		st, err := s.createStream()
		if err != nil {
			return err
		}

		streams = append(streams, st)
	}

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("Tasks", uint64(p.numStreams*p.numTasks))
		defer s.monitor.CompleteProgressBar(bar)
	}

	pool := task.NewArgPool(p.argsSize)
	start := time.Now()

	s.startDevice(ctx)

	var wg sync.WaitGroup
	errs := make([]error, len(streams))

	for i, st := range streams {
		wg.Add(1)

		go func() {
			defer wg.Done()
			errs[i] = submitKernels(ctx, st, pool, bar, p)
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	fmt.Printf("submitted %d tasks on %d streams in %v\n",
		p.numStreams*p.numTasks, p.numStreams, time.Since(start))
	fmt.Printf("completed %d tasks, average latency %v\n",
		s.latency.TotalCount(), s.latency.AverageTime())
	fmt.Printf("argument buffers in use: %d\n", pool.InUse())

	return nil
}

func submitKernels(
	ctx context.Context,
	st *stream.Stream,
	pool *task.ArgPool,
	bar *monitoring.ProgressBar,
	p runParams,
) error {
	for i := range p.numTasks {
		args := pool.Get()

		kernel := task.KernelLaunch{
			Engine:   task.EngineAIC,
			BlockDim: 8,
			FuncAddr: 0x1000 + uint64(i),
			ArgsSize: uint32(len(args.Data)),
		}

		opts := []stream.SubmitOption{stream.WithArgs(args)}
		if p.syncEach {
			opts = append(opts, stream.WithSync(p.timeout))
		}

		if _, err := st.Submit(ctx, kernel, opts...); err != nil {
			args.Release()
			return err
		}

		if bar != nil {
			bar.IncrementInProgress(1)
		}
	}

	if err := st.Synchronize(ctx, p.timeout); err != nil {
		return err
	}

	if bar != nil {
		bar.MoveInProgressToFinished(uint64(p.numTasks))
	}

	return nil
}

func init() {
	runCmd.Flags().Int("streams", 4, "Number of streams.")
	runCmd.Flags().Int("tasks", 1000, "Number of tasks per stream.")
	runCmd.Flags().Int("args-size", 64, "Size of the argument buffer of each task.")
	runCmd.Flags().Bool("sync", false, "Wait for every task before submitting the next.")
	runCmd.Flags().Duration("timeout", 10*time.Second, "Timeout of each wait.")
	rootCmd.AddCommand(runCmd)
}
