package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sarchlab/davidrt/driver/simdriver"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/stream"
	"github.com/sarchlab/davidrt/task"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture kernel launches into a model and launch it.",
	Long: "`capture --tasks M` captures M kernel launches into a model. " +
		"When the tasks do not fit one stream, the capture continues on " +
		"new streams. The model is then launched and waited for.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		numTasks, _ := cmd.Flags().GetInt("tasks")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if numTasks <= 0 {
			return fmt.Errorf("tasks must be positive")
		}

		s, err := newSession(cmd, simdriver.MakeBuilder().Build("Device[0]"))
		if err != nil {
			return err
		}
		defer s.close()

		return captureAndLaunch(cmd.Context(), s, numTasks, timeout)
	},
}

func captureAndLaunch(
	ctx context.Context,
	s *session,
	numTasks int,
	timeout time.Duration,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := s.createStream()
	if err != nil {
		return err
	}

	st.AcceptHook(hooking.HookFunc(func(hc hooking.HookCtx) {
		if hc.Pos != stream.HookPosCaptureCascade {
			return
		}

		next := hc.Item.(*stream.Stream)
		s.trace(next)
		fmt.Printf("capture continues on %s\n", next.Name())
	}))

	cs, err := st.BeginCapture()
	if err != nil {
		return err
	}

	s.trace(cs.Target())

	for i := range numTasks {
		_, err := st.Submit(ctx, task.KernelLaunch{
			Engine:   task.EngineAIV,
			BlockDim: 1,
			FuncAddr: 0x2000 + uint64(i),
		})
		if err != nil {
			cs.Terminate(err)
			_, _ = st.EndCapture()

			return err
		}
	}

	model, err := st.EndCapture()
	if err != nil {
		return err
	}
	defer model.Release()

	fmt.Printf("model %s holds %d tasks on %d streams\n",
		model.ID(), model.NumTasks(), len(model.Streams()))

	s.startDevice(ctx)
	start := time.Now()

	if _, err := model.Launch(ctx, st); err != nil {
		return err
	}

	if err := st.Synchronize(ctx, timeout); err != nil {
		return err
	}

	last := model.Streams()[len(model.Streams())-1]
	if err := waitExecuted(ctx, s, last, timeout); err != nil {
		return err
	}

	for _, bound := range model.Streams() {
		if err := st.SubmitMaintenance(ctx, bound, false); err != nil {
			return err
		}
	}

	fmt.Printf("model finished in %v\n", time.Since(start))

	return nil
}

// waitExecuted waits until the device has run every task of a bound stream.
func waitExecuted(
	ctx context.Context,
	s *session,
	bound *stream.Stream,
	timeout time.Duration,
) error {
	deadline := time.Now().Add(timeout)

	for {
		head, err := bound.DeviceHead()
		if err != nil {
			return err
		}

		if head == bound.Ring().Tail() {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("model on %s did not finish in %v", bound.Name(), timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.SyncPoll):
		}
	}
}

func init() {
	captureCmd.Flags().Int("tasks", 100, "Number of tasks to capture.")
	captureCmd.Flags().Duration("timeout", 10*time.Second, "Timeout of each wait.")
	rootCmd.AddCommand(captureCmd)
}
