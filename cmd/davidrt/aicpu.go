package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/aicpu"
	"github.com/spf13/cobra"
)

var aicpuCmd = &cobra.Command{
	Use:   "aicpu",
	Short: "Exercise the AICPU queue-event protocol.",
	Long: "`aicpu --routes N` initializes queue binding, binds N routes, " +
		"queries them and unbinds them again through an in-process " +
		"dispatcher and queue scheduler.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		numRoutes, _ := cmd.Flags().GetInt("routes")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if numRoutes <= 0 {
			return fmt.Errorf("routes must be positive")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(cfg.LogLevel).
			With().Timestamp().Logger()

		return roundTrip(logger, numRoutes, timeout)
	},
}

func roundTrip(logger zerolog.Logger, numRoutes int, timeout time.Duration) error {
	bus := aicpu.NewBus()
	client := &aicpu.Recorder{}

	d := aicpu.MakeBuilder().
		WithTransport(bus).
		WithTimeout(timeout).
		WithLogger(logger).
		Build("Dispatcher")

	bus.Register("Client", client)
	bus.Register("Dispatcher", d)
	bus.Register("QueueScheduler", aicpu.NewQueueScheduler("QueueScheduler", bus, 1))

	routes := make([]aicpu.Route, 0, numRoutes)
	for i := range numRoutes {
		routes = append(routes, aicpu.Route{Src: 1, Dst: uint32(i + 2)})
	}

	requests := []aicpu.Event{
		{SubEvent: aicpu.SubEventBindQueueInit},
		{SubEvent: aicpu.SubEventBindQueue, Routes: routes},
		{SubEvent: aicpu.SubEventQueryQueueNum},
		{SubEvent: aicpu.SubEventQueryQueue, Routes: []aicpu.Route{{Src: 1}}},
		{SubEvent: aicpu.SubEventUnbindQueue, Routes: routes},
		{SubEvent: aicpu.SubEventQueryQueueNum},
	}

	for i, req := range requests {
		req.Src = "Client"
		req.UserData = uint64(i + 1)

		if err := bus.Send("Dispatcher", req); err != nil {
			return err
		}

		if _, errs := bus.Deliver(); len(errs) > 0 {
			return errs[0]
		}
	}

	d.Sweep(time.Now())

	for _, res := range client.Events() {
		fmt.Printf("%-18s user_data=%d ret=%d value=%d routes=%d\n",
			res.SubEvent, res.UserData, res.RetCode, res.Value, len(res.Routes))

		if res.RetCode != aicpu.RetOK {
			return fmt.Errorf("%s failed with code %d", res.SubEvent, res.RetCode)
		}
	}

	return nil
}

func init() {
	aicpuCmd.Flags().Int("routes", 4, "Number of routes to bind.")
	aicpuCmd.Flags().Duration("timeout", time.Second, "Timeout of each request.")
	rootCmd.AddCommand(aicpuCmd)
}
