package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/sarchlab/davidrt/config"
	"github.com/sarchlab/davidrt/core"
	"github.com/sarchlab/davidrt/datarecording"
	"github.com/sarchlab/davidrt/driver/simdriver"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/monitoring"
	"github.com/sarchlab/davidrt/stream"
	"github.com/sarchlab/davidrt/tracing"
	"github.com/spf13/cobra"
)

// session is one runtime with one simulated device and one context, plus
// the optional recorder and monitor asked for on the command line.
type session struct {
	cfg      config.Config
	logHooks bool
	rt       *core.Runtime
	sim      *simdriver.Device
	sc       *stream.Context
	monitor  *monitoring.Monitor
	run      *datarecording.RunRecorder
	tracks   *tracing.TaskTracer
	latency  *tracing.AverageTimeTracer
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env")

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return cfg, err
	}

	if path, _ := cmd.Flags().GetString("record"); path != "" {
		cfg.RecordDB = path
	}

	if port, _ := cmd.Flags().GetInt("monitor-port"); port != 0 {
		cfg.MonitorPort = port
	}

	return cfg, cfg.Validate()
}

func newSession(cmd *cobra.Command, sim *simdriver.Device) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	rt := core.MakeBuilder().
		WithConfig(cfg).
		WithLogWriter(os.Stderr).
		Build("Runtime")

	dev, err := rt.AddDevice(sim, sim.ID(), sim.TsID())
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	logHooks, _ := cmd.Flags().GetBool("log-hooks")

	s := &session{
		cfg:      cfg,
		logHooks: logHooks,
		rt:       rt,
		sim:      sim,
		sc:       stream.NewContext(rt, dev),
		latency:  tracing.NewAverageTimeTracer(nil),
	}

	if cfg.RecordDB != "" {
		s.startRecording(cfg.RecordDB)
	}

	if err := s.startMonitor(cmd); err != nil {
		_ = rt.Close()
		return nil, err
	}

	return s, nil
}

func (s *session) startRecording(path string) {
	recorder := datarecording.New(path)

	s.run = datarecording.NewRunRecorder(recorder)
	s.run.Start()
	s.run.Set("Session", s.rt.Session())

	s.tracks = tracing.NewTaskTracer(recorder, nil)
	s.tracks.StartTracing()

	s.rt.OnClose(func() error {
		s.tracks.StopTracing()
		s.run.End()

		return recorder.Close()
	})
}

func (s *session) startMonitor(cmd *cobra.Command) error {
	enabled, _ := cmd.Flags().GetBool("monitor")
	open, _ := cmd.Flags().GetBool("open-monitor")

	if !enabled && !open {
		return nil
	}

	s.monitor = monitoring.NewMonitor().
		WithPortNumber(s.cfg.MonitorPort).
		WithLogger(s.rt.Logger())
	s.monitor.RegisterContext(s.sc)

	port, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	if open {
		url := fmt.Sprintf("http://localhost:%d", port)
		if err := browser.OpenURL(url); err != nil {
			logger := s.rt.Logger()
			logger.Warn().Err(err).Str("url", url).Msg("cannot open browser")
		}
	}

	return nil
}

// createStream creates a stream and attaches the session tracers to it.
func (s *session) createStream() (*stream.Stream, error) {
	st, err := s.sc.CreateStream()
	if err != nil {
		return nil, err
	}

	s.trace(st)

	return st, nil
}

func (s *session) trace(st *stream.Stream) {
	tracing.CollectTrace(st, s.latency)

	if s.logHooks {
		st.AcceptHook(hooking.NewLogHook(s.rt.Logger()))
	}

	if s.tracks != nil {
		tracing.CollectTrace(st, s.tracks)
	}
}

// startDevice lets the simulated device execute tasks until ctx is done.
func (s *session) startDevice(ctx context.Context) {
	s.sim.Run(ctx)

	if s.cfg.SeparateRecycle {
		s.sc.Recycler().Run(ctx)
	}
}

func (s *session) close() error {
	return s.rt.Close()
}
