package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/fuzzy-follow/core/config"
	"example.com/fuzzy-follow/core/report"
	"example.com/fuzzy-follow/core/sim"
)

type runOptions struct {
	csvDir  string
	steps   int
	metrics prometheus.Registerer
}

type runResult struct {
	name     string
	id       uuid.UUID
	summary  report.Summary
	diverged bool
	csvFile  string
}

func runSimulation(ctx context.Context, c namedConfig, opts runOptions) (runResult, error) {
	res := runResult{name: c.name, id: uuid.New()}
	log := log.With(zap.String("config", c.name), zap.Stringer("run", res.id))

	if opts.steps > 0 && c.file.Simulation != nil {
		c.file.Simulation.Steps = opts.steps
	}
	s, err := c.file.BuildSimulator(config.SimulatorOptions{
		Log:     log,
		Metrics: opts.metrics,
		Labels:  prometheus.Labels{"config": c.name, "run": res.id.String()},
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.name, err)
	}

	log.Info("starting simulation", zap.Int("steps", c.file.Simulation.Steps))
	rs, err := s.Run(ctx)
	switch {
	case errors.Is(err, sim.ErrDiverged):
		res.diverged = true
	case err != nil:
		return res, fmt.Errorf("%s: %w", c.name, err)
	}
	res.summary = report.Summarize(rs)
	log.Info("simulation finished", res.summary.Fields()...)

	if opts.csvDir != "" {
		res.csvFile = filepath.Join(opts.csvDir, fmt.Sprintf("%s-%s.csv", c.name, res.id.String()[:8]))
		if err := writeTelemetry(res.csvFile, rs); err != nil {
			return res, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return res, nil
}

func writeTelemetry(name string, rs []sim.Record) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create telemetry file: %w", err)
	}
	err = report.WriteCSV(f, rs)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close telemetry file: %w", cerr)
	}
	return err
}

func printResult(w io.Writer, r runResult) {
	status := "ok"
	if r.diverged {
		status = "diverged"
	}
	s := r.summary
	fmt.Fprintf(w, "%s run=%s status=%s steps=%d final_error=%.4g peak_error=%.4g rms_error=%.4g p99_abs_error=%.4g sign_changes=%d fallbacks=%d saturations=%d\n",
		r.name, r.id, status, s.Steps, s.FinalError, s.PeakError, s.RMSError, s.P99,
		s.SignChanges, s.Fallbacks, s.Saturations)
	if r.csvFile != "" {
		fmt.Fprintf(w, "%s telemetry=%s\n", r.name, r.csvFile)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run closed-loop simulations",
		Long: `Run one simulation per configuration. Configurations given together run
concurrently, each with its own run ID.

Examples:
  fuzzyfollow run --preset follow
  fuzzyfollow run --config a.toml --config b.yaml --csv out/
  fuzzyfollow run --preset follow --metrics 127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			csvDir, _ := cmd.Flags().GetString("csv")
			metricsAddr, _ := cmd.Flags().GetString("metrics")
			parallel, _ := cmd.Flags().GetInt("parallel")
			steps, _ := cmd.Flags().GetInt("steps")

			cs, err := loadConfigs(cmd)
			if err != nil {
				return err
			}
			for _, c := range cs {
				if c.file.Simulation == nil {
					return fmt.Errorf("%s: no [simulation] section", c.name)
				}
			}
			if csvDir != "" {
				if err := os.MkdirAll(csvDir, 0o755); err != nil {
					return fmt.Errorf("failed to create telemetry directory: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			opts := runOptions{csvDir: csvDir, steps: steps}
			if metricsAddr != "" {
				opts.metrics = prometheus.DefaultRegisterer
				go runMonitor(metricsAddr)
			}

			results := make([]runResult, len(cs))
			g, gctx := errgroup.WithContext(ctx)
			if parallel > 0 {
				g.SetLimit(parallel)
			}
			for i, c := range cs {
				g.Go(func() error {
					r, err := runSimulation(gctx, c, opts)
					results[i] = r
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			var diverged int
			for _, r := range results {
				printResult(cmd.OutOrStdout(), r)
				if r.diverged {
					diverged++
				}
			}

			if metricsAddr != "" {
				log.Info("simulations finished, serving metrics until interrupted",
					zap.String("addr", metricsAddr))
				<-ctx.Done()
			}
			if diverged > 0 {
				return fmt.Errorf("%d of %d simulations diverged", diverged, len(results))
			}
			return nil
		},
	}

	cmd.Flags().String("csv", "", "Directory to write per-run telemetry CSV files to")
	cmd.Flags().String("metrics", "", "Address to serve Prometheus metrics on, e.g. 127.0.0.1:8080")
	cmd.Flags().Int("parallel", 0, "Maximum number of concurrent simulations (0: unlimited)")
	cmd.Flags().Int("steps", 0, "Override the configured number of steps")

	return cmd
}
