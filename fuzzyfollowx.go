// Driver for quick experiments

package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/fuzzy-follow/core/config"
	"example.com/fuzzy-follow/core/report"
)

func newXCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "x",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runX(cmd.Context())
		},
	}
}

// runX compares integral gains on the follow preset from a standing start.
func runX(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, ki := range []float64{0, 0.005, 0.01, 0.02} {
		f, err := config.Preset("follow")
		if err != nil {
			return err
		}
		f.Simulation.Follower.Velocity = 0
		f.Simulation.Integral.Ki = ki
		s, err := f.BuildSimulator(config.SimulatorOptions{})
		if err != nil {
			return err
		}
		rs, err := s.Run(ctx)
		if err != nil {
			return err
		}
		sum := report.Summarize(rs)
		log.Info("integral gain", append([]zap.Field{zap.Float64("ki", ki)}, sum.Fields()...)...)
	}
	return nil
}
