package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/fuzzy-follow/base/zaplog"
	"example.com/fuzzy-follow/core/config"
)

var log = zap.NewNop()

func initLogger(verbose bool) {
	l, err := zaplog.New(verbose)
	if err != nil {
		panic(err)
	}
	log = l
	zaplog.SetLogger(l)
}

func runMonitor(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(addr, mux)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

type namedConfig struct {
	name string
	file *config.File
}

// loadConfigs resolves the --config and --preset flags, in that order.
func loadConfigs(cmd *cobra.Command) ([]namedConfig, error) {
	files, _ := cmd.Flags().GetStringArray("config")
	presets, _ := cmd.Flags().GetStringArray("preset")
	if len(files) == 0 && len(presets) == 0 {
		return nil, errors.New("no configuration given, use --config or --preset")
	}
	var cs []namedConfig
	for _, p := range files {
		f, err := config.Load(p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		cs = append(cs, namedConfig{name: name, file: f})
	}
	for _, p := range presets {
		f, err := config.Preset(p)
		if err != nil {
			return nil, err
		}
		cs = append(cs, namedConfig{name: p, file: f})
	}
	return cs, nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fuzzyfollow",
		Short: "Fuzzy leader/follower controller and simulator",
		Long: `fuzzyfollow evaluates fuzzy inference engines and simulates a follower
vehicle that keeps its distance to a leader under fuzzy control.

Engines and simulations are described in TOML or YAML files; a few
configurations are built in and can be selected with --preset.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			initLogger(verbose)
		},
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose logging")
	rootCmd.PersistentFlags().StringArray("config", nil, "Config file (TOML or YAML), may be repeated")
	rootCmd.PersistentFlags().StringArray("preset", nil,
		"Built-in configuration ("+strings.Join(config.Presets(), ", ")+"), may be repeated")

	rootCmd.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newInferCmd(),
		newSurfaceCmd(),
		newPresetsCmd(),
		newXCmd(),
	)
	return rootCmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in configurations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.Presets() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
