package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"example.com/fuzzy-follow/core/config"
	"example.com/fuzzy-follow/core/fuzzy"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configurations without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := loadConfigs(cmd)
			if err != nil {
				return err
			}
			var errs []error
			for _, c := range cs {
				e, err := checkConfig(c.file)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", c.name, err)
					errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
					continue
				}
				names := make([]string, e.NumInputs())
				for i := range names {
					names[i] = e.Input(i).Name()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (inputs %s, output %s, %d rules, %v)\n",
					c.name, strings.Join(names, ", "), e.Output().Name(), e.RuleBase().Len(), e.Implication())
			}
			return errors.Join(errs...)
		},
	}
}

// checkConfig builds everything f describes and returns the engine that was
// built along the way.
func checkConfig(f *config.File) (*fuzzy.Engine, error) {
	if f.Simulation != nil {
		s, err := f.BuildSimulator(config.SimulatorOptions{Log: log})
		if err != nil {
			return nil, err
		}
		return s.Controller().Engine(), nil
	}
	c, err := f.BuildController(log)
	if err != nil {
		return nil, err
	}
	return c.Engine(), nil
}

func parseInputs(kvs []string) (map[string]float64, error) {
	m := make(map[string]float64, len(kvs))
	for _, kv := range kvs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid input %q, want name=value", kv)
		}
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q: %w", kv, err)
		}
		m[strings.TrimSpace(name)] = x
	}
	return m, nil
}

// singleEngine builds the engine of the only configuration given.
func singleEngine(cmd *cobra.Command) (*fuzzy.Engine, error) {
	cs, err := loadConfigs(cmd)
	if err != nil {
		return nil, err
	}
	if len(cs) != 1 {
		return nil, fmt.Errorf("expected exactly one configuration, got %d", len(cs))
	}
	return cs[0].file.BuildEngine()
}

func newInferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Evaluate the engine for one set of crisp inputs",
		Long: `Evaluate the engine for one set of crisp inputs and print the fuzzified
inputs, the firing strength of every rule and the crisp output.

Example:
  fuzzyfollow infer --preset original --input distance=50 --input change=3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, _ := cmd.Flags().GetStringArray("input")
			inputs, err := parseInputs(kvs)
			if err != nil {
				return err
			}
			e, err := singleEngine(cmd)
			if err != nil {
				return err
			}
			ev, err := e.EvaluateNamed(inputs)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i := range e.NumInputs() {
				v := e.Input(i)
				fmt.Fprintf(w, "input %s = %g\n", v.Name(), inputs[v.Name()])
				for j, d := range ev.Fuzzified[i] {
					fmt.Fprintf(w, "  %-16s %.4f\n", v.Term(j).Name, d)
				}
			}
			rb := e.RuleBase()
			for i, s := range ev.Strengths {
				fmt.Fprintf(w, "rule %d %.4f  %v\n", i, s, rb.Rule(i))
			}
			if ev.Fired {
				fmt.Fprintf(w, "output %s = %.6g (dominant rule %d)\n", e.Output().Name(), ev.Value, ev.Dominant)
			} else {
				fmt.Fprintf(w, "output %s = %.6g (no rule fired, fallback)\n", e.Output().Name(), ev.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringArray("input", nil, "Crisp input as name=value, may be repeated")

	return cmd
}

func sweep(u fuzzy.Universe, n int) []float64 {
	if n < 2 {
		return []float64{u.Lo}
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = u.Lo + float64(i)*(u.Hi-u.Lo)/float64(n-1)
	}
	xs[n-1] = u.Hi
	return xs
}

func newSurfaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surface",
		Short: "Print the control surface as CSV",
		Long: `Evaluate the engine on a regular grid over the input universes and print
one CSV row per grid point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("points")
			if n < 2 {
				return fmt.Errorf("invalid number of points %d, want at least 2", n)
			}
			e, err := singleEngine(cmd)
			if err != nil {
				return err
			}

			var header []string
			grids := make([][]float64, e.NumInputs())
			for i := range grids {
				header = append(header, e.Input(i).Name())
				grids[i] = sweep(e.Input(i).Universe(), n)
			}
			header = append(header, e.Output().Name(), "fired")

			cw := csv.NewWriter(cmd.OutOrStdout())
			if err := cw.Write(header); err != nil {
				return err
			}
			xs := make([]float64, len(grids))
			row := make([]string, len(header))
			var walk func(k int) error
			walk = func(k int) error {
				if k == len(grids) {
					r := e.Infer(xs...)
					for i, x := range xs {
						row[i] = strconv.FormatFloat(x, 'g', -1, 64)
					}
					row[len(xs)] = strconv.FormatFloat(r.Value, 'g', 6, 64)
					row[len(xs)+1] = strconv.FormatBool(r.Fired)
					return cw.Write(row)
				}
				for _, x := range grids[k] {
					xs[k] = x
					if err := walk(k + 1); err != nil {
						return err
					}
				}
				return nil
			}
			if err := walk(0); err != nil {
				return err
			}
			cw.Flush()
			return cw.Error()
		},
	}

	cmd.Flags().Int("points", 21, "Grid points per input")

	return cmd
}
