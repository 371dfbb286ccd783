package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/pixbatch/internal/common"
	"github.com/MeKo-Tech/pixbatch/internal/pipeline"
	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/spf13/cobra"
)

func newBenchCommand(c *cli) *cobra.Command {
	benchCmd := &cobra.Command{
		Use:   "bench [input-dir]",
		Short: "Compare scheduling policies on one corpus",
		Long: `Run the same batch once per scheduling policy and print the average wall
time of each. Outputs go to a temporary directory unless --output is given.

Examples:
  pixbatch bench ./images
  pixbatch bench ./images --policies flat,windowed --iterations 3 --kernel 7`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchCommand(cmd, args, c)
		},
	}

	addPipelineFlags(benchCmd)
	benchCmd.Flags().StringSlice("policies", []string{"flat", "sections", "fanout", "windowed"}, "policies to compare")
	benchCmd.Flags().Int("iterations", 1, "runs per policy")

	return benchCmd
}

func runBenchCommand(cmd *cobra.Command, args []string, c *cli) error {
	cfg, err := resolveRunConfig(cmd, args, c)
	if err != nil {
		return err
	}

	policyNames, _ := cmd.Flags().GetStringSlice("policies")
	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations <= 0 {
		return fmt.Errorf("invalid iterations: %d (must be positive)", iterations)
	}
	policies := make([]scheduler.Policy, 0, len(policyNames))
	for _, name := range policyNames {
		policy, err := scheduler.ParsePolicy(name)
		if err != nil {
			return err
		}
		policies = append(policies, policy)
	}
	if len(policies) == 0 {
		return errors.New("at least one policy is required")
	}

	if !cmd.Flags().Changed("output") {
		dir, err := os.MkdirTemp("", "pixbatch-bench-*")
		if err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		cfg.Output.Dir = dir
	}

	base, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	base.Logger = slog.Default()

	suite := common.NewBenchmarkSuite()
	for _, policy := range policies {
		pc := base
		pc.Policy = policy
		pc.OutputDir = filepath.Join(base.OutputDir, policy.String())
		p, err := pipeline.New(pc)
		if err != nil {
			return err
		}
		suite.Add(policy.String(), func() error {
			report, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			if counts := report.Images(); counts.Failed > 0 {
				slog.Warn("Benchmark run had failures", "policy", policy.String(), "failed", counts.Failed)
			}
			return nil
		})
	}

	suite.RunAll(iterations)
	suite.PrintResults(cmd.OutOrStdout())

	for _, r := range suite.Results() {
		if r.Error != nil {
			return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Error)
		}
	}
	return nil
}
