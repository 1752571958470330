package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadwatch/server/internal/config"
	"github.com/roadwatch/server/internal/lib/ahp"
)

var consistencyJSON bool

var consistencyCmd = &cobra.Command{
	Use:   "consistency",
	Short: "Check the AHP comparison matrix",
	Long: `Derives the criterion weights of the configured comparison matrix
and reports lambda max, the consistency index and the consistency ratio.
Fails when the ratio exceeds the configured limit.`,
	Args: cobra.NoArgs,
	RunE: runConsistency,
}

func init() {
	consistencyCmd.Flags().BoolVar(&consistencyJSON, "json", false, "output weights and consistency as JSON")
	rootCmd.AddCommand(consistencyCmd)
}

func runConsistency(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	matrix := cfg.AHP.ComparisonMatrix()

	weights, err := ahp.DeriveWeights(matrix)
	if err != nil {
		return err
	}
	consistency, err := ahp.ConsistencyRatio(matrix)
	if err != nil {
		return err
	}

	if consistencyJSON {
		data, err := json.MarshalIndent(map[string]any{
			"weights":     weights,
			"consistency": consistency,
			"limit":       cfg.AHP.ConsistencyLimit,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal consistency: %w", err)
		}
		cmd.Println(string(data))
	} else {
		for i, w := range weights {
			name := fmt.Sprintf("criterion %d", i+1)
			if len(weights) == len(ahp.Criteria) {
				name = string(ahp.Criteria[i])
			}
			cmd.Printf("%-12s %.5f\n", name, w)
		}
		cmd.Printf("\nlambda max %.5f  CI %.6f  CR %.6f (limit %.2f)\n",
			consistency.LambdaMax, consistency.Index, consistency.Ratio, cfg.AHP.ConsistencyLimit)
	}

	if consistency.Ratio > cfg.AHP.ConsistencyLimit {
		return fmt.Errorf("%w: CR %.4f exceeds %.4f", ahp.ErrInconsistent, consistency.Ratio, cfg.AHP.ConsistencyLimit)
	}
	return nil
}
