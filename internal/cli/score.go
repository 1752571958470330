package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var scoreJSON bool

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank roads by repair priority",
	Long: `Scores every road of the network with the AHP model and prints
the scores in network order with their priority band.`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "output scores as JSON")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	svc, _, err := loadService()
	if err != nil {
		return err
	}
	scores := svc.RoadScores()

	if scoreJSON {
		data, err := json.MarshalIndent(scores, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal scores: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for _, s := range scores {
		name := s.RoadID
		if road, ok := svc.Network().Road(s.RoadID); ok && road.Name != "" {
			name = fmt.Sprintf("%s (%s)", s.RoadID, road.Name)
		}
		cmd.Printf("%-40s %.3f  %s\n", name, s.Score, s.Band)
	}

	stats, err := svc.Statistics(cmd.Context())
	if err != nil {
		return err
	}
	counts := stats.Roads
	cmd.Printf("\nsevere %d  moderate %d  minor %d  none %d  (total %d)\n",
		counts.Severe, counts.Moderate, counts.Minor, counts.None, counts.Total)
	return nil
}
