package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadwatch/server/internal/ingest"
	"github.com/roadwatch/server/internal/lib/grouping"
)

var (
	groupJSON     bool
	groupGPS      string
	groupInterval time.Duration
	groupKML      string
	groupMarkers  bool
)

var groupCmd = &cobra.Command{
	Use:   "group [observations.json]",
	Short: "Group observations by road",
	Long: `Snaps observations to the network and groups them by road, picking
the worst observation of each road as its representative.

The input is a JSON array of observations. With --gps it is instead a JSON
array of frame assessments placed on the GPS log by frame offset.`,
	Args: cobra.ExactArgs(1),
	RunE: runGroup,
}

func init() {
	groupCmd.Flags().BoolVar(&groupJSON, "json", false, "output the batch result as JSON")
	groupCmd.Flags().StringVar(&groupGPS, "gps", "", "GPS log (CSV) the input frames were recorded with")
	groupCmd.Flags().DurationVar(&groupInterval, "interval", 10*time.Second, "time between frames when --gps is set")
	groupCmd.Flags().StringVar(&groupKML, "kml", "", "also write the colored roads to this KML file")
	groupCmd.Flags().BoolVar(&groupMarkers, "markers", false, "include endpoint markers in the KML file")
	rootCmd.AddCommand(groupCmd)
}

func readObservations(path string) ([]grouping.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if groupGPS == "" {
		var obs []grouping.Observation
		if err := json.Unmarshal(data, &obs); err != nil {
			return nil, fmt.Errorf("failed to decode observations: %w", err)
		}
		return obs, nil
	}

	var frames []ingest.FrameAssessment
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to decode frames: %w", err)
	}
	f, err := os.Open(groupGPS)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	track, err := ingest.ReadGPSCSV(f)
	if err != nil {
		return nil, err
	}
	return track.FrameObservations(frames, groupInterval), nil
}

func runGroup(cmd *cobra.Command, args []string) error {
	obs, err := readObservations(args[0])
	if err != nil {
		return err
	}

	svc, _, err := loadService()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	result, err := svc.Submit(ctx, "cli:"+filepath.Base(args[0]), obs)
	if err != nil {
		return err
	}

	if groupKML != "" {
		f, err := os.Create(groupKML)
		if err != nil {
			return err
		}
		if err := svc.ExportKML(ctx, result.BatchID, groupMarkers, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if groupJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("%d observations on %d roads (%d outside the district, %d unsnapped)\n",
		len(obs), len(result.Groups), result.OutsideArea, result.Unsnapped)
	for _, g := range result.Groups {
		rep := g.Representative
		cmd.Printf("  %-16s %2d obs  worst %.1f %-4s %s\n",
			g.RoadID, len(g.Observations), rep.DamageScore, rep.DamageClass, grouping.DamageColor(rep.DamageScore))
	}
	if len(result.Path.Transitions) > 0 {
		cmd.Println("transitions:")
		for _, tr := range result.Path.Transitions {
			state := "connected"
			if !tr.Connected {
				state = fmt.Sprintf("gap %.0f m", tr.GapMeters)
			}
			cmd.Printf("  %s -> %s (%s)\n", tr.From, tr.To, state)
		}
	}
	return nil
}
