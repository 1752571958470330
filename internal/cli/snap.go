package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roadwatch/server/internal/lib/geo"
)

var snapJSON bool

var snapCmd = &cobra.Command{
	Use:   "snap [longitude] [latitude]",
	Short: "Snap a point to the nearest road",
	Args:  cobra.ExactArgs(2),
	RunE:  runSnap,
}

func init() {
	snapCmd.Flags().BoolVar(&snapJSON, "json", false, "output the snap result as JSON")
	rootCmd.AddCommand(snapCmd)
}

func runSnap(cmd *cobra.Command, args []string) error {
	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q", args[0])
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q", args[1])
	}
	point, err := geo.NewCoordinate(lon, lat)
	if err != nil {
		return err
	}

	svc, _, err := loadService()
	if err != nil {
		return err
	}
	res, ok := svc.Snap(point)
	if !ok {
		return errors.New("network has no roads")
	}

	if snapJSON {
		data, err := json.MarshalIndent(map[string]any{
			"road_id":       res.RoadID(),
			"point":         res.Point,
			"segment_index": res.SegmentIndex,
			"distance":      res.Distance,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal snap result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("%s segment %d at %s (%.1f m)\n", res.RoadID(), res.SegmentIndex, geo.Key(res.Point), res.Distance)
	return nil
}
