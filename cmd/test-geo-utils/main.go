package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/roadwatch/server/internal/dataset"
	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/network"
	"github.com/roadwatch/server/internal/lib/snapping"
	"github.com/roadwatch/server/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "point-distance":
		handlePointDistance()
	case "polyline-distance":
		handlePolylineDistance()
	case "snap":
		handleSnap()
	case "compare-snappers":
		handleCompareSnappers()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance() {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lon1 := fs.Float64("lon1", 0, "Longitude of first point")
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lon2 := fs.Float64("lon2", 0, "Longitude of second point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lon1 == 0 && *lat2 == 0 && *lon2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lon1 139.7520 --lat1 35.7080 --lon2 139.7600 --lat2 35.7100")
		fmt.Println("  (Tokyo Dome to Hongo-sanchome)")
		os.Exit(1)
	}

	p1 := mustCoordinate(*lon1, *lat1)
	p2 := mustCoordinate(*lon2, *lat2)
	distance := geo.GreatCircleDistance(p1, p2)

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: %s\n", geo.Key(p1))
	fmt.Printf("  Point 2: %s\n", geo.Key(p2))
	fmt.Printf("  Distance: %.2f meters (%.3f km)\n", distance, distance/1000)
}

func handlePolylineDistance() {
	fs := flag.NewFlagSet("polyline-distance", flag.ExitOnError)
	lon := fs.Float64("lon", 0, "Longitude of point")
	lat := fs.Float64("lat", 0, "Latitude of point")
	polylineStr := fs.String("polyline", "", "Encoded polyline string")
	roadID := fs.String("road", "", "Road of the reference network to measure against instead")

	fs.Parse(os.Args[2:])

	if *lat == 0 && *lon == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils polyline-distance --lon 139.7625 --lat 35.7170 --road bunkyo-004")
		fmt.Println("  test-geo-utils polyline-distance --lon 139.7625 --lat 35.7170 --polyline '<encoded>'")
		os.Exit(1)
	}

	var line []geo.Coordinate
	switch {
	case *roadID != "":
		net := loadNetwork("")
		road, ok := net.Road(*roadID)
		if !ok {
			log.Fatalf("Unknown road: %s", *roadID)
		}
		line = road.Coordinates
		fmt.Printf("Road %s (%s), %d vertices, encoded: %s\n", road.ID, road.Name, len(line), geo.EncodePolyline(line))
	case *polylineStr != "":
		decoded, err := geo.DecodePolyline(*polylineStr)
		if err != nil {
			log.Fatalf("Error decoding polyline: %v", err)
		}
		line = decoded
	default:
		log.Fatal("Either --road or --polyline is required")
	}

	point := mustCoordinate(*lon, *lat)
	distance, segment, err := geo.PointToPolyline(point, line)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Point %s\n", geo.Key(point))
	fmt.Printf("  Polyline length: %.1f meters\n", geo.PolylineLength(line))
	fmt.Printf("  Distance to polyline: %.2f meters (segment %d)\n", distance, segment)
}

func handleSnap() {
	fs := flag.NewFlagSet("snap", flag.ExitOnError)
	lon := fs.Float64("lon", 0, "Longitude of point")
	lat := fs.Float64("lat", 0, "Latitude of point")
	networkPath := fs.String("network", "", "GeoJSON road network (default: embedded Bunkyo network)")

	fs.Parse(os.Args[2:])

	if *lat == 0 && *lon == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils snap --lon 139.7625 --lat 35.7165")
		os.Exit(1)
	}

	net := loadNetwork(*networkPath)
	point := mustCoordinate(*lon, *lat)

	res, ok := snapping.SnapToNearestRoad(point, net.Roads())
	if !ok {
		log.Fatal("Network has no roads")
	}

	fmt.Printf("Snapped %s\n", geo.Key(point))
	fmt.Printf("  Road: %s (%s)\n", res.RoadID(), res.Road.Name)
	fmt.Printf("  Segment: %d of %d\n", res.SegmentIndex, res.Road.SegmentCount())
	fmt.Printf("  Point on road: %s\n", geo.Key(res.Point))
	fmt.Printf("  Distance: %.2f meters\n", res.Distance)
}

// handleCompareSnappers checks the R-tree snapper against the brute force
// scan on random points around the network
func handleCompareSnappers() {
	fs := flag.NewFlagSet("compare-snappers", flag.ExitOnError)
	count := fs.Int("n", 10000, "Number of random points")
	seed := fs.Int64("seed", 1, "Random seed")
	radius := fs.Float64("radius", snapping.DefaultSearchRadius, "Initial search radius in meters")

	fs.Parse(os.Args[2:])

	net := loadNetwork("")
	linear := snapping.NewLinearSnapper(net.Roads())
	indexed := snapping.NewIndexedSnapper(net.Roads(), *radius)

	// Pad the district so some points fall outside it
	west, south := dataset.BunkyoBounds[0]-0.01, dataset.BunkyoBounds[1]-0.01
	east, north := dataset.BunkyoBounds[2]+0.01, dataset.BunkyoBounds[3]+0.01

	rng := rand.New(rand.NewSource(*seed))
	mismatches := 0
	for i := 0; i < *count; i++ {
		p := geo.Coordinate{west + rng.Float64()*(east-west), south + rng.Float64()*(north-south)}
		want, _ := linear.Snap(p)
		got, _ := indexed.Snap(p)
		if want.RoadID() != got.RoadID() || want.SegmentIndex != got.SegmentIndex || want.Point != got.Point {
			mismatches++
			if mismatches <= 10 {
				fmt.Printf("Mismatch at %s: linear %s/%d (%.3f m), indexed %s/%d (%.3f m)\n",
					geo.Key(p), want.RoadID(), want.SegmentIndex, want.Distance,
					got.RoadID(), got.SegmentIndex, got.Distance)
			}
		}
	}

	fmt.Printf("Compared %d points: %d mismatches\n", *count, mismatches)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func loadNetwork(path string) *network.Network {
	net, err := services.LoadNetwork(path)
	if err != nil {
		log.Fatalf("Error loading network: %v", err)
	}
	return net
}

func mustCoordinate(lon, lat float64) geo.Coordinate {
	c, err := geo.NewCoordinate(lon, lat)
	if err != nil {
		log.Fatalf("Invalid coordinate: %v", err)
	}
	return c
}

func printUsage() {
	fmt.Println("Geometry and snapping test harness")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  test-geo-utils <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  point-distance     Great-circle distance between two points")
	fmt.Println("  polyline-distance  Distance from a point to a polyline or network road")
	fmt.Println("  snap               Snap a point to the nearest road")
	fmt.Println("  compare-snappers   Check the indexed snapper against brute force")
	fmt.Println("  help               Show this help")
}
