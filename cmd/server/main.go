package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/joho/godotenv"

	api "github.com/roadwatch/server/api/v1"
	"github.com/roadwatch/server/internal/cache"
	"github.com/roadwatch/server/internal/config"
	deliveryhttp "github.com/roadwatch/server/internal/delivery/http"
	"github.com/roadwatch/server/internal/ingest"
	"github.com/roadwatch/server/internal/services"
)

func main() {
	// .env is optional, real environment variables take precedence
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to read .env: %v", err)
	}

	appConfig, err := config.Load(os.Getenv("ROADWATCH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	roadNetwork, err := services.LoadNetwork(appConfig.Network.Path)
	if err != nil {
		log.Fatalf("Failed to load road network: %v", err)
	}

	// Background work logs through the production logger
	ctx, cancel := context.WithCancel(logging.With(context.Background(), logging.NewProdLogger()))
	defer cancel()

	// Session batches expire after Session.TTL
	cacheInstance := cache.NewCache()
	cacheInstance.StartPeriodicCleanup(ctx, appConfig.Session.CleanupInterval)

	assessment, err := services.NewAssessmentService(roadNetwork, cacheInstance, appConfig)
	if err != nil {
		log.Fatalf("Failed to build assessment service: %v", err)
	}

	log.Printf("Road damage server starting")
	log.Printf("Roads in network: %d", len(roadNetwork.Roads()))
	log.Printf("AHP consistency ratio: %.4f", assessment.Model().Consistency().Ratio)

	if appConfig.Kafka.Enabled {
		consumer, err := ingest.NewDetectionConsumer(appConfig.Kafka, assessment)
		if err != nil {
			log.Fatalf("Failed to create detection consumer: %v", err)
		}
		log.Printf("Consuming detections from %s", consumer.Source())
		go consumer.Run(ctx)
	}

	// REST API on the configured port
	app := deliveryhttp.NewApp(assessment, appConfig.Server)
	go func() {
		addr := fmt.Sprintf(":%d", appConfig.Server.Port)
		log.Printf("REST API listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Printf("REST API stopped: %v", err)
		}
	}()

	// gRPC on the Prefab server, port comes from prefab.yaml/PF__ env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
	)
	api.RegisterRoadSurfaceServiceServer(server.ServiceRegistrar(), services.NewRoadSurfaceService(assessment))

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Printf("Server failed: %v", err)
	}

	cancel()
	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down REST API: %v", err)
	}
}

// homepageHandler serves a plain text index of the APIs at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	const index = `roadwatch

Road damage assessment for the Bunkyo ward road network.

REST API (see server.port):
  GET    /api/v1/roads                 reference network as GeoJSON
  GET    /api/v1/roads/scores          AHP priority score of every road
  POST   /api/v1/snap                  snap a point to the nearest road
  POST   /api/v1/batches               submit observations
  POST   /api/v1/batches/video         submit frame detections with a GPS log
  GET    /api/v1/batches/{id}/roads    colored roads of a batch
  GET    /api/v1/batches/{id}/map.kml  KML export of a batch
  GET    /api/v1/statistics            damage statistics of the session

gRPC (reflection enabled):
  roadwatch.v1.RoadSurfaceService
`

	if _, err := fmt.Fprint(w, index); err != nil {
		slog.Error("Failed to write homepage", "error", err)
	}
}
