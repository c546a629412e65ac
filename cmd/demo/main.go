// Command demo seeds a handful of influencers, starts an orchestrator run
// against them, runs the bus worker pool in-process, and prints the
// resulting dossier.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/config"
	"github.com/metismedia/metismedia/pkg/database"
	"github.com/metismedia/metismedia/pkg/ledger"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/orchestrator"
	"github.com/metismedia/metismedia/pkg/providers"
	"github.com/metismedia/metismedia/pkg/repo"
	"github.com/metismedia/metismedia/pkg/stages"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// seedDemoInfluencers inserts a handful of influencers with bio embeddings
// at decreasing similarity to a fixed query vector, and returns the query
// embedding's ID.
func seedDemoInfluencers(ctx context.Context, db *repo.EmbeddingRepo, influencers *repo.InfluencerRepo, tenantID string) (string, error) {
	const dims = providers.DefaultEmbeddingDims

	queryVector := make([]float32, dims)
	queryVector[0] = 1.0

	queryEmbID, err := db.Create(ctx, tenantID, models.EmbeddingKindCampaign, "demo", dims, 1.0, queryVector)
	if err != nil {
		return "", fmt.Errorf("seed query embedding: %w", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		offset := float32(0.1 * float64(i))
		vec := make([]float32, dims)
		vec[0] = 1.0 - offset
		vec[1] = offset

		bioEmbID, err := db.Create(ctx, tenantID, models.EmbeddingKindBio, "demo", dims, 1.0, vec)
		if err != nil {
			return "", fmt.Errorf("seed bio embedding %d: %w", i, err)
		}
		recentEmbID, err := db.Create(ctx, tenantID, models.EmbeddingKindRecent, "demo", dims, 1.0, vec)
		if err != nil {
			return "", fmt.Errorf("seed recent embedding %d: %w", i, err)
		}

		followers := int64(1000 * (i + 1))
		platform := "substack"
		polarity := 8.0
		primaryURL := fmt.Sprintf("https://demo.example.com/influencer-%d-%s", i+1, tenantID)
		bioText := fmt.Sprintf("I write about technology and innovation. Influencer #%d.", i+1)

		infID, err := influencers.Upsert(ctx, tenantID, repo.UpsertInput{
			CanonicalName:  fmt.Sprintf("Demo Influencer %d", i+1),
			PrimaryURL:     &primaryURL,
			Platform:       &platform,
			FollowerCount:  &followers,
			PolarityScore:  &polarity,
			BioEmbeddingID: &bioEmbID,
			BioText:        &bioText,
		})
		if err != nil {
			return "", fmt.Errorf("seed influencer %d: %w", i, err)
		}
		if _, err := influencers.UpdateLastScrapedAt(ctx, tenantID, infID, now); err != nil {
			return "", fmt.Errorf("stamp influencer %d scrape time: %w", i, err)
		}
		if _, err := influencers.UpdateLastPulseCheckedAt(ctx, tenantID, infID, now, recentEmbID); err != nil {
			return "", fmt.Errorf("stamp influencer %d pulse time: %w", i, err)
		}
	}

	log.Printf("seeded 5 influencers for tenant %s", tenantID)
	return queryEmbID, nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: getEnv("REDIS_ADDR", "localhost:6379")})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	tenantID := uuid.New()
	log.Printf("starting demo run with tenant_id: %s", tenantID)

	queryEmbID, err := seedDemoInfluencers(ctx, repo.NewEmbeddingRepo(dbClient.DB()), repo.NewInfluencerRepo(dbClient.DB()), tenantID.String())
	if err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	brief := models.Brief{
		PolarityIntent: models.PolarityIntentAllies,
		CommercialMode: models.CommercialModeEarned,
		PlatformVector: []string{"substack"},
		DesiredCount:   3,
	}
	if queryEmbID != "" {
		brief.QueryEmbeddingID = queryEmbID
	}

	publisher := bus.NewPublisher(redisClient, bus.StreamMain, bus.StreamDLQ)
	costLedger := ledger.NewInMemory()
	budget := ledger.Budget{
		MaxDollars:       5.0,
		MaxProviderCalls: map[string]int{"mock_discovery": 100, "mock_llm": 100},
	}

	defaults := config.DefaultDefaults()
	defaults.DesiredCount = 3

	handlers := stages.NewHandlers(stages.Env{
		DB:         dbClient.DB(),
		Publisher:  publisher,
		Embeddings: providers.NewMockEmbeddingProvider(providers.DefaultEmbeddingDims),
		Pulses:     providers.NewMockPulseProvider(nil),
		Thresholds: *config.DefaultThresholdConfig(),
		Defaults:   *defaults,
	})

	pool := bus.NewPool(redisClient, publisher, repo.NewRunRepo(dbClient.DB()), "demo", 2, handlers.Registry(), 5*time.Second, bus.WorkerOptions{
		Budget: &budget,
		Ledger: costLedger,
	})
	pool.Start(ctx)

	orch := orchestrator.New(dbClient.DB(), publisher, 100*time.Millisecond, 30*time.Second)

	log.Println("starting orchestrator run (event-driven)...")
	runID, err := orch.StartRun(ctx, tenantID, brief)
	if err != nil {
		log.Fatalf("Failed to start run: %v", err)
	}

	result, err := orch.AwaitCompletion(ctx, tenantID.String(), runID)
	pool.Stop()
	if err != nil {
		log.Fatalf("await_completion failed: %v", err)
	}

	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("DOSSIER RESULT")
	fmt.Println("============================================================")
	fmt.Printf("Run ID:            %s\n", result.RunID)
	fmt.Printf("Campaign ID:       %s\n", result.CampaignID)
	fmt.Printf("Tenant ID:         %s\n", result.TenantID)
	fmt.Printf("Trace ID:          %s\n", result.TraceID)
	fmt.Printf("Status:            %s\n", result.Status)
	fmt.Printf("Target Cards:      %d\n", result.TargetCardsCount)
	fmt.Printf("Drafts:            %d\n", result.DraftsCount)
	fmt.Printf("Total Cost:        $%.4f\n", result.TotalCostDollars)
	if result.CompletedAt != nil {
		fmt.Printf("Completed At:      %s\n", result.CompletedAt.Format(time.RFC3339))
	}
	if result.ErrorMessage != "" {
		fmt.Printf("Error:             %s\n", result.ErrorMessage)
	}
	fmt.Println("============================================================")

	if result.Status != models.RunStatusCompleted {
		os.Exit(1)
	}
}
