package main

import (
	"context"
	"log"

	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/config"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/identity"
)

func main() {
	// Load configuration
	cfg := config.New()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	if err := db.SeedTestData(database); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	// Issue a demo token per profile so seeded users can connect to chat.
	ctx := context.Background()
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Printf("redis unavailable, skipping token issue: %v", err)
		log.Println("Seeding completed.")
		return
	}
	provider := identity.NewProvider(redisCache, database, cfg.Auth.TokenTTL)

	var profiles []db.Profile
	if err := database.Find(&profiles).Error; err != nil {
		log.Fatalf("failed to list profiles: %v", err)
	}
	for _, p := range profiles {
		token, err := provider.IssueToken(ctx, p.ID)
		if err != nil {
			log.Fatalf("failed to issue token for %s: %v", p.DisplayName, err)
		}
		log.Printf("%s token=%s", p.DisplayName, token)
	}

	log.Println("Seeding completed.")
}
