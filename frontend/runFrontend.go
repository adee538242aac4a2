package frontend

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jghoshh/momentum/client"
	"github.com/jghoshh/momentum/clock"
	"github.com/jghoshh/momentum/engine"
	"github.com/jghoshh/momentum/frontend/cmd"
	storage "github.com/jghoshh/momentum/storage/cache"
	"github.com/joho/godotenv"
)

func RunFrontend() {
	// Load the .env file
	err := godotenv.Load("frontend/.env")
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables
	serverURL := os.Getenv("SERVER_URL")
	redisURL := os.Getenv("REDIS_URL")
	ttl := engine.DefaultTTL
	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid CACHE_TTL %q: %v", raw, err)
		}
		ttl = parsed
	}
	capacity := storage.DefaultCapacity
	if raw := os.Getenv("CACHE_CAPACITY"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("invalid CACHE_CAPACITY %q: %v", raw, err)
		}
		capacity = parsed
	}

	trackerClient := client.NewTrackerClient(serverURL)
	cache, err := storage.NewCache(redisURL, capacity)
	if err != nil {
		log.Fatalf("cache init failed: %v", err)
	}

	eng := engine.New(trackerClient, clock.NewAdapter(trackerClient), cache, ttl)
	if _, err := eng.LoadMonth(context.Background(), time.Now().UTC()); err != nil {
		log.Printf("initial load failed: %v", err)
	}

	cmd.InitTrackerCmd(eng)
	cmd.Execute()
}
