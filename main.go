package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jghoshh/momentum/frontend"
	"github.com/jghoshh/momentum/models"
	"github.com/jghoshh/momentum/server"
	"github.com/joho/godotenv"
)

func main() {
	// Load the .env file
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables
	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = "localhost:8080"
	}
	if os.Getenv("SERVER_URL") == "" {
		os.Setenv("SERVER_URL", "http://"+listenAddr)
	}

	store := server.NewStore()
	store.SetToday(time.Now().UTC().Format(models.DateFormat))

	go server.Start(listenAddr, store)
	frontend.RunFrontend()
}
