package main

import (
	"log"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/startup"
)

func main() {
	if err := startup.Initialize(); err != nil {
		log.Fatalf("Collector startup failed: %v", err)
	}

	log.Println("Collector has shut down gracefully.")
}
