package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.Parse()

	application, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize coordinator: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Coordinator error: %v", err)
	}
}
