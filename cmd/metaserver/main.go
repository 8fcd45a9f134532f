package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.Parse()

	application, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize metadata server: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Metadata server error: %v", err)
	}
}
