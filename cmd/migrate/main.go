// Command migrate applies, rolls back, or reports the version of the
// gateway's metadata store schema, independent of the normal gateway
// startup path (which always migrates up automatically).
package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/nativegate/gateway/config"
	"github.com/nativegate/gateway/internal/metadata"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|version]")
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := metadata.RunMigrations(cfg.Metadata.Path, logger, command); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
