// Command grilad runs the grading HTTP service without the CLI. It reads the
// configuration from $GRILA_CONFIG, falling back to the default config path.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"grila/internal/config"
	"grila/internal/daemonrun"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("grilad: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(os.Getenv("GRILA_CONFIG")))
	return cfg, err
}
