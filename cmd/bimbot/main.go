package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/eleron96/bimbot/core/cmd"
	"github.com/eleron96/bimbot/internal/app"
)

func main() {
	// .env is optional; real deployments pass everything via environment.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	})
	if err != nil {
		log.Fatalf("bimbot: %v", err)
	}
}
