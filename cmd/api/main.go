package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/app"
	"github.com/jun/notesync/internal/config"
	"github.com/jun/notesync/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := logging.New(os.Stderr, zerolog.InfoLevel, false)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.DevMode)

	application, err := app.NewApp(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize app")
	}
	lambda.Start(application.HandleRequest)
}
