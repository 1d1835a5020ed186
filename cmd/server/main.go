package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/app"
	"github.com/jun/notesync/internal/config"
	"github.com/jun/notesync/internal/logging"
)

func main() {
	// .env is optional for local runs
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stderrLog := logging.New(os.Stderr, zerolog.InfoLevel, true)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.DevMode)

	application, err := app.NewApp(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize app")
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		headers := make(map[string]string)
		for k, v := range r.Header {
			headers[k] = strings.Join(v, "; ")
		}

		queryParams := make(map[string]string)
		for k, v := range r.URL.Query() {
			queryParams[k] = v[0]
		}

		req := events.APIGatewayProxyRequest{
			Path:                  r.URL.Path,
			HTTPMethod:            r.Method,
			Headers:               headers,
			QueryStringParameters: queryParams,
			Body:                  string(body),
			IsBase64Encoded:       false,
		}

		resp, err := application.HandleRequest(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		for k, vs := range resp.MultiValueHeaders {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
	})

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("starting local server")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
