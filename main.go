package main

import (
	"fmt"

	"imposter-quiz-be/internal/api/http"
	"imposter-quiz-be/internal/config"
	"imposter-quiz-be/internal/corpus"
	"imposter-quiz-be/internal/logger"
	"imposter-quiz-be/internal/service"
	"imposter-quiz-be/internal/state"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; config falls back to defaults.
	godotenv.Load()

	cfg := config.InitConfig()

	logger.InitLogger(cfg.LogLevel)

	crp, err := loadCorpus(cfg)
	if err != nil {
		panic(fmt.Errorf("failed to load prompt corpus: %w", err))
	}

	appState := state.NewAppState(
		cfg,
		service.NewRoomService(crp),
	)

	http.RunServer(appState)
}

func loadCorpus(cfg *config.AppConfig) (*corpus.Corpus, error) {
	if cfg.PromptsPath != "" {
		return corpus.LoadFile(cfg.PromptsPath)
	}

	return corpus.Load()
}
