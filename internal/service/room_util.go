package service

import (
	"errors"

	"imposter-quiz-be/internal/service/game"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Room codes avoid ambiguous characters so they survive being read aloud.
const (
	ROOM_CODE_ALPHABET = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ROOM_CODE_LENGTH   = 6
)

func generateRoomCode() (string, error) {
	return gonanoid.Generate(ROOM_CODE_ALPHABET, ROOM_CODE_LENGTH)
}

func normalizeSettings(s game.Settings) (game.Settings, error) {
	if s.AnswerWindowSeconds <= 0 {
		return game.Settings{}, errors.New("answer window must be positive")
	}
	if s.DiscussionWindowSeconds <= 0 {
		return game.Settings{}, errors.New("discussion window must be positive")
	}
	if s.TotalRounds <= 0 {
		return game.Settings{}, errors.New("total rounds must be positive")
	}

	return s, nil
}
