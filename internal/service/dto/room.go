package dto

import "imposter-quiz-be/internal/service/game"

type CreateRoomRequest struct {
	CreatorName string        `json:"creator_name"`
	Settings    game.Settings `json:"settings"`
}

type CreateRoomResponse struct {
	Code     string                 `json:"code"`
	Creator  game.ParticipantInfo   `json:"creator"`
	Roster   []game.ParticipantInfo `json:"roster"`
	Settings game.Settings          `json:"settings"`
}
