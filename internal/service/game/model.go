package game

// Participant is one connected player inside a room. The ID is an opaque
// per-connection identifier, stable for the lifetime of one connection.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHost      bool   `json:"is_host"`
	HasAnswered bool   `json:"has_answered"`

	RespCh chan ResponseWrapper `json:"-"`
}

// ParticipantInfo is the roster-facing view of a participant.
type ParticipantInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHost      bool   `json:"is_host"`
	HasAnswered bool   `json:"has_answered"`
}

func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		ID:          p.ID,
		Name:        p.Name,
		IsHost:      p.IsHost,
		HasAnswered: p.HasAnswered,
	}
}

// Settings are operator-supplied at room creation and immutable afterwards,
// except for the downward clamp of TotalRounds at game start.
type Settings struct {
	AnswerWindowSeconds     int `json:"answer_window_seconds"`
	DiscussionWindowSeconds int `json:"discussion_window_seconds"`
	TotalRounds             int `json:"total_rounds"`
}
