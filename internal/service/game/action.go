package game

// JoinRoom doubles as the reconnect path: a request carrying the id of a
// participant already in the roster re-attaches the connection instead of
// creating a new entry.
type JoinRoomRequest struct {
	Code          string `json:"code"`
	JoinerName    string `json:"joiner_name"`
	ParticipantID string `json:"participant_id,omitempty"`

	RespCh chan ResponseWrapper `json:"-"`
}

type JoinRoomResponse struct {
	Code     string            `json:"code"`
	Phase    string            `json:"phase"`
	Joiner   ParticipantInfo   `json:"joiner"`
	Roster   []ParticipantInfo `json:"roster"`
	Settings Settings          `json:"settings"`
	HostID   string            `json:"host_id"`
}

type LeaveRoomRequest struct {
	ParticipantID string `json:"participant_id"`

	RespCh chan ResponseWrapper `json:"-"`
}

type LeaveRoomResponse struct {
	LeftID   string `json:"left_id"`
	LeftName string `json:"left_name"`
}

type RosterSnapshotRequest struct {
	RequesterID string `json:"requester_id"`
}

// RosterStatusResponse is the broadcast sent after every roster mutation and
// after every accepted answer, so clients can render the waiting-on list.
type RosterStatusResponse struct {
	Phase    string            `json:"phase"`
	Roster   []ParticipantInfo `json:"roster"`
	Settings Settings          `json:"settings"`
	HostID   string            `json:"host_id"`
}

type StartGameRequest struct {
	RequesterID string `json:"requester_id"`
}

type GameStartedResponse struct {
	TotalRounds int `json:"total_rounds"`
}

// RoundPayload is unicast per participant: Question is the real or the fake
// variant depending on the receiver's role this round.
type RoundPayload struct {
	RoundNumber         int    `json:"round_number"`
	TotalRounds         int    `json:"total_rounds"`
	Question            string `json:"question"`
	IsImposter          bool   `json:"is_imposter"`
	AnswerWindowSeconds int    `json:"answer_window_seconds"`
}

type SubmitAnswerRequest struct {
	RequesterID string `json:"requester_id"`
	Text        string `json:"text"`
}

type AllAnsweredResponse struct {
	// Answers maps participant id to the submitted text.
	Answers            map[string]string `json:"answers"`
	RealPrompt         string            `json:"real_prompt"`
	GuessWindowSeconds int               `json:"guess_window_seconds"`
	Roster             []ParticipantInfo `json:"roster"`
}

type CurrentRoundRequest struct {
	RequesterID string `json:"requester_id"`
}

type SkipToRevealRequest struct {
	RequesterID string `json:"requester_id"`
}

type RevealResponse struct {
	ImposterID   string `json:"imposter_id"`
	ImposterName string `json:"imposter_name"`
	FakePrompt   string `json:"fake_prompt"`
}

type AdvanceRoundRequest struct {
	RequesterID string `json:"requester_id"`
}

type GameSummary struct {
	RoundsPlayed int  `json:"rounds_played"`
	TotalRounds  int  `json:"total_rounds"`
	EndedEarly   bool `json:"ended_early"`
}

type GameOverResponse struct {
	Summary GameSummary `json:"summary"`
}
