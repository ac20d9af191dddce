package game

import (
	"imposter-quiz-be/internal/corpus"

	"go.uber.org/zap"
)

// RoomContext is the authoritative per-room state. It is owned by exactly one
// RoomMachine goroutine; nothing outside that goroutine touches it.
type RoomContext struct {
	Code     string
	Phase    string
	Settings Settings

	Participants map[string]*Participant
	// JoinOrder tracks insertion order; it is used only to pick a
	// deterministic fallback host, never for game logic.
	JoinOrder []string

	// Per-game round state.
	RoundNumber   int
	TotalRounds   int
	UsedPromptIDs map[string]struct{}
	ImposterID    string
	CurrentPrompt *corpus.PromptPair
	Answers       map[string]string
	EndedEarly    bool

	Corpus *corpus.Corpus
}

func NewRoomContext(code string, settings Settings, crp *corpus.Corpus) *RoomContext {
	return &RoomContext{
		Code:          code,
		Phase:         PHASE_LOBBY,
		Settings:      settings,
		Participants:  make(map[string]*Participant),
		JoinOrder:     make([]string, 0, 4),
		UsedPromptIDs: make(map[string]struct{}),
		Answers:       make(map[string]string),
		Corpus:        crp,
	}
}

func (rc *RoomContext) GetHost() *Participant {
	for _, p := range rc.Participants {
		if p.IsHost {
			return p
		}
	}

	return nil
}

// Roster returns participant views in join order.
func (rc *RoomContext) Roster() []ParticipantInfo {
	roster := make([]ParticipantInfo, 0, len(rc.Participants))

	for _, id := range rc.JoinOrder {
		if p, ok := rc.Participants[id]; ok {
			roster = append(roster, p.Info())
		}
	}

	return roster
}

func (rc *RoomContext) RosterStatus() RosterStatusResponse {
	hostID := ""
	if host := rc.GetHost(); host != nil {
		hostID = host.ID
	}

	return RosterStatusResponse{
		Phase:    rc.Phase,
		Roster:   rc.Roster(),
		Settings: rc.Settings,
		HostID:   hostID,
	}
}

// AllAnswered reports whether every participant currently in the roster has
// answered. The denominator is the live roster size, never a count captured at
// round start.
func (rc *RoomContext) AllAnswered() bool {
	if len(rc.Participants) == 0 {
		return false
	}

	for _, p := range rc.Participants {
		if !p.HasAnswered {
			return false
		}
	}

	return true
}

func (rc *RoomContext) BroadcastResp(resp ResponseWrapper) {
	for _, p := range rc.Participants {
		if p.RespCh == nil {
			// Participant created over HTTP whose socket has not attached yet.
			continue
		}

		select {
		case p.RespCh <- resp:
			zap.L().Debug(
				"broadcast response sent",
				zap.String("participant_id", p.ID),
				zap.String("response_type", resp.RespType),
			)
		default:
			zap.L().Warn(
				"broadcast response dropped: participant channel full",
				zap.String("participant_id", p.ID),
			)
		}
	}
}

func (rc *RoomContext) UnicastResp(participantID string, resp ResponseWrapper) {
	p, ok := rc.Participants[participantID]
	if !ok {
		zap.L().Warn(
			"cannot unicast response: participant not found",
			zap.String("participant_id", participantID),
		)
		return
	}

	if p.RespCh == nil {
		return
	}

	select {
	case p.RespCh <- resp:
		zap.L().Debug(
			"unicast response sent",
			zap.String("participant_id", participantID),
			zap.String("response_type", resp.RespType),
		)
	default:
		zap.L().Warn(
			"unicast response dropped: participant channel full",
			zap.String("participant_id", participantID),
		)
	}
}
