package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"
)

// A game moves through five phases:
// 1. Lobby: participants join, the host starts the game.
// 2. Answering: everyone answers their own prompt variant.
// 3. Guessing: all answers are on the table, the group discusses.
// 4. Revealing: the imposter and the fake prompt are shown.
// 5. Finished: terminal for this game; the room lingers until everyone leaves.
const (
	PHASE_LOBBY     = "Lobby"
	PHASE_ANSWERING = "Answering"
	PHASE_GUESSING  = "Guessing"
	PHASE_REVEALING = "Revealing"
	PHASE_FINISHED  = "Finished"
)

// Answers are trimmed and silently cut to this many characters before storage.
const MAX_ANSWER_LEN = 150

type PhaseHandler interface {
	Phase() string

	OnEnter(ctx *RoomContext)
	OnHandle(ctx *RoomContext, req RequestWrapper) error
	OnExit(ctx *RoomContext)

	SetOnSwitch(func(nextPhase string))
}

// Lobby phase: the only phase that accepts new participants.
type lobbyPhaseHandler struct {
	onSwitch func(string)
}

func NewLobbyPhaseHandler() *lobbyPhaseHandler {
	return &lobbyPhaseHandler{}
}

func (lph *lobbyPhaseHandler) Phase() string {
	return PHASE_LOBBY
}

func (lph *lobbyPhaseHandler) OnEnter(ctx *RoomContext) {
}

func (lph *lobbyPhaseHandler) OnHandle(ctx *RoomContext, req RequestWrapper) error {
	if req := TryUnwrapJoinRoomRequest(req); req != nil {
		return onParticipantJoin(ctx, req, true)
	}

	if req := TryUnwrapLeaveRoomRequest(req); req != nil {
		onParticipantLeave(ctx, req, lph.onSwitch)
		return nil
	}

	if req := TryUnwrapRosterSnapshotRequest(req); req != nil {
		ctx.UnicastResp(
			req.RequesterID,
			WrapResponse(RESP_ROSTER_STATUS, ctx.RosterStatus()),
		)
		return nil
	}

	if req := TryUnwrapCurrentRoundRequest(req); req != nil {
		return ErrNotReady
	}

	if req := TryUnwrapStartGameRequest(req); req != nil {
		if err := requireHost(ctx, req.RequesterID); err != nil {
			return err
		}

		if len(ctx.Participants) < 2 {
			return errors.New("cannot start: at least 2 participants required")
		}

		if ctx.Corpus == nil || ctx.Corpus.Len() == 0 {
			return ErrExhausted
		}

		// A fresh game: reset the used-prompt set and clamp the round count
		// to what the corpus can actually supply.
		ctx.UsedPromptIDs = make(map[string]struct{})
		ctx.RoundNumber = 0
		ctx.EndedEarly = false

		ctx.TotalRounds = ctx.Settings.TotalRounds
		if ctx.TotalRounds > ctx.Corpus.Len() {
			zap.L().Info(
				"clamping total rounds to corpus size",
				zap.String("code", ctx.Code),
				zap.Int("requested", ctx.Settings.TotalRounds),
				zap.Int("clamped", ctx.Corpus.Len()),
			)
			ctx.TotalRounds = ctx.Corpus.Len()
		}

		// Draw before switching, so a setup failure leaves the room in Lobby.
		if err := setupRound(ctx); err != nil {
			return err
		}

		lph.onSwitch(PHASE_ANSWERING)

		return nil
	}

	return fmt.Errorf("%w: %s not accepted in the lobby", ErrInvalidPhase, req.ReqType)
}

func (lph *lobbyPhaseHandler) OnExit(ctx *RoomContext) {
}

func (lph *lobbyPhaseHandler) SetOnSwitch(onSwitch func(string)) {
	lph.onSwitch = onSwitch
}

// Answering phase: collect one answer per participant, then move on.
type answeringPhaseHandler struct {
	onSwitch func(string)
}

func NewAnsweringPhaseHandler() *answeringPhaseHandler {
	return &answeringPhaseHandler{}
}

func (aph *answeringPhaseHandler) Phase() string {
	return PHASE_ANSWERING
}

func (aph *answeringPhaseHandler) OnEnter(ctx *RoomContext) {
	if ctx.RoundNumber == 1 {
		ctx.BroadcastResp(WrapResponse(
			RESP_GAME_STARTED,
			GameStartedResponse{TotalRounds: ctx.TotalRounds},
		))
	}

	// Each participant gets their own variant; only the imposter sees the fake.
	for _, p := range ctx.Participants {
		ctx.UnicastResp(p.ID, WrapResponse(RESP_ROUND, buildRoundPayload(ctx, p.ID)))
	}
}

func (aph *answeringPhaseHandler) OnHandle(ctx *RoomContext, req RequestWrapper) error {
	if req := TryUnwrapJoinRoomRequest(req); req != nil {
		return onParticipantJoin(ctx, req, false)
	}

	if req := TryUnwrapLeaveRoomRequest(req); req != nil {
		onParticipantLeave(ctx, req, aph.onSwitch)
		return nil
	}

	if req := TryUnwrapSubmitAnswerRequest(req); req != nil {
		p, ok := ctx.Participants[req.RequesterID]
		if !ok {
			return errors.New("unknown participant")
		}

		// Idempotent per participant per round: the first answer wins, a
		// repeat submission is a silent no-op.
		if p.HasAnswered {
			zap.L().Debug(
				"duplicate answer ignored",
				zap.String("code", ctx.Code),
				zap.String("participant_id", p.ID),
			)
			return nil
		}

		ctx.Answers[p.ID] = boundAnswer(req.Text)
		p.HasAnswered = true

		ctx.BroadcastResp(WrapResponse(RESP_ROSTER_STATUS, ctx.RosterStatus()))

		if ctx.AllAnswered() {
			aph.onSwitch(PHASE_GUESSING)
		}

		return nil
	}

	if req := TryUnwrapCurrentRoundRequest(req); req != nil {
		if _, ok := ctx.Participants[req.RequesterID]; !ok {
			return errors.New("unknown participant")
		}

		ctx.UnicastResp(
			req.RequesterID,
			WrapResponse(RESP_ROUND, buildRoundPayload(ctx, req.RequesterID)),
		)

		return nil
	}

	if req := TryUnwrapRosterSnapshotRequest(req); req != nil {
		return fmt.Errorf("%w: game already in progress", ErrInvalidPhase)
	}

	return fmt.Errorf("%w: %s not accepted while answering", ErrInvalidPhase, req.ReqType)
}

func (aph *answeringPhaseHandler) OnExit(ctx *RoomContext) {
}

func (aph *answeringPhaseHandler) SetOnSwitch(onSwitch func(string)) {
	aph.onSwitch = onSwitch
}

// Guessing phase: answers and the real prompt are public, the group discusses
// who got the fake one. Only the host can cut the discussion short.
type guessingPhaseHandler struct {
	onSwitch func(string)
}

func NewGuessingPhaseHandler() *guessingPhaseHandler {
	return &guessingPhaseHandler{}
}

func (gph *guessingPhaseHandler) Phase() string {
	return PHASE_GUESSING
}

func (gph *guessingPhaseHandler) OnEnter(ctx *RoomContext) {
	// Copy the answers so the broadcast payload cannot observe later roster
	// mutations while a connection goroutine is still serializing it.
	answers := make(map[string]string, len(ctx.Answers))
	for id, text := range ctx.Answers {
		answers[id] = text
	}

	realPrompt := ""
	if ctx.CurrentPrompt != nil {
		realPrompt = ctx.CurrentPrompt.Real
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_ALL_ANSWERED,
		AllAnsweredResponse{
			Answers:            answers,
			RealPrompt:         realPrompt,
			GuessWindowSeconds: ctx.Settings.DiscussionWindowSeconds,
			Roster:             ctx.Roster(),
		},
	))
}

func (gph *guessingPhaseHandler) OnHandle(ctx *RoomContext, req RequestWrapper) error {
	if req := TryUnwrapJoinRoomRequest(req); req != nil {
		return onParticipantJoin(ctx, req, false)
	}

	if req := TryUnwrapLeaveRoomRequest(req); req != nil {
		onParticipantLeave(ctx, req, gph.onSwitch)
		return nil
	}

	if req := TryUnwrapSkipToRevealRequest(req); req != nil {
		if err := requireHost(ctx, req.RequesterID); err != nil {
			return err
		}

		gph.onSwitch(PHASE_REVEALING)

		return nil
	}

	if req := TryUnwrapCurrentRoundRequest(req); req != nil {
		return ErrNotReady
	}

	return fmt.Errorf("%w: %s not accepted while guessing", ErrInvalidPhase, req.ReqType)
}

func (gph *guessingPhaseHandler) OnExit(ctx *RoomContext) {
}

func (gph *guessingPhaseHandler) SetOnSwitch(onSwitch func(string)) {
	gph.onSwitch = onSwitch
}

// Revealing phase: name the imposter, show the fake prompt, wait for the host
// to advance.
type revealingPhaseHandler struct {
	onSwitch func(string)
}

func NewRevealingPhaseHandler() *revealingPhaseHandler {
	return &revealingPhaseHandler{}
}

func (rph *revealingPhaseHandler) Phase() string {
	return PHASE_REVEALING
}

func (rph *revealingPhaseHandler) OnEnter(ctx *RoomContext) {
	// The imposter may have left mid-round; the reveal must still resolve.
	imposterName := "(left the game)"
	if imposter, ok := ctx.Participants[ctx.ImposterID]; ok {
		imposterName = imposter.Name
	}

	fakePrompt := ""
	if ctx.CurrentPrompt != nil {
		fakePrompt = ctx.CurrentPrompt.Fake
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_REVEAL,
		RevealResponse{
			ImposterID:   ctx.ImposterID,
			ImposterName: imposterName,
			FakePrompt:   fakePrompt,
		},
	))
}

func (rph *revealingPhaseHandler) OnHandle(ctx *RoomContext, req RequestWrapper) error {
	if req := TryUnwrapJoinRoomRequest(req); req != nil {
		return onParticipantJoin(ctx, req, false)
	}

	if req := TryUnwrapLeaveRoomRequest(req); req != nil {
		onParticipantLeave(ctx, req, rph.onSwitch)
		return nil
	}

	if req := TryUnwrapAdvanceRoundRequest(req); req != nil {
		if err := requireHost(ctx, req.RequesterID); err != nil {
			return err
		}

		if ctx.RoundNumber >= ctx.TotalRounds {
			rph.onSwitch(PHASE_FINISHED)
			return nil
		}

		err := setupRound(ctx)
		if errors.Is(err, ErrExhausted) {
			// No prompts left for the next due round: end the game early
			// instead of getting stuck.
			ctx.EndedEarly = true
			rph.onSwitch(PHASE_FINISHED)
			return nil
		}
		if err != nil {
			// Setup failed; the phase stays at Revealing.
			return err
		}

		rph.onSwitch(PHASE_ANSWERING)

		return nil
	}

	if req := TryUnwrapCurrentRoundRequest(req); req != nil {
		return ErrNotReady
	}

	return fmt.Errorf("%w: %s not accepted during the reveal", ErrInvalidPhase, req.ReqType)
}

func (rph *revealingPhaseHandler) OnExit(ctx *RoomContext) {
}

func (rph *revealingPhaseHandler) SetOnSwitch(onSwitch func(string)) {
	rph.onSwitch = onSwitch
}

// Finished phase: terminal for this game instance. The room is not destroyed;
// participants linger until they disconnect.
type finishedPhaseHandler struct {
	onSwitch func(string)
}

func NewFinishedPhaseHandler() *finishedPhaseHandler {
	return &finishedPhaseHandler{}
}

func (fph *finishedPhaseHandler) Phase() string {
	return PHASE_FINISHED
}

func (fph *finishedPhaseHandler) OnEnter(ctx *RoomContext) {
	ctx.BroadcastResp(WrapResponse(
		RESP_GAME_OVER,
		GameOverResponse{
			Summary: GameSummary{
				RoundsPlayed: ctx.RoundNumber,
				TotalRounds:  ctx.TotalRounds,
				EndedEarly:   ctx.EndedEarly,
			},
		},
	))
}

func (fph *finishedPhaseHandler) OnHandle(ctx *RoomContext, req RequestWrapper) error {
	if req := TryUnwrapJoinRoomRequest(req); req != nil {
		return onParticipantJoin(ctx, req, false)
	}

	if req := TryUnwrapLeaveRoomRequest(req); req != nil {
		onParticipantLeave(ctx, req, fph.onSwitch)
		return nil
	}

	if req := TryUnwrapCurrentRoundRequest(req); req != nil {
		return ErrNotReady
	}

	return fmt.Errorf("%w: the game is over", ErrInvalidPhase)
}

func (fph *finishedPhaseHandler) OnExit(ctx *RoomContext) {
	// Pin the phase so a stray switch cannot resurrect a finished game.
	ctx.Phase = PHASE_FINISHED
}

func (fph *finishedPhaseHandler) SetOnSwitch(onSwitch func(string)) {
	fph.onSwitch = onSwitch
}

// setupRound draws the next prompt and imposter and resets per-round state.
// Nothing is mutated unless the whole setup succeeds, so callers can keep the
// current phase on error.
func setupRound(ctx *RoomContext) error {
	unused := make([]string, 0, ctx.Corpus.Len())
	for _, id := range ctx.Corpus.IDs() {
		if _, used := ctx.UsedPromptIDs[id]; !used {
			unused = append(unused, id)
		}
	}

	if len(unused) == 0 {
		return ErrExhausted
	}

	promptID := unused[rand.IntN(len(unused))]

	pair, ok := ctx.Corpus.Get(promptID)
	if !ok {
		return fmt.Errorf("prompt %s missing from corpus", promptID)
	}

	if len(ctx.JoinOrder) == 0 {
		return errors.New("cannot set up a round with an empty roster")
	}

	// Uniform draw from the live roster; the same participant may be the
	// imposter in consecutive rounds.
	imposterID := ctx.JoinOrder[rand.IntN(len(ctx.JoinOrder))]

	ctx.UsedPromptIDs[promptID] = struct{}{}
	ctx.CurrentPrompt = &pair
	ctx.ImposterID = imposterID
	ctx.Answers = make(map[string]string)

	for _, p := range ctx.Participants {
		p.HasAnswered = false
	}

	ctx.RoundNumber++

	zap.L().Info(
		"round set up",
		zap.String("code", ctx.Code),
		zap.Int("round", ctx.RoundNumber),
		zap.String("prompt_id", promptID),
	)

	return nil
}

func buildRoundPayload(ctx *RoomContext, participantID string) RoundPayload {
	question := ""
	if ctx.CurrentPrompt != nil {
		if participantID == ctx.ImposterID {
			question = ctx.CurrentPrompt.Fake
		} else {
			question = ctx.CurrentPrompt.Real
		}
	}

	return RoundPayload{
		RoundNumber:         ctx.RoundNumber,
		TotalRounds:         ctx.TotalRounds,
		Question:            question,
		IsImposter:          participantID == ctx.ImposterID,
		AnswerWindowSeconds: ctx.Settings.AnswerWindowSeconds,
	}
}

func requireHost(ctx *RoomContext, requesterID string) error {
	p, ok := ctx.Participants[requesterID]
	if !ok {
		return errors.New("unknown participant")
	}

	if !p.IsHost {
		return ErrPermissionDenied
	}

	return nil
}

func boundAnswer(text string) string {
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) > MAX_ANSWER_LEN {
		return string(runes[:MAX_ANSWER_LEN])
	}

	return text
}

func onParticipantJoin(ctx *RoomContext, req *JoinRoomRequest, allowNew bool) error {
	// Same id already in the roster: treat as a reconnect, swap the response
	// channel and replay the current room state.
	if req.ParticipantID != "" {
		if existing, exists := ctx.Participants[req.ParticipantID]; exists {
			if existing.RespCh != nil {
				close(existing.RespCh)
				zap.L().Debug(
					"closed stale connection channel on reconnect",
					zap.String("participant_id", existing.ID),
				)
			}

			existing.RespCh = req.RespCh

			ctx.UnicastResp(existing.ID, WrapResponse(
				RESP_JOIN_ROOM,
				joinResponse(ctx, existing),
			))

			ctx.BroadcastResp(WrapResponse(RESP_ROSTER_STATUS, ctx.RosterStatus()))

			zap.L().Info(
				"participant reconnected",
				zap.String("code", ctx.Code),
				zap.String("participant_id", existing.ID),
				zap.String("participant_name", existing.Name),
			)

			return nil
		}
	}

	if !allowNew {
		return fmt.Errorf("%w: game already in progress", ErrInvalidPhase)
	}

	if req.JoinerName == "" {
		return errors.New("display name must not be empty")
	}

	id := req.ParticipantID
	if id == "" {
		id = GenShortID()
	}

	p := &Participant{
		ID:     id,
		Name:   req.JoinerName,
		IsHost: len(ctx.Participants) == 0,
		RespCh: req.RespCh,
	}

	ctx.Participants[id] = p
	ctx.JoinOrder = append(ctx.JoinOrder, id)

	ctx.UnicastResp(id, WrapResponse(RESP_JOIN_ROOM, joinResponse(ctx, p)))
	ctx.BroadcastResp(WrapResponse(RESP_ROSTER_STATUS, ctx.RosterStatus()))

	zap.L().Info(
		"participant joined",
		zap.String("code", ctx.Code),
		zap.String("participant_id", id),
		zap.String("participant_name", p.Name),
	)

	return nil
}

func joinResponse(ctx *RoomContext, p *Participant) JoinRoomResponse {
	hostID := ""
	if host := ctx.GetHost(); host != nil {
		hostID = host.ID
	}

	return JoinRoomResponse{
		Code:     ctx.Code,
		Phase:    ctx.Phase,
		Joiner:   p.Info(),
		Roster:   ctx.Roster(),
		Settings: ctx.Settings,
		HostID:   hostID,
	}
}

func onParticipantLeave(ctx *RoomContext, req *LeaveRoomRequest, onSwitch func(string)) {
	p, exists := ctx.Participants[req.ParticipantID]
	if !exists {
		zap.L().Warn(
			"cannot remove participant: not in roster",
			zap.String("code", ctx.Code),
			zap.String("participant_id", req.ParticipantID),
		)
		return
	}

	// A superseded connection winding down after a reconnect: its channel was
	// already closed by the join path, the roster entry stays.
	if req.RespCh != nil && p.RespCh != req.RespCh {
		zap.L().Info(
			"ignoring leave from superseded connection",
			zap.String("code", ctx.Code),
			zap.String("participant_id", req.ParticipantID),
		)
		return
	}

	if p.RespCh != nil {
		ack := WrapResponse(RESP_LEAVE_ROOM, LeaveRoomResponse{
			LeftID:   p.ID,
			LeftName: p.Name,
		})

		select {
		case p.RespCh <- ack:
		default:
		}

		close(p.RespCh)
	}

	delete(ctx.Participants, p.ID)
	// Answers never hold an entry for someone no longer in the roster.
	delete(ctx.Answers, p.ID)

	for i, id := range ctx.JoinOrder {
		if id == p.ID {
			ctx.JoinOrder = append(ctx.JoinOrder[:i], ctx.JoinOrder[i+1:]...)
			break
		}
	}

	if p.IsHost && len(ctx.JoinOrder) > 0 {
		next := ctx.Participants[ctx.JoinOrder[0]]
		next.IsHost = true

		zap.L().Info(
			"host reassigned",
			zap.String("code", ctx.Code),
			zap.String("new_host_id", next.ID),
		)
	}

	zap.L().Info(
		"participant left",
		zap.String("code", ctx.Code),
		zap.String("participant_id", p.ID),
		zap.String("participant_name", p.Name),
	)

	if len(ctx.Participants) == 0 {
		// The machine loop tears the room down.
		return
	}

	ctx.BroadcastResp(WrapResponse(RESP_ROSTER_STATUS, ctx.RosterStatus()))

	// The expected answer count is the live roster size: a departure can be
	// the event that completes the round.
	if ctx.Phase == PHASE_ANSWERING && ctx.AllAnswered() {
		onSwitch(PHASE_GUESSING)
	}
}
