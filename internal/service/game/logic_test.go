package game

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"imposter-quiz-be/internal/corpus"
)

func mustCorpus(t *testing.T, n int) *corpus.Corpus {
	t.Helper()

	pairs := make([]corpus.PromptPair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, corpus.PromptPair{
			ID:   fmt.Sprintf("p%d", i),
			Real: fmt.Sprintf("real question %d", i),
			Fake: fmt.Sprintf("fake question %d", i),
		})
	}

	crp, err := corpus.New(pairs)
	if err != nil {
		t.Fatalf("failed to build test corpus: %v", err)
	}

	return crp
}

// newTestMachine builds a room with the given participants already attached.
// The first name is the host; participant ids equal the names.
func newTestMachine(t *testing.T, totalRounds, corpusSize int, names ...string) (*RoomMachine, *RoomContext, map[string]chan ResponseWrapper) {
	t.Helper()

	ctx := NewRoomContext(
		"TESTRM",
		Settings{
			AnswerWindowSeconds:     60,
			DiscussionWindowSeconds: 90,
			TotalRounds:             totalRounds,
		},
		mustCorpus(t, corpusSize),
	)

	chans := make(map[string]chan ResponseWrapper, len(names))

	for i, name := range names {
		ch := make(chan ResponseWrapper, 64)
		chans[name] = ch

		ctx.Participants[name] = &Participant{
			ID:     name,
			Name:   strings.ToUpper(name[:1]) + name[1:],
			IsHost: i == 0,
			RespCh: ch,
		}
		ctx.JoinOrder = append(ctx.JoinOrder, name)
	}

	return NewRoomMachine(ctx, nil, nil), ctx, chans
}

func req(reqType string, payload any) RequestWrapper {
	return RequestWrapper{
		ReqType: reqType,
		Data:    mustMarshal(payload),
	}
}

func leaveReq(id string, ch chan ResponseWrapper) RequestWrapper {
	return RequestWrapper{
		ReqType:    REQ_LEAVE_ROOM,
		NativeData: &LeaveRoomRequest{ParticipantID: id, RespCh: ch},
	}
}

func drainResponses(ch chan ResponseWrapper) []ResponseWrapper {
	var out []ResponseWrapper

	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		default:
			return out
		}
	}
}

func findResp(resps []ResponseWrapper, respType string) (ResponseWrapper, bool) {
	for _, r := range resps {
		if r.RespType == respType {
			return r, true
		}
	}

	return ResponseWrapper{}, false
}

func startGame(t *testing.T, gm *RoomMachine, hostID string) {
	t.Helper()

	if err := gm.Dispatch(req(REQ_START_GAME, StartGameRequest{RequesterID: hostID})); err != nil {
		t.Fatalf("start game failed: %v", err)
	}
}

func TestStartGame_RequiresTwoParticipants(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 2, 3, "alice")

	err := gm.Dispatch(req(REQ_START_GAME, StartGameRequest{RequesterID: "alice"}))
	if err == nil {
		t.Fatalf("starting with one participant should be rejected")
	}

	if ctx.Phase != PHASE_LOBBY {
		t.Fatalf("phase should stay Lobby, got %s", ctx.Phase)
	}
}

func TestStartGame_NonHostRejected(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 2, 3, "alice", "bob")

	err := gm.Dispatch(req(REQ_START_GAME, StartGameRequest{RequesterID: "bob"}))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}

	if ctx.Phase != PHASE_LOBBY {
		t.Fatalf("phase should stay Lobby, got %s", ctx.Phase)
	}
}

func TestStartGame_ClampsTotalRoundsToCorpusSize(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 5, 3, "alice", "bob")

	startGame(t, gm, "alice")

	if ctx.TotalRounds != 3 {
		t.Fatalf("total rounds should be clamped to 3, got %d", ctx.TotalRounds)
	}
}

func TestStartGame_AssignsOneImposterAndDistinctQuestions(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob")

	startGame(t, gm, "alice")

	if ctx.Phase != PHASE_ANSWERING {
		t.Fatalf("want Answering, got %s", ctx.Phase)
	}

	imposters := 0
	questions := make(map[string]string)

	for id, ch := range chans {
		resps := drainResponses(ch)

		if _, ok := findResp(resps, RESP_GAME_STARTED); !ok {
			t.Fatalf("%s did not receive GameStarted", id)
		}

		roundResp, ok := findResp(resps, RESP_ROUND)
		if !ok {
			t.Fatalf("%s did not receive a round payload", id)
		}

		payload := roundResp.Data.(RoundPayload)

		if payload.RoundNumber != 1 {
			t.Fatalf("round number should be 1, got %d", payload.RoundNumber)
		}
		if payload.AnswerWindowSeconds != 60 {
			t.Fatalf("answer window should be 60, got %d", payload.AnswerWindowSeconds)
		}

		if payload.IsImposter {
			imposters++
		}

		questions[id] = payload.Question
	}

	if imposters != 1 {
		t.Fatalf("exactly one participant should be the imposter, got %d", imposters)
	}

	if questions["alice"] == questions["bob"] {
		t.Fatalf("the two payloads should carry different question variants")
	}
}

func TestSubmitAnswer_DuplicateKeepsFirst(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 2, 3, "alice", "bob")

	startGame(t, gm, "alice")

	if err := gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "first"})); err != nil {
		t.Fatalf("first answer should be accepted: %v", err)
	}

	if err := gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "second"})); err != nil {
		t.Fatalf("duplicate answer should be a silent no-op: %v", err)
	}

	if len(ctx.Answers) != 1 {
		t.Fatalf("answers should hold exactly one entry, got %d", len(ctx.Answers))
	}

	if ctx.Answers["alice"] != "first" {
		t.Fatalf("the first submitted text should win, got %q", ctx.Answers["alice"])
	}
}

func TestSubmitAnswer_TrimsAndTruncates(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 1, 3, "alice", "bob")

	startGame(t, gm, "alice")

	long := "  " + strings.Repeat("x", 200) + "  "

	if err := gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: long})); err != nil {
		t.Fatalf("answer should be accepted: %v", err)
	}

	got := ctx.Answers["alice"]
	if len(got) != MAX_ANSWER_LEN {
		t.Fatalf("answer should be cut to %d characters, got %d", MAX_ANSWER_LEN, len(got))
	}
	if strings.HasPrefix(got, " ") {
		t.Fatalf("answer should be trimmed before truncation")
	}
}

func TestAllAnswered_TransitionsToGuessing(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob")

	startGame(t, gm, "alice")

	drainResponses(chans["alice"])
	drainResponses(chans["bob"])

	gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "blue"}))

	if ctx.Phase != PHASE_ANSWERING {
		t.Fatalf("one answer should not advance the phase")
	}

	gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "bob", Text: "red"}))

	if ctx.Phase != PHASE_GUESSING {
		t.Fatalf("all answers in, want Guessing, got %s", ctx.Phase)
	}

	resps := drainResponses(chans["alice"])

	allResp, ok := findResp(resps, RESP_ALL_ANSWERED)
	if !ok {
		t.Fatalf("AllAnswered was not broadcast")
	}

	payload := allResp.Data.(AllAnsweredResponse)

	if len(payload.Answers) != 2 {
		t.Fatalf("want 2 answers, got %d", len(payload.Answers))
	}
	if payload.RealPrompt != ctx.CurrentPrompt.Real {
		t.Fatalf("broadcast should carry the real prompt")
	}
	if payload.GuessWindowSeconds != 90 {
		t.Fatalf("guess window should come from the settings, got %d", payload.GuessWindowSeconds)
	}
}

func TestAnswering_DepartureCompletesRound(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob", "carol")

	startGame(t, gm, "alice")

	gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "one"}))
	gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "bob", Text: "two"}))

	if ctx.Phase != PHASE_ANSWERING {
		t.Fatalf("round should still be waiting on carol")
	}

	// Carol leaves without answering: the departure itself completes the round.
	gm.Dispatch(leaveReq("carol", chans["carol"]))

	if ctx.Phase != PHASE_GUESSING {
		t.Fatalf("departure should trigger the all-answered transition, got %s", ctx.Phase)
	}

	if _, ok := ctx.Answers["carol"]; ok {
		t.Fatalf("answers must not hold entries for departed participants")
	}
}

func TestHostDeparture_ReassignsExactlyOneHost(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob", "carol")

	gm.Dispatch(leaveReq("alice", chans["alice"]))

	hosts := 0
	for _, p := range ctx.Participants {
		if p.IsHost {
			hosts++
		}
	}

	if hosts != 1 {
		t.Fatalf("exactly one participant should hold host after the departure, got %d", hosts)
	}

	if !ctx.Participants["bob"].IsHost {
		t.Fatalf("the first remaining participant in join order should become host")
	}
}

func TestReveal_FallsBackWhenImposterLeft(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob", "carol")

	startGame(t, gm, "alice")

	imposter := ctx.ImposterID

	// The imposter walks out mid-round. No re-roll, no auto-advance.
	gm.Dispatch(leaveReq(imposter, chans[imposter]))

	if ctx.ImposterID != imposter {
		t.Fatalf("the round must not re-roll the imposter on departure")
	}

	for id := range ctx.Participants {
		gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: id, Text: "answer"}))
	}

	if ctx.Phase != PHASE_GUESSING {
		t.Fatalf("want Guessing, got %s", ctx.Phase)
	}

	host := ctx.GetHost()
	if host == nil {
		t.Fatalf("room lost its host")
	}

	drainResponses(chans[host.ID])

	if err := gm.Dispatch(req(REQ_SKIP_TO_REVEAL, SkipToRevealRequest{RequesterID: host.ID})); err != nil {
		t.Fatalf("host skip should succeed: %v", err)
	}

	resps := drainResponses(chans[host.ID])

	revealResp, ok := findResp(resps, RESP_REVEAL)
	if !ok {
		t.Fatalf("Reveal was not broadcast")
	}

	payload := revealResp.Data.(RevealResponse)

	if payload.ImposterID != imposter {
		t.Fatalf("reveal should still name the departed imposter id")
	}
	if payload.ImposterName != "(left the game)" {
		t.Fatalf("departed imposter should resolve to the fallback label, got %q", payload.ImposterName)
	}
	if payload.FakePrompt != ctx.CurrentPrompt.Fake {
		t.Fatalf("reveal should carry the fake prompt")
	}
}

func TestFullTwoRoundGame(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob")

	startGame(t, gm, "alice")

	playRound := func(round int) {
		t.Helper()

		for _, ch := range chans {
			drainResponses(ch)
		}

		gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "a"}))
		gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "bob", Text: "b"}))

		if ctx.Phase != PHASE_GUESSING {
			t.Fatalf("round %d: want Guessing, got %s", round, ctx.Phase)
		}

		if err := gm.Dispatch(req(REQ_SKIP_TO_REVEAL, SkipToRevealRequest{RequesterID: "alice"})); err != nil {
			t.Fatalf("round %d: skip failed: %v", round, err)
		}

		if ctx.Phase != PHASE_REVEALING {
			t.Fatalf("round %d: want Revealing, got %s", round, ctx.Phase)
		}

		resps := drainResponses(chans["bob"])

		revealResp, ok := findResp(resps, RESP_REVEAL)
		if !ok {
			t.Fatalf("round %d: Reveal was not broadcast", round)
		}

		payload := revealResp.Data.(RevealResponse)

		if payload.ImposterID != ctx.ImposterID {
			t.Fatalf("round %d: reveal names the wrong imposter", round)
		}
		if payload.ImposterName != ctx.Participants[ctx.ImposterID].Name {
			t.Fatalf("round %d: reveal carries the wrong display name", round)
		}
	}

	playRound(1)

	if err := gm.Dispatch(req(REQ_ADVANCE_ROUND, AdvanceRoundRequest{RequesterID: "alice"})); err != nil {
		t.Fatalf("advance to round 2 failed: %v", err)
	}

	if ctx.Phase != PHASE_ANSWERING || ctx.RoundNumber != 2 {
		t.Fatalf("want Answering round 2, got %s round %d", ctx.Phase, ctx.RoundNumber)
	}

	resps := drainResponses(chans["alice"])
	roundResp, ok := findResp(resps, RESP_ROUND)
	if !ok {
		t.Fatalf("round 2 payload missing")
	}
	if roundResp.Data.(RoundPayload).RoundNumber != 2 {
		t.Fatalf("payload should carry round 2")
	}
	if _, ok := findResp(resps, RESP_GAME_STARTED); ok {
		t.Fatalf("GameStarted must only be broadcast once per game")
	}

	playRound(2)

	if err := gm.Dispatch(req(REQ_ADVANCE_ROUND, AdvanceRoundRequest{RequesterID: "alice"})); err != nil {
		t.Fatalf("final advance failed: %v", err)
	}

	if ctx.Phase != PHASE_FINISHED {
		t.Fatalf("after the last round, want Finished, got %s", ctx.Phase)
	}

	resps = drainResponses(chans["bob"])

	overResp, ok := findResp(resps, RESP_GAME_OVER)
	if !ok {
		t.Fatalf("GameOver was not broadcast")
	}
	if _, ok := findResp(resps, RESP_ROUND); ok {
		t.Fatalf("no further round payload may follow the final advance")
	}

	summary := overResp.Data.(GameOverResponse).Summary

	if summary.RoundsPlayed != 2 || summary.TotalRounds != 2 || summary.EndedEarly {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// Terminal: round-advancing operations are rejected from here on.
	if err := gm.Dispatch(req(REQ_ADVANCE_ROUND, AdvanceRoundRequest{RequesterID: "alice"})); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("advance after game over should be ErrInvalidPhase, got %v", err)
	}
}

func TestUsedPromptsNeverRepeat(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 3, 3, "alice", "bob")

	startGame(t, gm, "alice")

	seen := make(map[string]struct{})

	for round := 1; round <= 3; round++ {
		if ctx.CurrentPrompt == nil {
			t.Fatalf("round %d has no prompt", round)
		}

		if _, dup := seen[ctx.CurrentPrompt.ID]; dup {
			t.Fatalf("prompt %s was drawn twice in one game", ctx.CurrentPrompt.ID)
		}
		seen[ctx.CurrentPrompt.ID] = struct{}{}

		if len(ctx.UsedPromptIDs) != round {
			t.Fatalf("used set should grow by one per round, got %d after round %d", len(ctx.UsedPromptIDs), round)
		}

		gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "a"}))
		gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "bob", Text: "b"}))
		gm.Dispatch(req(REQ_SKIP_TO_REVEAL, SkipToRevealRequest{RequesterID: "alice"}))
		gm.Dispatch(req(REQ_ADVANCE_ROUND, AdvanceRoundRequest{RequesterID: "alice"}))
	}

	if ctx.Phase != PHASE_FINISHED {
		t.Fatalf("after all rounds, want Finished, got %s", ctx.Phase)
	}
}

func TestAdvance_EndsEarlyWhenPromptsRunOut(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 1, 1, "alice", "bob")

	startGame(t, gm, "alice")

	gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "a"}))
	gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "bob", Text: "b"}))
	gm.Dispatch(req(REQ_SKIP_TO_REVEAL, SkipToRevealRequest{RequesterID: "alice"}))

	// Pretend another round is due while the corpus is spent.
	ctx.TotalRounds = 2
	drainResponses(chans["alice"])

	if err := gm.Dispatch(req(REQ_ADVANCE_ROUND, AdvanceRoundRequest{RequesterID: "alice"})); err != nil {
		t.Fatalf("advance into exhaustion should finish the game, not fail: %v", err)
	}

	if ctx.Phase != PHASE_FINISHED {
		t.Fatalf("want Finished, got %s", ctx.Phase)
	}
	if !ctx.EndedEarly {
		t.Fatalf("the summary should flag the early end")
	}

	resps := drainResponses(chans["alice"])

	overResp, ok := findResp(resps, RESP_GAME_OVER)
	if !ok {
		t.Fatalf("GameOver was not broadcast")
	}
	if !overResp.Data.(GameOverResponse).Summary.EndedEarly {
		t.Fatalf("summary should carry ended_early")
	}
}

func TestCurrentRound_OnlyAvailableWhileAnswering(t *testing.T) {
	gm, ctx, chans := newTestMachine(t, 2, 3, "alice", "bob")

	err := gm.Dispatch(req(REQ_CURRENT_ROUND, CurrentRoundRequest{RequesterID: "alice"}))
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("current round in the lobby should be ErrNotReady, got %v", err)
	}

	startGame(t, gm, "alice")
	drainResponses(chans["alice"])
	drainResponses(chans["bob"])

	if err := gm.Dispatch(req(REQ_CURRENT_ROUND, CurrentRoundRequest{RequesterID: "alice"})); err != nil {
		t.Fatalf("current round while answering should succeed: %v", err)
	}

	resps := drainResponses(chans["alice"])

	roundResp, ok := findResp(resps, RESP_ROUND)
	if !ok {
		t.Fatalf("requester did not receive the reconstructed payload")
	}

	payload := roundResp.Data.(RoundPayload)

	wantImposter := ctx.ImposterID == "alice"
	if payload.IsImposter != wantImposter {
		t.Fatalf("reconstructed payload has the wrong role")
	}

	wantQuestion := ctx.CurrentPrompt.Real
	if wantImposter {
		wantQuestion = ctx.CurrentPrompt.Fake
	}
	if payload.Question != wantQuestion {
		t.Fatalf("reconstructed payload has the wrong question variant")
	}

	// Nothing goes to the other participant.
	if resps := drainResponses(chans["bob"]); len(resps) != 0 {
		t.Fatalf("current round must be unicast, bob received %d responses", len(resps))
	}
}

func TestJoin_RejectedMidGameButReconnectAllowed(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 2, 3, "alice", "bob")

	startGame(t, gm, "alice")

	newcomer := &JoinRoomRequest{
		Code:       "TESTRM",
		JoinerName: "Mallory",
		RespCh:     make(chan ResponseWrapper, 8),
	}

	err := gm.Dispatch(RequestWrapper{ReqType: REQ_JOIN_ROOM, NativeData: newcomer})
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("a new joiner mid-game should be rejected, got %v", err)
	}
	if len(ctx.Participants) != 2 {
		t.Fatalf("rejected join must not touch the roster")
	}

	// Bob reconnects with a fresh channel.
	freshCh := make(chan ResponseWrapper, 64)
	rejoin := &JoinRoomRequest{
		Code:          "TESTRM",
		JoinerName:    "Bob",
		ParticipantID: "bob",
		RespCh:        freshCh,
	}

	if err := gm.Dispatch(RequestWrapper{ReqType: REQ_JOIN_ROOM, NativeData: rejoin}); err != nil {
		t.Fatalf("reconnect by id should succeed: %v", err)
	}

	if ctx.Participants["bob"].RespCh != freshCh {
		t.Fatalf("reconnect should swap in the new channel")
	}

	resps := drainResponses(freshCh)

	ack, ok := findResp(resps, RESP_JOIN_ROOM)
	if !ok {
		t.Fatalf("rejoiner did not receive the join ack")
	}

	if ack.Data.(JoinRoomResponse).Phase != PHASE_ANSWERING {
		t.Fatalf("join ack should carry the authoritative phase")
	}
}

func TestRosterSnapshot_LobbyOnly(t *testing.T) {
	gm, _, chans := newTestMachine(t, 2, 3, "alice", "bob")

	if err := gm.Dispatch(req(REQ_ROSTER_SNAPSHOT, RosterSnapshotRequest{RequesterID: "bob"})); err != nil {
		t.Fatalf("roster snapshot in the lobby should succeed: %v", err)
	}

	resps := drainResponses(chans["bob"])

	snap, ok := findResp(resps, RESP_ROSTER_STATUS)
	if !ok {
		t.Fatalf("requester did not receive the roster snapshot")
	}

	status := snap.Data.(RosterStatusResponse)

	if len(status.Roster) != 2 {
		t.Fatalf("want 2 roster entries, got %d", len(status.Roster))
	}
	if status.HostID != "alice" {
		t.Fatalf("host id should be alice, got %s", status.HostID)
	}

	startGame(t, gm, "alice")

	err := gm.Dispatch(req(REQ_ROSTER_SNAPSHOT, RosterSnapshotRequest{RequesterID: "bob"}))
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("roster snapshot mid-game should be rejected, got %v", err)
	}
}

func TestSubmitAnswer_RejectedOutsideAnswering(t *testing.T) {
	gm, ctx, _ := newTestMachine(t, 2, 3, "alice", "bob")

	err := gm.Dispatch(req(REQ_SUBMIT_ANSWER, SubmitAnswerRequest{RequesterID: "alice", Text: "early"}))
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("answering in the lobby should be ErrInvalidPhase, got %v", err)
	}

	if len(ctx.Answers) != 0 {
		t.Fatalf("rejected submission must not be stored")
	}
}
