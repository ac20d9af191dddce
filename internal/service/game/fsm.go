package game

import (
	"time"

	"go.uber.org/zap"
)

// RoomMachine owns one room's state and serializes every mutation through a
// single event loop. Operations on different rooms never contend with each
// other; within a room each request runs to completion before the next is
// admitted.
type RoomMachine struct {
	ctx     *RoomContext
	handler PhaseHandler
	// All participant requests for this room funnel through here.
	reqCh chan RequestWrapper
	// Closed by the registry to force the machine down.
	doneCh chan struct{}
	// Invoked once when the roster empties; the registry evicts the room.
	onEmpty func(code string)

	createdAt time.Time
}

func NewRoomMachine(ctx *RoomContext, doneCh chan struct{}, onEmpty func(code string)) *RoomMachine {
	gm := &RoomMachine{
		ctx:       ctx,
		handler:   NewLobbyPhaseHandler(),
		reqCh:     make(chan RequestWrapper, 64),
		doneCh:    doneCh,
		onEmpty:   onEmpty,
		createdAt: time.Now(),
	}

	gm.handler.SetOnSwitch(func(nextPhase string) {
		gm.ctx.Phase = nextPhase
	})

	return gm
}

func (gm *RoomMachine) GetReqCh() chan RequestWrapper {
	return gm.reqCh
}

func (gm *RoomMachine) CreatedAt() time.Time {
	return gm.createdAt
}

func (gm *RoomMachine) Start() {
	gm.handler.OnEnter(gm.ctx)

	for {
		var req RequestWrapper

		select {
		case req = <-gm.reqCh:
			zap.L().Debug(
				"room received request",
				zap.String("code", gm.ctx.Code),
				zap.String("request_type", req.ReqType),
			)

		case <-gm.doneCh:
			zap.L().Info(
				"room machine shutting down",
				zap.String("code", gm.ctx.Code),
			)
			gm.closeConnections()
			return
		}

		gm.Dispatch(req)

		if len(gm.ctx.Participants) == 0 {
			zap.L().Info(
				"roster empty, tearing room down",
				zap.String("code", gm.ctx.Code),
			)

			if gm.onEmpty != nil {
				gm.onEmpty(gm.ctx.Code)
			}

			return
		}
	}
}

// Dispatch runs one request against the current phase handler and performs any
// resulting phase switch. It is called from the event loop; tests drive it
// directly to step a room synchronously.
func (gm *RoomMachine) Dispatch(req RequestWrapper) error {
	err := gm.handler.OnHandle(gm.ctx, req)
	if err != nil {
		zap.L().Debug(
			"request rejected",
			zap.Error(err),
			zap.String("code", gm.ctx.Code),
			zap.String("phase", gm.handler.Phase()),
			zap.String("request_type", req.ReqType),
		)

		// Validation failures go back to the requester only, never broadcast.
		if respCh := requesterRespCh(gm.ctx, req); respCh != nil {
			select {
			case respCh <- WrapErrResponse(err.Error()):
			default:
			}
		}
	}

	if gm.ctx.Phase != gm.handler.Phase() {
		gm.switchPhase()
		gm.handler.OnEnter(gm.ctx)
	}

	return err
}

func (gm *RoomMachine) switchPhase() {
	gm.handler.OnExit(gm.ctx)

	var newHandler PhaseHandler

	switch gm.ctx.Phase {
	case PHASE_LOBBY:
		newHandler = NewLobbyPhaseHandler()
	case PHASE_ANSWERING:
		newHandler = NewAnsweringPhaseHandler()
	case PHASE_GUESSING:
		newHandler = NewGuessingPhaseHandler()
	case PHASE_REVEALING:
		newHandler = NewRevealingPhaseHandler()
	case PHASE_FINISHED:
		newHandler = NewFinishedPhaseHandler()
	default:
		zap.L().Error(
			"unknown phase",
			zap.String("code", gm.ctx.Code),
			zap.String("phase", gm.ctx.Phase),
		)
		return
	}

	newHandler.SetOnSwitch(func(nextPhase string) {
		gm.ctx.Phase = nextPhase
	})

	gm.handler = newHandler
}

func (gm *RoomMachine) IsFinished() bool {
	return gm.ctx.Phase == PHASE_FINISHED
}

// closeConnections drops every participant channel so the connection write
// goroutines unwind.
func (gm *RoomMachine) closeConnections() {
	for _, p := range gm.ctx.Participants {
		if p.RespCh != nil {
			close(p.RespCh)
			p.RespCh = nil
		}
	}
}

// requesterRespCh resolves where a rejection should be delivered. Join carries
// its own channel because the requester is not in the roster yet; everything
// else is looked up by requester id.
func requesterRespCh(ctx *RoomContext, req RequestWrapper) chan ResponseWrapper {
	if jreq := TryUnwrapJoinRoomRequest(req); jreq != nil {
		return jreq.RespCh
	}

	requesterID := ""

	switch req.ReqType {
	case REQ_ROSTER_SNAPSHOT:
		if r := TryUnwrapRosterSnapshotRequest(req); r != nil {
			requesterID = r.RequesterID
		}
	case REQ_START_GAME:
		if r := TryUnwrapStartGameRequest(req); r != nil {
			requesterID = r.RequesterID
		}
	case REQ_SUBMIT_ANSWER:
		if r := TryUnwrapSubmitAnswerRequest(req); r != nil {
			requesterID = r.RequesterID
		}
	case REQ_CURRENT_ROUND:
		if r := TryUnwrapCurrentRoundRequest(req); r != nil {
			requesterID = r.RequesterID
		}
	case REQ_SKIP_TO_REVEAL:
		if r := TryUnwrapSkipToRevealRequest(req); r != nil {
			requesterID = r.RequesterID
		}
	case REQ_ADVANCE_ROUND:
		if r := TryUnwrapAdvanceRoundRequest(req); r != nil {
			requesterID = r.RequesterID
		}
	}

	if requesterID == "" {
		return nil
	}

	p, ok := ctx.Participants[requesterID]
	if !ok {
		return nil
	}

	return p.RespCh
}
