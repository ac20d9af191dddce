package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// The closed set of client request types. Anything outside this list is
// rejected before it reaches a phase handler.
const (
	REQ_JOIN_ROOM       = "JoinRoom"
	REQ_LEAVE_ROOM      = "LeaveRoom"
	REQ_ROSTER_SNAPSHOT = "RosterSnapshot"
	REQ_START_GAME      = "StartGame"
	REQ_SUBMIT_ANSWER   = "SubmitAnswer"
	REQ_CURRENT_ROUND   = "CurrentRound"
	REQ_SKIP_TO_REVEAL  = "SkipToReveal"
	REQ_ADVANCE_ROUND   = "AdvanceRound"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`

	// NativeData carries server-constructed requests that hold channels and
	// cannot round-trip through JSON (join and leave).
	NativeData any `json:"-"`
}

func TryUnwrapJoinRoomRequest(wrapper RequestWrapper) *JoinRoomRequest {
	if wrapper.ReqType != REQ_JOIN_ROOM {
		return nil
	}

	if req, ok := wrapper.NativeData.(*JoinRoomRequest); ok {
		return req
	}

	var joinRoomRequest JoinRoomRequest

	err := json.Unmarshal(wrapper.Data, &joinRoomRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap JoinRoomRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &joinRoomRequest
}

func TryUnwrapLeaveRoomRequest(wrapper RequestWrapper) *LeaveRoomRequest {
	if wrapper.ReqType != REQ_LEAVE_ROOM {
		return nil
	}

	if req, ok := wrapper.NativeData.(*LeaveRoomRequest); ok {
		return req
	}

	var leaveRoomRequest LeaveRoomRequest

	err := json.Unmarshal(wrapper.Data, &leaveRoomRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap LeaveRoomRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &leaveRoomRequest
}

func TryUnwrapRosterSnapshotRequest(wrapper RequestWrapper) *RosterSnapshotRequest {
	if wrapper.ReqType != REQ_ROSTER_SNAPSHOT {
		return nil
	}

	var rosterSnapshotRequest RosterSnapshotRequest

	err := json.Unmarshal(wrapper.Data, &rosterSnapshotRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap RosterSnapshotRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &rosterSnapshotRequest
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *StartGameRequest {
	if wrapper.ReqType != REQ_START_GAME {
		return nil
	}

	var startGameRequest StartGameRequest

	err := json.Unmarshal(wrapper.Data, &startGameRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap StartGameRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &startGameRequest
}

func TryUnwrapSubmitAnswerRequest(wrapper RequestWrapper) *SubmitAnswerRequest {
	if wrapper.ReqType != REQ_SUBMIT_ANSWER {
		return nil
	}

	var submitAnswerRequest SubmitAnswerRequest

	err := json.Unmarshal(wrapper.Data, &submitAnswerRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap SubmitAnswerRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &submitAnswerRequest
}

func TryUnwrapCurrentRoundRequest(wrapper RequestWrapper) *CurrentRoundRequest {
	if wrapper.ReqType != REQ_CURRENT_ROUND {
		return nil
	}

	var currentRoundRequest CurrentRoundRequest

	err := json.Unmarshal(wrapper.Data, &currentRoundRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap CurrentRoundRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &currentRoundRequest
}

func TryUnwrapSkipToRevealRequest(wrapper RequestWrapper) *SkipToRevealRequest {
	if wrapper.ReqType != REQ_SKIP_TO_REVEAL {
		return nil
	}

	var skipToRevealRequest SkipToRevealRequest

	err := json.Unmarshal(wrapper.Data, &skipToRevealRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap SkipToRevealRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &skipToRevealRequest
}

func TryUnwrapAdvanceRoundRequest(wrapper RequestWrapper) *AdvanceRoundRequest {
	if wrapper.ReqType != REQ_ADVANCE_ROUND {
		return nil
	}

	var advanceRoundRequest AdvanceRoundRequest

	err := json.Unmarshal(wrapper.Data, &advanceRoundRequest)
	if err != nil {
		zap.L().Error(
			"Failed to unwrap AdvanceRoundRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &advanceRoundRequest
}

// Server response types.
const (
	RESP_ERROR = "Error"

	RESP_JOIN_ROOM     = "JoinRoom"
	RESP_LEAVE_ROOM    = "LeaveRoom"
	RESP_ROSTER_STATUS = "RosterStatus"
	RESP_GAME_STARTED  = "GameStarted"
	RESP_ROUND         = "Round"
	RESP_ALL_ANSWERED  = "AllAnswered"
	RESP_REVEAL        = "Reveal"
	RESP_GAME_OVER     = "GameOver"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
