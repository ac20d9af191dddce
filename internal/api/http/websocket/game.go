package websocket

import (
	"encoding/json"
	"time"

	"imposter-quiz-be/internal/service/game"
	"imposter-quiz-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// JoinRoom upgrades the connection and binds it to a room. The first client
// message must be a JoinRoom request; everything after that is forwarded into
// the room's event loop, and the room's notifications stream back out.
func JoinRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("websocket upgrade failed", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		// Buffered so the handler can peek the join ack without starving the
		// write goroutine.
		respCh := make(chan game.ResponseWrapper, 64)

		_, msg, err := conn.ReadMessage()
		if err != nil {
			zap.L().Error(
				"failed to read the initial request",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)
			return
		}

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil {
			zap.L().Error(
				"failed to parse the initial request",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)

			return
		}

		req := game.TryUnwrapJoinRoomRequest(wrapper)
		if req == nil {
			zap.L().Error(
				"initial request is not a JoinRoom request",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Any("wrapper", wrapper),
			)

			return
		}

		req.RespCh = respCh

		reqCh, err := appState.RoomSvc.JoinRoom(req)
		if err != nil {
			zap.L().Warn(
				"failed to join room",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.String("code", req.Code),
				zap.Error(err),
			)

			conn.WriteJSON(game.WrapErrResponse(err.Error()))

			return
		}

		// Wait for the join outcome to learn the participant id.
		var participantID string
		var participantName string

		select {
		case joinResp := <-respCh:
			if joinResp.RespType == game.RESP_ERROR {
				conn.WriteJSON(joinResp)
				return
			}

			if joinResp.RespType == game.RESP_JOIN_ROOM {
				if respData, ok := joinResp.Data.(game.JoinRoomResponse); ok {
					participantID = respData.Joiner.ID
					participantName = respData.Joiner.Name
				}

				// Put the ack back for the write goroutine to deliver.
				select {
				case respCh <- joinResp:
				default:
					zap.L().Warn("could not requeue the join ack")
				}
			}
		case <-time.After(3 * time.Second):
			zap.L().Error("timed out waiting for the join ack", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		if participantID == "" {
			zap.L().Error("no participant id in the join ack", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		zap.L().Info(
			"participant connected",
			zap.String("client_ip", ctx.RemoteAddr()),
			zap.String("code", req.Code),
			zap.String("participant_id", participantID),
			zap.String("participant_name", participantName),
		)

		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		clientIP := ctx.RemoteAddr()

		// Write goroutine: room notifications plus heartbeat.
		go func() {
			ticker := time.NewTicker(HEARTBEAT_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					zap.L().Debug(
						"websocket write goroutine exiting",
						zap.String("client_ip", clientIP),
					)
					return

				case <-ticker.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Error(
							"failed to send heartbeat",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

				case resp, ok := <-respCh:
					// Channel closed: the machine removed this participant or
					// the connection was superseded by a reconnect.
					if !ok {
						zap.L().Info(
							"response channel closed, write goroutine exiting",
							zap.String("client_ip", clientIP),
						)
						return
					}

					if err := conn.WriteJSON(resp); err != nil {
						zap.L().Error(
							"failed to write message",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}
				}
			}
		}()

		// Read loop (this goroutine).
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"failed to read message",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			var wrapper game.RequestWrapper

			// Malformed input is dropped. Only the room machine sends on respCh,
			// so a reconnect closing it cannot race a send from here.
			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Error(
					"failed to parse message",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				continue
			}

			select {
			case reqCh <- wrapper:
				zap.L().Debug(
					"request forwarded to room",
					zap.String("client_ip", clientIP),
					zap.String("request_type", wrapper.ReqType),
				)
			default:
				zap.L().Error(
					"failed to forward request: room channel full",
					zap.String("client_ip", clientIP),
					zap.String("request_type", wrapper.ReqType),
				)
			}
		}

		// The client disconnected; tell the room so the roster reconciles.
		zap.L().Info(
			"client disconnected, sending leave request",
			zap.String("client_ip", clientIP),
			zap.String("participant_id", participantID),
		)

		leaveReq := game.LeaveRoomRequest{
			ParticipantID: participantID,
			RespCh:        respCh,
		}

		leaveWrapper := game.RequestWrapper{
			ReqType:    game.REQ_LEAVE_ROOM,
			NativeData: &leaveReq,
		}

		select {
		case reqCh <- leaveWrapper:
			zap.L().Debug(
				"leave request sent",
				zap.String("participant_id", participantID),
			)
		default:
			zap.L().Warn(
				"failed to send leave request: room channel full",
				zap.String("participant_id", participantID),
			)
		}

		// Wait briefly for the leave confirmation so teardown is orderly.
		select {
		case resp, ok := <-respCh:
			if !ok {
				zap.L().Info(
					"response channel closed, leave complete",
					zap.String("participant_id", participantID),
				)
			} else if resp.RespType == game.RESP_LEAVE_ROOM {
				zap.L().Info(
					"leave confirmed",
					zap.String("participant_id", participantID),
				)
			} else {
				zap.L().Debug(
					"non-leave response while draining",
					zap.String("participant_id", participantID),
					zap.String("resp_type", resp.RespType),
				)
			}
		case <-time.After(3 * time.Second):
			zap.L().Warn(
				"timed out waiting for the leave confirmation",
				zap.String("participant_id", participantID),
			)
		}

		zap.L().Info(
			"websocket connection closed",
			zap.String("client_ip", clientIP),
			zap.String("participant_id", participantID),
		)
	}
}
