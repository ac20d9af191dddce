package http

import (
	"fmt"

	"imposter-quiz-be/internal/service/dto"
	"imposter-quiz-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/skip2/go-qrcode"
)

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "invalid request body",
			})
			return
		}

		resp, err := appState.RoomSvc.CreateRoom(req)
		if err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(resp)
	}
}

// RoomQR renders the join link for a room as a PNG, for sharing a lobby
// across the table.
func RoomQR(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")

		if !appState.RoomSvc.Exists(code) {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": "room not found",
			})
			return
		}

		joinURL := fmt.Sprintf("%s/?code=%s", appState.Cfg.PublicURL, code)

		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			ctx.StatusCode(iris.StatusInternalServerError)
			ctx.JSON(iris.Map{
				"error": "failed to render qr code",
			})
			return
		}

		ctx.ContentType("image/png")
		ctx.Write(png)
	}
}
