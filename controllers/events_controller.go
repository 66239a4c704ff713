package controllers

import (
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/pointsplay/events"
	"github.com/cppla/pointsplay/utils"
)

// EventsController streams balance changes to the authenticated user over a websocket.
type EventsController struct {
	hub            *events.Hub
	originPatterns []string
}

// NewEventsController creates a new controller instance. originPatterns restrict which
// browser origins may connect; "*" allows any.
func NewEventsController(hub *events.Hub, originPatterns []string) *EventsController {
	return &EventsController{hub: hub, originPatterns: originHosts(originPatterns)}
}

// originHosts reduces configured CORS origins to the host patterns websocket.Accept matches.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// Stream upgrades the request and pumps the caller's events until the socket closes.
func (e *EventsController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	opts := &ws.AcceptOptions{OriginPatterns: e.originPatterns}
	if len(e.originPatterns) == 1 && e.originPatterns[0] == "*" {
		opts = &ws.AcceptOptions{InsecureSkipVerify: true}
	}
	conn, err := ws.Accept(ctx.Writer, ctx.Request, opts)
	if err != nil {
		utils.Logger.Warn("websocket accept failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	events.NewClient(e.hub, conn, userID).Run(ctx.Request.Context())
}
