package api

import (
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/realtime"
	"alcyxob/program-studio/internal/service"
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const streamHeartbeat = 15 * time.Second

// Subscriber is the part of realtime.Watcher the stream handler needs.
type Subscriber interface {
	Subscribe(parent context.Context, programID primitive.ObjectID, onData func(*realtime.Snapshot), onError func(error)) (unsubscribe func())
}

// StreamHandler pushes program snapshots over server-sent events.
type StreamHandler struct {
	programService service.ProgramService
	subscriber     Subscriber
	log            *logger.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(programService service.ProgramService, subscriber Subscriber, log *logger.Logger) *StreamHandler {
	return &StreamHandler{programService: programService, subscriber: subscriber, log: log}
}

// StreamProgram godoc
// @Summary Live program snapshots
// @Description Sends a "snapshot" event on connect and after every change,
// @Description and one "error" event before closing if the feed fails.
// @Tags Programs
// @Security BearerAuth
// @Produce text/event-stream
// @Router /programs/{id}/stream [get]
func (h *StreamHandler) StreamProgram(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.programService.GetProgram(ctx, uid, programID); err != nil {
		respondWithError(c, h.log, err, "open program stream")
		return
	}

	snapshots := make(chan *realtime.Snapshot, 1)
	failures := make(chan error, 1)
	unsubscribe := h.subscriber.Subscribe(ctx, programID,
		func(s *realtime.Snapshot) {
			select {
			case snapshots <- s:
			case <-ctx.Done():
			}
		},
		func(err error) {
			select {
			case failures <- err:
			default:
			}
		},
	)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s := <-snapshots:
			c.SSEvent("snapshot", s)
			return true
		case err := <-failures:
			h.log.Warn("program stream failed", "program_id", programID.Hex(), "error", err)
			c.SSEvent("error", gin.H{"error": "live updates unavailable"})
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}
