package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/soyeahso/sawt/internal/domain"
)

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.RespondErrorShape(ErrorShape{Code: code, Message: message})
}

// RespondErrorShape sends a fully specified error response.
func (rc *RequestContext) RespondErrorShape(shape ErrorShape) {
	if err := rc.Client.RespondError(rc.Frame.ID, shape); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error")
	}
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// sessionID picks the session named in params, defaulting to the
// connection's own conversation.
func (rc *RequestContext) sessionID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return rc.Client.SessionID
}

// registerRPCHandlers sets up all WebSocket method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("session.get", s.rpcSessionGet)
	s.Handle("session.reset", s.rpcSessionReset)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}

	res, err := s.chat(rc.Ctx, rc.sessionID(p.SessionID), p.Message)
	if res == nil {
		_, shape := errorStatus(err)
		rc.RespondErrorShape(shape)
		return
	}
	if err != nil && !domain.Recoverable(err) {
		s.log.Warn().Err(err).Str("connId", rc.Client.ConnID).Msg("chat turn failed")
	}
	rc.Respond(ChatResponse{TurnResult: res, DurationMs: res.Duration.Milliseconds()})
}

func (s *Server) rpcSessionGet(rc *RequestContext) {
	var p SessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	sess, err := s.turns.Session(rc.Ctx, rc.sessionID(p.SessionID))
	if err != nil {
		rc.RespondError("internal", "could not load session")
		return
	}
	rc.Respond(sess)
}

func (s *Server) rpcSessionReset(rc *RequestContext) {
	var p SessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	id := rc.sessionID(p.SessionID)
	if err := s.turns.Reset(rc.Ctx, id); err != nil {
		rc.RespondError("internal", "could not reset session")
		return
	}
	rc.Respond(map[string]any{"sessionId": id, "reset": true})
}
