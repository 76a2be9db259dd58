// Package bridge relays console API requests from a public relay server to
// the local console over a websocket, so an operator outside the greenhouse
// network can reach it.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smartgreenhouse/internal/utils"
)

// Config for an Agent
type Config struct {
	RelayURL   string // ws://host:port/agent
	LocalURL   string // http://localhost:5069
	AgentID    string
	RetryDelay time.Duration
	Timeout    time.Duration
}

type requestMsg struct {
	Type    string            `json:"type"`
	ReqID   string            `json:"reqId"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

type responseMsg struct {
	Type   string          `json:"type"`
	ReqID  string          `json:"reqId"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Agent keeps one websocket to the relay open and answers its requests.
type Agent struct {
	cfg    Config
	local  *resty.Client
	logger *zap.Logger
}

// NewAgent creates an agent
func NewAgent(cfg Config, logger *zap.Logger) *Agent {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Agent{
		cfg:    cfg,
		local:  resty.New().SetBaseURL(cfg.LocalURL).SetTimeout(cfg.Timeout),
		logger: utils.OrNop(logger),
	}
}

// Run reconnects until ctx is done.
func (a *Agent) Run(ctx context.Context) {
	for {
		if err := a.session(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("Relay connection lost", zap.String("relay", a.cfg.RelayURL), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.RetryDelay):
		}
	}
}

func (a *Agent) session(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.RelayURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	if err := ws.WriteJSON(map[string]string{"type": "register", "id": a.cfg.AgentID}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	a.logger.Info("Registered with relay", zap.String("relay", a.cfg.RelayURL), zap.String("agent_id", a.cfg.AgentID))

	for {
		var req requestMsg
		if err := ws.ReadJSON(&req); err != nil {
			return err
		}
		if req.Type != "request" {
			continue
		}
		if err := ws.WriteJSON(a.forward(ctx, req)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// forward replays req against the local console API.
func (a *Agent) forward(ctx context.Context, req requestMsg) responseMsg {
	r := a.local.R().SetContext(ctx).SetHeaders(req.Headers)
	if len(req.Body) > 0 && string(req.Body) != "null" {
		r.SetHeader("Content-Type", "application/json").SetBody([]byte(req.Body))
	}
	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		a.logger.Error("Local request failed", zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(err))
		body, _ := json.Marshal(map[string]string{"error": "local request failed"})
		return responseMsg{Type: "response", ReqID: req.ReqID, Status: http.StatusBadGateway, Body: body}
	}

	out := responseMsg{Type: "response", ReqID: req.ReqID, Status: resp.StatusCode()}
	if raw := resp.Body(); json.Valid(raw) {
		out.Body = raw
	}
	return out
}
