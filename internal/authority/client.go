package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/utils"
)

// ErrUnauthorized is matched by errors.Is for HTTP 401 answers.
var ErrUnauthorized = errors.New("authority: unauthorized")

// Error is a non-2xx answer from the authority
type Error struct {
	Op     string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("authority %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// TokenSource supplies the bearer token for each request
type TokenSource interface {
	Token() string
}

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	// OnUnauthorized runs after any 401 answer, typically clearing the session.
	OnUnauthorized func(ctx context.Context)
	Logger         *zap.Logger
}

// Client talks to the remote rule/configuration authority over HTTP.
// It never retries; retries are always operator-initiated.
type Client struct {
	http           *resty.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
	logger         *zap.Logger
}

// NewClient creates an authority client
func NewClient(opts Options) *Client {
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:           httpClient,
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		logger:         utils.OrNop(opts.Logger),
	}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	return req
}

func (c *Client) execute(ctx context.Context, op string, req *resty.Request, method, url string) (*resty.Response, error) {
	resp, err := req.Execute(method, url)
	if err != nil {
		c.logger.Warn("Authority request failed", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("authority %s: %w", op, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
	if resp.IsError() {
		c.logger.Warn("Authority returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
		)
		return resp, &Error{Op: op, Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return resp, nil
}

func hasBody(resp *resty.Response) bool {
	return resp.StatusCode() != http.StatusNoContent && len(resp.Body()) > 0
}

// ListGreenhouses returns every greenhouse in the authority's order.
func (c *Client) ListGreenhouses(ctx context.Context) ([]models.Greenhouse, error) {
	var out []models.Greenhouse
	req := c.request(ctx).SetResult(&out)
	if _, err := c.execute(ctx, "list greenhouses", req, http.MethodGet, "/api/greenhouses"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListComponents returns the components of a greenhouse with the given role.
func (c *Client) ListComponents(ctx context.Context, ghID int, role models.Role) ([]models.Component, error) {
	var out []models.Component
	req := c.request(ctx).
		SetQueryParam("gh_id", strconv.Itoa(ghID)).
		SetResult(&out)
	if role != "" {
		req.SetQueryParam("role", string(role))
	}
	if _, err := c.execute(ctx, "list components", req, http.MethodGet, "/api/Components"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRules returns all rules of a greenhouse. Records that do not decode,
// such as an unknown kind, are skipped so one bad record cannot hide the rest.
func (c *Client) ListRules(ctx context.Context, ghID int) ([]models.Rule, error) {
	var raw []json.RawMessage
	req := c.request(ctx).
		SetPathParam("gh_id", strconv.Itoa(ghID)).
		SetResult(&raw)
	if _, err := c.execute(ctx, "list rules", req, http.MethodGet, "/api/greenhouses/{gh_id}/rules"); err != nil {
		return nil, err
	}
	out := make([]models.Rule, 0, len(raw))
	for _, rec := range raw {
		var r models.Rule
		if err := json.Unmarshal(rec, &r); err != nil {
			c.logger.Warn("Skipping undecodable rule", zap.Int("gh_id", ghID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CreateRule submits a new rule for ghID and returns the stored record.
func (c *Client) CreateRule(ctx context.Context, ghID int, rule models.Rule) (models.Rule, error) {
	rule.GreenhouseID = ghID
	var created models.Rule
	req := c.request(ctx).SetBody(rule).SetResult(&created)
	if _, err := c.execute(ctx, "create rule", req, http.MethodPost, "/api/rules"); err != nil {
		return models.Rule{}, err
	}
	return created, nil
}

// UpdateRule sends a patch. The returned rule is nil when the authority
// answers without a body.
func (c *Client) UpdateRule(ctx context.Context, ruleID int, patch models.RulePatch) (*models.Rule, error) {
	req := c.request(ctx).
		SetPathParam("id", strconv.Itoa(ruleID)).
		SetBody(patch)
	resp, err := c.execute(ctx, "update rule", req, http.MethodPut, "/api/rules/{id}")
	if err != nil {
		return nil, err
	}
	if !hasBody(resp) {
		return nil, nil
	}
	var updated models.Rule
	if err := json.Unmarshal(resp.Body(), &updated); err != nil {
		return nil, fmt.Errorf("authority update rule: decode: %w", err)
	}
	return &updated, nil
}

// DeleteRule removes a rule.
func (c *Client) DeleteRule(ctx context.Context, ruleID int) error {
	req := c.request(ctx).SetPathParam("id", strconv.Itoa(ruleID))
	_, err := c.execute(ctx, "delete rule", req, http.MethodDelete, "/api/rules/{id}")
	return err
}

// ToggleRule asks the authority to set enabled to desired. Without a
// response body the desired value is reported as accepted.
func (c *Client) ToggleRule(ctx context.Context, ruleID int, desired bool) (models.ToggleResult, error) {
	req := c.request(ctx).
		SetPathParam("id", strconv.Itoa(ruleID)).
		SetBody(map[string]bool{"enabled": desired})
	resp, err := c.execute(ctx, "toggle rule", req, http.MethodPost, "/api/rules/{id}/toggle")
	if err != nil {
		return models.ToggleResult{}, err
	}
	if !hasBody(resp) {
		return models.ToggleResult{RuleID: ruleID, Enabled: desired}, nil
	}
	var result models.ToggleResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return models.ToggleResult{}, fmt.Errorf("authority toggle rule: decode: %w", err)
	}
	if result.RuleID == 0 {
		result.RuleID = ruleID
	}
	return result, nil
}
