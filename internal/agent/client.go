// Package agent is the client for the external text-classification service
// (the "boolean agent"). The service evaluates free-text expressions and
// agent-kind lexicon expressions against field values.
//
// The wire contract uses google.protobuf.Struct messages so no generated
// stubs are needed:
//
//	/dossier.agent.v1.BooleanAgent/Query
//	  request:  {"scope_id": string, "values": [string]}
//	  response: {"matches": {<expression or condition id>: [string]}}
//
//	/dossier.agent.v1.BooleanAgent/ValidateExpression
//	  request:  {"expression": string}
//	  response: {"valid": bool}
//
// Availability is the standard gRPC health check for the service name,
// cached for the configured health interval.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/dossier/internal/types"
)

const (
	// ServiceName is the gRPC service the client talks to and health-checks.
	ServiceName = "dossier.agent.v1.BooleanAgent"

	queryMethod    = "/" + ServiceName + "/Query"
	validateMethod = "/" + ServiceName + "/ValidateExpression"

	apiKeyHeader = "x-api-key"
)

const (
	DefaultTimeout        = 5 * time.Second
	DefaultHealthInterval = 10 * time.Second
)

// ErrMalformedResponse indicates the service answered with an unexpected shape.
var ErrMalformedResponse = errors.New("malformed agent response")

// Config holds client settings.
type Config struct {
	Address        string
	Timeout        time.Duration
	HealthInterval time.Duration
	APIKey         string
}

// Client talks to the external service over gRPC. It is safe for concurrent
// use.
type Client struct {
	conn     grpc.ClientConnInterface
	health   healthpb.HealthClient
	close    func() error
	timeout  time.Duration
	interval time.Duration
	apiKey   string
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	healthy   bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the clock used for the health cache.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Dial creates a client for cfg.Address. The connection is established
// lazily by gRPC on first use.
func Dial(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("agent address is empty")
	}
	conn, err := grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", cfg.Address, err)
	}
	c := NewClient(conn, cfg, opts...)
	c.close = conn.Close
	return c, nil
}

// NewClient creates a client over an existing connection. Tests pass a fake
// grpc.ClientConnInterface.
func NewClient(conn grpc.ClientConnInterface, cfg Config, opts ...Option) *Client {
	c := &Client{
		conn:     conn,
		health:   healthpb.NewHealthClient(conn),
		close:    func() error { return nil },
		timeout:  cfg.Timeout,
		interval: cfg.HealthInterval,
		apiKey:   cfg.APIKey,
		logger:   slog.Default(),
		now:      time.Now,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.interval <= 0 {
		c.interval = DefaultHealthInterval
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close shuts down the connection if the client owns it.
func (c *Client) Close() error {
	return c.close()
}

// Available reports whether the service answered its last health check with
// SERVING. Checks are cached for the health interval.
func (c *Client) Available(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.checkedAt.IsZero() && now.Sub(c.checkedAt) < c.interval {
		return c.healthy
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	healthy := err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	if healthy != c.healthy || c.checkedAt.IsZero() {
		c.logger.Info("agent availability changed",
			"healthy", healthy,
			"error", err)
	}
	c.healthy = healthy
	c.checkedAt = now
	return healthy
}

// Query asks the service which expressions registered under scopeID match
// values.
func (c *Client) Query(ctx context.Context, scopeID string, values []string) (types.AgentResult, error) {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"scope_id": scopeID,
		"values":   list,
	})
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.invoke(ctx, queryMethod, req, resp); err != nil {
		return nil, fmt.Errorf("query rpc: %w", err)
	}
	return decodeMatches(resp)
}

// ValidateExpression asks the service whether expression is well formed.
func (c *Client) ValidateExpression(ctx context.Context, expression string) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{"expression": expression})
	if err != nil {
		return false, fmt.Errorf("build validate request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.invoke(ctx, validateMethod, req, resp); err != nil {
		return false, fmt.Errorf("validate rpc: %w", err)
	}
	valid, ok := resp.GetFields()["valid"]
	if !ok {
		return false, fmt.Errorf("%w: missing valid", ErrMalformedResponse)
	}
	if _, isBool := valid.GetKind().(*structpb.Value_BoolValue); !isBool {
		return false, fmt.Errorf("%w: valid is not a bool", ErrMalformedResponse)
	}
	return valid.GetBoolValue(), nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp *structpb.Struct) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.conn.Invoke(ctx, method, req, resp)
}

// callContext applies the per-call timeout and the API key.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, apiKeyHeader, c.apiKey)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// decodeMatches converts {"matches": {id: [term]}} into an AgentResult.
func decodeMatches(resp *structpb.Struct) (types.AgentResult, error) {
	result := types.AgentResult{}
	matches, ok := resp.GetFields()["matches"]
	if !ok {
		return result, nil
	}
	obj := matches.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("%w: matches is not an object", ErrMalformedResponse)
	}
	for id, v := range obj.GetFields() {
		list := v.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("%w: terms for %s are not a list", ErrMalformedResponse, id)
		}
		terms := make([]string, 0, len(list.GetValues()))
		for _, term := range list.GetValues() {
			terms = append(terms, term.GetStringValue())
		}
		result[id] = terms
	}
	return result, nil
}
