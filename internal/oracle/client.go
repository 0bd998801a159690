// Package oracle implements the HTTP+JSON client for the remote library
// oracle: select, explore and guess.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/higashi-matsudo/library-explorer/pkg/errorsx"
	"github.com/higashi-matsudo/library-explorer/pkg/roomgraph"
	"github.com/higashi-matsudo/library-explorer/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BackendType selects which of the oracle's two credential pools a
// request authenticates against.
type BackendType string

const (
	BackendMock     BackendType = "mock"
	BackendOfficial BackendType = "official"
)

// API is the surface an engine run needs from the oracle, narrow enough
// to be satisfied by a testify mock in unit tests.
type API interface {
	Select(ctx context.Context, backend BackendType, problemName string) error
	Explore(ctx context.Context, backend BackendType, plans []roomgraph.Plan) ([][]roomgraph.Event, error)
	Guess(ctx context.Context, backend BackendType, m roomgraph.GuessMap) (bool, error)
}

var _ API = (*Client)(nil)

var tracer = otel.Tracer("github.com/higashi-matsudo/library-explorer/internal/oracle")

// Config holds the oracle's base URL and per-backend identifiers.
type Config struct {
	BaseURL    string
	MockID     string
	OfficialID string
}

func (c Config) idFor(backend BackendType) string {
	if backend == BackendOfficial {
		return c.OfficialID
	}
	return c.MockID
}

// Client is the oracle's HTTP client. One Client may be shared read-only
// across concurrently running engine instances; its connection pool is
// the only resource requiring explicit teardown at process exit.
type Client struct {
	cfg    Config
	http   *http.Client
	logger utils.Logger
}

// New creates a Client against the given configuration.
func New(cfg Config, logger utils.Logger) *Client {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type selectRequest struct {
	ID          string `json:"id"`
	ProblemName string `json:"problemName"`
}

// Select declares which named problem to attempt. Must be called before
// any exploration.
func (c *Client) Select(ctx context.Context, backend BackendType, problemName string) error {
	ctx, span := tracer.Start(ctx, "oracle.select", trace.WithAttributes(
		attribute.String("problem", problemName),
	))
	defer span.End()

	body := selectRequest{ID: c.cfg.idFor(backend), ProblemName: problemName}
	if err := c.post(ctx, backend, "/select", body, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

type exploreRequest struct {
	ID    string   `json:"id"`
	Plans []string `json:"plans"`
}

type exploreResponse struct {
	Results [][]int `json:"results"`
}

// Explore submits a batch of plans in a single round-trip and returns,
// for each plan, its reconstructed event stream.
func (c *Client) Explore(ctx context.Context, backend BackendType, plans []roomgraph.Plan) ([][]roomgraph.Event, error) {
	ctx, span := tracer.Start(ctx, "oracle.explore", trace.WithAttributes(
		attribute.Int("batch_size", len(plans)),
	))
	defer span.End()

	strs := make([]string, len(plans))
	actionBytes := 0
	for i, p := range plans {
		s := p.String()
		strs[i] = s
		actionBytes += len(s)
	}
	c.logger.Debug("explore batch: %d plans, %d total action bytes", len(plans), actionBytes)

	req := exploreRequest{ID: c.cfg.idFor(backend), Plans: strs}
	var resp exploreResponse
	if err := c.post(ctx, backend, "/explore", req, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(resp.Results) != len(plans) {
		err := errorsx.Newf(errorsx.CodeProtocolViolation,
			"explore returned %d result lists for %d submitted plans", len(resp.Results), len(plans))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	streams := make([][]roomgraph.Event, len(plans))
	for i, plan := range plans {
		events, err := reconstructEvents(plan, resp.Results[i])
		if err != nil {
			wrapped := errorsx.Wrapf(errorsx.CodeProtocolViolation, err, "plan %d (%q)", i, plan.String())
			span.RecordError(wrapped)
			span.SetStatus(codes.Error, wrapped.Error())
			return nil, wrapped
		}
		streams[i] = events
	}
	return streams, nil
}

// reconstructEvents expands a plan and the oracle's raw label sequence
// into the three-variant event stream described in §3: the raw sequence
// carries one label per Open action (plus the initial room) and omits
// Mark actions entirely, since the mark label is already known to the
// caller and never observed from the oracle.
func reconstructEvents(plan roomgraph.Plan, labels []int) ([]roomgraph.Event, error) {
	opens := 0
	for _, a := range plan {
		if a.Kind == roomgraph.ActionOpen {
			opens++
		}
	}
	if len(labels) != 1+opens {
		return nil, fmt.Errorf("expected %d labels (1 initial + %d door-opens), got %d", 1+opens, opens, len(labels))
	}
	for _, l := range labels {
		if l < 0 || l >= roomgraph.NumLabels {
			return nil, fmt.Errorf("label %d out of range [0,%d)", l, roomgraph.NumLabels)
		}
	}

	events := make([]roomgraph.Event, 0, 1+len(plan)+opens)
	idx := 0
	events = append(events, roomgraph.Event{Kind: roomgraph.EventVisitRoom, Label: roomgraph.Label(labels[idx])})
	idx++
	for _, a := range plan {
		switch a.Kind {
		case roomgraph.ActionOpen:
			events = append(events, roomgraph.Event{Kind: roomgraph.EventOpenDoor, Door: a.Door})
			events = append(events, roomgraph.Event{Kind: roomgraph.EventVisitRoom, Label: roomgraph.Label(labels[idx])})
			idx++
		case roomgraph.ActionMark:
			events = append(events, roomgraph.Event{Kind: roomgraph.EventOverwrite, Label: a.Label})
		}
	}
	return events, nil
}

type guessRequest struct {
	ID  string           `json:"id"`
	Map roomgraph.GuessMap `json:"map"`
}

type guessResponse struct {
	Correct bool `json:"correct"`
}

// Guess submits a candidate map and reports whether the oracle accepts
// it.
func (c *Client) Guess(ctx context.Context, backend BackendType, m roomgraph.GuessMap) (bool, error) {
	ctx, span := tracer.Start(ctx, "oracle.guess", trace.WithAttributes(
		attribute.Int("rooms", len(m.Rooms)),
		attribute.Int("connections", len(m.Connections)),
	))
	defer span.End()

	req := guessRequest{ID: c.cfg.idFor(backend), Map: m}
	var resp guessResponse
	if err := c.post(ctx, backend, "/guess", req, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("correct", resp.Correct))
	return resp.Correct, nil
}

func (c *Client) post(ctx context.Context, backend BackendType, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errorsx.Wrap(errorsx.CodeTransport, "failed to marshal request body", err)
	}

	url := c.cfg.BaseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errorsx.Wrap(errorsx.CodeTransport, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-backend-type", string(backend))

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return errorsx.Wrap(errorsx.CodeTransport, fmt.Sprintf("request to %s failed", path), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return errorsx.Newf(errorsx.CodeTransport, "%s returned status %d", path, httpResp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return errorsx.Wrap(errorsx.CodeTransport, fmt.Sprintf("failed to decode %s response", path), err)
	}
	return nil
}
