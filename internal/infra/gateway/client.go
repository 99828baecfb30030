// Package gateway implements the HTTP client for the remote parsing service.
// It shapes requests and decodes responses; orchestration lives in the
// application layer.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common"
	"github.com/telescan/telescan/pkg/common/logger"
	"github.com/telescan/telescan/pkg/common/otel"
)

const defaultHTTPTimeout = 30 * time.Second

// Client is a wrapper around the parsing service's HTTP API with rate
// limiting and tracing.
type Client struct {
	httpClient  *http.Client
	rateLimiter *common.RateLimiter
	baseURL     string
	authToken   string

	logger *logger.Logger
	tracer trace.Tracer
}

var (
	_ parsing.Gateway        = (*Client)(nil)
	_ parsing.TokenDirectory = (*Client)(nil)
)

// NewClient creates a parsing service client. A nil httpClient gets a
// traced default with a 30s timeout. Non-positive rate settings fall back
// to 10 rps with a burst of 20, which stays well under the service's
// throttle with a 1s poll cadence.
func NewClient(
	baseURL, authToken string,
	rateLimit float64,
	rateBurst int,
	httpClient *http.Client,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}
	if rateBurst <= 0 {
		rateBurst = 20
	}
	logger = logger.With("component", "gateway_client")
	return &Client{
		httpClient:  httpClient,
		rateLimiter: common.NewRateLimiter(rateLimit, rateBurst),
		baseURL:     baseURL,
		authToken:   authToken,
		logger:      logger,
		tracer:      tracer,
	}
}

type startRequest struct {
	Link      string `json:"link"`
	PostLimit int    `json:"post_limit,omitempty"`
}

type startResponse struct {
	Accepted bool   `json:"accepted"`
	JobID    string `json:"job_id"`
	Message  string `json:"message"`
}

// statusResponse mirrors the service's status payload. Running is a pointer
// so a payload missing the flag is distinguishable from running=false.
type statusResponse struct {
	Running  *bool  `json:"running"`
	Progress int    `json:"progress"`
	Phase    string `json:"phase"`
	Message  string `json:"message"`
	State    string `json:"state"`
	Current  *int   `json:"current"`
	Total    *int   `json:"total"`
}

type itemResponse struct {
	ID          int64     `json:"id"`
	GroupID     string    `json:"group_id"`
	GroupName   string    `json:"group_name"`
	Username    string    `json:"group_username"`
	MemberCount int       `json:"member_count"`
	IsPublic    bool      `json:"is_public"`
	ParsedAt    time.Time `json:"parsed_at"`
}

func (r itemResponse) toDomain() parsing.ResultItem {
	return parsing.ResultItem{
		ID:          r.ID,
		ResourceID:  r.GroupID,
		Name:        r.GroupName,
		Username:    r.Username,
		MemberCount: r.MemberCount,
		IsPublic:    r.IsPublic,
		ParsedAt:    r.ParsedAt,
	}
}

type tokenResponse struct {
	ID        int64     `json:"id"`
	APIID     string    `json:"api_id"`
	APIHash   string    `json:"api_hash"`
	Phone     string    `json:"phone"`
	BotToken  string    `json:"bot_token"`
	CreatedAt time.Time `json:"created_at"`
}

func (r tokenResponse) toDomain() parsing.Token {
	return parsing.Token{
		ID:        r.ID,
		APIID:     r.APIID,
		APIHash:   r.APIHash,
		Phone:     r.Phone,
		BotToken:  r.BotToken,
		CreatedAt: r.CreatedAt,
	}
}

// StartParse asks the service to begin a parse job for the collection.
func (c *Client) StartParse(
	ctx context.Context,
	collection parsing.Collection,
	locator string,
	opts parsing.StartOptions,
) (parsing.StartAck, error) {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.start_parse",
		attribute.String("collection", collection.String()))
	defer span.End()

	body := startRequest{Link: locator, PostLimit: opts.PostLimit}
	var resp startResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath(collection, "parse"), body, &resp); err != nil {
		span.RecordError(err)
		return parsing.StartAck{}, err
	}

	span.SetAttributes(
		attribute.Bool("accepted", resp.Accepted),
		attribute.String("job_ref", resp.JobID),
	)
	return parsing.StartAck{Accepted: resp.Accepted, JobRef: resp.JobID, Message: resp.Message}, nil
}

// JobStatus fetches the latest status snapshot for the collection's active
// job. A payload without the running flag yields ErrMalformedStatus.
func (c *Client) JobStatus(ctx context.Context, collection parsing.Collection) (parsing.JobStatus, error) {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.job_status",
		attribute.String("collection", collection.String()))
	defer span.End()

	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, c.collectionPath(collection, "parse/status"), nil, &resp); err != nil {
		span.RecordError(err)
		return parsing.JobStatus{}, err
	}

	if resp.Running == nil {
		err := fmt.Errorf("%w: missing running flag", parsing.ErrMalformedStatus)
		span.RecordError(err)
		return parsing.JobStatus{}, err
	}

	span.SetAttributes(
		attribute.Bool("running", *resp.Running),
		attribute.Int("progress", resp.Progress),
	)
	return parsing.JobStatus{
		Running:  *resp.Running,
		Progress: resp.Progress,
		Phase:    parsing.ParsePhaseFromString(resp.Phase),
		Message:  resp.Message,
		State:    resp.State,
		Current:  resp.Current,
		Total:    resp.Total,
	}, nil
}

// CancelParse asks the service to stop the collection's active job.
func (c *Client) CancelParse(ctx context.Context, collection parsing.Collection) error {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.cancel_parse",
		attribute.String("collection", collection.String()))
	defer span.End()

	if err := c.do(ctx, http.MethodPost, c.collectionPath(collection, "parse/cancel"), nil, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListAll returns every stored result item for the collection.
func (c *Client) ListAll(ctx context.Context, collection parsing.Collection) ([]parsing.ResultItem, error) {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.list_all",
		attribute.String("collection", collection.String()))
	defer span.End()

	var resp []itemResponse
	if err := c.do(ctx, http.MethodGet, c.collectionPath(collection, ""), nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("item_count", len(resp)))
	items := make([]parsing.ResultItem, 0, len(resp))
	for _, item := range resp {
		items = append(items, item.toDomain())
	}
	return items, nil
}

// ListPage returns one page of result items, 1-based.
func (c *Client) ListPage(ctx context.Context, collection parsing.Collection, page, pageSize int) ([]parsing.ResultItem, error) {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.list_page",
		attribute.String("collection", collection.String()),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize))
	defer span.End()

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var resp []itemResponse
	path := c.collectionPath(collection, "") + "?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("item_count", len(resp)))
	items := make([]parsing.ResultItem, 0, len(resp))
	for _, item := range resp {
		items = append(items, item.toDomain())
	}
	return items, nil
}

// DeleteItem removes a single stored result item.
func (c *Client) DeleteItem(ctx context.Context, collection parsing.Collection, itemID int64) error {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.delete_item",
		attribute.String("collection", collection.String()),
		attribute.Int64("item_id", itemID))
	defer span.End()

	path := c.collectionPath(collection, strconv.FormatInt(itemID, 10))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListTokens returns the registered data-source tokens.
func (c *Client) ListTokens(ctx context.Context) ([]parsing.Token, error) {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.list_tokens")
	defer span.End()

	var resp []tokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/tokens", nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	tokens := make([]parsing.Token, 0, len(resp))
	for _, token := range resp {
		tokens = append(tokens, token.toDomain())
	}
	return tokens, nil
}

// CreateToken registers a new data-source token.
func (c *Client) CreateToken(ctx context.Context, input parsing.TokenInput) (parsing.Token, error) {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.create_token")
	defer span.End()

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/tokens", input, &resp); err != nil {
		span.RecordError(err)
		return parsing.Token{}, err
	}
	return resp.toDomain(), nil
}

// DeleteToken removes a registered token.
func (c *Client) DeleteToken(ctx context.Context, tokenID int64) error {
	ctx, span := otel.AddSpan(ctx, c.tracer, "gateway.delete_token",
		attribute.Int64("token_id", tokenID))
	defer span.End()

	if err := c.do(ctx, http.MethodDelete, "/api/v1/tokens/"+strconv.FormatInt(tokenID, 10), nil, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Client) collectionPath(collection parsing.Collection, suffix string) string {
	path := "/api/v1/" + collection.String()
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

// do executes one request against the service: rate limit, auth, JSON in
// and out, non-2xx mapped to errors with the response body attached.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("non-2xx response from parsing service: %d %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
