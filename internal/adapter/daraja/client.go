package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

// ErrStatusPending indicates the provider has not finished processing the
// push, so a status query carries no final result yet.
var ErrStatusPending = errors.New("stk push still processing")

const (
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// Daraja uses this errorCode while the payer has not yet acted on the
	// prompt.
	processingErrorCode = "500.001.1001"
)

// Client exposes the operations the payment flow needs from Daraja.
type Client interface {
	Push(ctx context.Context, req PushRequest) (*PushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*model.CallbackResult, error)
}

// PushResponse is the provider acknowledgment of an STK push.
type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type queryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type queryResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	ErrorCode         string `json:"errorCode"`
	ErrorMessage      string `json:"errorMessage"`
}

// HTTPClient implements Client against the Daraja HTTP API.
type HTTPClient struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	tokens     *TokenSource
	logger     *slog.Logger
	now        func() time.Time
}

// NewHTTPClient creates a Daraja client with its own token source.
func NewHTTPClient(cfg Config, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse daraja url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("daraja url must be absolute")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	return &HTTPClient{
		cfg:        cfg,
		baseURL:    parsed,
		httpClient: httpClient,
		tokens:     NewTokenSource(cfg, httpClient, logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Tokens exposes the underlying token source.
func (c *HTTPClient) Tokens() *TokenSource {
	return c.tokens
}

// Push sends the STK push request to the provider.
func (c *HTTPClient) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	var out PushResponse
	if err := c.post(ctx, pushPath, req, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: provider response code %s: %s", domainErrors.ErrPaymentInitiation, out.ResponseCode, out.ResponseDescription)
	}
	if out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: provider acknowledged without checkout request id", domainErrors.ErrPaymentInitiation)
	}
	return &out, nil
}

// QueryStatus asks the provider for the final result of a push attempt.
// Used by the reconciliation sweep when no callback arrived.
func (c *HTTPClient) QueryStatus(ctx context.Context, checkoutRequestID string) (*model.CallbackResult, error) {
	ts := Timestamp(c.now())
	req := queryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var out queryResponse
	if err := c.post(ctx, queryPath, req, &out); err != nil {
		return nil, err
	}
	if out.ErrorCode == processingErrorCode {
		return nil, ErrStatusPending
	}
	if out.ErrorCode != "" {
		return nil, fmt.Errorf("stk query error %s: %s", out.ErrorCode, out.ErrorMessage)
	}

	code, err := strconv.Atoi(out.ResultCode)
	if err != nil {
		return nil, fmt.Errorf("stk query returned malformed result code %q", out.ResultCode)
	}

	id := out.CheckoutRequestID
	if id == "" {
		id = checkoutRequestID
	}
	return &model.CallbackResult{
		CheckoutRequestID: id,
		ResultCode:        code,
		ResultDesc:        out.ResultDesc,
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := *c.baseURL
	endpoint.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrPaymentInitiation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domainErrors.ErrPaymentInitiation, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return json.Unmarshal(raw, out)
	case http.StatusUnauthorized:
		// Stale token; drop it so the next attempt refetches.
		c.tokens.Invalidate()
		c.logger.Error("daraja rejected token", slog.String("path", path))
		return fmt.Errorf("%w: provider rejected token", domainErrors.ErrPaymentInitiation)
	default:
		// Error bodies still carry errorCode/errorMessage JSON.
		if out != nil && json.Unmarshal(raw, out) == nil {
			if q, ok := out.(*queryResponse); ok && q.ErrorCode == processingErrorCode {
				return ErrStatusPending
			}
		}
		c.logger.Error("daraja request failed", slog.String("path", path), slog.Int("status", resp.StatusCode), slog.String("body", string(raw)))
		return fmt.Errorf("%w: status %s", domainErrors.ErrPaymentInitiation, resp.Status)
	}
}
