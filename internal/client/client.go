/*
Package client is the HTTP client of the surety API used by the oracle worker.
Every call is made on behalf of one account, sent in the X-Caller header.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	OraclesPath         = "api/oracles"
	OracleMePath        = "api/oracles/me"
	OracleResponsesPath = "api/oracles/responses"
	OracleRequestsPath  = "api/oracles/requests"

	callerHeader    = "X-Caller"
	contentType     = "Content-Type"
	applicationJson = "application/json"
	defaultScheme   = "http://"
)

// APIError is a non-2xx response of the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether repeating the call may succeed. The ledger
// rejects requests with 4xx codes, which repeat deterministically.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying: transport failures and
// retryable API errors are.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return err != nil
}

type (
	SuretyClient struct {
		baseURL    *url.URL
		httpClient *http.Client
	}

	Option func(*SuretyClient)
)

func WithHTTPClient(c *http.Client) Option {
	return func(s *SuretyClient) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *SuretyClient) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

func New(baseURL string, opts ...Option) (*SuretyClient, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = defaultScheme + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing surety API base URL (%s): %w", baseURL, err)
	}
	c := &SuretyClient{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// RegisterOracle registers oracle paying fee and returns its indexes.
func (c *SuretyClient) RegisterOracle(ctx context.Context, oracle common.Address, fee *uint256.Int) (*models.Oracle, error) {
	var out models.Oracle
	req := models.RegisterOracleRequest{Fee: ledger.FormatWei(fee)}
	if err := c.do(ctx, http.MethodPost, c.baseURL.JoinPath(OraclesPath), oracle, req, &out); err != nil {
		return nil, fmt.Errorf("register oracle %s: %w", oracle, err)
	}
	return &out, nil
}

// GetMyIndexes returns the indexes of an already registered oracle.
func (c *SuretyClient) GetMyIndexes(ctx context.Context, oracle common.Address) (*models.Oracle, error) {
	var out models.Oracle
	if err := c.do(ctx, http.MethodGet, c.baseURL.JoinPath(OracleMePath), oracle, nil, &out); err != nil {
		return nil, fmt.Errorf("get indexes of %s: %w", oracle, err)
	}
	return &out, nil
}

func (c *SuretyClient) SubmitOracleResponse(ctx context.Context, oracle common.Address, req *models.OracleResponseRequest) (*models.OracleRequest, error) {
	var out models.OracleRequest
	if err := c.do(ctx, http.MethodPost, c.baseURL.JoinPath(OracleResponsesPath), oracle, req, &out); err != nil {
		return nil, fmt.Errorf("submit response of %s: %w", oracle, err)
	}
	return &out, nil
}

// GetOracleRequest returns the current state of an oracle request.
func (c *SuretyClient) GetOracleRequest(ctx context.Context, key string) (*models.OracleRequest, error) {
	var out models.OracleRequest
	if err := c.do(ctx, http.MethodGet, c.baseURL.JoinPath(OracleRequestsPath, key), common.Address{}, nil, &out); err != nil {
		return nil, fmt.Errorf("get oracle request %s: %w", key, err)
	}
	return &out, nil
}

// do sends body as JSON and decodes a 2xx response into out. A zero caller
// sends no X-Caller header.
func (c *SuretyClient) do(ctx context.Context, method string, u *url.URL, caller common.Address, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(contentType, applicationJson)
	if caller != (common.Address{}) {
		req.Header.Set(callerHeader, caller.Hex())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var msg struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Error != "" {
			apiErr.Message = msg.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
