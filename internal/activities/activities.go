package activities

import (
	"context"
	"errors"

	"github.com/cx-tal-miterani/flight-surety/internal/client"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Activity names as registered with the worker.
const (
	OraclesForRequestName = "OraclesForRequest"
	ReportStatusName      = "ReportStatus"
	SubmitResponseName    = "SubmitResponse"
)

// ErrTypeRejected is the application error type of a response the ledger
// refused. Such errors are not retried.
const ErrTypeRejected = "LedgerRejection"

// Activity inputs
type OraclesForRequestInput struct {
	RequestKey string `json:"requestKey"`
	Index      int    `json:"index"`
}

type ReportStatusInput struct {
	Oracle  string                     `json:"oracle"`
	Request models.OracleWorkflowInput `json:"request"`
}

type SubmitResponseInput struct {
	Report  models.OracleReport        `json:"report"`
	Request models.OracleWorkflowInput `json:"request"`
}

// Activities holds dependencies for the oracle activities
type Activities struct {
	pool *OraclePool
	api  OracleAPI
}

// NewActivities creates a new Activities instance
func NewActivities(pool *OraclePool, api OracleAPI) *Activities {
	return &Activities{pool: pool, api: api}
}

// OraclesForRequest returns the pool oracles holding the request's index. A
// request the ledger no longer holds open gets no oracles.
func (a *Activities) OraclesForRequest(ctx context.Context, input OraclesForRequestInput) ([]string, error) {
	logger := activity.GetLogger(ctx)

	if input.RequestKey != "" {
		req, err := a.api.GetOracleRequest(ctx, input.RequestKey)
		if err != nil {
			if client.IsRetryable(err) {
				return nil, err
			}
			logger.Info("Request unknown to the ledger", "requestKey", input.RequestKey, "error", err)
			return []string{}, nil
		}
		if req.State != models.RequestStateOpen {
			logger.Info("Request no longer open", "requestKey", input.RequestKey, "state", req.State)
			return []string{}, nil
		}
	}

	oracles := a.pool.OraclesFor(input.Index)
	out := make([]string, len(oracles))
	for i, o := range oracles {
		out[i] = o.Hex()
	}
	logger.Info("Oracles selected", "index", input.Index, "oracles", len(out))
	return out, nil
}

// ReportStatus lets one oracle observe the flight and pick a status code.
func (a *Activities) ReportStatus(ctx context.Context, input ReportStatusInput) (*models.OracleReport, error) {
	logger := activity.GetLogger(ctx)

	oracle := common.HexToAddress(input.Oracle)
	code := a.pool.reporter.Report(oracle, input.Request)
	logger.Debug("Status observed", "oracle", input.Oracle, "flight", input.Request.Flight, "status", int(code))
	return &models.OracleReport{
		Oracle:     input.Oracle,
		Index:      input.Request.Index,
		StatusCode: int(code),
	}, nil
}

// SubmitResponse submits a report to the ledger. Rejections come back as
// non-retryable application errors; transport failures are retried.
func (a *Activities) SubmitResponse(ctx context.Context, input SubmitResponseInput) (*models.SubmitResponseResult, error) {
	logger := activity.GetLogger(ctx)

	req := &models.OracleResponseRequest{
		Index:      input.Report.Index,
		Airline:    input.Request.Airline,
		Flight:     input.Request.Flight,
		Timestamp:  input.Request.Timestamp,
		StatusCode: input.Report.StatusCode,
	}
	res, err := a.api.SubmitOracleResponse(ctx, common.HexToAddress(input.Report.Oracle), req)
	if err != nil {
		if !client.IsRetryable(err) {
			msg := err.Error()
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				msg = apiErr.Message
			}
			logger.Info("Response rejected", "oracle", input.Report.Oracle, "error", msg)
			return nil, temporal.NewNonRetryableApplicationError(msg, ErrTypeRejected, err)
		}
		logger.Warn("Response submission failed", "oracle", input.Report.Oracle, "error", err)
		return nil, err
	}

	logger.Info("Response accepted", "oracle", input.Report.Oracle, "state", res.State)
	return &models.SubmitResponseResult{
		Accepted:     true,
		RequestState: res.State,
		StatusCode:   res.StatusCode,
	}, nil
}
