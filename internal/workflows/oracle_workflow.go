package workflows

import (
	"errors"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/activities"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// ActivityTimeout bounds a single activity attempt
	ActivityTimeout = 30 * time.Second
	// MaxSubmitAttempts is the maximum number of attempts to deliver one response
	MaxSubmitAttempts = 5
)

// OracleRequestWorkflow collects status reports from the worker's oracles
// holding the request's index and submits them to the ledger. It ends once
// every oracle has answered, the request stops being open, or the server
// signals that the request was resolved.
func OracleRequestWorkflow(ctx workflow.Context, input models.OracleWorkflowInput) (*models.OracleWorkflowState, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Oracle workflow started", "requestKey", input.RequestKey, "index", input.Index)

	state := &models.OracleWorkflowState{
		RequestKey:   input.RequestKey,
		RequestState: models.RequestStateOpen,
		LastUpdated:  workflow.Now(ctx),
	}
	if err := workflow.SetQueryHandler(ctx, models.QueryGetState, func() (*models.OracleWorkflowState, error) {
		return state, nil
	}); err != nil {
		return nil, err
	}

	// Activity options
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        MaxSubmitAttempts,
			NonRetryableErrorTypes: []string{activities.ErrTypeRejected},
		},
	})

	var oracles []string
	err := workflow.ExecuteActivity(ctx, activities.OraclesForRequestName, activities.OraclesForRequestInput{
		RequestKey: input.RequestKey,
		Index:      input.Index,
	}).Get(ctx, &oracles)
	if err != nil {
		return state, err
	}
	state.Oracles = len(oracles)
	if len(oracles) == 0 {
		logger.Info("No oracle holds the request index", "index", input.Index)
		return state, nil
	}

	resolvedCh := workflow.GetSignalChannel(ctx, models.SignalRequestResolved)
	selector := workflow.NewSelector(ctx)
	done := false
	pending := 0

	selector.AddReceive(resolvedCh, func(c workflow.ReceiveChannel, more bool) {
		var signal models.RequestResolvedSignal
		c.Receive(ctx, &signal)
		logger.Info("Request closed by the ledger", "requestState", signal.RequestState, "statusCode", signal.StatusCode)
		state.RequestState = signal.RequestState
		if state.RequestState == "" {
			state.RequestState = models.RequestStateResolved
		}
		state.StatusCode = signal.StatusCode
		state.LastUpdated = workflow.Now(ctx)
		done = true
	})

	onSubmitted := func(f workflow.Future) {
		pending--
		var res models.SubmitResponseResult
		if err := f.Get(ctx, &res); err != nil {
			state.Rejected++
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.Type() == activities.ErrTypeRejected {
				logger.Info("Response rejected", "error", appErr.Error())
			} else {
				logger.Error("Failed to submit response", "error", err)
			}
			state.LastUpdated = workflow.Now(ctx)
			return
		}
		state.Submitted++
		state.LastUpdated = workflow.Now(ctx)
		if res.RequestState != models.RequestStateOpen {
			state.RequestState = res.RequestState
			state.StatusCode = res.StatusCode
			done = true
		}
	}

	onReported := func(f workflow.Future) {
		var report models.OracleReport
		if err := f.Get(ctx, &report); err != nil {
			pending--
			state.Rejected++
			logger.Error("Failed to observe flight status", "error", err)
			return
		}
		selector.AddFuture(workflow.ExecuteActivity(ctx, activities.SubmitResponseName, activities.SubmitResponseInput{
			Report:  report,
			Request: input,
		}), onSubmitted)
	}

	for _, oracle := range oracles {
		pending++
		selector.AddFuture(workflow.ExecuteActivity(ctx, activities.ReportStatusName, activities.ReportStatusInput{
			Oracle:  oracle,
			Request: input,
		}), onReported)
	}

	for pending > 0 && !done {
		selector.Select(ctx)
	}

	logger.Info("Oracle workflow finished",
		"requestKey", input.RequestKey,
		"requestState", state.RequestState,
		"submitted", state.Submitted,
		"rejected", state.Rejected)
	return state, nil
}
