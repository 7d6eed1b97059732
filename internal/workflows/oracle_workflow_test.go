package workflows

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/activities"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type OracleWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *OracleWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()

	var acts *activities.Activities
	s.env.RegisterActivityWithOptions(acts.OraclesForRequest, activity.RegisterOptions{Name: activities.OraclesForRequestName})
	s.env.RegisterActivityWithOptions(acts.ReportStatus, activity.RegisterOptions{Name: activities.ReportStatusName})
	s.env.RegisterActivityWithOptions(acts.SubmitResponse, activity.RegisterOptions{Name: activities.SubmitResponseName})
}

func (s *OracleWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func TestOracleWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(OracleWorkflowTestSuite))
}

var input = models.OracleWorkflowInput{
	RequestKey: "0x01",
	Index:      4,
	Airline:    "0x00000000000000000000000000000000000000a1",
	Flight:     "ND1309",
	Timestamp:  1709294400,
}

func report(_ context.Context, in activities.ReportStatusInput) (*models.OracleReport, error) {
	return &models.OracleReport{Oracle: in.Oracle, Index: in.Request.Index, StatusCode: 20}, nil
}

func (s *OracleWorkflowTestSuite) result() *models.OracleWorkflowState {
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var state models.OracleWorkflowState
	s.Require().NoError(s.env.GetWorkflowResult(&state))
	return &state
}

func (s *OracleWorkflowTestSuite) TestWorkflow_StopsWhenRequestResolves() {
	s.env.OnActivity(activities.OraclesForRequestName, mock.Anything, activities.OraclesForRequestInput{RequestKey: "0x01", Index: 4}).
		Return([]string{"0xb0", "0xb1", "0xb2"}, nil)
	s.env.OnActivity(activities.ReportStatusName, mock.Anything, mock.Anything).Return(report)

	var calls int32
	s.env.OnActivity(activities.SubmitResponseName, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.SubmitResponseInput) (*models.SubmitResponseResult, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return &models.SubmitResponseResult{Accepted: true, RequestState: models.RequestStateOpen}, nil
			}
			return &models.SubmitResponseResult{Accepted: true, RequestState: models.RequestStateResolved, StatusCode: 20}, nil
		})

	s.env.ExecuteWorkflow(OracleRequestWorkflow, input)

	state := s.result()
	s.Equal(3, state.Oracles)
	s.Equal(3, state.Submitted)
	s.Equal(models.RequestStateResolved, state.RequestState)
	s.Equal(20, state.StatusCode)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_NoOracles() {
	s.env.OnActivity(activities.OraclesForRequestName, mock.Anything, mock.Anything).Return([]string{}, nil)

	s.env.ExecuteWorkflow(OracleRequestWorkflow, input)

	state := s.result()
	s.Equal(0, state.Oracles)
	s.Equal(models.RequestStateOpen, state.RequestState)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_RejectionsAreCounted() {
	s.env.OnActivity(activities.OraclesForRequestName, mock.Anything, mock.Anything).Return([]string{"0xb0", "0xb1"}, nil)
	s.env.OnActivity(activities.ReportStatusName, mock.Anything, mock.Anything).Return(report)
	s.env.OnActivity(activities.SubmitResponseName, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("oracle already responded to request", activities.ErrTypeRejected, nil)).
		Times(2)

	s.env.ExecuteWorkflow(OracleRequestWorkflow, input)

	state := s.result()
	s.Equal(2, state.Rejected)
	s.Equal(0, state.Submitted)
	s.Equal(models.RequestStateOpen, state.RequestState)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_RetriesTransportFailures() {
	s.env.OnActivity(activities.OraclesForRequestName, mock.Anything, mock.Anything).Return([]string{"0xb0"}, nil)
	s.env.OnActivity(activities.ReportStatusName, mock.Anything, mock.Anything).Return(report)

	var calls int32
	s.env.OnActivity(activities.SubmitResponseName, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.SubmitResponseInput) (*models.SubmitResponseResult, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, errors.New("connection refused")
			}
			return &models.SubmitResponseResult{Accepted: true, RequestState: models.RequestStateOpen}, nil
		})

	s.env.ExecuteWorkflow(OracleRequestWorkflow, input)

	state := s.result()
	s.Equal(1, state.Submitted)
	s.Equal(0, state.Rejected)
	s.Equal(int32(2), atomic.LoadInt32(&calls))
}

func (s *OracleWorkflowTestSuite) TestWorkflow_ResolvedSignalStopsEarly() {
	s.env.OnActivity(activities.OraclesForRequestName, mock.Anything, mock.Anything).Return([]string{"0xb0", "0xb1"}, nil)
	s.env.OnActivity(activities.ReportStatusName, mock.Anything, mock.Anything).Return(report).After(time.Minute).Maybe()
	s.env.OnActivity(activities.SubmitResponseName, mock.Anything, mock.Anything).
		Return(&models.SubmitResponseResult{Accepted: true, RequestState: models.RequestStateOpen}, nil).Maybe()

	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(models.QueryGetState)
		s.Require().NoError(err)
		var state models.OracleWorkflowState
		s.Require().NoError(val.Get(&state))
		s.Equal(2, state.Oracles)
		s.Equal(models.RequestStateOpen, state.RequestState)

		s.env.SignalWorkflow(models.SignalRequestResolved, models.RequestResolvedSignal{StatusCode: 10})
	}, time.Second)

	s.env.ExecuteWorkflow(OracleRequestWorkflow, input)

	state := s.result()
	s.Equal(models.RequestStateResolved, state.RequestState)
	s.Equal(10, state.StatusCode)
	s.Equal(0, state.Submitted)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_SupersededSignalStopsEarly() {
	s.env.OnActivity(activities.OraclesForRequestName, mock.Anything, mock.Anything).Return([]string{"0xb0"}, nil)
	s.env.OnActivity(activities.ReportStatusName, mock.Anything, mock.Anything).Return(report).After(time.Minute).Maybe()
	s.env.OnActivity(activities.SubmitResponseName, mock.Anything, mock.Anything).
		Return(&models.SubmitResponseResult{Accepted: true, RequestState: models.RequestStateOpen}, nil).Maybe()

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(models.SignalRequestResolved, models.RequestResolvedSignal{
			RequestState: models.RequestStateSuperseded,
			StatusCode:   20,
		})
	}, time.Second)

	s.env.ExecuteWorkflow(OracleRequestWorkflow, input)

	state := s.result()
	s.Equal(models.RequestStateSuperseded, state.RequestState)
	s.Equal(0, state.Submitted)
}
