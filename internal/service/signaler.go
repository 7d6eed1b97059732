package service

import (
	"context"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
)

const signalQueueSize = 256

// WorkflowSignaler is a ledger.Notifier that tells oracle workflows their
// request has been resolved or superseded, so they stop reporting early.
type WorkflowSignaler struct {
	temporal client.Client
	queue    chan ledger.StatusResolved
	log      zerolog.Logger
}

func NewWorkflowSignaler(c client.Client, log zerolog.Logger) *WorkflowSignaler {
	return &WorkflowSignaler{
		temporal: c,
		queue:    make(chan ledger.StatusResolved, signalQueueSize),
		log:      log,
	}
}

func (s *WorkflowSignaler) Notify(n ledger.Notification) {
	if n.Type != ledger.NotificationStatusResolved {
		return
	}
	data, ok := n.Data.(ledger.StatusResolved)
	if !ok {
		return
	}
	select {
	case s.queue <- data:
	default:
		s.log.Warn().Stringer(logger.RequestKeyKey, data.RequestKey).Msg("signal queue full, workflow will stop on its own")
	}
}

// Run signals oracle workflows about resolved requests until ctx is done.
func (s *WorkflowSignaler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-s.queue:
			s.signal(ctx, r)
		}
	}
}

func (s *WorkflowSignaler) signal(ctx context.Context, r ledger.StatusResolved) {
	s.send(ctx, r.RequestKey, models.RequestResolvedSignal{
		RequestState: models.RequestStateResolved,
		StatusCode:   int(r.Status),
	})
	for _, key := range r.Superseded {
		s.send(ctx, key, models.RequestResolvedSignal{
			RequestState: models.RequestStateSuperseded,
			StatusCode:   int(r.Status),
		})
	}
}

func (s *WorkflowSignaler) send(ctx context.Context, key common.Hash, signal models.RequestResolvedSignal) {
	workflowID := models.OracleWorkflowID(key.Hex())
	if err := s.temporal.SignalWorkflow(ctx, workflowID, "", models.SignalRequestResolved, signal); err != nil {
		// the workflow may already have finished
		s.log.Debug().Err(err).Str("workflow_id", workflowID).Msg("failed to signal oracle workflow")
		return
	}
	s.log.Debug().Str("workflow_id", workflowID).Str("state", signal.RequestState).Msg("oracle workflow signaled")
}
