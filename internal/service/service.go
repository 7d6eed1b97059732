package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
)

const DefaultWorkflowTimeout = 10 * time.Minute

// ErrInvalidInput marks request fields that could not be parsed.
var ErrInvalidInput = errors.New("invalid input")

// SuretyService defines the flight surety service interface
type SuretyService interface {
	GetOperatingStatus(ctx context.Context) *models.OperatingStatus
	SetOperatingStatus(ctx context.Context, caller common.Address, operational bool) error
	AuthorizeCaller(ctx context.Context, caller, address common.Address) error
	DeauthorizeCaller(ctx context.Context, caller, address common.Address) error

	GetAirlines(ctx context.Context) []*models.Airline
	GetAirline(ctx context.Context, address common.Address) (*models.Airline, error)
	RegisterAirline(ctx context.Context, caller common.Address, req *models.RegisterAirlineRequest) (*models.RegisterAirlineResponse, error)
	FundAirline(ctx context.Context, caller, address common.Address, req *models.FundAirlineRequest) (*models.Airline, error)

	GetFlights(ctx context.Context) []*models.Flight
	GetFlight(ctx context.Context, key common.Hash) (*models.Flight, error)
	RegisterFlight(ctx context.Context, caller common.Address, req *models.RegisterFlightRequest) (*models.Flight, error)

	BuyInsurance(ctx context.Context, passenger common.Address, key common.Hash, req *models.BuyInsuranceRequest) (*models.Insurance, error)
	Buy(ctx context.Context, passenger common.Address, req *models.BuyInsuranceRequest) (*models.Insurance, error)
	CreditInsurees(ctx context.Context, caller common.Address, key common.Hash) (*models.Flight, error)
	GetBalance(ctx context.Context, passenger common.Address) *models.Balance
	Pay(ctx context.Context, passenger common.Address) (*models.Payout, error)

	RegisterOracle(ctx context.Context, caller common.Address, req *models.RegisterOracleRequest) (*models.Oracle, error)
	GetMyIndexes(ctx context.Context, caller common.Address) (*models.Oracle, error)
	FetchFlightStatus(ctx context.Context, caller common.Address, req *models.FlightStatusRequest) (*models.OracleRequest, error)
	SubmitOracleResponse(ctx context.Context, caller common.Address, req *models.OracleResponseRequest) (*models.OracleRequest, error)
	GetOracleRequest(ctx context.Context, key common.Hash) (*models.OracleRequest, error)
	GetOpenRequests(ctx context.Context) []*models.OracleRequest

	GetNotifications(ctx context.Context, since uint64) []ledger.Notification
}

// SnapshotSaver persists ledger snapshots.
type SnapshotSaver interface {
	Save(st *ledger.State) error
}

type (
	// Service implements SuretyService on top of a ledger. When configured
	// it starts an oracle workflow for every new status request and saves a
	// snapshot after every successful mutation.
	Service struct {
		ledger *ledger.Ledger
		log    zerolog.Logger

		temporal        client.Client
		taskQueue       string
		workflowTimeout time.Duration

		store     SnapshotSaver
		persistMu sync.Mutex
	}

	Option func(*Service)
)

// WithTemporal enables oracle workflows on the given task queue.
func WithTemporal(c client.Client, taskQueue string, timeout time.Duration) Option {
	return func(s *Service) {
		s.temporal = c
		s.taskQueue = taskQueue
		if timeout > 0 {
			s.workflowTimeout = timeout
		}
	}
}

// WithSnapshotStore saves a ledger snapshot after every mutation.
func WithSnapshotStore(store SnapshotSaver) Option {
	return func(s *Service) {
		s.store = store
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewSuretyService creates a new Service backed by l.
func NewSuretyService(l *ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		ledger:          l,
		log:             zerolog.Nop(),
		workflowTimeout: DefaultWorkflowTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// persist saves a snapshot of the ledger. Failures are logged: the ledger
// stays authoritative and the next mutation retries.
func (s *Service) persist() {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	st := s.ledger.Snapshot()
	if err := s.store.Save(st); err != nil {
		s.log.Error().Err(err).Uint64("seq", st.Seq).Msg("failed to save ledger snapshot")
	}
}

func (s *Service) GetOperatingStatus(ctx context.Context) *models.OperatingStatus {
	return &models.OperatingStatus{Operational: s.ledger.IsOperational()}
}

func (s *Service) SetOperatingStatus(ctx context.Context, caller common.Address, operational bool) error {
	if err := s.ledger.SetOperatingStatus(caller, operational); err != nil {
		return err
	}
	s.persist()
	return nil
}

func (s *Service) AuthorizeCaller(ctx context.Context, caller, address common.Address) error {
	if err := s.ledger.AuthorizeCaller(caller, address); err != nil {
		return err
	}
	s.persist()
	return nil
}

func (s *Service) DeauthorizeCaller(ctx context.Context, caller, address common.Address) error {
	if err := s.ledger.DeauthorizeCaller(caller, address); err != nil {
		return err
	}
	s.persist()
	return nil
}

func (s *Service) GetAirlines(ctx context.Context) []*models.Airline {
	airlines := s.ledger.RegisteredAirlines()
	out := make([]*models.Airline, 0, len(airlines))
	for _, a := range airlines {
		out = append(out, toAirline(a, 0))
	}
	return out
}

func (s *Service) GetAirline(ctx context.Context, address common.Address) (*models.Airline, error) {
	a, ok := s.ledger.GetAirline(address)
	if !ok {
		return nil, fmt.Errorf("airline %s: %w", address, ledger.ErrAirlineNotRegistered)
	}
	return toAirline(a, s.ledger.VotesFor(address)), nil
}

func (s *Service) RegisterAirline(ctx context.Context, caller common.Address, req *models.RegisterAirlineRequest) (*models.RegisterAirlineResponse, error) {
	candidate, err := parseAddress("address", req.Address)
	if err != nil {
		return nil, err
	}
	res, err := s.ledger.RegisterAirline(caller, candidate, req.Name)
	if err != nil {
		return nil, err
	}
	s.persist()

	resp := &models.RegisterAirlineResponse{
		Registered: res.Registered,
		Votes:      res.Votes,
		Required:   res.Required,
	}
	if a, ok := s.ledger.GetAirline(candidate); ok {
		resp.Airline = toAirline(a, s.ledger.VotesFor(candidate))
	}
	return resp, nil
}

func (s *Service) FundAirline(ctx context.Context, caller, address common.Address, req *models.FundAirlineRequest) (*models.Airline, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.FundAirline(caller, address, amount); err != nil {
		return nil, err
	}
	s.persist()
	a, _ := s.ledger.GetAirline(address)
	return toAirline(a, 0), nil
}

func (s *Service) GetFlights(ctx context.Context) []*models.Flight {
	keys := s.ledger.RegisteredFlights()
	out := make([]*models.Flight, 0, len(keys))
	for _, k := range keys {
		if f, err := s.ledger.GetFlightData(k); err == nil {
			out = append(out, toFlight(f))
		}
	}
	return out
}

func (s *Service) GetFlight(ctx context.Context, key common.Hash) (*models.Flight, error) {
	f, err := s.ledger.GetFlightData(key)
	if err != nil {
		return nil, err
	}
	return toFlight(f), nil
}

func (s *Service) RegisterFlight(ctx context.Context, caller common.Address, req *models.RegisterFlightRequest) (*models.Flight, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	key, err := s.ledger.RegisterFlight(caller, req.Name, req.Timestamp)
	if err != nil {
		return nil, err
	}
	s.persist()
	return s.GetFlight(ctx, key)
}

func (s *Service) BuyInsurance(ctx context.Context, passenger common.Address, key common.Hash, req *models.BuyInsuranceRequest) (*models.Insurance, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.BuyWithKey(passenger, key, amount); err != nil {
		return nil, err
	}
	s.persist()
	return s.insurance(passenger, key), nil
}

func (s *Service) Buy(ctx context.Context, passenger common.Address, req *models.BuyInsuranceRequest) (*models.Insurance, error) {
	airline, err := parseAddress("airline", req.Airline)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	key, err := s.ledger.Buy(passenger, airline, req.Flight, req.Timestamp, amount)
	if err != nil {
		return nil, err
	}
	s.persist()
	return s.insurance(passenger, key), nil
}

func (s *Service) insurance(passenger common.Address, key common.Hash) *models.Insurance {
	return &models.Insurance{
		FlightKey: key.Hex(),
		Passenger: passenger.Hex(),
		Premium:   ledger.FormatWei(s.ledger.InsuranceOf(passenger, key)),
	}
}

func (s *Service) CreditInsurees(ctx context.Context, caller common.Address, key common.Hash) (*models.Flight, error) {
	if err := s.ledger.CreditInsurees(caller, key); err != nil {
		return nil, err
	}
	s.persist()
	return s.GetFlight(ctx, key)
}

func (s *Service) GetBalance(ctx context.Context, passenger common.Address) *models.Balance {
	return &models.Balance{
		Passenger: passenger.Hex(),
		Balance:   ledger.FormatWei(s.ledger.BalanceOf(passenger)),
	}
}

func (s *Service) Pay(ctx context.Context, passenger common.Address) (*models.Payout, error) {
	amount, err := s.ledger.Pay(passenger)
	if err != nil {
		return nil, err
	}
	s.persist()
	return &models.Payout{Passenger: passenger.Hex(), Amount: ledger.FormatWei(amount)}, nil
}

func (s *Service) RegisterOracle(ctx context.Context, caller common.Address, req *models.RegisterOracleRequest) (*models.Oracle, error) {
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		return nil, err
	}
	indexes, err := s.ledger.RegisterOracle(caller, fee)
	if err != nil {
		return nil, err
	}
	s.persist()
	return toOracle(caller, indexes), nil
}

func (s *Service) GetMyIndexes(ctx context.Context, caller common.Address) (*models.Oracle, error) {
	indexes, err := s.ledger.GetMyIndexes(caller)
	if err != nil {
		return nil, err
	}
	return toOracle(caller, indexes), nil
}

// FetchFlightStatus opens an oracle request and starts its workflow. The
// workflow ID is derived from the request key, so fetching a request that is
// already open reuses the running workflow.
func (s *Service) FetchFlightStatus(ctx context.Context, caller common.Address, req *models.FlightStatusRequest) (*models.OracleRequest, error) {
	airline, err := parseAddress("airline", req.Airline)
	if err != nil {
		return nil, err
	}
	r, err := s.ledger.FetchFlightStatus(caller, airline, req.Flight, req.Timestamp)
	if err != nil {
		return nil, err
	}
	s.persist()

	if s.temporal != nil && r.State == ledger.RequestOpen {
		if err := s.startWorkflow(ctx, r); err != nil {
			// the request stays open for oracles polling the API
			s.log.Error().Err(err).Stringer(logger.RequestKeyKey, r.Key).Msg("failed to start oracle workflow")
		}
	}
	return toOracleRequest(r), nil
}

func (s *Service) startWorkflow(ctx context.Context, r ledger.Request) error {
	input := models.OracleWorkflowInput{
		RequestKey: r.Key.Hex(),
		Index:      int(r.Index),
		Airline:    r.Airline.Hex(),
		Flight:     r.Flight,
		Timestamp:  r.Timestamp,
	}
	workflowOptions := client.StartWorkflowOptions{
		ID:                       models.OracleWorkflowID(input.RequestKey),
		TaskQueue:                s.taskQueue,
		WorkflowExecutionTimeout: s.workflowTimeout,
	}
	if _, err := s.temporal.ExecuteWorkflow(ctx, workflowOptions, models.OracleWorkflowName, input); err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}
	s.log.Info().Str("workflow_id", workflowOptions.ID).Uint8("index", r.Index).Msg("oracle workflow started")
	return nil
}

func (s *Service) SubmitOracleResponse(ctx context.Context, caller common.Address, req *models.OracleResponseRequest) (*models.OracleRequest, error) {
	airline, err := parseAddress("airline", req.Airline)
	if err != nil {
		return nil, err
	}
	if req.Index < 0 || req.Index > 255 {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidInput, req.Index)
	}
	if req.StatusCode < 0 || req.StatusCode > 255 {
		return nil, fmt.Errorf("status code %d: %w", req.StatusCode, ledger.ErrInvalidStatusCode)
	}
	r, err := s.ledger.SubmitOracleResponse(caller, uint8(req.Index), airline, req.Flight, req.Timestamp, ledger.StatusCode(req.StatusCode))
	if err != nil {
		return nil, err
	}
	s.persist()
	return toOracleRequest(r), nil
}

func (s *Service) GetOracleRequest(ctx context.Context, key common.Hash) (*models.OracleRequest, error) {
	r, err := s.ledger.Request(key)
	if err != nil {
		return nil, err
	}
	return toOracleRequest(r), nil
}

func (s *Service) GetOpenRequests(ctx context.Context) []*models.OracleRequest {
	reqs := s.ledger.OpenRequests()
	out := make([]*models.OracleRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toOracleRequest(r))
	}
	return out
}

func (s *Service) GetNotifications(ctx context.Context, since uint64) []ledger.Notification {
	return s.ledger.Notifications(since)
}

func parseAddress(field, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s must be a hex address", ErrInvalidInput, field)
	}
	return common.HexToAddress(v), nil
}

func parseAmount(field, v string) (*uint256.Int, error) {
	amount, err := ledger.ParseWei(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
	}
	return amount, nil
}

func toAirline(a ledger.Airline, votes int) *models.Airline {
	return &models.Airline{
		Address:      a.Address.Hex(),
		Name:         a.Name,
		State:        a.State.String(),
		Registered:   a.State == ledger.AirlineRegistered,
		Funded:       a.Funded,
		FundedAmount: ledger.FormatWei(a.Amount),
		Votes:        votes,
	}
}

func toFlight(f ledger.Flight) *models.Flight {
	return &models.Flight{
		Key:        f.Key.Hex(),
		Airline:    f.Airline.Hex(),
		Name:       f.Name,
		Timestamp:  f.Timestamp,
		StatusCode: int(f.Status),
		Status:     f.Status.String(),
		Resolved:   f.Resolved,
		Credited:   f.Credited,
		UpdatedAt:  f.Updated,
	}
}

func toOracle(address common.Address, indexes ledger.Indexes) *models.Oracle {
	out := &models.Oracle{Address: address.Hex(), Indexes: make([]int, 0, len(indexes))}
	for _, idx := range indexes {
		out.Indexes = append(out.Indexes, int(idx))
	}
	return out
}

func toOracleRequest(r ledger.Request) *models.OracleRequest {
	out := &models.OracleRequest{
		Key:        r.Key.Hex(),
		Index:      int(r.Index),
		Airline:    r.Airline.Hex(),
		Flight:     r.Flight,
		Timestamp:  r.Timestamp,
		FlightKey:  r.FlightKey.Hex(),
		Requester:  r.Requester.Hex(),
		State:      r.State.String(),
		StatusCode: int(r.Outcome),
		Responses:  make(map[string]int, len(r.Responses)),
		OpenedAt:   r.Opened,
	}
	for code, n := range r.Responses {
		out.Responses[strconv.Itoa(int(code))] = n
	}
	return out
}
