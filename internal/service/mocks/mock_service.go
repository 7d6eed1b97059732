package mocks

import (
	"context"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockSuretyService is a mock implementation of SuretyService
type MockSuretyService struct {
	mock.Mock
}

func (m *MockSuretyService) GetOperatingStatus(ctx context.Context) *models.OperatingStatus {
	args := m.Called(ctx)
	return args.Get(0).(*models.OperatingStatus)
}

func (m *MockSuretyService) SetOperatingStatus(ctx context.Context, caller common.Address, operational bool) error {
	args := m.Called(ctx, caller, operational)
	return args.Error(0)
}

func (m *MockSuretyService) AuthorizeCaller(ctx context.Context, caller, address common.Address) error {
	args := m.Called(ctx, caller, address)
	return args.Error(0)
}

func (m *MockSuretyService) DeauthorizeCaller(ctx context.Context, caller, address common.Address) error {
	args := m.Called(ctx, caller, address)
	return args.Error(0)
}

func (m *MockSuretyService) GetAirlines(ctx context.Context) []*models.Airline {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*models.Airline)
}

func (m *MockSuretyService) GetAirline(ctx context.Context, address common.Address) (*models.Airline, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Airline), args.Error(1)
}

func (m *MockSuretyService) RegisterAirline(ctx context.Context, caller common.Address, req *models.RegisterAirlineRequest) (*models.RegisterAirlineResponse, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegisterAirlineResponse), args.Error(1)
}

func (m *MockSuretyService) FundAirline(ctx context.Context, caller, address common.Address, req *models.FundAirlineRequest) (*models.Airline, error) {
	args := m.Called(ctx, caller, address, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Airline), args.Error(1)
}

func (m *MockSuretyService) GetFlights(ctx context.Context) []*models.Flight {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*models.Flight)
}

func (m *MockSuretyService) GetFlight(ctx context.Context, key common.Hash) (*models.Flight, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockSuretyService) RegisterFlight(ctx context.Context, caller common.Address, req *models.RegisterFlightRequest) (*models.Flight, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockSuretyService) BuyInsurance(ctx context.Context, passenger common.Address, key common.Hash, req *models.BuyInsuranceRequest) (*models.Insurance, error) {
	args := m.Called(ctx, passenger, key, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Insurance), args.Error(1)
}

func (m *MockSuretyService) Buy(ctx context.Context, passenger common.Address, req *models.BuyInsuranceRequest) (*models.Insurance, error) {
	args := m.Called(ctx, passenger, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Insurance), args.Error(1)
}

func (m *MockSuretyService) CreditInsurees(ctx context.Context, caller common.Address, key common.Hash) (*models.Flight, error) {
	args := m.Called(ctx, caller, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockSuretyService) GetBalance(ctx context.Context, passenger common.Address) *models.Balance {
	args := m.Called(ctx, passenger)
	return args.Get(0).(*models.Balance)
}

func (m *MockSuretyService) Pay(ctx context.Context, passenger common.Address) (*models.Payout, error) {
	args := m.Called(ctx, passenger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payout), args.Error(1)
}

func (m *MockSuretyService) RegisterOracle(ctx context.Context, caller common.Address, req *models.RegisterOracleRequest) (*models.Oracle, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Oracle), args.Error(1)
}

func (m *MockSuretyService) GetMyIndexes(ctx context.Context, caller common.Address) (*models.Oracle, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Oracle), args.Error(1)
}

func (m *MockSuretyService) FetchFlightStatus(ctx context.Context, caller common.Address, req *models.FlightStatusRequest) (*models.OracleRequest, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OracleRequest), args.Error(1)
}

func (m *MockSuretyService) SubmitOracleResponse(ctx context.Context, caller common.Address, req *models.OracleResponseRequest) (*models.OracleRequest, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OracleRequest), args.Error(1)
}

func (m *MockSuretyService) GetOracleRequest(ctx context.Context, key common.Hash) (*models.OracleRequest, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OracleRequest), args.Error(1)
}

func (m *MockSuretyService) GetOpenRequests(ctx context.Context) []*models.OracleRequest {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*models.OracleRequest)
}

func (m *MockSuretyService) GetNotifications(ctx context.Context, since uint64) []ledger.Notification {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]ledger.Notification)
}
