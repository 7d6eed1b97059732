package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cx-tal-miterani/flight-surety/internal/handlers"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/service/mocks"
	"github.com/cx-tal-miterani/flight-surety/internal/websocket"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestRouter(t *testing.T, svc *mocks.MockSuretyService) http.Handler {
	t.Helper()
	hub := websocket.NewHub(zerolog.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return SetupRouter(handlers.NewHandler(svc), hub, zerolog.Nop())
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, new(mocks.MockSuretyService))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestRouter_KeepsValidRequestID(t *testing.T) {
	r := newTestRouter(t, new(mocks.MockSuretyService))
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, new(mocks.MockSuretyService))

	req := httptest.NewRequest(http.MethodOptions, "/api/flights", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", handlers.CallerHeader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_FlightRoutes(t *testing.T) {
	svc := new(mocks.MockSuretyService)
	key := ledger.FlightKey(common.HexToAddress("0xa1"), "ND1309", 1709294400)
	svc.On("GetFlight", mock.Anything, key).Return(&models.Flight{Key: key.Hex()}, nil)
	svc.On("GetOpenRequests", mock.Anything).Return([]*models.OracleRequest{})
	r := newTestRouter(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/"+key.Hex(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/oracles/requests", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// not a key, so no flight route matches
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/ND1309", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	svc := new(mocks.MockSuretyService)
	svc.On("GetFlights", mock.Anything).Panic("boom")
	r := newTestRouter(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_WebSocketRejectsBadFlight(t *testing.T) {
	r := newTestRouter(t, new(mocks.MockSuretyService))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ws?flight=0x12", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
