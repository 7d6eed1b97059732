package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/service"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// CallerHeader carries the hex address of the account issuing a request.
const CallerHeader = "X-Caller"

var (
	errMissingCaller = errors.New(CallerHeader + " header must be a hex address")
	errBadAddress    = errors.New("address must be a hex address")
	errBadKey        = errors.New("key must be a 32 byte hex hash")
)

// Handler contains HTTP handlers for the API
type Handler struct {
	suretyService service.SuretyService
}

// NewHandler creates a new Handler instance
func NewHandler(suretyService service.SuretyService) *Handler {
	return &Handler{
		suretyService: suretyService,
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service or ledger error onto an HTTP status.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	switch ledger.KindOf(err) {
	case ledger.KindAuthorization:
		return http.StatusForbidden
	case ledger.KindState, ledger.KindDuplicate:
		return http.StatusConflict
	case ledger.KindBounds:
		return http.StatusUnprocessableEntity
	case ledger.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func callerOf(r *http.Request) (common.Address, error) {
	v := r.Header.Get(CallerHeader)
	if !common.IsHexAddress(v) {
		return common.Address{}, errMissingCaller
	}
	return common.HexToAddress(v), nil
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	v := mux.Vars(r)[name]
	if !common.IsHexAddress(v) {
		return common.Address{}, errBadAddress
	}
	return common.HexToAddress(v), nil
}

func keyParam(r *http.Request) (common.Hash, error) {
	b := common.FromHex(mux.Vars(r)["key"])
	if len(b) != common.HashLength {
		return common.Hash{}, errBadKey
	}
	return common.BytesToHash(b), nil
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// GetStatus handles GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suretyService.GetOperatingStatus(r.Context()))
}

// SetStatus handles PUT /api/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.OperatingStatus
	if !decode(w, r, &req) {
		return
	}
	if err := h.suretyService.SetOperatingStatus(r.Context(), caller, req.Operational); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.suretyService.GetOperatingStatus(r.Context()))
}

// AuthorizeCaller handles POST /api/authorized-callers
func (h *Handler) AuthorizeCaller(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.AuthorizeCallerRequest
	if !decode(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, errBadAddress.Error())
		return
	}
	if err := h.suretyService.AuthorizeCaller(r.Context(), caller, common.HexToAddress(req.Address)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Caller authorized"})
}

// DeauthorizeCaller handles DELETE /api/authorized-callers/{address}
func (h *Handler) DeauthorizeCaller(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	address, err := addressParam(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.suretyService.DeauthorizeCaller(r.Context(), caller, address); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Caller deauthorized"})
}

// GetAirlines handles GET /api/airlines
func (h *Handler) GetAirlines(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suretyService.GetAirlines(r.Context()))
}

// GetAirline handles GET /api/airlines/{address}
func (h *Handler) GetAirline(w http.ResponseWriter, r *http.Request) {
	address, err := addressParam(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	airline, err := h.suretyService.GetAirline(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, airline)
}

// RegisterAirline handles POST /api/airlines. The response is 201 when the
// candidate was admitted and 202 when only a vote was recorded.
func (h *Handler) RegisterAirline(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.RegisterAirlineRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		respondError(w, http.StatusBadRequest, "Airline address is required")
		return
	}
	resp, err := h.suretyService.RegisterAirline(r.Context(), caller, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if resp.Registered {
		status = http.StatusCreated
	}
	respondJSON(w, status, resp)
}

// FundAirline handles POST /api/airlines/{address}/fund
func (h *Handler) FundAirline(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	address, err := addressParam(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.FundAirlineRequest
	if !decode(w, r, &req) {
		return
	}
	airline, err := h.suretyService.FundAirline(r.Context(), caller, address, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, airline)
}

// GetFlights handles GET /api/flights
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suretyService.GetFlights(r.Context()))
}

// GetFlight handles GET /api/flights/{key}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	flight, err := h.suretyService.GetFlight(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// RegisterFlight handles POST /api/flights
func (h *Handler) RegisterFlight(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.RegisterFlightRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Flight name is required")
		return
	}
	flight, err := h.suretyService.RegisterFlight(r.Context(), caller, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, flight)
}

// BuyInsuranceForFlight handles POST /api/flights/{key}/insurance
func (h *Handler) BuyInsuranceForFlight(w http.ResponseWriter, r *http.Request) {
	passenger, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := keyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.BuyInsuranceRequest
	if !decode(w, r, &req) {
		return
	}
	ins, err := h.suretyService.BuyInsurance(r.Context(), passenger, key, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ins)
}

// BuyInsurance handles POST /api/insurance
func (h *Handler) BuyInsurance(w http.ResponseWriter, r *http.Request) {
	passenger, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.BuyInsuranceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Airline == "" || req.Flight == "" {
		respondError(w, http.StatusBadRequest, "Airline and flight are required")
		return
	}
	ins, err := h.suretyService.Buy(r.Context(), passenger, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ins)
}

// CreditInsurees handles POST /api/flights/{key}/credit
func (h *Handler) CreditInsurees(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := keyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	flight, err := h.suretyService.CreditInsurees(r.Context(), caller, key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// FetchFlightStatus handles POST /api/flights/status-requests
func (h *Handler) FetchFlightStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.FlightStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Airline == "" || req.Flight == "" {
		respondError(w, http.StatusBadRequest, "Airline and flight are required")
		return
	}
	oracleReq, err := h.suretyService.FetchFlightStatus(r.Context(), caller, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, oracleReq)
}

// RegisterOracle handles POST /api/oracles
func (h *Handler) RegisterOracle(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.RegisterOracleRequest
	if !decode(w, r, &req) {
		return
	}
	oracle, err := h.suretyService.RegisterOracle(r.Context(), caller, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, oracle)
}

// GetMyIndexes handles GET /api/oracles/me
func (h *Handler) GetMyIndexes(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	oracle, err := h.suretyService.GetMyIndexes(r.Context(), caller)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, oracle)
}

// SubmitOracleResponse handles POST /api/oracles/responses
func (h *Handler) SubmitOracleResponse(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.OracleResponseRequest
	if !decode(w, r, &req) {
		return
	}
	oracleReq, err := h.suretyService.SubmitOracleResponse(r.Context(), caller, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, oracleReq)
}

// GetOpenRequests handles GET /api/oracles/requests
func (h *Handler) GetOpenRequests(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suretyService.GetOpenRequests(r.Context()))
}

// GetOracleRequest handles GET /api/oracles/requests/{key}
func (h *Handler) GetOracleRequest(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	oracleReq, err := h.suretyService.GetOracleRequest(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, oracleReq)
}

// GetBalance handles GET /api/passengers/{address}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	passenger, err := addressParam(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.suretyService.GetBalance(r.Context(), passenger))
}

// Pay handles POST /api/passengers/{address}/pay. Only the passenger may
// withdraw its own balance.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passenger, err := addressParam(r, "address")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if caller != passenger {
		respondError(w, http.StatusForbidden, ledger.ErrUnauthorized.Error())
		return
	}
	payout, err := h.suretyService.Pay(r.Context(), passenger)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payout)
}

// GetNotifications handles GET /api/notifications?since=<seq>
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be a sequence number")
			return
		}
		since = n
	}
	notes := h.suretyService.GetNotifications(r.Context(), since)
	if notes == nil {
		notes = []ledger.Notification{}
	}
	respondJSON(w, http.StatusOK, notes)
}
