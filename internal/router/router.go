package router

import (
	"fmt"
	"net/http"

	"github.com/cx-tal-miterani/flight-surety/internal/handlers"
	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/cx-tal-miterani/flight-surety/internal/websocket"
	"github.com/google/uuid"
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// Flight and request keys are 32 byte hashes, which keeps them apart from the
// fixed segments under /flights and /oracles/requests.
const keyPattern = "{key:0x[0-9a-fA-F]{64}}"

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *handlers.Handler, hub *websocket.Hub, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(requestLogger(log))
	r.Use(gorillahandlers.RecoveryHandler(gorillahandlers.RecoveryLogger(recoveryLogger{log: log})))
	r.Use(gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", handlers.CallerHeader, RequestIDHeader}),
		gorillahandlers.ExposedHeaders([]string{RequestIDHeader}),
	))

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Operational gate and authorized callers
	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/status", h.SetStatus).Methods(http.MethodPut)
	api.HandleFunc("/authorized-callers", h.AuthorizeCaller).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/authorized-callers/{address}", h.DeauthorizeCaller).Methods(http.MethodDelete, http.MethodOptions)

	// Airlines
	api.HandleFunc("/airlines", h.GetAirlines).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/airlines", h.RegisterAirline).Methods(http.MethodPost)
	api.HandleFunc("/airlines/{address}", h.GetAirline).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/airlines/{address}/fund", h.FundAirline).Methods(http.MethodPost, http.MethodOptions)

	// Flights and insurance
	api.HandleFunc("/flights", h.GetFlights).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights", h.RegisterFlight).Methods(http.MethodPost)
	api.HandleFunc("/flights/status-requests", h.FetchFlightStatus).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/flights/"+keyPattern, h.GetFlight).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/"+keyPattern+"/insurance", h.BuyInsuranceForFlight).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/flights/"+keyPattern+"/credit", h.CreditInsurees).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/insurance", h.BuyInsurance).Methods(http.MethodPost, http.MethodOptions)

	// Oracles
	api.HandleFunc("/oracles", h.RegisterOracle).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/oracles/me", h.GetMyIndexes).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/oracles/responses", h.SubmitOracleResponse).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/oracles/requests", h.GetOpenRequests).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/oracles/requests/"+keyPattern, h.GetOracleRequest).Methods(http.MethodGet, http.MethodOptions)

	// Passengers
	api.HandleFunc("/passengers/{address}/balance", h.GetBalance).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/passengers/{address}/pay", h.Pay).Methods(http.MethodPost, http.MethodOptions)

	// Notification log and real-time feed
	api.HandleFunc("/notifications", h.GetNotifications).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/ws", hub.ServeWS)

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
}

// RegisterJournalRoutes adds the notification journal routes to a router
// created by SetupRouter.
func RegisterJournalRoutes(r *mux.Router, jh *handlers.JournalHandler) {
	api := r.PathPrefix("/api/journal").Subrouter()
	api.HandleFunc("", jh.ListJournal).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{id}", jh.GetJournalEntry).Methods(http.MethodGet, http.MethodOptions)
}

// requestLogger tags every request with an ID and stores a logger carrying
// it in the request context.
func requestLogger(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			l := log.With().Str(logger.RequestIDKey, id).Logger()
			l.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

type recoveryLogger struct {
	log zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(v...))
}
