package models

import "time"

// OracleWorkflowName is the registered name of the oracle request workflow
const OracleWorkflowName = "OracleRequestWorkflow"

// OracleWorkflowInput represents input for the oracle request workflow
type OracleWorkflowInput struct {
	RequestKey string `json:"requestKey"`
	Index      int    `json:"index"`
	Airline    string `json:"airline"`
	Flight     string `json:"flight"`
	Timestamp  uint64 `json:"timestamp"`
}

// OracleWorkflowState represents the current state of the oracle workflow
type OracleWorkflowState struct {
	RequestKey   string    `json:"requestKey"`
	RequestState string    `json:"requestState"`
	Oracles      int       `json:"oracles"`
	Submitted    int       `json:"submitted"`
	Rejected     int       `json:"rejected"`
	StatusCode   int       `json:"statusCode"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Signals for workflow communication
const (
	SignalRequestResolved = "request_resolved"
)

// RequestResolvedSignal is sent by the server when the request reached quorum,
// or was superseded by another request for the same flight
type RequestResolvedSignal struct {
	RequestState string `json:"requestState"`
	StatusCode   int    `json:"statusCode"`
}

// Queries for workflow state
const (
	QueryGetState = "get_state"
)

// OracleWorkflowID is the deterministic workflow ID of an oracle request
func OracleWorkflowID(requestKey string) string {
	return "oracle-request-" + requestKey
}

// Activity results
type OracleReport struct {
	Oracle     string `json:"oracle"`
	Index      int    `json:"index"`
	StatusCode int    `json:"statusCode"`
}

type SubmitResponseResult struct {
	Accepted     bool   `json:"accepted"`
	RequestState string `json:"requestState"`
	StatusCode   int    `json:"statusCode"`
	Error        string `json:"error,omitempty"`
}
