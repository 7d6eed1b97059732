package models

import "time"

// Oracle represents a registered oracle and its assigned indexes
type Oracle struct {
	Address string `json:"address"`
	Indexes []int  `json:"indexes"`
}

// RegisterOracleRequest carries the registration fee
type RegisterOracleRequest struct {
	Fee string `json:"fee" validate:"required"`
}

// OracleResponseRequest is an oracle's status report for an open request
type OracleResponseRequest struct {
	Index      int    `json:"index"`
	Airline    string `json:"airline" validate:"required"`
	Flight     string `json:"flight" validate:"required"`
	Timestamp  uint64 `json:"timestamp" validate:"required"`
	StatusCode int    `json:"statusCode"`
}

// OracleRequest represents a status request opened for oracles holding Index
type OracleRequest struct {
	Key        string         `json:"key"`
	Index      int            `json:"index"`
	Airline    string         `json:"airline"`
	Flight     string         `json:"flight"`
	Timestamp  uint64         `json:"timestamp"`
	FlightKey  string         `json:"flightKey"`
	Requester  string         `json:"requester"`
	State      string         `json:"state"`
	StatusCode int            `json:"statusCode"`
	Responses  map[string]int `json:"responses"`
	OpenedAt   time.Time      `json:"openedAt"`
}

const (
	RequestStateOpen       = "open"
	RequestStateResolved   = "resolved"
	RequestStateSuperseded = "superseded"
)
