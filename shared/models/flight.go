package models

import "time"

// Flight represents a registered flight and its oracle-resolved status
type Flight struct {
	Key        string    `json:"key"`
	Airline    string    `json:"airline"`
	Name       string    `json:"name"`
	Timestamp  uint64    `json:"timestamp"`
	StatusCode int       `json:"statusCode"`
	Status     string    `json:"status"`
	Resolved   bool      `json:"resolved"`
	Credited   bool      `json:"credited"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Airline represents a member (or applicant) of the airline federation
type Airline struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	State        string `json:"state"`
	Registered   bool   `json:"registered"`
	Funded       bool   `json:"funded"`
	FundedAmount string `json:"fundedAmount"`
	Votes        int    `json:"votes,omitempty"`
}

// RegisterAirlineRequest represents a request to admit or vote for an airline
type RegisterAirlineRequest struct {
	Address string `json:"address" validate:"required"`
	Name    string `json:"name"`
}

// RegisterAirlineResponse reports whether the candidate was admitted
type RegisterAirlineResponse struct {
	Airline    *Airline `json:"airline"`
	Registered bool     `json:"registered"`
	Votes      int      `json:"votes"`
	Required   int      `json:"required"`
}

// FundAirlineRequest represents an airline's stake deposit
type FundAirlineRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// RegisterFlightRequest represents a flight registration by an airline
type RegisterFlightRequest struct {
	Name      string `json:"name" validate:"required"`
	Timestamp uint64 `json:"timestamp" validate:"required"`
}

// FlightStatusRequest identifies a flight whose status should be fetched
type FlightStatusRequest struct {
	Airline   string `json:"airline" validate:"required"`
	Flight    string `json:"flight" validate:"required"`
	Timestamp uint64 `json:"timestamp" validate:"required"`
}

// OperatingStatus represents the operational gate
type OperatingStatus struct {
	Operational bool `json:"operational"`
}

// AuthorizeCallerRequest adds an address to the callers allowed to credit insurees
type AuthorizeCallerRequest struct {
	Address string `json:"address" validate:"required"`
}
