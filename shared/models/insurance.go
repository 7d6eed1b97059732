package models

// BuyInsuranceRequest represents a premium payment for a flight. The flight is
// identified either by the path key or by airline, flight and timestamp.
type BuyInsuranceRequest struct {
	Airline   string `json:"airline,omitempty"`
	Flight    string `json:"flight,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
	Amount    string `json:"amount" validate:"required"`
}

// Insurance represents the escrowed premium of a passenger on a flight
type Insurance struct {
	FlightKey string `json:"flightKey"`
	Passenger string `json:"passenger"`
	Premium   string `json:"premium"`
}

// Balance represents the withdrawable payout of a passenger
type Balance struct {
	Passenger string `json:"passenger"`
	Balance   string `json:"balance"`
}

// Payout represents a completed withdrawal
type Payout struct {
	Passenger string `json:"passenger"`
	Amount    string `json:"amount"`
}
