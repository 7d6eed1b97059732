package ledger

import "errors"

// Kind classifies ledger errors so that callers can map them onto their own
// error surfaces (HTTP status codes, workflow retry decisions).
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindState
	KindDuplicate
	KindBounds
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindDuplicate:
		return "duplicate"
	case KindBounds:
		return "bounds"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

var (
	// authorization
	ErrUnauthorized           = errors.New("caller is not authorized")
	ErrAirlineNotActive       = errors.New("airline is not active")
	ErrAirlineNotRegistered   = errors.New("airline is not registered")
	ErrOracleNotAssignedIndex = errors.New("oracle is not assigned the requested index")

	// state
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNotOperational     = errors.New("ledger is not operational")
	ErrRequestNotOpen     = errors.New("no matching oracle request")
	ErrAlreadyCredited    = errors.New("insurees already credited for flight")
	ErrFlightResolved     = errors.New("flight status already resolved")
	ErrIndexAssignment    = errors.New("unable to assign distinct oracle indexes")

	// duplicate
	ErrDuplicateVote     = errors.New("airline already voted for candidate")
	ErrDuplicateFlight   = errors.New("flight already registered")
	ErrDuplicateResponse = errors.New("oracle already responded to request")
	ErrAlreadyRegistered = errors.New("already registered")

	// bounds
	ErrInsufficientFunds = errors.New("funding below minimum stake")
	ErrInsufficientFee   = errors.New("oracle registration fee below minimum")
	ErrPremiumTooHigh    = errors.New("premium exceeds maximum")
	ErrZeroAmount        = errors.New("amount must be positive")
	ErrZeroAddress       = errors.New("address must not be zero")
	ErrInvalidStatusCode = errors.New("invalid flight status code")
	ErrPoolInsolvent     = errors.New("insurance pool cannot cover credit")

	// not found
	ErrUnknownFlight       = errors.New("unknown flight")
	ErrUnregisteredFlight  = errors.New("flight is not registered")
	ErrNoBalance           = errors.New("no payout balance")
	ErrOracleNotRegistered = errors.New("oracle is not registered")
	ErrUnknownRequest      = errors.New("unknown oracle request")
)

var errorKinds = map[error]Kind{
	ErrUnauthorized:           KindAuthorization,
	ErrAirlineNotActive:       KindAuthorization,
	ErrAirlineNotRegistered:   KindAuthorization,
	ErrOracleNotAssignedIndex: KindAuthorization,

	ErrAlreadyInitialized: KindState,
	ErrNotOperational:     KindState,
	ErrRequestNotOpen:     KindState,
	ErrAlreadyCredited:    KindState,
	ErrFlightResolved:     KindState,
	ErrIndexAssignment:    KindState,

	ErrDuplicateVote:     KindDuplicate,
	ErrDuplicateFlight:   KindDuplicate,
	ErrDuplicateResponse: KindDuplicate,
	ErrAlreadyRegistered: KindDuplicate,

	ErrInsufficientFunds: KindBounds,
	ErrInsufficientFee:   KindBounds,
	ErrPremiumTooHigh:    KindBounds,
	ErrZeroAmount:        KindBounds,
	ErrZeroAddress:       KindBounds,
	ErrInvalidStatusCode: KindBounds,
	ErrPoolInsolvent:     KindBounds,

	ErrUnknownFlight:       KindNotFound,
	ErrUnregisteredFlight:  KindNotFound,
	ErrNoBalance:           KindNotFound,
	ErrOracleNotRegistered: KindNotFound,
	ErrUnknownRequest:      KindNotFound,
}

// KindOf returns the classification of err, or KindUnknown when err does not
// wrap one of the ledger's sentinel errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
