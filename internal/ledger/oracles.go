package ledger

import (
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// maxIndexDraws bounds the attempts to draw IndexesPerOracle distinct indexes.
const maxIndexDraws = 64

// Indexes is the fixed-size index set of an oracle.
type Indexes [IndexesPerOracle]uint8

// Contains reports whether idx is one of the indexes.
func (ix Indexes) Contains(idx uint8) bool {
	for _, v := range ix {
		if v == idx {
			return true
		}
	}
	return false
}

// RequestState is the lifecycle state of an oracle request.
type RequestState uint8

const (
	RequestOpen RequestState = iota
	RequestResolved
	// RequestSuperseded marks an open request whose flight was resolved by a
	// sibling request with a different index.
	RequestSuperseded
)

func (s RequestState) String() string {
	switch s {
	case RequestOpen:
		return "open"
	case RequestResolved:
		return "resolved"
	case RequestSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type oracle struct {
	address common.Address
	indexes Indexes
	fee     *uint256.Int
}

type response struct {
	oracle common.Address
	status StatusCode
}

type request struct {
	key       common.Hash
	index     uint8
	airline   common.Address
	flight    string
	timestamp uint64
	flightKey common.Hash
	requester common.Address
	opened    time.Time
	state     RequestState
	outcome   StatusCode
	responses []response
}

// Request is a read-only view of an oracle request.
type Request struct {
	Key       common.Hash
	Index     uint8
	Airline   common.Address
	Flight    string
	Timestamp uint64
	FlightKey common.Hash
	Requester common.Address
	Opened    time.Time
	State     RequestState
	Outcome   StatusCode
	// Responses counts the responses received per status code.
	Responses map[StatusCode]int
}

func (r *request) view() Request {
	v := Request{
		Key:       r.key,
		Index:     r.index,
		Airline:   r.airline,
		Flight:    r.flight,
		Timestamp: r.timestamp,
		FlightKey: r.flightKey,
		Requester: r.requester,
		Opened:    r.opened,
		State:     r.state,
		Outcome:   r.outcome,
		Responses: make(map[StatusCode]int),
	}
	for _, resp := range r.responses {
		v.Responses[resp.status]++
	}
	return v
}

func (r *request) tally(status StatusCode) int {
	n := 0
	for _, resp := range r.responses {
		if resp.status == status {
			n++
		}
	}
	return n
}

func (r *request) respondedBy(addr common.Address) bool {
	for _, resp := range r.responses {
		if resp.oracle == addr {
			return true
		}
	}
	return false
}

// RequestKey derives the key of an oracle request: keccak256 over the index,
// the airline address, the flight name and the timestamp as a 32 byte big
// endian integer.
func RequestKey(index uint8, airline common.Address, flight string, timestamp uint64) common.Hash {
	return crypto.Keccak256Hash([]byte{index}, airline.Bytes(), []byte(flight), uint256Bytes(timestamp))
}

// RegisterOracle registers caller as an oracle against fee and assigns it
// IndexesPerOracle distinct indexes.
func (l *Ledger) RegisterOracle(caller common.Address, fee *uint256.Int) (Indexes, error) {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return Indexes{}, err
	}
	if caller == (common.Address{}) {
		return Indexes{}, fmt.Errorf("register oracle: %w", ErrZeroAddress)
	}
	if fee == nil || fee.Lt(OracleRegistrationFee) {
		return Indexes{}, fmt.Errorf("register oracle %s with fee %s wei: %w", caller, FormatWei(fee), ErrInsufficientFee)
	}
	if _, ok := l.oracles[caller]; ok {
		return Indexes{}, fmt.Errorf("oracle %s: %w", caller, ErrAlreadyRegistered)
	}

	indexes, err := l.drawIndexes(caller)
	if err != nil {
		return Indexes{}, err
	}
	l.oracles[caller] = &oracle{address: caller, indexes: indexes, fee: fee.Clone()}
	l.oracleOrder = append(l.oracleOrder, caller)
	l.funds = new(uint256.Int).Add(l.funds, fee)
	l.log.Info().Stringer("oracle", caller).Uints8("indexes", indexes[:]).Msg("oracle registered")
	return indexes, nil
}

// drawIndexes draws distinct indexes for account. On failure the nonce is
// restored so that the ledger is left unchanged.
func (l *Ledger) drawIndexes(account common.Address) (Indexes, error) {
	var out Indexes
	start := l.nonce
	n := 0
	for draws := 0; n < IndexesPerOracle; draws++ {
		if draws == maxIndexDraws {
			l.nonce = start
			return Indexes{}, fmt.Errorf("oracle %s: %w", account, ErrIndexAssignment)
		}
		idx := l.nextIndex(account)
		if out.containsN(idx, n) {
			continue
		}
		out[n] = idx
		n++
	}
	return out, nil
}

func (ix Indexes) containsN(idx uint8, n int) bool {
	for _, v := range ix[:n] {
		if v == idx {
			return true
		}
	}
	return false
}

// GetMyIndexes returns the indexes assigned to caller.
func (l *Ledger) GetMyIndexes(caller common.Address) (Indexes, error) {
	l.lock()
	defer l.unlock()

	o, ok := l.oracles[caller]
	if !ok {
		return Indexes{}, fmt.Errorf("oracle %s: %w", caller, ErrOracleNotRegistered)
	}
	return o.indexes, nil
}

/*
FetchFlightStatus opens an oracle request for the flight identified by airline,
flight and timestamp, targeted at a pseudo-random index. If an open request
with the same key already exists it is returned unchanged. Any caller may ask;
the flight must be registered and its status not yet resolved.
*/
func (l *Ledger) FetchFlightStatus(caller, airline common.Address, flight string, timestamp uint64) (Request, error) {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return Request{}, err
	}
	flightKey := FlightKey(airline, flight, timestamp)
	f, ok := l.flights[flightKey]
	if !ok {
		return Request{}, fmt.Errorf("fetch status of flight %q at %d: %w", flight, timestamp, ErrUnknownFlight)
	}
	if f.resolved {
		return Request{}, fmt.Errorf("fetch status of flight %q at %d: %w", flight, timestamp, ErrFlightResolved)
	}

	index := l.nextIndex(caller)
	key := RequestKey(index, airline, flight, timestamp)
	if r, ok := l.requests[key]; ok {
		// no request opened, so the draw is not consumed
		l.nonce--
		return r.view(), nil
	}
	r := &request{
		key:       key,
		index:     index,
		airline:   airline,
		flight:    flight,
		timestamp: timestamp,
		flightKey: flightKey,
		requester: caller,
		opened:    l.timestamp(),
		state:     RequestOpen,
	}
	l.requests[key] = r
	l.requestOrder = append(l.requestOrder, key)
	l.emit(NotificationOracleRequest, OracleRequested{
		Key:       key,
		Index:     index,
		FlightKey: flightKey,
		Airline:   airline,
		Flight:    flight,
		Timestamp: timestamp,
	})
	l.log.Info().Stringer(logger.RequestKeyKey, key).Uint8("index", index).Str("flight", flight).Msg("oracle request opened")
	return r.view(), nil
}

/*
SubmitOracleResponse records the status reported by oracle caller for the
request identified by index, airline, flight and timestamp. The first status
code other than StatusUnknown to collect quorum matching responses while the
request is open resolves it: the flight status is finalized, other open requests for the flight are
superseded and, when the code denotes an airline fault, the insurees of the
flight are credited. Responses to a request that is no longer open are
recorded without further effect.
*/
func (l *Ledger) SubmitOracleResponse(caller common.Address, index uint8, airline common.Address, flight string, timestamp uint64, status StatusCode) (Request, error) {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return Request{}, err
	}
	o, ok := l.oracles[caller]
	if !ok || !o.indexes.Contains(index) {
		return Request{}, fmt.Errorf("oracle %s index %d: %w", caller, index, ErrOracleNotAssignedIndex)
	}
	if !status.Valid() {
		return Request{}, fmt.Errorf("status %d: %w", uint8(status), ErrInvalidStatusCode)
	}
	key := RequestKey(index, airline, flight, timestamp)
	r, ok := l.requests[key]
	if !ok {
		return Request{}, fmt.Errorf("response to %s: %w", key, ErrRequestNotOpen)
	}
	if r.respondedBy(caller) {
		return Request{}, fmt.Errorf("oracle %s on %s: %w", caller, key, ErrDuplicateResponse)
	}
	resolves := r.state == RequestOpen && status != StatusUnknown && r.tally(status)+1 >= l.quorum
	if resolves {
		if f, ok := l.flights[r.flightKey]; !ok || f.timestamp != timestamp {
			return Request{}, fmt.Errorf("response to %s: %w", key, ErrUnknownFlight)
		}
	}

	r.responses = append(r.responses, response{oracle: caller, status: status})
	l.emit(NotificationOracleReport, OracleReported{Key: key, Oracle: caller, Status: status})
	l.log.Debug().Stringer(logger.RequestKeyKey, key).Stringer("oracle", caller).Stringer("status", status).Msg("oracle response")
	if resolves {
		l.resolve(r, status)
	}
	return r.view(), nil
}

// resolve finalizes r with status. Must be called with the lock held.
func (l *Ledger) resolve(r *request, status StatusCode) {
	if err := l.updateStatus(r.flightKey, status, r.timestamp); err != nil {
		// checked by the caller before any mutation
		l.log.Error().Err(err).Stringer(logger.RequestKeyKey, r.key).Msg("status update failed")
		return
	}
	r.state = RequestResolved
	r.outcome = status
	var superseded []common.Hash
	for _, k := range l.requestOrder {
		if sib := l.requests[k]; sib != r && sib.flightKey == r.flightKey && sib.state == RequestOpen {
			sib.state = RequestSuperseded
			superseded = append(superseded, k)
		}
	}
	l.emit(NotificationStatusResolved, StatusResolved{
		RequestKey: r.key,
		FlightKey:  r.flightKey,
		Flight:     r.flight,
		Timestamp:  r.timestamp,
		Status:     status,
		Superseded: superseded,
	})
	l.log.Info().Stringer(logger.RequestKeyKey, r.key).Stringer(logger.FlightKeyKey, r.flightKey).Stringer("status", status).Msg("flight status resolved")

	if status.AirlineFault() {
		if err := l.creditInsurees(r.flightKey); err != nil {
			l.log.Error().Err(err).Stringer(logger.FlightKeyKey, r.flightKey).Msg("failed to credit insurees")
		}
	}
}

// Request returns the view of the oracle request with the given key.
func (l *Ledger) Request(key common.Hash) (Request, error) {
	l.lock()
	defer l.unlock()

	r, ok := l.requests[key]
	if !ok {
		return Request{}, fmt.Errorf("request %s: %w", key, ErrUnknownRequest)
	}
	return r.view(), nil
}

// OpenRequests returns the open oracle requests in the order they were opened.
func (l *Ledger) OpenRequests() []Request {
	l.lock()
	defer l.unlock()

	var out []Request
	for _, k := range l.requestOrder {
		if r := l.requests[k]; r.state == RequestOpen {
			out = append(out, r.view())
		}
	}
	return out
}

// OraclesForIndex returns the oracles holding index, in registration order.
func (l *Ledger) OraclesForIndex(index uint8) []common.Address {
	l.lock()
	defer l.unlock()

	var out []common.Address
	for _, addr := range l.oracleOrder {
		if l.oracles[addr].indexes.Contains(index) {
			out = append(out, addr)
		}
	}
	return out
}
