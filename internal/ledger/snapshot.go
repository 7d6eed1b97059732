package ledger

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateVersion is the version of the State layout produced by Snapshot.
const StateVersion = 1

type (
	// State is a serializable copy of the ledger. Amounts are big endian
	// byte strings and times are unix nanoseconds so that the layout does not
	// depend on how an encoder treats uint256 or time values.
	State struct {
		Version     uint8            `cbor:"1,keyasint"`
		Owner       common.Address   `cbor:"2,keyasint"`
		Operational bool             `cbor:"3,keyasint"`
		Initialized bool             `cbor:"4,keyasint"`
		Authorized  []common.Address `cbor:"5,keyasint"`
		Airlines    []AirlineRecord  `cbor:"6,keyasint"`
		Votes       []VoteRecord     `cbor:"7,keyasint"`
		Flights     []FlightRecord   `cbor:"8,keyasint"`
		Policies    []PolicyRecord   `cbor:"9,keyasint"`
		Balances    []BalanceRecord  `cbor:"10,keyasint"`
		Funds       []byte           `cbor:"11,keyasint"`
		PaidOut     []byte           `cbor:"12,keyasint"`
		Oracles     []OracleRecord   `cbor:"13,keyasint"`
		Requests    []RequestRecord  `cbor:"14,keyasint"`
		Nonce       uint64           `cbor:"15,keyasint"`
		Seq         uint64           `cbor:"16,keyasint"`
	}

	AirlineRecord struct {
		Address common.Address `cbor:"1,keyasint"`
		Name    string         `cbor:"2,keyasint"`
		State   AirlineState   `cbor:"3,keyasint"`
		Funded  bool           `cbor:"4,keyasint"`
		Amount  []byte         `cbor:"5,keyasint"`
	}

	VoteRecord struct {
		Candidate common.Address   `cbor:"1,keyasint"`
		Voters    []common.Address `cbor:"2,keyasint"`
	}

	FlightRecord struct {
		Airline   common.Address `cbor:"1,keyasint"`
		Name      string         `cbor:"2,keyasint"`
		Timestamp uint64         `cbor:"3,keyasint"`
		Status    StatusCode     `cbor:"4,keyasint"`
		Resolved  bool           `cbor:"5,keyasint"`
		Updated   int64          `cbor:"6,keyasint"`
		Credited  bool           `cbor:"7,keyasint"`
	}

	PolicyRecord struct {
		FlightKey common.Hash    `cbor:"1,keyasint"`
		Passenger common.Address `cbor:"2,keyasint"`
		Premium   []byte         `cbor:"3,keyasint"`
	}

	BalanceRecord struct {
		Passenger common.Address `cbor:"1,keyasint"`
		Amount    []byte         `cbor:"2,keyasint"`
	}

	OracleRecord struct {
		Address common.Address `cbor:"1,keyasint"`
		Indexes Indexes        `cbor:"2,keyasint"`
		Fee     []byte         `cbor:"3,keyasint"`
	}

	RequestRecord struct {
		Index     uint8            `cbor:"1,keyasint"`
		Airline   common.Address   `cbor:"2,keyasint"`
		Flight    string           `cbor:"3,keyasint"`
		Timestamp uint64           `cbor:"4,keyasint"`
		Requester common.Address   `cbor:"5,keyasint"`
		Opened    int64            `cbor:"6,keyasint"`
		State     RequestState     `cbor:"7,keyasint"`
		Outcome   StatusCode       `cbor:"8,keyasint"`
		Responses []ResponseRecord `cbor:"9,keyasint"`
	}

	ResponseRecord struct {
		Oracle common.Address `cbor:"1,keyasint"`
		Status StatusCode     `cbor:"2,keyasint"`
	}
)

// Snapshot returns a consistent copy of the ledger state. The notification
// log is not part of the snapshot; only its sequence number is.
func (l *Ledger) Snapshot() *State {
	l.lock()
	defer l.unlock()

	st := &State{
		Version:     StateVersion,
		Owner:       l.owner,
		Operational: l.operational,
		Initialized: l.initialized,
		Funds:       l.funds.Bytes(),
		PaidOut:     l.paidOut.Bytes(),
		Nonce:       l.nonce,
		Seq:         l.seq,
	}
	for addr := range l.authorized {
		st.Authorized = append(st.Authorized, addr)
	}
	sortAddresses(st.Authorized)

	for _, addr := range l.airlineOrder {
		a := l.airlines[addr]
		st.Airlines = append(st.Airlines, AirlineRecord{
			Address: a.address,
			Name:    a.name,
			State:   a.state,
			Funded:  a.funded,
			Amount:  a.amount.Bytes(),
		})
		if voters, ok := l.votes[addr]; ok {
			rec := VoteRecord{Candidate: addr}
			for v := range voters {
				rec.Voters = append(rec.Voters, v)
			}
			sortAddresses(rec.Voters)
			st.Votes = append(st.Votes, rec)
		}
	}

	for _, key := range l.flightOrder {
		f := l.flights[key]
		st.Flights = append(st.Flights, FlightRecord{
			Airline:   f.airline,
			Name:      f.name,
			Timestamp: f.timestamp,
			Status:    f.status,
			Resolved:  f.resolved,
			Updated:   f.updated.UnixNano(),
			Credited:  f.credited,
		})
		for _, p := range l.policyOrder[key] {
			st.Policies = append(st.Policies, PolicyRecord{FlightKey: key, Passenger: p, Premium: l.policies[key][p].Bytes()})
		}
	}

	for p, b := range l.balances {
		st.Balances = append(st.Balances, BalanceRecord{Passenger: p, Amount: b.Bytes()})
	}
	sort.Slice(st.Balances, func(i, j int) bool {
		return bytes.Compare(st.Balances[i].Passenger[:], st.Balances[j].Passenger[:]) < 0
	})

	for _, addr := range l.oracleOrder {
		o := l.oracles[addr]
		st.Oracles = append(st.Oracles, OracleRecord{Address: addr, Indexes: o.indexes, Fee: o.fee.Bytes()})
	}

	for _, key := range l.requestOrder {
		r := l.requests[key]
		rec := RequestRecord{
			Index:     r.index,
			Airline:   r.airline,
			Flight:    r.flight,
			Timestamp: r.timestamp,
			Requester: r.requester,
			Opened:    r.opened.UnixNano(),
			State:     r.state,
			Outcome:   r.outcome,
		}
		for _, resp := range r.responses {
			rec.Responses = append(rec.Responses, ResponseRecord{Oracle: resp.oracle, Status: resp.status})
		}
		st.Requests = append(st.Requests, rec)
	}
	return st
}

// Restore builds a ledger from a snapshot. Options apply as for New; the owner
// is taken from the snapshot.
func Restore(st *State, opts ...Option) (*Ledger, error) {
	if st == nil {
		return nil, fmt.Errorf("restore: nil state")
	}
	if st.Version != StateVersion {
		return nil, fmt.Errorf("restore: unsupported state version %d", st.Version)
	}
	l := New(st.Owner, opts...)
	l.operational = st.Operational
	l.initialized = st.Initialized
	l.nonce = st.Nonce
	l.seq = st.Seq
	l.authorized = make(map[common.Address]struct{}, len(st.Authorized))
	for _, addr := range st.Authorized {
		l.authorized[addr] = struct{}{}
	}

	var err error
	if l.funds, err = amountFromBytes(st.Funds); err != nil {
		return nil, fmt.Errorf("restore funds: %w", err)
	}
	if l.paidOut, err = amountFromBytes(st.PaidOut); err != nil {
		return nil, fmt.Errorf("restore paid out: %w", err)
	}

	for _, rec := range st.Airlines {
		if _, ok := l.airlines[rec.Address]; ok {
			return nil, fmt.Errorf("restore: duplicate airline %s", rec.Address)
		}
		amount, err := amountFromBytes(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("restore airline %s: %w", rec.Address, err)
		}
		l.airlines[rec.Address] = &airline{address: rec.Address, name: rec.Name, state: rec.State, funded: rec.Funded, amount: amount}
		l.airlineOrder = append(l.airlineOrder, rec.Address)
		if rec.State == AirlineRegistered {
			l.numAirlines++
		}
	}
	for _, rec := range st.Votes {
		voters := make(map[common.Address]struct{}, len(rec.Voters))
		for _, v := range rec.Voters {
			voters[v] = struct{}{}
		}
		l.votes[rec.Candidate] = voters
	}

	for _, rec := range st.Flights {
		if !rec.Status.Valid() {
			return nil, fmt.Errorf("restore flight %q: %w", rec.Name, ErrInvalidStatusCode)
		}
		key := FlightKey(rec.Airline, rec.Name, rec.Timestamp)
		if _, ok := l.flights[key]; ok {
			return nil, fmt.Errorf("restore flight %q: %w", rec.Name, ErrDuplicateFlight)
		}
		l.flights[key] = &flight{
			key:       key,
			airline:   rec.Airline,
			name:      rec.Name,
			timestamp: rec.Timestamp,
			status:    rec.Status,
			resolved:  rec.Resolved,
			updated:   time.Unix(0, rec.Updated).UTC(),
			credited:  rec.Credited,
		}
		l.flightOrder = append(l.flightOrder, key)
	}
	for _, rec := range st.Policies {
		if _, ok := l.flights[rec.FlightKey]; !ok {
			return nil, fmt.Errorf("restore policy on %s: %w", rec.FlightKey, ErrUnknownFlight)
		}
		premium, err := amountFromBytes(rec.Premium)
		if err != nil {
			return nil, fmt.Errorf("restore policy on %s: %w", rec.FlightKey, err)
		}
		byPassenger := l.policies[rec.FlightKey]
		if byPassenger == nil {
			byPassenger = make(map[common.Address]*uint256.Int)
			l.policies[rec.FlightKey] = byPassenger
		}
		byPassenger[rec.Passenger] = premium
		l.policyOrder[rec.FlightKey] = append(l.policyOrder[rec.FlightKey], rec.Passenger)
	}
	for _, rec := range st.Balances {
		amount, err := amountFromBytes(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("restore balance of %s: %w", rec.Passenger, err)
		}
		l.balances[rec.Passenger] = amount
		l.owed = new(uint256.Int).Add(l.owed, amount)
	}

	for _, rec := range st.Oracles {
		fee, err := amountFromBytes(rec.Fee)
		if err != nil {
			return nil, fmt.Errorf("restore oracle %s: %w", rec.Address, err)
		}
		l.oracles[rec.Address] = &oracle{address: rec.Address, indexes: rec.Indexes, fee: fee}
		l.oracleOrder = append(l.oracleOrder, rec.Address)
	}
	for _, rec := range st.Requests {
		r := &request{
			key:       RequestKey(rec.Index, rec.Airline, rec.Flight, rec.Timestamp),
			index:     rec.Index,
			airline:   rec.Airline,
			flight:    rec.Flight,
			timestamp: rec.Timestamp,
			flightKey: FlightKey(rec.Airline, rec.Flight, rec.Timestamp),
			requester: rec.Requester,
			opened:    time.Unix(0, rec.Opened).UTC(),
			state:     rec.State,
			outcome:   rec.Outcome,
		}
		for _, resp := range rec.Responses {
			r.responses = append(r.responses, response{oracle: resp.Oracle, status: resp.Status})
		}
		l.requests[r.key] = r
		l.requestOrder = append(l.requestOrder, r.key)
	}

	if l.owed.Gt(l.funds) {
		return nil, fmt.Errorf("restore: balances of %s wei exceed funds of %s wei: %w", FormatWei(l.owed), FormatWei(l.funds), ErrPoolInsolvent)
	}
	return l, nil
}

func amountFromBytes(b []byte) (*uint256.Int, error) {
	if len(b) > 32 {
		return nil, fmt.Errorf("amount of %d bytes overflows 256 bits", len(b))
	}
	return new(uint256.Int).SetBytes(b), nil
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
