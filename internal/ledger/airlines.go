package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AirlineState is the admission state of an airline.
type AirlineState uint8

const (
	AirlineApplied AirlineState = iota
	AirlineRegistered
)

func (s AirlineState) String() string {
	if s == AirlineRegistered {
		return "registered"
	}
	return "applied"
}

type airline struct {
	address common.Address
	name    string
	state   AirlineState
	funded  bool
	amount  *uint256.Int
}

// Airline is a read-only view of an airline.
type Airline struct {
	Address common.Address
	Name    string
	State   AirlineState
	Funded  bool
	Amount  *uint256.Int
}

// AdmissionResult reports the outcome of RegisterAirline.
type AdmissionResult struct {
	Registered bool
	Votes      int
	Required   int
}

func (a *airline) view() Airline {
	return Airline{
		Address: a.address,
		Name:    a.name,
		State:   a.state,
		Funded:  a.funded,
		Amount:  cloneOrZero(a.amount),
	}
}

func (a *airline) active() bool {
	return a != nil && a.state == AirlineRegistered && a.funded
}

// Bootstrap admits the first airline. It may be called exactly once.
func (l *Ledger) Bootstrap(first common.Address, name string) error {
	l.lock()
	defer l.unlock()

	if l.initialized {
		return ErrAlreadyInitialized
	}
	if first == (common.Address{}) {
		return fmt.Errorf("bootstrap: %w", ErrZeroAddress)
	}
	l.initialized = true
	l.admit(&airline{address: first, name: name, amount: new(uint256.Int)})
	l.log.Info().Stringer("airline", first).Str("name", name).Msg("ledger bootstrapped")
	return nil
}

/*
RegisterAirline admits candidate on behalf of caller, which must be an active
airline. While fewer than AirlineBootstrapThreshold airlines are registered the
candidate is admitted immediately; afterwards the call records caller's vote
and admits the candidate once votes reach half of the registered airlines,
rounded up.
*/
func (l *Ledger) RegisterAirline(caller, candidate common.Address, name string) (AdmissionResult, error) {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return AdmissionResult{}, err
	}
	if !l.airlines[caller].active() {
		return AdmissionResult{}, fmt.Errorf("register airline by %s: %w", caller, ErrAirlineNotActive)
	}
	if candidate == (common.Address{}) {
		return AdmissionResult{}, fmt.Errorf("register airline: %w", ErrZeroAddress)
	}
	existing := l.airlines[candidate]
	if existing != nil && existing.state == AirlineRegistered {
		return AdmissionResult{}, fmt.Errorf("airline %s: %w", candidate, ErrAlreadyRegistered)
	}

	if l.numAirlines < AirlineBootstrapThreshold {
		a := existing
		if a == nil {
			a = &airline{address: candidate, amount: new(uint256.Int)}
		}
		a.name = name
		l.admit(a)
		return AdmissionResult{Registered: true}, nil
	}

	voters := l.votes[candidate]
	if _, ok := voters[caller]; ok {
		return AdmissionResult{}, fmt.Errorf("vote by %s for %s: %w", caller, candidate, ErrDuplicateVote)
	}
	if voters == nil {
		voters = make(map[common.Address]struct{})
		l.votes[candidate] = voters
	}
	voters[caller] = struct{}{}
	if existing == nil {
		existing = &airline{address: candidate, name: name, state: AirlineApplied, amount: new(uint256.Int)}
		l.airlines[candidate] = existing
		l.airlineOrder = append(l.airlineOrder, candidate)
	}

	required := l.requiredVotes()
	res := AdmissionResult{Votes: len(voters), Required: required}
	l.emit(NotificationVoteCast, VoteCast{Candidate: candidate, Voter: caller, Votes: res.Votes, Required: required})
	l.log.Debug().Stringer("candidate", candidate).Stringer("voter", caller).
		Int("votes", res.Votes).Int("required", required).Msg("vote cast")

	if res.Votes >= required {
		delete(l.votes, candidate)
		l.admit(existing)
		res.Registered = true
	}
	return res, nil
}

// admit marks a as registered and counts it. Must be called with the lock held.
func (l *Ledger) admit(a *airline) {
	if _, ok := l.airlines[a.address]; !ok {
		l.airlines[a.address] = a
		l.airlineOrder = append(l.airlineOrder, a.address)
	}
	a.state = AirlineRegistered
	l.numAirlines++
	l.emit(NotificationAirlineRegistered, AirlineAdmitted{Airline: a.address, Name: a.name, Total: l.numAirlines})
	l.log.Info().Stringer("airline", a.address).Str("name", a.name).Int("num_airlines", l.numAirlines).Msg("airline registered")
}

// requiredVotes is ceil(numAirlines / 2).
func (l *Ledger) requiredVotes() int {
	return (l.numAirlines + 1) / 2
}

// FundAirline adds amount to the stake of airline. Airlines fund themselves:
// caller must equal airline. Any amount at or above MinAirlineStake marks the
// airline funded; repeated funding only accumulates the stake.
func (l *Ledger) FundAirline(caller, address common.Address, amount *uint256.Int) error {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return err
	}
	if caller != address {
		return fmt.Errorf("fund airline %s by %s: %w", address, caller, ErrUnauthorized)
	}
	a := l.airlines[address]
	if a == nil || a.state != AirlineRegistered {
		return fmt.Errorf("fund airline %s: %w", address, ErrAirlineNotRegistered)
	}
	if amount == nil || amount.Lt(MinAirlineStake) {
		return fmt.Errorf("fund airline %s with %s wei: %w", address, FormatWei(amount), ErrInsufficientFunds)
	}

	a.funded = true
	a.amount = new(uint256.Int).Add(a.amount, amount)
	l.funds = new(uint256.Int).Add(l.funds, amount)
	l.emit(NotificationAirlineFunded, AirlineFunded{Airline: address, Amount: FormatWei(amount), Total: FormatWei(a.amount)})
	l.log.Info().Stringer("airline", address).Str("amount", FormatWei(amount)).Msg("airline funded")
	return nil
}

func (l *Ledger) IsRegistered(address common.Address) bool {
	l.lock()
	defer l.unlock()
	a := l.airlines[address]
	return a != nil && a.state == AirlineRegistered
}

func (l *Ledger) IsFunded(address common.Address) bool {
	l.lock()
	defer l.unlock()
	a := l.airlines[address]
	return a != nil && a.funded
}

// GetName returns the display name of an airline, or "" when unknown.
func (l *Ledger) GetName(address common.Address) string {
	l.lock()
	defer l.unlock()
	if a := l.airlines[address]; a != nil {
		return a.name
	}
	return ""
}

func (l *Ledger) GetNumAirlines() int {
	l.lock()
	defer l.unlock()
	return l.numAirlines
}

// GetAirline returns the view of a known airline, registered or applied.
func (l *Ledger) GetAirline(address common.Address) (Airline, bool) {
	l.lock()
	defer l.unlock()
	a := l.airlines[address]
	if a == nil {
		return Airline{}, false
	}
	return a.view(), true
}

// RegisteredAirlines returns registered airlines in the order they were first
// seen by the ledger.
func (l *Ledger) RegisteredAirlines() []Airline {
	l.lock()
	defer l.unlock()

	out := make([]Airline, 0, l.numAirlines)
	for _, addr := range l.airlineOrder {
		if a := l.airlines[addr]; a.state == AirlineRegistered {
			out = append(out, a.view())
		}
	}
	return out
}

// VotesFor returns the number of outstanding votes for candidate.
func (l *Ledger) VotesFor(candidate common.Address) int {
	l.lock()
	defer l.unlock()
	return len(l.votes[candidate])
}
