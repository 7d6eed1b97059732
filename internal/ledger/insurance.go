package ledger

import (
	"fmt"

	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Buy insures passenger on the flight identified by airline, name and timestamp.
func (l *Ledger) Buy(passenger, airline common.Address, name string, timestamp uint64, amount *uint256.Int) (common.Hash, error) {
	key := FlightKey(airline, name, timestamp)
	return key, l.BuyWithKey(passenger, key, amount)
}

/*
BuyWithKey escrows amount as insurance premium of passenger on flight key.
Repeated purchases accumulate; the accumulated premium may not exceed
MaxPremium. Insurance can only be bought while the flight status has not been
resolved.
*/
func (l *Ledger) BuyWithKey(passenger common.Address, key common.Hash, amount *uint256.Int) error {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return err
	}
	f, ok := l.flights[key]
	if !ok {
		return fmt.Errorf("buy insurance on %s: %w", key, ErrUnregisteredFlight)
	}
	if f.resolved {
		return fmt.Errorf("buy insurance on %s: %w", key, ErrFlightResolved)
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("buy insurance on %s: %w", key, ErrZeroAmount)
	}
	if passenger == (common.Address{}) {
		return fmt.Errorf("buy insurance on %s: %w", key, ErrZeroAddress)
	}
	byPassenger := l.policies[key]
	total := new(uint256.Int).Add(cloneOrZero(byPassenger[passenger]), amount)
	if total.Gt(MaxPremium) {
		return fmt.Errorf("premium of %s wei on %s: %w", FormatWei(total), key, ErrPremiumTooHigh)
	}

	if byPassenger == nil {
		byPassenger = make(map[common.Address]*uint256.Int)
		l.policies[key] = byPassenger
	}
	if _, ok := byPassenger[passenger]; !ok {
		l.policyOrder[key] = append(l.policyOrder[key], passenger)
	}
	byPassenger[passenger] = total
	l.funds = new(uint256.Int).Add(l.funds, amount)
	l.log.Info().Stringer(logger.FlightKeyKey, key).Stringer("passenger", passenger).Str("amount", FormatWei(amount)).Msg("insurance bought")
	return nil
}

// CreditInsurees credits every insuree of flight key with 1.5 times the
// premium. Only authorized callers may invoke it directly; the oracle
// coordinator credits automatically on an airline fault consensus.
func (l *Ledger) CreditInsurees(caller common.Address, key common.Hash) error {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return err
	}
	if _, ok := l.authorized[caller]; !ok {
		return fmt.Errorf("credit insurees by %s: %w", caller, ErrUnauthorized)
	}
	return l.creditInsurees(key)
}

// creditInsurees moves the escrowed premiums of flight key into payout
// balances. Either every insuree is credited or none. Must be called with the
// lock held.
func (l *Ledger) creditInsurees(key common.Hash) error {
	f, ok := l.flights[key]
	if !ok {
		return fmt.Errorf("credit insurees of %s: %w", key, ErrUnknownFlight)
	}
	if f.credited {
		return fmt.Errorf("credit insurees of %s: %w", key, ErrAlreadyCredited)
	}

	passengers := l.policyOrder[key]
	credits := make([]*uint256.Int, len(passengers))
	total := new(uint256.Int)
	for i, p := range passengers {
		credits[i] = payoutFor(l.policies[key][p])
		total.Add(total, credits[i])
	}
	owed := new(uint256.Int).Add(l.owed, total)
	if owed.Gt(l.funds) {
		return fmt.Errorf("credit %s wei for %s: %w", FormatWei(total), key, ErrPoolInsolvent)
	}

	for i, p := range passengers {
		l.balances[p] = new(uint256.Int).Add(cloneOrZero(l.balances[p]), credits[i])
		l.emit(NotificationInsureeCredited, InsureeCredited{FlightKey: key, Passenger: p, Amount: FormatWei(credits[i])})
	}
	l.owed = owed
	delete(l.policies, key)
	delete(l.policyOrder, key)
	f.credited = true
	l.log.Info().Stringer(logger.FlightKeyKey, key).Int("insurees", len(passengers)).Str("total", FormatWei(total)).Msg("insurees credited")
	return nil
}

// Pay withdraws the whole payout balance of passenger and returns the amount.
func (l *Ledger) Pay(passenger common.Address) (*uint256.Int, error) {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return nil, err
	}
	balance := l.balances[passenger]
	if balance == nil || balance.IsZero() {
		return nil, fmt.Errorf("pay %s: %w", passenger, ErrNoBalance)
	}

	delete(l.balances, passenger)
	l.owed = new(uint256.Int).Sub(l.owed, balance)
	l.funds = new(uint256.Int).Sub(l.funds, balance)
	l.paidOut = new(uint256.Int).Add(l.paidOut, balance)
	l.emit(NotificationPayout, PaidOut{Passenger: passenger, Amount: FormatWei(balance)})
	l.log.Info().Stringer("passenger", passenger).Str("amount", FormatWei(balance)).Msg("payout withdrawn")
	return balance.Clone(), nil
}

// InsuranceOf returns the escrowed premium of passenger on flight key.
func (l *Ledger) InsuranceOf(passenger common.Address, key common.Hash) *uint256.Int {
	l.lock()
	defer l.unlock()
	return cloneOrZero(l.policies[key][passenger])
}

// BalanceOf returns the withdrawable payout balance of passenger.
func (l *Ledger) BalanceOf(passenger common.Address) *uint256.Int {
	l.lock()
	defer l.unlock()
	return cloneOrZero(l.balances[passenger])
}

// PoolFunds returns the funds held by the pool: airline stakes, premiums and
// oracle fees minus withdrawn payouts.
func (l *Ledger) PoolFunds() *uint256.Int {
	l.lock()
	defer l.unlock()
	return l.funds.Clone()
}

// PaidOut returns the total amount withdrawn by passengers.
func (l *Ledger) PaidOut() *uint256.Int {
	l.lock()
	defer l.unlock()
	return l.paidOut.Clone()
}
