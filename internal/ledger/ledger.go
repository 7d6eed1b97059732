/*
Package ledger implements the flight surety state machine: airline admission
voting, flight registration, insurance escrow, oracle index assignment and the
oracle consensus that finalizes flight status and credits payouts.

All state lives in a single Ledger value. Every exported method acquires the
ledger lock, validates its inputs and the current state, and only then
mutates; a method that returns an error leaves the ledger unchanged.
Notifications produced by a successful call are delivered to the configured
Notifier after the lock has been released, in sequence order. A Notifier must
not call back into the ledger.
*/
package ledger

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

const (
	// AirlineBootstrapThreshold is the number of registered airlines below
	// which a funded airline may admit a candidate without a vote.
	AirlineBootstrapThreshold = 4
	// DefaultOracleQuorum is the number of matching oracle responses that
	// finalize a flight status.
	DefaultOracleQuorum = 3
	// IndexesPerOracle is the size of the index set assigned to an oracle.
	IndexesPerOracle = 3
	// MaxIndex bounds the index space: indexes are drawn from [0, MaxIndex).
	MaxIndex = 10

	defaultNotificationLimit = 1024
)

var (
	// MinAirlineStake is the minimum amount an airline must fund to become active.
	MinAirlineStake = Ether(10)
	// MaxPremium caps the accumulated premium of one passenger on one flight.
	MaxPremium = Ether(1)
	// OracleRegistrationFee is the minimum fee to register an oracle.
	OracleRegistrationFee = Ether(1)
)

type (
	Ledger struct {
		mu sync.Mutex
		// held while delivering notifications; taken before mu is released
		deliverMu sync.Mutex

		log               zerolog.Logger
		notifier          Notifier
		indexes           IndexGenerator
		now               func() time.Time
		quorum            int
		notificationLimit int

		owner       common.Address
		operational bool
		initialized bool
		authorized  map[common.Address]struct{}

		airlines     map[common.Address]*airline
		airlineOrder []common.Address
		numAirlines  int
		// candidate -> voters
		votes map[common.Address]map[common.Address]struct{}

		flights     map[common.Hash]*flight
		flightOrder []common.Hash

		// flight -> passenger -> premium; policyOrder keeps purchase order per flight
		policies    map[common.Hash]map[common.Address]*uint256.Int
		policyOrder map[common.Hash][]common.Address
		balances    map[common.Address]*uint256.Int
		funds       *uint256.Int // stakes + premiums + fees - payouts
		owed        *uint256.Int // sum of balances
		paidOut     *uint256.Int

		oracles      map[common.Address]*oracle
		oracleOrder  []common.Address
		requests     map[common.Hash]*request
		requestOrder []common.Hash
		nonce        uint64

		seq           uint64
		notifications []Notification
		pending       []Notification
	}

	Option func(*Ledger)
)

// WithLogger sets the logger used for ledger events.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// WithNotifier sets the receiver of notifications produced by ledger operations.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) {
		if n != nil {
			l.notifier = n
		}
	}
}

// WithIndexGenerator replaces the default keccak based index generator.
func WithIndexGenerator(g IndexGenerator) Option {
	return func(l *Ledger) {
		if g != nil {
			l.indexes = g
		}
	}
}

// WithClock sets the time source used to stamp flights and notifications.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithOracleQuorum overrides DefaultOracleQuorum.
func WithOracleQuorum(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.quorum = n
		}
	}
}

// WithNotificationLimit bounds the number of notifications kept in memory.
func WithNotificationLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.notificationLimit = n
		}
	}
}

// New creates an operational, not yet bootstrapped ledger owned by owner.
func New(owner common.Address, opts ...Option) *Ledger {
	l := &Ledger{
		log:               zerolog.Nop(),
		notifier:          NotifierFunc(func(Notification) {}),
		indexes:           KeccakIndexes{},
		now:               time.Now,
		quorum:            DefaultOracleQuorum,
		notificationLimit: defaultNotificationLimit,
		owner:             owner,
		operational:       true,
		authorized:        map[common.Address]struct{}{owner: {}},
		airlines:          make(map[common.Address]*airline),
		votes:             make(map[common.Address]map[common.Address]struct{}),
		flights:           make(map[common.Hash]*flight),
		policies:          make(map[common.Hash]map[common.Address]*uint256.Int),
		policyOrder:       make(map[common.Hash][]common.Address),
		balances:          make(map[common.Address]*uint256.Int),
		funds:             new(uint256.Int),
		owed:              new(uint256.Int),
		paidOut:           new(uint256.Int),
		oracles:           make(map[common.Address]*oracle),
		requests:          make(map[common.Hash]*request),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Owner returns the address allowed to toggle the operational gate.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

func (l *Ledger) lock() {
	l.mu.Lock()
}

// unlock releases the ledger lock and then delivers the notifications queued
// by the call that held it. deliverMu is acquired before mu is released, so
// batches reach the notifier in the order they were emitted.
func (l *Ledger) unlock() {
	pending := l.pending
	l.pending = nil
	if len(pending) == 0 {
		l.mu.Unlock()
		return
	}
	l.deliverMu.Lock()
	l.mu.Unlock()
	defer l.deliverMu.Unlock()
	for _, n := range pending {
		l.notifier.Notify(n)
	}
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC()
}
