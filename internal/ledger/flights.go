package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// StatusCode is a flight status as reported by oracles.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// Valid reports whether c is one of the reportable status codes.
func (c StatusCode) Valid() bool {
	switch c {
	case StatusUnknown, StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther:
		return true
	}
	return false
}

// AirlineFault reports whether c obliges the pool to pay insurees.
func (c StatusCode) AirlineFault() bool {
	return c == StatusLateAirline
}

func (c StatusCode) String() string {
	switch c {
	case StatusUnknown:
		return "unknown"
	case StatusOnTime:
		return "on_time"
	case StatusLateAirline:
		return "late_airline"
	case StatusLateWeather:
		return "late_weather"
	case StatusLateTechnical:
		return "late_technical"
	case StatusLateOther:
		return "late_other"
	default:
		return fmt.Sprintf("status(%d)", uint8(c))
	}
}

type flight struct {
	key       common.Hash
	airline   common.Address
	name      string
	timestamp uint64
	status    StatusCode
	resolved  bool
	updated   time.Time
	credited  bool
}

// Flight is a read-only view of a registered flight.
type Flight struct {
	Key       common.Hash
	Airline   common.Address
	Name      string
	Timestamp uint64
	Status    StatusCode
	Resolved  bool
	Updated   time.Time
	Credited  bool
}

func (f *flight) view() Flight {
	return Flight{
		Key:       f.key,
		Airline:   f.airline,
		Name:      f.name,
		Timestamp: f.timestamp,
		Status:    f.status,
		Resolved:  f.resolved,
		Updated:   f.updated,
		Credited:  f.credited,
	}
}

// FlightKey derives the key of a flight: keccak256 over the airline address,
// the flight name and the timestamp as a 32 byte big endian integer.
func FlightKey(airline common.Address, name string, timestamp uint64) common.Hash {
	return crypto.Keccak256Hash(airline.Bytes(), []byte(name), uint256Bytes(timestamp))
}

func uint256Bytes(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

// RegisterFlight registers a flight of caller, which must be an active airline.
func (l *Ledger) RegisterFlight(caller common.Address, name string, timestamp uint64) (common.Hash, error) {
	l.lock()
	defer l.unlock()

	if err := l.requireOperational(); err != nil {
		return common.Hash{}, err
	}
	if !l.airlines[caller].active() {
		return common.Hash{}, fmt.Errorf("register flight %q by %s: %w", name, caller, ErrAirlineNotActive)
	}
	key := FlightKey(caller, name, timestamp)
	if _, ok := l.flights[key]; ok {
		return common.Hash{}, fmt.Errorf("flight %q at %d: %w", name, timestamp, ErrDuplicateFlight)
	}

	l.flights[key] = &flight{
		key:       key,
		airline:   caller,
		name:      name,
		timestamp: timestamp,
		status:    StatusUnknown,
		updated:   l.timestamp(),
	}
	l.flightOrder = append(l.flightOrder, key)
	l.emit(NotificationFlightRegistered, FlightRegistered{Key: key, Airline: caller, Name: name, Timestamp: timestamp})
	l.log.Info().Stringer(logger.FlightKeyKey, key).Str("flight", name).Uint64("timestamp", timestamp).Msg("flight registered")
	return key, nil
}

func (l *Ledger) GetFlightData(key common.Hash) (Flight, error) {
	l.lock()
	defer l.unlock()

	f, ok := l.flights[key]
	if !ok {
		return Flight{}, fmt.Errorf("flight %s: %w", key, ErrUnknownFlight)
	}
	return f.view(), nil
}

// RegisteredFlights returns the keys of all flights in registration order.
func (l *Ledger) RegisteredFlights() []common.Hash {
	l.lock()
	defer l.unlock()
	return append([]common.Hash(nil), l.flightOrder...)
}

// updateStatus finalizes the status of a flight. The timestamp must match the
// one the flight was registered with. Must be called with the lock held.
func (l *Ledger) updateStatus(key common.Hash, status StatusCode, timestamp uint64) error {
	f, ok := l.flights[key]
	if !ok || f.timestamp != timestamp {
		return fmt.Errorf("update status of flight %s at %d: %w", key, timestamp, ErrUnknownFlight)
	}
	f.status = status
	f.resolved = true
	f.updated = l.timestamp()
	return nil
}
