package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlight(t *testing.T) {
	rec := &recorder{}
	l := newTestLedger(t, WithNotifier(rec))

	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)
	assert.Equal(t, FlightKey(airline1, flightName, flightTime), key)

	f, err := l.GetFlightData(key)
	require.NoError(t, err)
	assert.Equal(t, airline1, f.Airline)
	assert.Equal(t, flightName, f.Name)
	assert.Equal(t, flightTime, f.Timestamp)
	assert.Equal(t, StatusUnknown, f.Status)
	assert.False(t, f.Resolved)
	assert.Equal(t, fixedTime, f.Updated)

	require.Len(t, rec.ofType(NotificationFlightRegistered), 1)
}

func TestRegisterFlight_RequiresActiveAirline(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.RegisterAirline(airline1, airline2, "Second Air")
	require.NoError(t, err)

	_, err = l.RegisterFlight(airline2, flightName, flightTime)
	assert.ErrorIs(t, err, ErrAirlineNotActive)

	_, err = l.RegisterFlight(passenger1, flightName, flightTime)
	assert.ErrorIs(t, err, ErrAirlineNotActive)
	assert.Empty(t, l.RegisteredFlights())
}

func TestRegisterFlight_Duplicate(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)
	_, err = l.RegisterFlight(airline1, flightName, flightTime)
	assert.ErrorIs(t, err, ErrDuplicateFlight)

	// same name, other departure
	_, err = l.RegisterFlight(airline1, flightName, flightTime+86400)
	require.NoError(t, err)
	assert.Len(t, l.RegisteredFlights(), 2)
}

func TestRegisteredFlights_InsertionOrder(t *testing.T) {
	l := newTestLedger(t)

	var want []common.Hash
	for _, name := range []string{"ND1309", "ND1310", "AB0001"} {
		key, err := l.RegisterFlight(airline1, name, flightTime)
		require.NoError(t, err)
		want = append(want, key)
	}
	assert.Equal(t, want, l.RegisteredFlights())
}

func TestGetFlightData_Unknown(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.GetFlightData(FlightKey(airline1, flightName, flightTime))
	assert.ErrorIs(t, err, ErrUnknownFlight)
}

func TestFlightKey_DependsOnEveryField(t *testing.T) {
	base := FlightKey(airline1, flightName, flightTime)

	assert.Equal(t, base, FlightKey(airline1, flightName, flightTime))
	assert.NotEqual(t, base, FlightKey(airline2, flightName, flightTime))
	assert.NotEqual(t, base, FlightKey(airline1, "ND1310", flightTime))
	assert.NotEqual(t, base, FlightKey(airline1, flightName, flightTime+1))
}

func TestUpdateStatus_TimestampMustMatch(t *testing.T) {
	l := newTestLedger(t)
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)

	l.lock()
	err = l.updateStatus(key, StatusLateAirline, flightTime+1)
	l.unlock()
	assert.ErrorIs(t, err, ErrUnknownFlight)

	f, err := l.GetFlightData(key)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, f.Status)
	assert.False(t, f.Resolved)
}

func TestStatusCode(t *testing.T) {
	for _, c := range []StatusCode{0, 10, 20, 30, 40, 50} {
		assert.True(t, c.Valid(), c.String())
	}
	assert.False(t, StatusCode(15).Valid())
	assert.True(t, StatusLateAirline.AirlineFault())
	assert.False(t, StatusLateWeather.AirlineFault())
	assert.Equal(t, "late_airline", StatusLateAirline.String())
	assert.Equal(t, "status(99)", StatusCode(99).String())
}
