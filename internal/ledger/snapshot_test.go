package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedLedger(t *testing.T) (*Ledger, *oracleFixture) {
	t.Helper()
	f := newOracleFixture(t, 4)
	l := f.l
	withActiveAirlines(t, l)
	_, err := l.RegisterAirline(airline2, airline5, "Fifth Air")
	require.NoError(t, err)
	require.NoError(t, l.AuthorizeCaller(owner, airline3))

	require.NoError(t, l.BuyWithKey(passenger1, f.flightKey, Milliether(100)))
	other, err := l.RegisterFlight(airline2, "ND2000", flightTime)
	require.NoError(t, err)
	require.NoError(t, l.BuyWithKey(passenger2, other, Milliether(500)))
	require.NoError(t, l.CreditInsurees(owner, other))

	req, err := l.FetchFlightStatus(passenger1, airline1, flightName, flightTime)
	require.NoError(t, err)
	_, err = f.respond(f.oracles[0], req.Index, StatusLateAirline)
	require.NoError(t, err)
	return l, f
}

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	l, _ := populatedLedger(t)
	st := l.Snapshot()

	restored, err := Restore(st)
	require.NoError(t, err)
	assert.Equal(t, st, restored.Snapshot())

	assert.Equal(t, l.GetNumAirlines(), restored.GetNumAirlines())
	assert.Equal(t, l.RegisteredFlights(), restored.RegisteredFlights())
	assert.Equal(t, l.PoolFunds(), restored.PoolFunds())
	assert.Equal(t, l.BalanceOf(passenger2), restored.BalanceOf(passenger2))
	assert.Equal(t, 1, restored.VotesFor(airline5))
	assert.True(t, restored.IsAuthorizedCaller(airline3))
	assert.Equal(t, l.OpenRequests(), restored.OpenRequests())
}

func TestSnapshot_RestoredLedgerContinues(t *testing.T) {
	l, f := populatedLedger(t)
	rec := &recorder{}
	restored, err := Restore(l.Snapshot(), WithNotifier(rec), WithIndexGenerator(cyclicIndexes{1, 2, 3}))
	require.NoError(t, err)

	// the pending vote completes
	res, err := restored.RegisterAirline(airline3, airline5, "Fifth Air")
	require.NoError(t, err)
	assert.True(t, res.Registered)

	// the open request resolves with the two remaining responses
	req := restored.OpenRequests()[0]
	for _, o := range f.oracles[1:3] {
		_, err = restored.SubmitOracleResponse(o, req.Index, airline1, flightName, flightTime, StatusLateAirline)
		require.NoError(t, err)
	}
	assert.Equal(t, Milliether(150), restored.BalanceOf(passenger1))

	// sequence numbers continue where the snapshot left off
	notes := rec.ofType(NotificationStatusResolved)
	require.Len(t, notes, 1)
	assert.Greater(t, notes[0].Seq, l.Snapshot().Seq)
}

func TestRestore_Rejects(t *testing.T) {
	_, err := Restore(nil)
	assert.Error(t, err)

	l, _ := populatedLedger(t)

	st := l.Snapshot()
	st.Version = 9
	_, err = Restore(st)
	assert.Error(t, err)

	st = l.Snapshot()
	st.Flights = append(st.Flights, st.Flights[0])
	_, err = Restore(st)
	assert.ErrorIs(t, err, ErrDuplicateFlight)

	st = l.Snapshot()
	st.Funds = nil
	_, err = Restore(st)
	assert.ErrorIs(t, err, ErrPoolInsolvent)

	st = l.Snapshot()
	st.PaidOut = make([]byte, 33)
	_, err = Restore(st)
	assert.Error(t, err)
}
