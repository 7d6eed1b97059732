package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_OnlyOnce(t *testing.T) {
	l := New(owner)

	require.NoError(t, l.Bootstrap(airline1, "First Air"))
	assert.True(t, l.IsRegistered(airline1))
	assert.False(t, l.IsFunded(airline1))
	assert.Equal(t, "First Air", l.GetName(airline1))
	assert.Equal(t, 1, l.GetNumAirlines())

	err := l.Bootstrap(airline2, "Second Air")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.False(t, l.IsRegistered(airline2))
	assert.Equal(t, 1, l.GetNumAirlines())
}

func TestAdmission_Notification(t *testing.T) {
	rec := &recorder{}
	l := New(owner, WithNotifier(rec))
	require.NoError(t, l.Bootstrap(airline1, "First Air"))
	require.NoError(t, l.FundAirline(airline1, airline1, Ether(10)))
	_, err := l.RegisterAirline(airline1, airline2, "Second Air")
	require.NoError(t, err)

	notes := rec.ofType(NotificationAirlineRegistered)
	require.Len(t, notes, 2)
	assert.Equal(t, AirlineAdmitted{Airline: airline1, Name: "First Air", Total: 1}, notes[0].Data)
	assert.Equal(t, AirlineAdmitted{Airline: airline2, Name: "Second Air", Total: 2}, notes[1].Data)

	a, ok := l.GetAirline(airline2)
	require.True(t, ok)
	assert.Equal(t, AirlineRegistered, a.State)
}

func TestBootstrap_ZeroAddress(t *testing.T) {
	l := New(owner)

	assert.ErrorIs(t, l.Bootstrap(common.Address{}, "Nobody"), ErrZeroAddress)
	require.NoError(t, l.Bootstrap(airline1, "First Air"))
}

func TestRegisterAirline_RequiresActiveCaller(t *testing.T) {
	l := New(owner)
	require.NoError(t, l.Bootstrap(airline1, "First Air"))

	// registered but not funded
	_, err := l.RegisterAirline(airline1, airline2, "Second Air")
	assert.ErrorIs(t, err, ErrAirlineNotActive)

	// unknown caller
	_, err = l.RegisterAirline(airline5, airline2, "Second Air")
	assert.ErrorIs(t, err, ErrAirlineNotActive)
	assert.Equal(t, 1, l.GetNumAirlines())
}

func TestRegisterAirline_BootstrapPhaseAdmitsImmediately(t *testing.T) {
	l := newTestLedger(t)

	for i, a := range []common.Address{airline2, airline3, airline4} {
		res, err := l.RegisterAirline(airline1, a, "Airline")
		require.NoError(t, err)
		assert.True(t, res.Registered)
		assert.True(t, l.IsRegistered(a))
		assert.False(t, l.IsFunded(a))
		assert.Equal(t, i+2, l.GetNumAirlines())
	}
}

func TestRegisterAirline_FifthRequiresMultipartyConsensus(t *testing.T) {
	rec := &recorder{}
	l := newTestLedger(t, WithNotifier(rec))
	withActiveAirlines(t, l)

	res, err := l.RegisterAirline(airline1, airline5, "Fifth Air")
	require.NoError(t, err)
	assert.False(t, res.Registered)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 2, res.Required)
	assert.False(t, l.IsRegistered(airline5))
	assert.Equal(t, 4, l.GetNumAirlines())
	assert.Equal(t, 1, l.VotesFor(airline5))

	a, ok := l.GetAirline(airline5)
	require.True(t, ok)
	assert.Equal(t, AirlineApplied, a.State)

	res, err = l.RegisterAirline(airline2, airline5, "Fifth Air")
	require.NoError(t, err)
	assert.True(t, res.Registered)
	assert.Equal(t, 2, res.Votes)
	assert.True(t, l.IsRegistered(airline5))
	assert.Equal(t, 5, l.GetNumAirlines())
	assert.Equal(t, 0, l.VotesFor(airline5), "votes are cleared on admission")

	// a third vote after admission is rejected
	_, err = l.RegisterAirline(airline3, airline5, "Fifth Air")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	assert.Len(t, rec.ofType(NotificationVoteCast), 2)
}

func TestRegisterAirline_DuplicateVote(t *testing.T) {
	l := newTestLedger(t)
	withActiveAirlines(t, l)

	_, err := l.RegisterAirline(airline1, airline5, "Fifth Air")
	require.NoError(t, err)

	_, err = l.RegisterAirline(airline1, airline5, "Fifth Air")
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, 1, l.VotesFor(airline5))
	assert.Equal(t, ErrDuplicateVote, unwrapAll(err))
}

func TestRegisterAirline_VotingRequiresFundedVoter(t *testing.T) {
	l := newTestLedger(t)
	for _, a := range []common.Address{airline2, airline3, airline4} {
		_, err := l.RegisterAirline(airline1, a, "Airline")
		require.NoError(t, err)
	}

	_, err := l.RegisterAirline(airline2, airline5, "Fifth Air")
	assert.ErrorIs(t, err, ErrAirlineNotActive)
	assert.Equal(t, 0, l.VotesFor(airline5))
}

func TestRegisterAirline_NumAirlinesOnlyIncreases(t *testing.T) {
	l := newTestLedger(t)
	withActiveAirlines(t, l)

	candidates := []common.Address{addr(0x10), addr(0x11), addr(0x12)}
	voters := []common.Address{airline1, airline2, airline3, airline4}
	prev := l.GetNumAirlines()
	for _, c := range candidates {
		for _, v := range voters {
			required := (l.GetNumAirlines() + 1) / 2
			before := l.VotesFor(c)
			res, err := l.RegisterAirline(v, c, "Candidate")
			if err != nil {
				assert.ErrorIs(t, err, ErrAlreadyRegistered)
				continue
			}
			n := l.GetNumAirlines()
			assert.GreaterOrEqual(t, n, prev)
			if n > prev {
				assert.GreaterOrEqual(t, before+1, required)
			}
			assert.Equal(t, res.Registered, n > prev)
			prev = n
		}
	}
	assert.Equal(t, 7, l.GetNumAirlines())
}

func TestFundAirline(t *testing.T) {
	l := New(owner)
	require.NoError(t, l.Bootstrap(airline1, "First Air"))

	t.Run("self funding only", func(t *testing.T) {
		err := l.FundAirline(airline2, airline1, Ether(10))
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.False(t, l.IsFunded(airline1))
	})

	t.Run("below minimum stake", func(t *testing.T) {
		err := l.FundAirline(airline1, airline1, Milliether(9999))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.False(t, l.IsFunded(airline1))
		assert.True(t, l.PoolFunds().IsZero())
	})

	t.Run("unregistered airline", func(t *testing.T) {
		err := l.FundAirline(airline2, airline2, Ether(10))
		assert.ErrorIs(t, err, ErrAirlineNotRegistered)
	})

	t.Run("accumulates", func(t *testing.T) {
		require.NoError(t, l.FundAirline(airline1, airline1, Ether(10)))
		assert.True(t, l.IsFunded(airline1))

		require.NoError(t, l.FundAirline(airline1, airline1, Ether(12)))
		assert.True(t, l.IsFunded(airline1))

		err := l.FundAirline(airline1, airline1, Ether(1))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, l.IsFunded(airline1), "a failed top-up never unfunds")

		a, ok := l.GetAirline(airline1)
		require.True(t, ok)
		assert.Equal(t, Ether(22), a.Amount)
		assert.Equal(t, Ether(22), l.PoolFunds())
	})
}

func TestRegisteredAirlines_SkipsApplicants(t *testing.T) {
	l := newTestLedger(t)
	withActiveAirlines(t, l)
	_, err := l.RegisterAirline(airline1, airline5, "Fifth Air")
	require.NoError(t, err)

	got := l.RegisteredAirlines()
	require.Len(t, got, 4)
	assert.Equal(t, airline1, got[0].Address)
	assert.Equal(t, airline4, got[3].Address)
	for _, a := range got {
		assert.True(t, a.Funded)
		assert.Equal(t, AirlineRegistered, a.State)
	}
	assert.Equal(t, "", l.GetName(addr(0x99)))
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
