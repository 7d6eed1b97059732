package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuy_UnregisteredThenRegistered(t *testing.T) {
	l := newTestLedger(t)
	amount := Milliether(100)

	_, err := l.Buy(passenger1, airline1, flightName, flightTime, amount)
	assert.ErrorIs(t, err, ErrUnregisteredFlight)
	assert.NotContains(t, l.RegisteredFlights(), FlightKey(airline1, flightName, flightTime))

	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)

	got, err := l.Buy(passenger1, airline1, flightName, flightTime, amount)
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Equal(t, amount, l.InsuranceOf(passenger1, key))
	assert.Equal(t, new(uint256.Int).Add(Ether(10), amount), l.PoolFunds())
}

func TestBuyWithKey_Bounds(t *testing.T) {
	l := newTestLedger(t)
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)

	assert.ErrorIs(t, l.BuyWithKey(passenger1, key, Milliether(1001)), ErrPremiumTooHigh)
	assert.ErrorIs(t, l.BuyWithKey(passenger1, key, new(uint256.Int)), ErrZeroAmount)
	assert.ErrorIs(t, l.BuyWithKey(passenger1, key, nil), ErrZeroAmount)
	assert.ErrorIs(t, l.BuyWithKey(common.Address{}, key, Milliether(1)), ErrZeroAddress)
	assert.ErrorIs(t, l.BuyWithKey(passenger1, common.Hash{1}, Milliether(1)), ErrUnregisteredFlight)
	assert.True(t, l.InsuranceOf(passenger1, key).IsZero())
	assert.Equal(t, Ether(10), l.PoolFunds())
}

func TestBuyWithKey_AccumulatesUpToCap(t *testing.T) {
	l := newTestLedger(t)
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)

	require.NoError(t, l.BuyWithKey(passenger1, key, Milliether(600)))
	require.NoError(t, l.BuyWithKey(passenger1, key, Milliether(400)))
	assert.Equal(t, Ether(1), l.InsuranceOf(passenger1, key))

	err = l.BuyWithKey(passenger1, key, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrPremiumTooHigh)
	assert.Equal(t, Ether(1), l.InsuranceOf(passenger1, key))

	// the cap is per passenger
	require.NoError(t, l.BuyWithKey(passenger2, key, Ether(1)))
}

func TestCreditInsurees_PaysOneAndAHalf(t *testing.T) {
	rec := &recorder{}
	l := newTestLedger(t, WithNotifier(rec))
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)
	require.NoError(t, l.BuyWithKey(passenger1, key, Milliether(100)))
	require.NoError(t, l.BuyWithKey(passenger2, key, Milliether(400)))

	require.NoError(t, l.CreditInsurees(owner, key))
	assert.Equal(t, Milliether(150), l.BalanceOf(passenger1))
	assert.Equal(t, Milliether(600), l.BalanceOf(passenger2))
	assert.True(t, l.InsuranceOf(passenger1, key).IsZero())

	f, err := l.GetFlightData(key)
	require.NoError(t, err)
	assert.True(t, f.Credited)

	err = l.CreditInsurees(owner, key)
	assert.ErrorIs(t, err, ErrAlreadyCredited)
	assert.Equal(t, Milliether(150), l.BalanceOf(passenger1))
	assert.Equal(t, Milliether(600), l.BalanceOf(passenger2))

	assert.Len(t, rec.ofType(NotificationInsureeCredited), 2)
}

func TestCreditInsurees_Authorization(t *testing.T) {
	l := newTestLedger(t)
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)
	require.NoError(t, l.BuyWithKey(passenger1, key, Milliether(100)))

	assert.ErrorIs(t, l.CreditInsurees(airline1, key), ErrUnauthorized)
	assert.ErrorIs(t, l.CreditInsurees(owner, common.Hash{1}), ErrUnknownFlight)

	require.NoError(t, l.AuthorizeCaller(owner, airline1))
	require.NoError(t, l.CreditInsurees(airline1, key))
	assert.Equal(t, Milliether(150), l.BalanceOf(passenger1))
}

func TestCreditInsurees_Insolvent(t *testing.T) {
	l := newTestLedger(t)
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)
	// 10 ether stake + 25 ether premiums cannot cover 37.5 ether of credit
	for i := 0; i < 25; i++ {
		require.NoError(t, l.BuyWithKey(addr(int64(0x1000+i)), key, Ether(1)))
	}

	err = l.CreditInsurees(owner, key)
	assert.ErrorIs(t, err, ErrPoolInsolvent)
	assert.True(t, l.BalanceOf(addr(0x1000)).IsZero())
	assert.Equal(t, Ether(1), l.InsuranceOf(addr(0x1000), key))

	f, err := l.GetFlightData(key)
	require.NoError(t, err)
	assert.False(t, f.Credited)

	// more stake makes the pool solvent again
	require.NoError(t, l.FundAirline(airline1, airline1, Ether(10)))
	require.NoError(t, l.CreditInsurees(owner, key))
	assert.Equal(t, Milliether(1500), l.BalanceOf(addr(0x1000)))
}

func TestPay(t *testing.T) {
	rec := &recorder{}
	l := newTestLedger(t, WithNotifier(rec))
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)
	require.NoError(t, l.BuyWithKey(passenger1, key, Milliether(200)))
	require.NoError(t, l.CreditInsurees(owner, key))

	paid, err := l.Pay(passenger1)
	require.NoError(t, err)
	assert.Equal(t, Milliether(300), paid)
	assert.True(t, l.BalanceOf(passenger1).IsZero())
	assert.Equal(t, Milliether(300), l.PaidOut())
	// 10 ether + 0.2 premium - 0.3 payout
	assert.Equal(t, Milliether(9900), l.PoolFunds())

	_, err = l.Pay(passenger1)
	assert.ErrorIs(t, err, ErrNoBalance)
	assert.Equal(t, Milliether(300), l.PaidOut())

	require.Len(t, rec.ofType(NotificationPayout), 1)
}

func TestPay_NoBalance(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Pay(passenger1)
	assert.ErrorIs(t, err, ErrNoBalance)
}
