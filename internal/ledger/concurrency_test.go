package ledger

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentVotes_AdmitOnce(t *testing.T) {
	rec := &recorder{}
	l := newTestLedger(t, WithNotifier(rec))
	withActiveAirlines(t, l)

	var wg sync.WaitGroup
	var admitted, rejected int32
	for _, voter := range []common.Address{airline1, airline2, airline3, airline4} {
		wg.Add(1)
		go func(voter common.Address) {
			defer wg.Done()
			res, err := l.RegisterAirline(voter, airline5, "Fifth Air")
			switch {
			case err == nil && res.Registered:
				atomic.AddInt32(&admitted, 1)
			case errors.Is(err, ErrAlreadyRegistered):
				atomic.AddInt32(&rejected, 1)
			}
		}(voter)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&admitted))
	assert.Equal(t, int32(2), atomic.LoadInt32(&rejected))
	assert.Equal(t, 5, l.GetNumAirlines())
	assert.Len(t, rec.ofType(NotificationAirlineRegistered), 5)
}

func TestConcurrentResponses_ResolveOnce(t *testing.T) {
	f := newOracleFixture(t, 10)
	require.NoError(t, f.l.BuyWithKey(passenger1, f.flightKey, Ether(1)))
	req, err := f.l.FetchFlightStatus(passenger1, airline1, flightName, flightTime)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var accepted, duplicates int32
	for _, o := range f.oracles {
		// every oracle submits twice; only one submission per oracle counts
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(o common.Address) {
				defer wg.Done()
				_, err := f.respond(o, req.Index, StatusLateAirline)
				if err == nil {
					atomic.AddInt32(&accepted, 1)
				} else if errors.Is(err, ErrDuplicateResponse) {
					atomic.AddInt32(&duplicates, 1)
				}
			}(o)
		}
	}
	wg.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&accepted))
	assert.Equal(t, int32(10), atomic.LoadInt32(&duplicates))
	assert.Len(t, f.rec.ofType(NotificationStatusResolved), 1)
	assert.Len(t, f.rec.ofType(NotificationInsureeCredited), 1)
	assert.Equal(t, Milliether(1500), f.l.BalanceOf(passenger1))
}

func TestConcurrentBuys_RespectCap(t *testing.T) {
	l := newTestLedger(t)
	key, err := l.RegisterFlight(airline1, flightName, flightTime)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.BuyWithKey(passenger1, key, Milliether(100)) == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&ok))
	assert.Equal(t, Ether(1), l.InsuranceOf(passenger1, key))
	assert.Equal(t, Ether(11), l.PoolFunds())
}

func TestConcurrentCalls_NotificationsInSequence(t *testing.T) {
	var mu sync.Mutex
	var seqs []uint64
	l := newTestLedger(t, WithNotifier(NotifierFunc(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, n.Seq)
	})))
	mu.Lock()
	setup := len(seqs)
	mu.Unlock()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, err := l.RegisterFlight(airline1, fmt.Sprintf("ND%d-%d", g, i), flightTime)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, setup+1600)
	for i := 1; i < len(seqs); i++ {
		require.Equal(t, seqs[i-1]+1, seqs[i], "notification %d delivered out of order", i)
	}
}
