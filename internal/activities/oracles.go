package activities

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"sync"

	"github.com/cx-tal-miterani/flight-surety/internal/client"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// OracleAPI is the part of the surety API the oracles use.
type OracleAPI interface {
	RegisterOracle(ctx context.Context, oracle common.Address, fee *uint256.Int) (*models.Oracle, error)
	GetMyIndexes(ctx context.Context, oracle common.Address) (*models.Oracle, error)
	SubmitOracleResponse(ctx context.Context, oracle common.Address, req *models.OracleResponseRequest) (*models.OracleRequest, error)
	GetOracleRequest(ctx context.Context, key string) (*models.OracleRequest, error)
}

// StatusReporter decides which status code an oracle reports for a flight.
type StatusReporter interface {
	Report(oracle common.Address, req models.OracleWorkflowInput) ledger.StatusCode
}

// RandomReporter reports a uniformly drawn code, simulating oracles that
// observe the real world.
type RandomReporter struct {
	mu    sync.Mutex
	codes []ledger.StatusCode
	rnd   *rand.Rand
}

func NewRandomReporter(codes []ledger.StatusCode, seed int64) *RandomReporter {
	return &RandomReporter{codes: codes, rnd: rand.New(rand.NewSource(seed))}
}

func (r *RandomReporter) Report(common.Address, models.OracleWorkflowInput) ledger.StatusCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[r.rnd.Intn(len(r.codes))]
}

// OracleAddress derives the address of the i-th oracle of a pool:
// the last 20 bytes of keccak256(seed || i as 8 byte big endian).
func OracleAddress(seed string, i int) common.Address {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(i))
	return common.BytesToAddress(crypto.Keccak256([]byte(seed), n[:]))
}

// OraclePool is the set of oracles run by one worker and the indexes the
// ledger assigned to them.
type OraclePool struct {
	api      OracleAPI
	reporter StatusReporter
	log      zerolog.Logger

	mu      sync.RWMutex
	indexes map[common.Address][]int
}

func NewOraclePool(api OracleAPI, reporter StatusReporter, log zerolog.Logger) *OraclePool {
	return &OraclePool{
		api:      api,
		reporter: reporter,
		log:      log,
		indexes:  make(map[common.Address][]int),
	}
}

// Register registers count oracles derived from seed, paying fee for each.
// Oracles registered by an earlier run only have their indexes fetched.
func (p *OraclePool) Register(ctx context.Context, seed string, count int, fee *uint256.Int) error {
	for i := 0; i < count; i++ {
		addr := OracleAddress(seed, i)
		o, err := p.api.RegisterOracle(ctx, addr, fee)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			o, err = p.api.GetMyIndexes(ctx, addr)
		}
		if err != nil {
			return fmt.Errorf("failed to register oracle %d: %w", i, err)
		}
		p.add(addr, o.Indexes)
		p.log.Info().Stringer("oracle", addr).Ints("indexes", o.Indexes).Msg("oracle registered")
	}
	return nil
}

func (p *OraclePool) add(addr common.Address, indexes []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexes[addr] = append([]int(nil), indexes...)
}

// Size returns the number of registered oracles.
func (p *OraclePool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.indexes)
}

// OraclesFor returns the oracles holding index, sorted by address.
func (p *OraclePool) OraclesFor(index int) []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []common.Address
	for addr, indexes := range p.indexes {
		for _, idx := range indexes {
			if idx == index {
				out = append(out, addr)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
