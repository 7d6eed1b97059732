package ledger

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// IndexGenerator draws oracle indexes in [0, MaxIndex). The ledger passes a
// counter that increases with every draw.
type IndexGenerator interface {
	Index(account common.Address, nonce uint64) uint8
}

/*
KeccakIndexes derives an index from keccak256(seed || nonce || account) modulo
MaxIndex. The result is deterministic for a given seed and is NOT
cryptographically unpredictable: anyone who knows the seed and the counter can
compute the next index.
*/
type KeccakIndexes struct {
	Seed common.Hash
}

func (k KeccakIndexes) Index(account common.Address, nonce uint64) uint8 {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h := crypto.Keccak256Hash(k.Seed.Bytes(), n[:], account.Bytes())
	v := new(uint256.Int).SetBytes(h.Bytes())
	return uint8(v.Mod(v, uint256.NewInt(MaxIndex)).Uint64())
}

// nextIndex draws one index and advances the nonce. Must be called with the
// lock held.
func (l *Ledger) nextIndex(account common.Address) uint8 {
	idx := l.indexes.Index(account, l.nonce)
	l.nonce++
	return idx % MaxIndex
}
