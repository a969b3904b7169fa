package foliation

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/nspcc-dev/attestree/pkg/encoding/address"
	"github.com/nspcc-dev/attestree/pkg/io"
)

const (
	// MaxLocks is the maximum number of balance locks per account.
	MaxLocks = 50
	// LockIDSize is the size of balance lock identifier.
	LockIDSize = 8
	// StakingLeafValueSize is the size of staking lock leaf value.
	StakingLeafValueSize = amountSize + 32 + common.AddressLength

	u128Size   = 16
	amountSize = 31
)

// StakingLockID is the identifier of the staking balance lock.
var StakingLockID = [LockIDSize]byte{'s', 't', 'a', 'k', 'i', 'n', 'g', ' '}

// ErrAmountOverflow is returned for lock amounts not fitting into u128.
var ErrAmountOverflow = errors.New("amount overflows u128")

// WithdrawReasons is the set of operations a balance lock applies to.
type WithdrawReasons byte

// Withdraw reasons.
const (
	ReasonsFee WithdrawReasons = iota
	ReasonsMisc
	ReasonsAll
)

type (
	// AccountID is a substrate account public key.
	AccountID [address.AccountIDSize]byte

	// BalanceLock is a single lock on account balance.
	BalanceLock struct {
		ID      [LockIDSize]byte
		Amount  *uint256.Int
		Reasons WithdrawReasons
	}

	// Locks is a list of account balance locks as it's kept in the storage.
	Locks []BalanceLock

	// ContractInfo is the EVM staking contract attested staking locks are
	// bound to.
	ContractInfo struct {
		ChainID *uint256.Int
		Address common.Address
	}

	// StakingLocks is a foliation of the balance locks storage map, every
	// account becomes a leaf carrying its staking lock amount.
	StakingLocks struct {
		ns       leaf.Namespace
		contract ContractInfo
	}
)

// String returns SS58 address of the account.
func (a AccountID) String() string {
	return address.AccountIDToString(a)
}

// DecodeAccountID decodes an account ID from either its SS58 address or
// hex-encoded public key.
func DecodeAccountID(s string) (AccountID, error) {
	id, err := address.StringToAccountID(s)
	if err == nil {
		return id, nil
	}
	b, hErr := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if hErr != nil || len(b) != address.AccountIDSize {
		return AccountID{}, fmt.Errorf("not an address or public key: %w", err)
	}
	var a AccountID
	copy(a[:], b)
	return a, nil
}

// EncodeBinary implements io.Serializable interface.
func (a *AccountID) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(a[:])
}

// DecodeBinary implements io.Serializable interface.
func (a *AccountID) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(a[:])
}

// String implements fmt.Stringer interface.
func (wr WithdrawReasons) String() string {
	switch wr {
	case ReasonsFee:
		return "Fee"
	case ReasonsMisc:
		return "Misc"
	case ReasonsAll:
		return "All"
	default:
		return fmt.Sprintf("WithdrawReasons(%d)", byte(wr))
	}
}

// EncodeBinary implements io.Serializable interface.
func (l *BalanceLock) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(l.ID[:])
	amount := l.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	if amount.BitLen() > 8*u128Size {
		w.Err = fmt.Errorf("%w: %s", ErrAmountOverflow, amount)
		return
	}
	b := amount.Bytes32()
	le := make([]byte, u128Size)
	for i := range le {
		le[i] = b[31-i]
	}
	w.WriteBytes(le)
	w.WriteB(byte(l.Reasons))
}

// DecodeBinary implements io.Serializable interface.
func (l *BalanceLock) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(l.ID[:])
	var le [u128Size]byte
	r.ReadBytes(le[:])
	reasons := r.ReadB()
	if r.Err != nil {
		return
	}
	if reasons > byte(ReasonsAll) {
		r.Err = fmt.Errorf("unknown withdraw reasons %d", reasons)
		return
	}
	be := make([]byte, u128Size)
	for i := range be {
		be[i] = le[u128Size-1-i]
	}
	l.Amount = new(uint256.Int).SetBytes(be)
	l.Reasons = WithdrawReasons(reasons)
}

// EncodeBinary implements io.Serializable interface.
func (ls *Locks) EncodeBinary(w *io.BinWriter) {
	if len(*ls) > MaxLocks {
		w.Err = fmt.Errorf("%w: %d locks", io.ErrTooBig, len(*ls))
		return
	}
	w.WriteVarUint(uint64(len(*ls)))
	for i := range *ls {
		(*ls)[i].EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable interface.
func (ls *Locks) DecodeBinary(r *io.BinReader) {
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > MaxLocks {
		r.Err = fmt.Errorf("%w: %d locks", io.ErrTooBig, n)
		return
	}
	res := make(Locks, n)
	for i := range res {
		res[i].DecodeBinary(r)
	}
	if r.Err != nil {
		return
	}
	*ls = res
}

// Staking returns the staking lock if there is any.
func (ls Locks) Staking() (BalanceLock, bool) {
	for _, l := range ls {
		if bytes.Equal(l.ID[:], StakingLockID[:]) {
			return l, true
		}
	}
	return BalanceLock{}, false
}

// LeafValue returns the leaf value of the given staking lock amount:
// 31-byte big-endian amount, 32-byte big-endian chain ID and 20-byte
// contract address.
func (c ContractInfo) LeafValue(amount *uint256.Int) []byte {
	res := make([]byte, StakingLeafValueSize)
	if amount != nil {
		a := amount.Bytes32()
		copy(res[:amountSize], a[32-amountSize:])
	}
	if c.ChainID != nil {
		id := c.ChainID.Bytes32()
		copy(res[amountSize:amountSize+32], id[:])
	}
	copy(res[amountSize+32:], c.Address[:])
	return res
}

// LocksNamespace returns the default balance locks storage map namespace.
func LocksNamespace() leaf.Namespace {
	return leaf.NewNamespace("Balances", "Locks", leaf.Blake2_128Concat)
}

// NewStakingLocks creates staking locks foliation over the default namespace
// bound to the given staking contract.
func NewStakingLocks(contract ContractInfo) *StakingLocks {
	return NewStakingLocksAt(LocksNamespace(), contract)
}

// NewStakingLocksAt creates staking locks foliation over the given
// namespace.
func NewStakingLocksAt(ns leaf.Namespace, contract ContractInfo) *StakingLocks {
	return &StakingLocks{ns: ns, contract: contract}
}

// Kind implements Foliation interface.
func (s *StakingLocks) Kind() Kind { return StakingLocksKind }

// Namespace implements Foliation interface.
func (s *StakingLocks) Namespace() leaf.Namespace { return s.ns }

// Contract returns the staking contract leaves are bound to.
func (s *StakingLocks) Contract() ContractInfo { return s.contract }

// StorageKey returns the storage key of the given account locks.
func (s *StakingLocks) StorageKey(account AccountID) ([]byte, error) {
	return leaf.StorageKeyForPrefixKeyTuple(s.ns, &account)
}

// Decode decodes a raw storage item of the locks map.
func (s *StakingLocks) Decode(key, value []byte) (AccountID, Locks, error) {
	var (
		account AccountID
		locks   Locks
	)
	err := leaf.DecodeStorageKeyAndValue(s.ns, key, value, &locks, &account)
	return account, locks, err
}

// Leaf implements Foliation interface. Accounts without a staking lock get
// a zero amount leaf, other locks are never attested.
func (s *StakingLocks) Leaf(key, value []byte) (leaf.Leaf, bool, error) {
	_, locks, err := s.Decode(key, value)
	if err != nil {
		return leaf.Leaf{}, false, err
	}
	amount := new(uint256.Int)
	if l, ok := locks.Staking(); ok {
		amount = l.Amount
	}
	return leaf.New(key, s.contract.LeafValue(amount)), true, nil
}
