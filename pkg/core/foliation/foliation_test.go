package foliation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/internal/random"
	"github.com/nspcc-dev/attestree/pkg/internal/testserdes"
	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var testContract = ContractInfo{
	ChainID: uint256.NewInt(11155111),
	Address: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
}

func commitmentItem(t *testing.T, f *TableCommitments, name string, scheme CommitmentScheme, data []byte) Item {
	key, err := f.StorageKey(TableIdentifier{Name: []byte(name), Namespace: []byte("ns")}, scheme)
	require.NoError(t, err)
	value, err := io.ToByteArray(&TableCommitmentBytes{Data: data})
	require.NoError(t, err)
	return Item{Key: key, Value: value}
}

func locksItem(t *testing.T, f *StakingLocks, account AccountID, locks Locks) Item {
	key, err := f.StorageKey(account)
	require.NoError(t, err)
	value, err := io.ToByteArray(&locks)
	require.NoError(t, err)
	return Item{Key: key, Value: value}
}

func lock(id string, amount uint64) BalanceLock {
	l := BalanceLock{Amount: uint256.NewInt(amount), Reasons: ReasonsAll}
	copy(l.ID[:], id)
	return l
}

func TestKind(t *testing.T) {
	for _, k := range []Kind{TableCommitmentsKind, StakingLocksKind} {
		actual, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, actual)
	}
	_, err := ParseKind("accounts")
	require.Error(t, err)
	require.Equal(t, "Kind(5)", Kind(5).String())

	f, err := New(StakingLocksKind, testContract)
	require.NoError(t, err)
	require.Equal(t, StakingLocksKind, f.Kind())
	require.Equal(t, "Balances.Locks", f.Namespace().String())

	f, err = New(TableCommitmentsKind, ContractInfo{})
	require.NoError(t, err)
	require.Equal(t, "Commitments.CommitmentStorageMap", f.Namespace().String())

	_, err = New(Kind(5), ContractInfo{})
	require.Error(t, err)
}

func TestCommitmentScheme(t *testing.T) {
	for _, s := range []CommitmentScheme{HyperKZG, DynamicDory} {
		actual, err := ParseCommitmentScheme(s.String())
		require.NoError(t, err)
		require.Equal(t, s, actual)
		testserdes.EncodeDecodeBinary(t, &s, new(CommitmentScheme))
	}
	_, err := ParseCommitmentScheme("ipa")
	require.ErrorIs(t, err, ErrUnknownScheme)

	s := new(CommitmentScheme)
	require.ErrorIs(t, io.FromByteArray(s, []byte{2}), ErrUnknownScheme)
}

func TestTableIdentifierBounds(t *testing.T) {
	id := &TableIdentifier{Name: bytes.Repeat([]byte{'a'}, MaxIdentifierSize+1), Namespace: []byte("ns")}
	_, err := io.ToByteArray(id)
	require.ErrorIs(t, err, io.ErrTooBig)

	id.Name = id.Name[:MaxIdentifierSize]
	testserdes.EncodeDecodeBinary(t, id, new(TableIdentifier))

	_, err = io.ToByteArray(&TableCommitmentBytes{Data: make([]byte, MaxCommitmentSize+1)})
	require.ErrorIs(t, err, io.ErrTooBig)
}

func TestTableCommitments(t *testing.T) {
	f := NewTableCommitments()
	data := random.Bytes(100)
	it := commitmentItem(t, f, "blocks", DynamicDory, data)

	id, scheme, c, err := f.Decode(it.Key, it.Value)
	require.NoError(t, err)
	require.Equal(t, "ns.blocks", id.String())
	require.Equal(t, DynamicDory, scheme)
	require.Equal(t, data, c.Data)

	l, ok, err := f.Leaf(it.Key, it.Value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, it.Key, l.Key)
	require.Equal(t, hash.Leaf(it.Key, data), l.Hash)

	t.Run("schemes are different leaves", func(t *testing.T) {
		other := commitmentItem(t, f, "blocks", HyperKZG, data)
		require.NotEqual(t, it.Key, other.Key)
	})
	t.Run("wrong namespace", func(t *testing.T) {
		locks := NewStakingLocks(testContract)
		_, _, err := locks.Leaf(it.Key, it.Value)
		require.ErrorIs(t, err, leaf.ErrPrefixMismatch)
	})
}

func TestBalanceLock(t *testing.T) {
	l := lock("staking ", 1)
	l.Amount = new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	testserdes.EncodeDecodeBinary(t, &l, new(BalanceLock))

	enc, err := io.ToByteArray(&BalanceLock{ID: StakingLockID, Amount: uint256.NewInt(0x0102), Reasons: ReasonsMisc})
	require.NoError(t, err)
	require.Equal(t, append([]byte("staking \x02\x01"), append(make([]byte, 14), 1)...), enc)

	t.Run("overflow", func(t *testing.T) {
		l := lock("staking ", 0)
		l.Amount = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
		_, err := io.ToByteArray(&l)
		require.ErrorIs(t, err, ErrAmountOverflow)
	})
	t.Run("bad reasons", func(t *testing.T) {
		bad := bytes.Clone(enc)
		bad[len(bad)-1] = 3
		require.Error(t, io.FromByteArray(new(BalanceLock), bad))
	})
	t.Run("too many locks", func(t *testing.T) {
		ls := make(Locks, MaxLocks+1)
		for i := range ls {
			ls[i] = lock("other", 1)
		}
		_, err := io.ToByteArray(&ls)
		require.ErrorIs(t, err, io.ErrTooBig)

		w := io.NewBufBinWriter()
		w.WriteVarUint(MaxLocks + 1)
		require.ErrorIs(t, io.FromByteArray(new(Locks), w.Bytes()), io.ErrTooBig)
	})
}

func TestContractLeafValue(t *testing.T) {
	v := testContract.LeafValue(uint256.NewInt(0x0a0b))
	require.Len(t, v, StakingLeafValueSize)
	require.Equal(t, 83, StakingLeafValueSize)

	expected := make([]byte, 0, StakingLeafValueSize)
	expected = append(expected, make([]byte, 29)...)
	expected = append(expected, 0x0a, 0x0b)
	chainID := testContract.ChainID.Bytes32()
	expected = append(expected, chainID[:]...)
	expected = append(expected, testContract.Address.Bytes()...)
	require.Equal(t, expected, v)

	require.Equal(t, make([]byte, StakingLeafValueSize), ContractInfo{}.LeafValue(nil))
}

func TestStakingLocks(t *testing.T) {
	f := NewStakingLocks(testContract)
	var account AccountID
	random.Fill(account[:])

	t.Run("staking and unrelated lock", func(t *testing.T) {
		it := locksItem(t, f, account, Locks{lock("vesting ", 5), lock("staking ", 1000)})
		leaves, err := Foliate(f, Items(it))
		require.NoError(t, err)
		require.Len(t, leaves, 1)
		require.Equal(t, it.Key, leaves[0].Key)
		require.Equal(t, hash.Leaf(it.Key, testContract.LeafValue(uint256.NewInt(1000))), leaves[0].Hash)
	})
	t.Run("no staking lock", func(t *testing.T) {
		it := locksItem(t, f, account, Locks{lock("vesting ", 5)})
		l, ok, err := f.Leaf(it.Key, it.Value)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, it.Key, l.Key)
		require.Equal(t, hash.Leaf(it.Key, testContract.LeafValue(uint256.NewInt(0))), l.Hash)
	})
	t.Run("no locks", func(t *testing.T) {
		it := locksItem(t, f, account, Locks{})
		leaves, err := Foliate(f, Items(it))
		require.NoError(t, err)
		require.Len(t, leaves, 1)
		require.Equal(t, hash.Leaf(it.Key, testContract.LeafValue(uint256.NewInt(0))), leaves[0].Hash)
	})
	t.Run("decode", func(t *testing.T) {
		it := locksItem(t, f, account, Locks{lock("staking ", 7)})
		acc, locks, err := f.Decode(it.Key, it.Value)
		require.NoError(t, err)
		require.Equal(t, account, acc)
		require.Len(t, locks, 1)
		require.Equal(t, uint64(7), locks[0].Amount.Uint64())
	})
	t.Run("other contract", func(t *testing.T) {
		it := locksItem(t, f, account, Locks{lock("staking ", 1000)})
		l1, _, err := f.Leaf(it.Key, it.Value)
		require.NoError(t, err)
		other := NewStakingLocks(ContractInfo{ChainID: uint256.NewInt(1), Address: testContract.Address})
		l2, _, err := other.Leaf(it.Key, it.Value)
		require.NoError(t, err)
		require.NotEqual(t, l1.Hash, l2.Hash)
		require.Equal(t, testContract, f.Contract())
	})
}

func TestAccountID(t *testing.T) {
	var a AccountID
	random.Fill(a[:])

	actual, err := DecodeAccountID(a.String())
	require.NoError(t, err)
	require.Equal(t, a, actual)

	actual, err = DecodeAccountID("0x" + common.Bytes2Hex(a[:]))
	require.NoError(t, err)
	require.Equal(t, a, actual)

	_, err = DecodeAccountID("0x0102")
	require.Error(t, err)
}

func TestFoliate(t *testing.T) {
	f := NewTableCommitments()
	items := []Item{
		commitmentItem(t, f, "c", HyperKZG, []byte("3")),
		commitmentItem(t, f, "a", HyperKZG, []byte("1")),
		commitmentItem(t, f, "b", HyperKZG, []byte("2")),
	}

	t.Run("keeps order", func(t *testing.T) {
		leaves, err := Foliate(f, Items(items...))
		require.NoError(t, err)
		require.Len(t, leaves, 3)
		for i := range items {
			assert.Equal(t, items[i].Key, leaves[i].Key)
		}
	})
	t.Run("keeps duplicates", func(t *testing.T) {
		leaves, err := Foliate(f, Items(items[0], items[0]))
		require.NoError(t, err)
		require.Len(t, leaves, 2)
	})
	t.Run("restartable", func(t *testing.T) {
		entries := Items(items...)
		l1, err := Foliate(f, entries)
		require.NoError(t, err)
		l2, err := Foliate(f, entries)
		require.NoError(t, err)
		require.Equal(t, l1, l2)
	})
	t.Run("aggregates errors", func(t *testing.T) {
		bad1 := Item{Key: items[0].Key, Value: []byte{0xff}}
		bad2 := Item{Key: items[1].Key[:leaf.PrefixSize+3], Value: items[1].Value}
		leaves, err := Foliate(f, Items(bad1, items[2], bad2))
		require.Error(t, err)
		require.Nil(t, leaves)

		errs := multierr.Errors(err)
		require.Len(t, errs, 2)
		require.ErrorIs(t, errs[0], leaf.ErrMalformedValue)
		require.ErrorIs(t, errs[1], leaf.ErrKeyTooShort)

		var de *leaf.DecodeError
		require.True(t, errors.As(errs[1], &de))
		require.Equal(t, bad2.Key, de.Key)
	})
}
