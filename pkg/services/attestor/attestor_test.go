package attestor

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/attestree/pkg/config"
	"github.com/nspcc-dev/attestree/pkg/core/attestation"
	"github.com/nspcc-dev/attestree/pkg/core/foliation"
	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/nspcc-dev/attestree/pkg/core/storage"
	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() config.Attestation {
	cfg := config.Default().Attestation
	cfg.Interval = 10 * time.Millisecond
	cfg.StakingContract = config.StakingContract{
		ChainID: "1",
		Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}
	return cfg
}

type chainState struct {
	t     *testing.T
	items map[string][]byte
}

func newChainState(t *testing.T) *chainState {
	return &chainState{t: t, items: make(map[string][]byte)}
}

func (c *chainState) commitment(name string, data []byte) []byte {
	f := foliation.NewTableCommitments()
	key, err := f.StorageKey(foliation.TableIdentifier{Name: []byte(name), Namespace: []byte("eth")}, foliation.DynamicDory)
	require.NoError(c.t, err)
	value, err := io.ToByteArray(&foliation.TableCommitmentBytes{Data: data})
	require.NoError(c.t, err)
	c.items[string(key)] = value
	return key
}

func (c *chainState) stake(id byte, amount uint64) []byte {
	f := foliation.NewStakingLocks(foliation.ContractInfo{})
	var account foliation.AccountID
	account[0] = id
	key, err := f.StorageKey(account)
	require.NoError(c.t, err)
	l := foliation.BalanceLock{ID: foliation.StakingLockID, Amount: uint256.NewInt(amount)}
	ls := foliation.Locks{l}
	value, err := io.ToByteArray(&ls)
	require.NoError(c.t, err)
	c.items[string(key)] = value
	return key
}

func (c *chainState) persist(s storage.Store, height uint32) {
	require.NoError(c.t, storage.PutChainState(s, c.items, height))
	c.items = make(map[string][]byte)
}

func newTestService(t *testing.T, s storage.Store) *Service {
	srv, err := New(testConfig(), s, zaptest.NewLogger(t))
	require.NoError(t, err)
	return srv
}

func TestNew(t *testing.T) {
	s := storage.NewMemoryStore()
	srv := newTestService(t, s)
	require.Len(t, srv.Foliations(), 2)
	require.Equal(t, foliation.TableCommitmentsKind, srv.Foliations()[0].Kind())

	t.Run("custom namespace", func(t *testing.T) {
		cfg := testConfig()
		cfg.Prefixes = []config.AttestedPrefix{{Kind: "staking-locks", Pallet: "Staking", Storage: "Locks"}}
		srv, err := New(cfg, s, zaptest.NewLogger(t))
		require.NoError(t, err)
		ns := srv.Foliations()[0].Namespace()
		require.Equal(t, leaf.NewPrefix("Staking", "Locks"), ns.Prefix)
		require.Equal(t, foliation.LocksNamespace().Hashers, ns.Hashers)
	})
	t.Run("bad prefix", func(t *testing.T) {
		cfg := testConfig()
		cfg.Prefixes = []config.AttestedPrefix{{Kind: "accounts"}}
		_, err := New(cfg, s, zaptest.NewLogger(t))
		require.Error(t, err)
	})
	t.Run("bad contract", func(t *testing.T) {
		cfg := testConfig()
		cfg.StakingContract.Address = "0x01"
		_, err := New(cfg, s, zaptest.NewLogger(t))
		require.Error(t, err)
	})
}

func TestAttest(t *testing.T) {
	s := storage.NewMemoryStore()
	srv := newTestService(t, s)

	t.Run("no state", func(t *testing.T) {
		failures := testutil.ToFloat64(attestationFailures)
		_, err := srv.Attest()
		require.ErrorIs(t, err, storage.ErrKeyNotFound)
		require.Equal(t, failures+1, testutil.ToFloat64(attestationFailures))
	})

	cs := newChainState(t)
	t.Run("no leaves", func(t *testing.T) {
		cs.persist(s, 1)
		_, err := srv.Attest()
		require.ErrorIs(t, err, attestation.ErrNoLeaves)
	})

	k1 := cs.commitment("blocks", []byte{1, 2, 3})
	k2 := cs.stake(1, 1000)
	cs.stake(2, 5)
	cs.persist(s, 10)

	a, err := srv.Attest()
	require.NoError(t, err)
	require.Equal(t, uint32(10), a.Height)
	require.Equal(t, uint32(3), a.LeafCount)
	require.Equal(t, float64(10), testutil.ToFloat64(attestedHeight))
	require.Equal(t, float64(3), testutil.ToFloat64(attestedLeaves))

	stored, err := srv.GetAttestation(10)
	require.NoError(t, err)
	require.Equal(t, a, stored)
	last, err := srv.LastAttestation()
	require.NoError(t, err)
	require.Equal(t, a, last)

	_, err = srv.GetAttestation(9)
	require.ErrorIs(t, err, ErrUnknownHeight)

	p, err := srv.Prove(10, k1, k2)
	require.NoError(t, err)
	require.NoError(t, attestation.Verify(p, a.Root))
	require.True(t, p.First.Matches([]byte{1, 2, 3}))

	_, err = srv.Prove(10, k1, []byte{1, 2, 3})
	require.ErrorIs(t, err, attestation.ErrLeafNotFound)
	_, err = srv.Prove(11, k1, k2)
	require.ErrorIs(t, err, ErrUnknownHeight)

	t.Run("rebuild after restart", func(t *testing.T) {
		srv := newTestService(t, s)
		p, err := srv.Prove(10, k2, k2)
		require.NoError(t, err)
		require.NoError(t, attestation.Verify(p, a.Root))
	})

	t.Run("state changed", func(t *testing.T) {
		cs.stake(3, 7)
		cs.persist(s, 11)

		srv := newTestService(t, s)
		_, err := srv.Prove(10, k1, k2)
		require.ErrorIs(t, err, ErrUnknownHeight)

		a11, err := srv.Attest()
		require.NoError(t, err)
		require.Equal(t, uint32(4), a11.LeafCount)
		require.NotEqual(t, a.Root, a11.Root)

		last, err := srv.LastAttestation()
		require.NoError(t, err)
		require.Equal(t, uint32(11), last.Height)
	})
}

func TestLastAttestationEmpty(t *testing.T) {
	srv := newTestService(t, storage.NewMemoryStore())
	_, err := srv.LastAttestation()
	require.ErrorIs(t, err, ErrUnknownHeight)
}

func TestStartShutdown(t *testing.T) {
	s := storage.NewMemoryStore()
	srv := newTestService(t, s)

	// Nothing to stop yet.
	srv.Shutdown()

	cs := newChainState(t)
	cs.commitment("blocks", []byte{1})
	cs.persist(s, 5)

	srv.Start()
	srv.Start()
	require.Eventually(t, func() bool {
		_, err := srv.GetAttestation(5)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cs.commitment("transactions", []byte{2})
	cs.persist(s, 6)
	require.Eventually(t, func() bool {
		a, err := srv.GetAttestation(6)
		return err == nil && a.LeafCount == 2
	}, time.Second, 5*time.Millisecond)

	srv.Shutdown()
	srv.Shutdown()
}
