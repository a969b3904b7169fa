/*
Package attestor implements the attestation service. It periodically attests
the chain state kept in the store, persists attestation records and keeps the
latest attestation trees to build proofs from.
*/
package attestor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/attestree/pkg/config"
	"github.com/nspcc-dev/attestree/pkg/core/attestation"
	"github.com/nspcc-dev/attestree/pkg/core/foliation"
	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/nspcc-dev/attestree/pkg/core/state"
	"github.com/nspcc-dev/attestree/pkg/core/storage"
	"github.com/nspcc-dev/attestree/pkg/io"
	"go.uber.org/zap"
)

// ErrUnknownHeight is returned when there is no attestation made at the
// requested height.
var ErrUnknownHeight = errors.New("no attestation at the height")

// Service is the attestation service.
type Service struct {
	cfg        config.Attestation
	store      storage.Store
	log        *zap.Logger
	foliations []foliation.Foliation

	// lock serializes attestations.
	lock  sync.Mutex
	trees *lru.Cache

	lastHeight atomic.Uint32
	attested   atomic.Bool

	started  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// New creates a new attestation service over the given store.
func New(cfg config.Attestation, store storage.Store, log *zap.Logger) (*Service, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultInterval
	}
	if cfg.TreeCacheSize <= 0 {
		cfg.TreeCacheSize = config.DefaultTreeCacheSize
	}
	contract, err := cfg.StakingContract.ContractInfo()
	if err != nil {
		return nil, fmt.Errorf("bad staking contract: %w", err)
	}
	fs := make([]foliation.Foliation, 0, len(cfg.Prefixes))
	for i, p := range cfg.Prefixes {
		f, err := newFoliation(p, contract)
		if err != nil {
			return nil, fmt.Errorf("prefix #%d: %w", i, err)
		}
		fs = append(fs, f)
	}
	trees, _ := lru.New(cfg.TreeCacheSize) // Never errors for positive size.
	return &Service{
		cfg:        cfg,
		store:      store,
		log:        log.With(zap.String("service", "attestor")),
		foliations: fs,
		trees:      trees,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func newFoliation(p config.AttestedPrefix, contract foliation.ContractInfo) (foliation.Foliation, error) {
	k, err := p.GetKind()
	if err != nil {
		return nil, err
	}
	f, err := foliation.New(k, contract)
	if err != nil || p.Pallet == "" {
		return f, err
	}
	ns := leaf.NewNamespace(p.Pallet, p.Storage, f.Namespace().Hashers...)
	switch k {
	case foliation.TableCommitmentsKind:
		return foliation.NewTableCommitmentsAt(ns), nil
	default:
		return foliation.NewStakingLocksAt(ns, contract), nil
	}
}

// Foliations returns foliations of all attested storage maps.
func (s *Service) Foliations() []foliation.Foliation {
	return s.foliations
}

// Attest attests the current chain state, stores and returns the
// attestation record.
func (s *Service) Attest() (*state.Attestation, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var (
		log   = s.log.With(zap.Stringer("run", uuid.New()))
		start = time.Now()
	)
	height, tree, err := s.buildCurrent()
	if err != nil {
		attestationFailures.Inc()
		log.Warn("attestation failed", zap.Error(err))
		return nil, err
	}
	a := &state.Attestation{
		Version:   state.AttestationVersion,
		Height:    height,
		Root:      tree.Root(),
		LeafCount: uint32(tree.LeafCount()),
		Timestamp: uint64(time.Now().UnixMilli()),
	}
	data, err := io.ToByteArray(a)
	if err == nil {
		err = s.store.PutChangeSet(map[string][]byte{
			string(storage.AttestationKey(height)): data,
		})
	}
	if err != nil {
		attestationFailures.Inc()
		log.Error("failed to store attestation", zap.Uint32("height", height), zap.Error(err))
		return nil, fmt.Errorf("failed to store attestation: %w", err)
	}
	s.trees.Add(height, tree)
	s.lastHeight.Store(height)
	s.attested.Store(true)

	d := time.Since(start)
	updateAttestationMetrics(height, a.LeafCount, d)
	log.Info("state attested",
		zap.Uint32("height", height),
		zap.Stringer("root", a.Root),
		zap.Uint32("leaves", a.LeafCount),
		zap.Duration("took", d))
	return a, nil
}

// buildCurrent builds the tree over a snapshot of the current chain state.
// The snapshot is released before returning.
func (s *Service) buildCurrent() (uint32, *attestation.Tree, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get state snapshot: %w", err)
	}
	defer snap.Release()

	height, err := storage.CurrentHeight(snap)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get state height: %w", err)
	}
	tree, err := s.buildTree(snap)
	if err != nil {
		return 0, nil, err
	}
	return height, tree, nil
}

func (s *Service) buildTree(r storage.Reader) (*attestation.Tree, error) {
	prefixes := make([]attestation.Prefix, len(s.foliations))
	for i, f := range s.foliations {
		p := f.Namespace().Prefix
		prefixes[i] = attestation.Prefix{
			Foliation: f,
			Entries: func(fn func(k, v []byte) bool) {
				storage.SeekChainState(r, p, fn)
			},
		}
	}
	return attestation.FromPrefixes(prefixes)
}

// Prove returns a proof for the pair of leaves of the tree attested at the
// given height. Trees of recent attestations are kept in memory, the tree of
// the current state is rebuilt if needed.
func (s *Service) Prove(height uint32, key1, key2 []byte) (*attestation.Proof, error) {
	tree, err := s.getTree(height)
	if err != nil {
		return nil, err
	}
	return tree.ProveLeafPair(key1, key2)
}

func (s *Service) getTree(height uint32) (*attestation.Tree, error) {
	if t, ok := s.trees.Get(height); ok {
		return t.(*attestation.Tree), nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if t, ok := s.trees.Get(height); ok {
		return t.(*attestation.Tree), nil
	}
	a, err := s.GetAttestation(height)
	if err != nil {
		return nil, err
	}
	h, tree, err := s.buildCurrent()
	if err != nil {
		return nil, err
	}
	if h != height || tree.Root() != a.Root {
		return nil, fmt.Errorf("%w %d: state has changed", ErrUnknownHeight, height)
	}
	s.trees.Add(height, tree)
	return tree, nil
}

// GetAttestation returns the attestation record made at the given height.
func (s *Service) GetAttestation(height uint32) (*state.Attestation, error) {
	data, err := s.store.Get(storage.AttestationKey(height))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w %d", ErrUnknownHeight, height)
		}
		return nil, err
	}
	a := new(state.Attestation)
	if err := io.FromByteArray(a, data); err != nil {
		return nil, fmt.Errorf("failed to decode attestation %d: %w", height, err)
	}
	return a, nil
}

// LastAttestation returns the latest stored attestation record.
func (s *Service) LastAttestation() (*state.Attestation, error) {
	var (
		a   *state.Attestation
		err error
	)
	s.store.Seek(storage.SeekRange{Prefix: storage.DataAttestation.Bytes(), Backwards: true}, func(k, v []byte) bool {
		a = new(state.Attestation)
		err = io.FromByteArray(a, v)
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode attestation: %w", err)
	}
	if a == nil {
		return nil, ErrUnknownHeight
	}
	return a, nil
}

// Start runs the attestation loop in a separate goroutine. The state is
// attested every time its height changes.
func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.log.Info("starting attestation service", zap.Duration("interval", s.cfg.Interval))
	go s.run()
}

// Shutdown stops the attestation loop and waits for it to finish.
func (s *Service) Shutdown() {
	if !s.started.Load() {
		return
	}
	s.quitOnce.Do(func() {
		s.log.Info("shutting down attestation service")
		close(s.quit)
	})
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	s.tick()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	h, err := storage.CurrentHeight(s.store)
	if err != nil {
		s.log.Debug("no chain state to attest", zap.Error(err))
		return
	}
	if s.attested.Load() && s.lastHeight.Load() == h {
		return
	}
	// Errors are logged and counted by Attest.
	_, _ = s.Attest()
}
