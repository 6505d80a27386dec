// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/staker/contract"
)

type txnKey struct{}

// txn buffers the writes of one operation. A nil value is a delete. Nothing
// reaches the database until commit, so a failed operation leaves no trace.
type txn struct {
	s      *Staker
	writes map[string][]byte
	events []Event
}

func (s *Staker) newTxn() *txn {
	return &txn{s: s, writes: make(map[string][]byte)}
}

// txnFrom returns the transaction of [s] carried by [ctx], if any
func (s *Staker) txnFrom(ctx context.Context) (*txn, bool) {
	tx, ok := ctx.Value(txnKey{}).(*txn)
	if !ok || tx.s != s {
		return nil, false
	}
	return tx, true
}

// update runs [fn] in a new transaction while holding the write lock and
// commits it if [fn] succeeds. Calls made while a transaction of this staker
// is in flight on [ctx] fail with ErrReentrant.
func (s *Staker) update(ctx context.Context, fn func(context.Context, *txn) error) error {
	if _, ok := s.txnFrom(ctx); ok {
		return ErrReentrant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.newTxn()
	if err := fn(context.WithValue(ctx, txnKey{}, tx), tx); err != nil {
		return err
	}
	return tx.commit()
}

// join runs [fn] inside the transaction carried by [ctx], or in a new one
func (s *Staker) join(ctx context.Context, fn func(context.Context, *txn) error) error {
	if tx, ok := s.txnFrom(ctx); ok {
		return fn(ctx, tx)
	}
	return s.update(ctx, fn)
}

// view runs [fn] against committed state, or against the in-flight
// transaction when called re-entrantly
func (s *Staker) view(ctx context.Context, fn func(*txn) error) error {
	if tx, ok := s.txnFrom(ctx); ok {
		return fn(tx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.newTxn())
}

func (t *txn) get(key []byte) ([]byte, error) {
	if v, ok := t.writes[string(key)]; ok {
		if v == nil {
			return nil, database.ErrNotFound
		}
		return v, nil
	}
	return t.s.db.Get(key)
}

func (t *txn) has(key []byte) (bool, error) {
	if v, ok := t.writes[string(key)]; ok {
		return v != nil, nil
	}
	return t.s.db.Has(key)
}

func (t *txn) put(key, value []byte) {
	t.writes[string(key)] = value
}

func (t *txn) delete(key []byte) {
	t.writes[string(key)] = nil
}

func (t *txn) emit(e Event) {
	t.events = append(t.events, e)
}

// commit writes buffered records in key order, as one batch when the
// database supports batches, then publishes buffered events
func (t *txn) commit() error {
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var w database.KeyValueWriterDeleter = t.s.db
	var batch database.Batch
	if batcher, ok := t.s.db.(database.Batcher); ok {
		batch = batcher.NewBatch()
		w = batch
	}
	for _, k := range keys {
		var err error
		if v := t.writes[k]; v == nil {
			err = w.Delete([]byte(k))
		} else {
			err = w.Put([]byte(k), v)
		}
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	if batch != nil {
		if err := batch.Write(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	t.writes = make(map[string][]byte)

	events := t.events
	t.events = nil
	if t.s.events != nil {
		for _, e := range events {
			t.s.events.Emit(e)
		}
	}
	return nil
}

func (t *txn) getIncentive(id common.Hash) (*Incentive, error) {
	data, err := t.get(incentiveKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIncentiveNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeIncentive(data)
}

func (t *txn) putIncentive(id common.Hash, inc *Incentive) {
	t.put(incentiveKey(id), encodeIncentive(inc))
}

func (t *txn) getDeposit(tokenID uint64) (*Deposit, error) {
	data, err := t.get(depositKey(tokenID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: token %d", ErrDepositNotFound, tokenID)
	}
	if err != nil {
		return nil, err
	}
	return decodeDeposit(data)
}

func (t *txn) putDeposit(tokenID uint64, d *Deposit) {
	t.put(depositKey(tokenID), encodeDeposit(d))
}

func (t *txn) getStake(tokenID uint64, incentiveID common.Hash) (*Stake, error) {
	data, err := t.get(stakeKey(tokenID, incentiveID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: token %d in %s", ErrNoStake, tokenID, incentiveID)
	}
	if err != nil {
		return nil, err
	}
	return decodeStake(data)
}

func (t *txn) putStake(tokenID uint64, incentiveID common.Hash, st *Stake) {
	t.put(stakeKey(tokenID, incentiveID), encodeStake(st))
}

// stateStore keeps records in the storage of one account. A record at key k
// occupies slot k (its length plus one, zero when absent) and the 32-byte
// words that follow it.
type stateStore struct {
	state contract.StateDB
	addr  common.Address
}

var _ database.KeyValueReaderWriterDeleter = (*stateStore)(nil)

func newStateStore(state contract.StateDB, addr common.Address) *stateStore {
	return &stateStore{state: state, addr: addr}
}

func (s *stateStore) Has(key []byte) (bool, error) {
	return s.length(key) > 0, nil
}

func (s *stateStore) Get(key []byte) ([]byte, error) {
	n := s.length(key)
	if n == 0 {
		return nil, database.ErrNotFound
	}
	n--
	value := make([]byte, 0, n+31)
	for i := uint64(1); uint64(len(value)) < n; i++ {
		word := s.state.GetState(s.addr, slotAt(key, i))
		value = append(value, word.Bytes()...)
	}
	return value[:n], nil
}

func (s *stateStore) Put(key, value []byte) error {
	old := s.length(key)
	var header common.Hash
	binary.BigEndian.PutUint64(header[24:], uint64(len(value))+1)
	s.state.SetState(s.addr, common.BytesToHash(key), header)

	words := uint64(0)
	for off := 0; off < len(value); off += 32 {
		words++
		var word common.Hash
		copy(word[:], value[off:])
		s.state.SetState(s.addr, slotAt(key, words), word)
	}
	s.clearFrom(key, words+1, old)
	return nil
}

func (s *stateStore) Delete(key []byte) error {
	old := s.length(key)
	if old == 0 {
		return nil
	}
	s.state.SetState(s.addr, common.BytesToHash(key), common.Hash{})
	s.clearFrom(key, 1, old)
	return nil
}

// length returns the stored header: value length plus one, or zero
func (s *stateStore) length(key []byte) uint64 {
	header := s.state.GetState(s.addr, common.BytesToHash(key))
	return binary.BigEndian.Uint64(header[24:])
}

// clearFrom zeroes data words [from, end of a value whose header was [old]]
func (s *stateStore) clearFrom(key []byte, from, old uint64) {
	if old == 0 {
		return
	}
	oldWords := (old - 1 + 31) / 32
	for i := from; i <= oldWords; i++ {
		s.state.SetState(s.addr, slotAt(key, i), common.Hash{})
	}
}

// slotAt returns the storage slot of data word [i] of the record at [key]
func slotAt(key []byte, i uint64) common.Hash {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], i)
	return common.BytesToHash(makeStorageKey(key, idx[:]))
}
