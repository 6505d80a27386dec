// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Staker is the incentive, deposit and stake ledger. Every public operation
// runs as one serialized transaction: it either commits all of its writes or
// none of them. Internal bookkeeping is committed before any outgoing
// transfer, so a collaborator calling back during a transfer sees final state.
type Staker struct {
	// mu serializes transactions; lookups share it
	mu sync.RWMutex

	db database.KeyValueReaderWriterDeleter

	oracle  PositionOracle
	gateway TransferGateway
	custody CustodyRegistry
	clock   Clock
	events  EventSink

	params Params
	log    log.Logger
}

// New returns a Staker persisting records to [db]. If [db] is a
// database.Batcher each transaction is written as one batch.
func New(db database.KeyValueReaderWriterDeleter, backend Backend, params Params, logger log.Logger) *Staker {
	return &Staker{
		db:      db,
		oracle:  backend.Oracle,
		gateway: backend.Gateway,
		custody: backend.Custody,
		clock:   backend.Clock,
		events:  backend.Events,
		params:  params,
		log:     logger,
	}
}

// Address returns the account that holds deposits and reward budgets
func (s *Staker) Address() common.Address {
	return s.params.Address
}

// GetIncentive returns the incentive with [id]
func (s *Staker) GetIncentive(ctx context.Context, id common.Hash) (*Incentive, error) {
	var inc *Incentive
	err := s.view(ctx, func(tx *txn) error {
		var err error
		inc, err = tx.getIncentive(id)
		return err
	})
	return inc, err
}

// GetDeposit returns the deposit of [tokenID]
func (s *Staker) GetDeposit(ctx context.Context, tokenID uint64) (*Deposit, error) {
	var d *Deposit
	err := s.view(ctx, func(tx *txn) error {
		var err error
		d, err = tx.getDeposit(tokenID)
		return err
	})
	return d, err
}

// GetStake returns the stake of [tokenID] in incentive [incentiveID]
func (s *Staker) GetStake(ctx context.Context, tokenID uint64, incentiveID common.Hash) (*Stake, error) {
	var st *Stake
	err := s.view(ctx, func(tx *txn) error {
		var err error
		st, err = tx.getStake(tokenID, incentiveID)
		return err
	})
	return st, err
}

// GetPositionDetails returns the pool, range and liquidity of [tokenID] as the
// oracle reports them now
func (s *Staker) GetPositionDetails(ctx context.Context, tokenID uint64) (PositionSnapshot, error) {
	return s.oracle.PositionSnapshot(ctx, tokenID)
}
