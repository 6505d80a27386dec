// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package nft is a non-fungible position manager: each token is a liquidity
// position in one pool over one tick range. Transfers to registered receivers
// invoke the receiver's acceptance hook synchronously and are undone if the
// hook rejects them.
package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/staker/pool"
)

var (
	ErrPositionNotFound  = errors.New("position not found")
	ErrNotTokenOwner     = errors.New("from is not the token owner")
	ErrNotAuthorized     = errors.New("caller not approved for token")
	ErrInvalidOwner      = errors.New("invalid owner")
	ErrInvalidRecipient  = errors.New("invalid recipient")
	ErrInvalidLiquidity  = errors.New("invalid liquidity amount")
	ErrTransferRejected  = errors.New("receiver rejected transfer")
	ErrReceiverConflicts = errors.New("receiver already registered")
)

// Receiver is a contract that accepts position tokens. OnPositionReceived runs
// after ownership has moved to the receiver; returning an error undoes the
// transfer.
type Receiver interface {
	OnPositionReceived(ctx context.Context, operator, from common.Address, tokenID uint64, data []byte) error
}

// Position is the state behind one token
type Position struct {
	Owner     common.Address
	Pool      common.Address
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

// Snapshot is a position's range, liquidity and the pool's seconds per
// liquidity inside that range, read at one instant
type Snapshot struct {
	Pool                          common.Address
	TickLower                     int32
	TickUpper                     int32
	Liquidity                     *uint256.Int
	SecondsPerLiquidityInsideX128 *uint256.Int
}

// PositionManager mints position tokens and tracks their ownership
type PositionManager struct {
	mu sync.RWMutex

	pools *pool.Manager
	now   func() uint64

	nextID    uint64
	positions map[uint64]*Position
	approvals map[uint64]common.Address
	operators map[common.Address]map[common.Address]bool
	receivers map[common.Address]Receiver

	log log.Logger
}

// NewPositionManager returns a manager minting positions in [pools], reading
// time from [now]
func NewPositionManager(pools *pool.Manager, now func() uint64, logger log.Logger) *PositionManager {
	return &PositionManager{
		pools:     pools,
		now:       now,
		nextID:    1,
		positions: make(map[uint64]*Position),
		approvals: make(map[uint64]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
		receivers: make(map[common.Address]Receiver),
		log:       logger,
	}
}

// RegisterReceiver marks [addr] as a contract whose hook runs on every
// incoming transfer
func (m *PositionManager) RegisterReceiver(addr common.Address, r Receiver) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.receivers[addr]; ok {
		return fmt.Errorf("%w: %s", ErrReceiverConflicts, addr)
	}
	m.receivers[addr] = r
	return nil
}

// Mint adds [liquidity] to [poolAddr] over [tickLower, tickUpper) and issues a
// token for it to [owner]
func (m *PositionManager) Mint(owner, poolAddr common.Address, tickLower, tickUpper int32, liquidity *uint256.Int) (uint64, error) {
	if owner == (common.Address{}) {
		return 0, ErrInvalidOwner
	}
	if liquidity == nil || liquidity.IsZero() {
		return 0, ErrInvalidLiquidity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.pools.ModifyLiquidity(poolAddr, tickLower, tickUpper, liquidity.ToBig(), m.now()); err != nil {
		return 0, fmt.Errorf("mint: %w", err)
	}

	id := m.nextID
	m.nextID++
	m.positions[id] = &Position{
		Owner:     owner,
		Pool:      poolAddr,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity.Clone(),
	}
	m.log.Debug("position minted", "tokenID", id, "owner", owner, "pool", poolAddr, "liquidity", liquidity)
	return id, nil
}

// IncreaseLiquidity adds liquidity to an existing position. Anyone may fund a
// position; the token owner is unchanged.
func (m *PositionManager) IncreaseLiquidity(tokenID uint64, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidLiquidity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[tokenID]
	if !ok {
		return ErrPositionNotFound
	}
	if err := m.pools.ModifyLiquidity(pos.Pool, pos.TickLower, pos.TickUpper, amount.ToBig(), m.now()); err != nil {
		return err
	}
	pos.Liquidity = new(uint256.Int).Add(pos.Liquidity, amount)
	return nil
}

// DecreaseLiquidity removes liquidity from a position on behalf of an
// authorized [caller]
func (m *PositionManager) DecreaseLiquidity(caller common.Address, tokenID uint64, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidLiquidity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[tokenID]
	if !ok {
		return ErrPositionNotFound
	}
	if !m.isAuthorized(caller, tokenID, pos.Owner) {
		return ErrNotAuthorized
	}
	if amount.Gt(pos.Liquidity) {
		return ErrInvalidLiquidity
	}
	delta := new(big.Int).Neg(amount.ToBig())
	if err := m.pools.ModifyLiquidity(pos.Pool, pos.TickLower, pos.TickUpper, delta, m.now()); err != nil {
		return err
	}
	pos.Liquidity = new(uint256.Int).Sub(pos.Liquidity, amount)
	return nil
}

// OwnerOf returns the current owner of [tokenID]
func (m *PositionManager) OwnerOf(tokenID uint64) (common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[tokenID]
	if !ok {
		return common.Address{}, ErrPositionNotFound
	}
	return pos.Owner, nil
}

// Approve lets [to] transfer [tokenID]. Only the owner or one of its operators
// may approve.
func (m *PositionManager) Approve(caller, to common.Address, tokenID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[tokenID]
	if !ok {
		return ErrPositionNotFound
	}
	if caller != pos.Owner && !m.operators[pos.Owner][caller] {
		return ErrNotAuthorized
	}
	m.approvals[tokenID] = to
	return nil
}

// GetApproved returns the single-token approval for [tokenID]
func (m *PositionManager) GetApproved(tokenID uint64) common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approvals[tokenID]
}

// SetApprovalForAll lets [operator] manage every token of [owner]
func (m *PositionManager) SetApprovalForAll(owner, operator common.Address, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.operators[owner] == nil {
		m.operators[owner] = make(map[common.Address]bool)
	}
	m.operators[owner][operator] = approved
}

// SafeTransferFrom moves [tokenID] from [from] to [to] on behalf of
// [operator]. If [to] is a registered receiver its hook is called after the
// move, without the manager's lock held, and a hook error reverts the move.
func (m *PositionManager) SafeTransferFrom(ctx context.Context, operator, from, to common.Address, tokenID uint64, data []byte) error {
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}

	m.mu.Lock()
	pos, ok := m.positions[tokenID]
	if !ok {
		m.mu.Unlock()
		return ErrPositionNotFound
	}
	if pos.Owner != from {
		m.mu.Unlock()
		return ErrNotTokenOwner
	}
	if !m.isAuthorized(operator, tokenID, from) {
		m.mu.Unlock()
		return ErrNotAuthorized
	}
	approved, hadApproval := m.approvals[tokenID]
	delete(m.approvals, tokenID)
	pos.Owner = to
	receiver := m.receivers[to]
	m.mu.Unlock()

	if receiver == nil {
		m.log.Debug("position transferred", "tokenID", tokenID, "from", from, "to", to)
		return nil
	}
	if err := receiver.OnPositionReceived(ctx, operator, from, tokenID, data); err != nil {
		m.mu.Lock()
		if pos.Owner == to {
			pos.Owner = from
			if hadApproval {
				m.approvals[tokenID] = approved
			}
		}
		m.mu.Unlock()
		m.log.Debug("position transfer rejected", "tokenID", tokenID, "to", to, "err", err)
		return fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}
	m.log.Debug("position transferred", "tokenID", tokenID, "from", from, "to", to)
	return nil
}

// Positions returns a copy of the position behind [tokenID]
func (m *PositionManager) Positions(tokenID uint64) (Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[tokenID]
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	return Position{
		Owner:     pos.Owner,
		Pool:      pos.Pool,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		Liquidity: pos.Liquidity.Clone(),
	}, nil
}

// PositionSnapshot reads the position and its pool's seconds per liquidity
// inside the position's range as of now
func (m *PositionManager) PositionSnapshot(ctx context.Context, tokenID uint64) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	pos, err := m.Positions(tokenID)
	if err != nil {
		return Snapshot{}, err
	}
	inside, err := m.pools.SnapshotCumulativesInside(pos.Pool, pos.TickLower, pos.TickUpper, m.now())
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot of position %d: %w", tokenID, err)
	}
	return Snapshot{
		Pool:                          pos.Pool,
		TickLower:                     pos.TickLower,
		TickUpper:                     pos.TickUpper,
		Liquidity:                     pos.Liquidity,
		SecondsPerLiquidityInsideX128: inside,
	}, nil
}

// isAuthorized must be called with mu held
func (m *PositionManager) isAuthorized(caller common.Address, tokenID uint64, owner common.Address) bool {
	if caller == (common.Address{}) {
		return false
	}
	return caller == owner || m.approvals[tokenID] == caller || m.operators[owner][caller]
}
