// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package staker implements liquidity-mining incentives for concentrated
// liquidity positions. Sponsors fund an incentive for one pool over a time
// window; position owners deposit their position token, stake it against the
// incentive and collect a pro-rata share of the budget when they unstake.
package staker

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// IncentiveKey identifies an incentive. Its hash is the incentive ID.
type IncentiveKey struct {
	RewardToken common.Address
	Pool        common.Address
	StartTime   uint64
	EndTime     uint64
	Refundee    common.Address
}

// Incentive is a funded reward program for one pool
type Incentive struct {
	Key IncentiveKey

	TotalRewardUnclaimed    *uint256.Int // Remaining budget, never increases
	TotalSecondsClaimedX128 *uint256.Int // Liquidity-seconds already paid for, Q128
	NumberOfStakes          uint64
	ClaimDeadline           uint64
}

// Deposit is a position token held in custody by the staker
type Deposit struct {
	Owner          common.Address
	NumberOfStakes uint64
}

// Stake is one deposited position earning from one incentive
type Stake struct {
	SecondsPerLiquidityInsideInitialX128 *uint256.Int
	Liquidity                            *uint256.Int // Fixed at stake time
}

// PositionSnapshot is what the pool reports about a position at one instant
type PositionSnapshot struct {
	Pool                          common.Address
	TickLower                     int32
	TickUpper                     int32
	Liquidity                     *uint256.Int
	SecondsPerLiquidityInsideX128 *uint256.Int // Wrapping; only deltas are meaningful
}

// PositionOracle reads live position state from the pool
type PositionOracle interface {
	PositionSnapshot(ctx context.Context, tokenID uint64) (PositionSnapshot, error)
}

// TransferGateway moves fungible assets in and out of the staker's account
type TransferGateway interface {
	TransferIn(ctx context.Context, asset, from common.Address, amount *uint256.Int) error
	TransferOut(ctx context.Context, asset, to common.Address, amount *uint256.Int) error
}

// CustodyRegistry owns position tokens. SafeTransferFrom into the staker must
// call the staker's OnPositionReceived with the same context before returning.
type CustodyRegistry interface {
	SafeTransferFrom(ctx context.Context, operator, from, to common.Address, tokenID uint64, data []byte) error
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
}

// Clock supplies the current time in seconds
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// Backend bundles the collaborators a Staker calls out to
type Backend struct {
	Oracle  PositionOracle
	Gateway TransferGateway
	Custody CustodyRegistry
	Clock   Clock
	Events  EventSink // Optional
}

// Params are the deployment parameters of a Staker
type Params struct {
	// Address is the staker's own account: custodian of deposits and budgets
	Address common.Address

	// Zero disables the limit
	MaxIncentiveStartLeadTime uint64
	MaxIncentiveDuration      uint64
}

var (
	ErrInvalidWindow       = errors.New("invalid incentive window")
	ErrInvalidReward       = errors.New("reward must be positive")
	ErrInvalidRewardToken  = errors.New("reward token is the zero address")
	ErrDuplicateIncentive  = errors.New("incentive already exists")
	ErrIncentiveNotFound   = errors.New("incentive not found")
	ErrTooEarly            = errors.New("cannot end incentive before claim deadline")
	ErrNotOwner            = errors.New("caller is not the deposit owner")
	ErrActiveStakes        = errors.New("active stakes")
	ErrIncentiveNotStarted = errors.New("incentive not started")
	ErrIncentiveEnded      = errors.New("incentive ended")
	ErrAlreadyStaked       = errors.New("token already staked")
	ErrNoStake             = errors.New("stake does not exist")
	ErrPoolMismatch        = errors.New("token pool is not the incentive pool")
	ErrNoLiquidity         = errors.New("cannot stake token with 0 liquidity")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrRefundFailed        = errors.New("refund failed")
	ErrDepositNotFound     = errors.New("deposit not found")
	ErrAlreadyDeposited    = errors.New("token already deposited")
	ErrUnauthorized        = errors.New("not called by the custody registry")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrReentrant           = errors.New("reentrant call")
	ErrCorruptRecord       = errors.New("corrupt record")
)
