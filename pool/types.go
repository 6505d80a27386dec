// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool models the part of a concentrated-liquidity pool that liquidity
// mining depends on: active liquidity, initialized ticks and the wrapping
// seconds-per-liquidity accumulator used to measure in-range time.
package pool

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// uint24 type alias for fees
type uint24 = uint32

// int24 type alias for ticks
type int24 = int32

// Pool fee tiers (hundredths of a bip)
const (
	Fee001 uint24 = 100    // 0.01% - stablecoins
	Fee005 uint24 = 500    // 0.05% - stable pairs
	Fee030 uint24 = 3000   // 0.30% - standard
	Fee100 uint24 = 10000  // 1.00% - exotic pairs
	FeeMax uint24 = 100000 // 10% max fee
)

// Tick spacing for different fee tiers
const (
	TickSpacing001 int24 = 1
	TickSpacing005 int24 = 10
	TickSpacing030 int24 = 60
	TickSpacing100 int24 = 200
)

var (
	MinTick int24 = -887272
	MaxTick int24 = 887272
)

// Currency represents a token (native or ERC20)
// Address(0) represents native LUX
type Currency struct {
	Address common.Address
}

// NativeCurrency represents native LUX
var NativeCurrency = Currency{Address: common.Address{}}

// IsNative returns true if this currency is native LUX
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// PoolKey uniquely identifies a pool
// Sorted by currency address (currency0 < currency1)
type PoolKey struct {
	Currency0   Currency // Lower address token
	Currency1   Currency // Higher address token
	Fee         uint24   // Fee in hundredths of a bip
	TickSpacing int24    // Tick spacing for concentrated liquidity
}

// ID computes the unique pool identifier
func (pk PoolKey) ID() [32]byte {
	h := blake3.New()
	h.Write(pk.Currency0.Address.Bytes())
	h.Write(pk.Currency1.Address.Bytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], uint32(pk.Fee))
	h.Write(feeBytes[1:]) // uint24

	var tickBytes [4]byte
	binary.BigEndian.PutUint32(tickBytes[:], uint32(pk.TickSpacing))
	h.Write(tickBytes[1:]) // int24

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// Address is the pool's address: the low 20 bytes of its ID.
// Incentives reference pools by this address.
func (pk PoolKey) Address() common.Address {
	id := pk.ID()
	return common.BytesToAddress(id[12:])
}

// TickInfo is the per-tick state a position boundary needs
type TickInfo struct {
	LiquidityGross *uint256.Int // Total liquidity referencing this tick
	LiquidityNet   *big.Int     // Liquidity added when crossed left to right

	// Seconds per unit of liquidity on the other side of this tick
	// (relative to the current tick). Only differences are meaningful.
	SecondsPerLiquidityOutsideX128 *uint256.Int
}

// Pool is the liquidity-time state of one pool
type Pool struct {
	Key       PoolKey
	Tick      int24        // Current tick
	Liquidity *uint256.Int // In-range liquidity

	// Wrapping Q128.128 running sum of seconds / in-range liquidity
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	// Timestamp the accumulator was last advanced to
	LastObservation uint64

	ticks map[int24]*TickInfo
}

// Errors
var (
	ErrPoolExists            = errors.New("pool already exists")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrCurrencyNotSorted     = errors.New("currencies not sorted")
	ErrInvalidFee            = errors.New("invalid fee")
	ErrInvalidTickSpacing    = errors.New("invalid tick spacing")
	ErrInvalidTickRange      = errors.New("invalid tick range")
	ErrTickOutOfRange        = errors.New("tick out of range")
	ErrTickNotInitialized    = errors.New("tick not initialized")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrTimeWentBackwards     = errors.New("observation time before last observation")
)
