// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token keeps fungible balances in EVM state. The native asset (the
// zero address) uses account balances; every other asset keeps balances in
// storage slots under the asset's own address.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/staker/contract"
)

// Storage key prefixes
var (
	balancePrefix = []byte("bal")
	frozenPrefix  = []byte("frz")
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAssetFrozen         = errors.New("asset frozen")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// NativeAsset is the chain's own coin
var NativeAsset = common.Address{}

// Ledger moves fungible balances held in a StateDB
type Ledger struct {
	state contract.StateDB
	log   log.Logger
}

func NewLedger(state contract.StateDB, logger log.Logger) *Ledger {
	return &Ledger{state: state, log: logger}
}

// BalanceOf returns [account]'s balance of [asset]
func (l *Ledger) BalanceOf(asset, account common.Address) *uint256.Int {
	if asset == NativeAsset {
		return l.state.GetBalance(account)
	}
	slot := l.state.GetState(asset, makeStorageKey(balancePrefix, account))
	return new(uint256.Int).SetBytes(slot.Bytes())
}

// Mint credits [amount] of [asset] to [to]
func (l *Ledger) Mint(asset, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if asset == NativeAsset {
		l.state.AddBalance(to, amount, tracing.BalanceChangeUnspecified)
		return nil
	}
	bal := l.BalanceOf(asset, to)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	l.setBalance(asset, to, sum)
	return nil
}

// SetFrozen blocks or unblocks every transfer of [asset]
func (l *Ledger) SetFrozen(asset common.Address, frozen bool) {
	var v common.Hash
	if frozen {
		v[31] = 1
	}
	l.state.SetState(asset, makeStorageKey(frozenPrefix, asset), v)
}

// Frozen reports whether transfers of [asset] are blocked
func (l *Ledger) Frozen(asset common.Address) bool {
	return l.state.GetState(asset, makeStorageKey(frozenPrefix, asset))[31] == 1
}

// Transfer moves [amount] of [asset] from [from] to [to]
func (l *Ledger) Transfer(asset, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if l.Frozen(asset) {
		return fmt.Errorf("%w: %s", ErrAssetFrozen, asset)
	}
	bal := l.BalanceOf(asset, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, bal.Dec(), amount.Dec())
	}
	if amount.IsZero() || from == to {
		return nil
	}

	if asset == NativeAsset {
		l.state.SubBalance(from, amount, tracing.BalanceChangeTransfer)
		l.state.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	} else {
		l.setBalance(asset, from, new(uint256.Int).Sub(bal, amount))
		l.setBalance(asset, to, new(uint256.Int).Add(l.BalanceOf(asset, to), amount))
	}
	l.log.Debug("token transfer", "asset", asset, "from", from, "to", to, "amount", amount)
	return nil
}

// Gateway returns a view of the ledger that moves funds in and out of
// [custodian]'s account
func (l *Ledger) Gateway(custodian common.Address) *Gateway {
	return &Gateway{ledger: l, custodian: custodian}
}

func (l *Ledger) setBalance(asset, account common.Address, amount *uint256.Int) {
	l.state.SetState(asset, makeStorageKey(balancePrefix, account), common.Hash(amount.Bytes32()))
}

// Gateway pulls funds into and pushes funds out of one custodian account
type Gateway struct {
	ledger    *Ledger
	custodian common.Address
}

// TransferIn moves [amount] of [asset] from [from] to the custodian
func (g *Gateway) TransferIn(ctx context.Context, asset, from common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.ledger.Transfer(asset, from, g.custodian, amount)
}

// TransferOut moves [amount] of [asset] from the custodian to [to]
func (g *Gateway) TransferOut(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.ledger.Transfer(asset, g.custodian, to, amount)
}

// makeStorageKey creates a storage key from prefix and account
func makeStorageKey(prefix []byte, account common.Address) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(account.Bytes())
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}
