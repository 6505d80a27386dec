// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/staker/nft"
)

var (
	_ PositionOracle  = (*PositionManagerBackend)(nil)
	_ CustodyRegistry = (*PositionManagerBackend)(nil)
)

// PositionManagerBackend serves both the PositionOracle and the
// CustodyRegistry from an nft.PositionManager
type PositionManagerBackend struct {
	pm *nft.PositionManager
}

func NewPositionManagerBackend(pm *nft.PositionManager) *PositionManagerBackend {
	return &PositionManagerBackend{pm: pm}
}

func (b *PositionManagerBackend) PositionSnapshot(ctx context.Context, tokenID uint64) (PositionSnapshot, error) {
	snap, err := b.pm.PositionSnapshot(ctx, tokenID)
	if err != nil {
		return PositionSnapshot{}, err
	}
	return PositionSnapshot{
		Pool:                          snap.Pool,
		TickLower:                     snap.TickLower,
		TickUpper:                     snap.TickUpper,
		Liquidity:                     snap.Liquidity,
		SecondsPerLiquidityInsideX128: snap.SecondsPerLiquidityInsideX128,
	}, nil
}

func (b *PositionManagerBackend) SafeTransferFrom(ctx context.Context, operator, from, to common.Address, tokenID uint64, data []byte) error {
	return b.pm.SafeTransferFrom(ctx, operator, from, to, tokenID, data)
}

func (b *PositionManagerBackend) OwnerOf(_ context.Context, tokenID uint64) (common.Address, error) {
	return b.pm.OwnerOf(tokenID)
}
