// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/staker/contract/contracttest"
)

var (
	rewardAsset = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	custodian   = common.HexToAddress("0x0000000000000000000000000000000000009015")
)

func newTestLedger() (*Ledger, *contracttest.MockStateDB) {
	state := contracttest.NewMockStateDB()
	return NewLedger(state, log.NewTestLogger(log.InfoLevel)), state
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger()
	require.NoError(t, l.Mint(rewardAsset, alice, uint256.NewInt(100)))

	tests := []struct {
		name   string
		amount *uint256.Int
		err    error
		alice  uint64
	}{
		{"nil amount", nil, ErrInvalidAmount, 100},
		{"too much", uint256.NewInt(101), ErrInsufficientBalance, 100},
		{"zero", uint256.NewInt(0), nil, 100},
		{"partial", uint256.NewInt(40), nil, 60},
		{"rest", uint256.NewInt(60), nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(rewardAsset, alice, custodian, tt.amount)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, uint256.NewInt(tt.alice), l.BalanceOf(rewardAsset, alice))
		})
	}
	require.Equal(t, uint256.NewInt(100), l.BalanceOf(rewardAsset, custodian))
}

func TestNativeTransfer(t *testing.T) {
	l, state := newTestLedger()
	state.SetBalance(alice, uint256.NewInt(50))

	require.NoError(t, l.Transfer(NativeAsset, alice, custodian, uint256.NewInt(20)))
	require.Equal(t, uint256.NewInt(30), state.GetBalance(alice))
	require.Equal(t, uint256.NewInt(20), l.BalanceOf(NativeAsset, custodian))
	require.ErrorIs(t, l.Transfer(NativeAsset, alice, custodian, uint256.NewInt(31)), ErrInsufficientBalance)
}

func TestFrozenAsset(t *testing.T) {
	l, _ := newTestLedger()
	require.NoError(t, l.Mint(rewardAsset, alice, uint256.NewInt(10)))

	l.SetFrozen(rewardAsset, true)
	require.True(t, l.Frozen(rewardAsset))
	require.ErrorIs(t, l.Transfer(rewardAsset, alice, custodian, uint256.NewInt(1)), ErrAssetFrozen)

	l.SetFrozen(rewardAsset, false)
	require.NoError(t, l.Transfer(rewardAsset, alice, custodian, uint256.NewInt(1)))
}

func TestMintOverflow(t *testing.T) {
	l, _ := newTestLedger()
	max := new(uint256.Int).SetAllOne()
	require.NoError(t, l.Mint(rewardAsset, alice, max))
	require.ErrorIs(t, l.Mint(rewardAsset, alice, uint256.NewInt(1)), ErrInvalidAmount)
}

func TestGateway(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()
	g := l.Gateway(custodian)
	require.NoError(t, l.Mint(rewardAsset, alice, uint256.NewInt(10)))

	require.NoError(t, g.TransferIn(ctx, rewardAsset, alice, uint256.NewInt(7)))
	require.NoError(t, g.TransferOut(ctx, rewardAsset, alice, uint256.NewInt(2)))
	require.Equal(t, uint256.NewInt(5), l.BalanceOf(rewardAsset, custodian))
	require.Equal(t, uint256.NewInt(5), l.BalanceOf(rewardAsset, alice))

	require.ErrorIs(t, g.TransferOut(ctx, rewardAsset, alice, uint256.NewInt(6)), ErrInsufficientBalance)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, g.TransferIn(cancelled, rewardAsset, alice, uint256.NewInt(1)), context.Canceled)
}
