// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nft

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/staker/pool"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	vault = common.HexToAddress("0x000000000000000000000000000000000000fa17")

	testKey = pool.PoolKey{
		Currency0:   pool.Currency{Address: common.HexToAddress("0x1111111111111111111111111111111111111111")},
		Currency1:   pool.Currency{Address: common.HexToAddress("0x2222222222222222222222222222222222222222")},
		Fee:         pool.Fee030,
		TickSpacing: pool.TickSpacing030,
	}
)

type recordingReceiver struct {
	calls  int
	from   common.Address
	reject error
	owner  func() common.Address
	seen   common.Address
}

func (r *recordingReceiver) OnPositionReceived(_ context.Context, _, from common.Address, _ uint64, _ []byte) error {
	r.calls++
	r.from = from
	if r.owner != nil {
		r.seen = r.owner()
	}
	return r.reject
}

type testEnv struct {
	pm    *PositionManager
	pools *pool.Manager
	pool  common.Address
	now   uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{now: 1000}
	logger := log.NewTestLogger(log.InfoLevel)
	env.pools = pool.NewManager(logger)
	addr, err := env.pools.CreatePool(testKey, 0, env.now)
	require.NoError(t, err)
	env.pool = addr
	env.pm = NewPositionManager(env.pools, func() uint64 { return env.now }, logger)
	return env
}

func (e *testEnv) mint(t *testing.T, owner common.Address, liquidity uint64) uint64 {
	t.Helper()
	id, err := e.pm.Mint(owner, e.pool, -60, 60, uint256.NewInt(liquidity))
	require.NoError(t, err)
	return id
}

func TestMint(t *testing.T) {
	env := newTestEnv(t)

	id := env.mint(t, alice, 10)
	require.Equal(t, uint64(1), id)
	require.Equal(t, uint64(2), env.mint(t, bob, 5))

	owner, err := env.pm.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	pos, err := env.pm.Positions(id)
	require.NoError(t, err)
	require.Equal(t, env.pool, pos.Pool)
	require.Equal(t, int32(-60), pos.TickLower)
	require.Equal(t, int32(60), pos.TickUpper)
	require.Equal(t, uint256.NewInt(10), pos.Liquidity)

	p, err := env.pools.GetPool(env.pool)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(15), p.Liquidity)

	_, err = env.pm.Mint(common.Address{}, env.pool, -60, 60, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidOwner)
	_, err = env.pm.Mint(alice, env.pool, -60, 60, uint256.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidLiquidity)
	_, err = env.pm.Mint(alice, env.pool, 60, -60, uint256.NewInt(1))
	require.ErrorIs(t, err, pool.ErrInvalidTickRange)
	_, err = env.pm.OwnerOf(99)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLiquidityChanges(t *testing.T) {
	env := newTestEnv(t)
	id := env.mint(t, alice, 10)

	// anyone may add liquidity
	require.NoError(t, env.pm.IncreaseLiquidity(id, uint256.NewInt(5)))
	require.ErrorIs(t, env.pm.DecreaseLiquidity(bob, id, uint256.NewInt(1)), ErrNotAuthorized)
	require.ErrorIs(t, env.pm.DecreaseLiquidity(alice, id, uint256.NewInt(16)), ErrInvalidLiquidity)
	require.NoError(t, env.pm.DecreaseLiquidity(alice, id, uint256.NewInt(3)))

	pos, err := env.pm.Positions(id)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(12), pos.Liquidity)

	p, err := env.pools.GetPool(env.pool)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(12), p.Liquidity)
}

func TestSafeTransferFrom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.mint(t, alice, 10)

	tests := []struct {
		name     string
		operator common.Address
		from     common.Address
		to       common.Address
		tokenID  uint64
		err      error
	}{
		{"zero recipient", alice, alice, common.Address{}, id, ErrInvalidRecipient},
		{"unknown token", alice, alice, bob, 42, ErrPositionNotFound},
		{"wrong from", bob, bob, alice, id, ErrNotTokenOwner},
		{"unapproved operator", bob, alice, bob, id, ErrNotAuthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.pm.SafeTransferFrom(ctx, tt.operator, tt.from, tt.to, tt.tokenID, nil)
			require.ErrorIs(t, err, tt.err)
		})
	}

	require.NoError(t, env.pm.Approve(alice, bob, id))
	require.Equal(t, bob, env.pm.GetApproved(id))
	require.NoError(t, env.pm.SafeTransferFrom(ctx, bob, alice, bob, id, nil))

	owner, err := env.pm.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, bob, owner)
	require.Equal(t, common.Address{}, env.pm.GetApproved(id), "approval cleared on transfer")

	env.pm.SetApprovalForAll(bob, alice, true)
	require.NoError(t, env.pm.SafeTransferFrom(ctx, alice, bob, alice, id, nil))
}

func TestReceiverHook(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.mint(t, alice, 10)

	recv := &recordingReceiver{}
	recv.owner = func() common.Address {
		owner, _ := env.pm.OwnerOf(id)
		return owner
	}
	require.NoError(t, env.pm.RegisterReceiver(vault, recv))
	require.ErrorIs(t, env.pm.RegisterReceiver(vault, recv), ErrReceiverConflicts)

	require.NoError(t, env.pm.SafeTransferFrom(ctx, alice, alice, vault, id, []byte("hi")))
	require.Equal(t, 1, recv.calls)
	require.Equal(t, alice, recv.from)
	require.Equal(t, vault, recv.seen, "hook observes the new owner")
}

func TestReceiverRejectionRevertsTransfer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.mint(t, alice, 10)
	require.NoError(t, env.pm.Approve(alice, bob, id))

	errNope := errors.New("nope")
	require.NoError(t, env.pm.RegisterReceiver(vault, &recordingReceiver{reject: errNope}))

	err := env.pm.SafeTransferFrom(ctx, alice, alice, vault, id, nil)
	require.ErrorIs(t, err, ErrTransferRejected)
	require.ErrorIs(t, err, errNope)

	owner, err := env.pm.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, alice, owner)
	require.Equal(t, bob, env.pm.GetApproved(id), "approval restored")
}

func TestPositionSnapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.mint(t, alice, 10)

	start, err := env.pm.PositionSnapshot(ctx, id)
	require.NoError(t, err)
	require.Equal(t, env.pool, start.Pool)
	require.Equal(t, uint256.NewInt(10), start.Liquidity)

	env.now += 100
	end, err := env.pm.PositionSnapshot(ctx, id)
	require.NoError(t, err)

	delta := new(uint256.Int).Sub(end.SecondsPerLiquidityInsideX128, start.SecondsPerLiquidityInsideX128)
	secondsX128 := new(uint256.Int).Mul(delta, end.Liquidity)
	require.Equal(t, new(uint256.Int).Lsh(uint256.NewInt(100), 128), secondsX128)

	_, err = env.pm.PositionSnapshot(ctx, 77)
	require.ErrorIs(t, err, ErrPositionNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = env.pm.PositionSnapshot(cancelled, id)
	require.ErrorIs(t, err, context.Canceled)
}
