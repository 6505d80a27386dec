// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

var (
	testToken0 = Currency{Address: common.HexToAddress("0x1111111111111111111111111111111111111111")}
	testToken1 = Currency{Address: common.HexToAddress("0x2222222222222222222222222222222222222222")}
	testKey    = PoolKey{Currency0: testToken0, Currency1: testToken1, Fee: Fee030, TickSpacing: TickSpacing030}
)

// q128 returns n * 2^128
func q128(n uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(n), 128)
}

func newTestPool(t *testing.T, tick int24, now uint64) (*Manager, common.Address) {
	t.Helper()
	m := NewManager(log.NewTestLogger(log.InfoLevel))
	addr, err := m.CreatePool(testKey, tick, now)
	require.NoError(t, err)
	return m, addr
}

func TestPoolKeyAddress(t *testing.T) {
	other := testKey
	other.Fee = Fee005

	require.Equal(t, testKey.Address(), testKey.Address())
	require.NotEqual(t, testKey.Address(), other.Address())
	id := testKey.ID()
	require.Equal(t, common.BytesToAddress(id[12:]), testKey.Address())
}

func TestCreatePoolValidation(t *testing.T) {
	m := NewManager(log.NewTestLogger(log.InfoLevel))

	unsorted := PoolKey{Currency0: testToken1, Currency1: testToken0, Fee: Fee030, TickSpacing: TickSpacing030}
	_, err := m.CreatePool(unsorted, 0, 0)
	require.ErrorIs(t, err, ErrCurrencyNotSorted)

	badFee := testKey
	badFee.Fee = FeeMax + 1
	_, err = m.CreatePool(badFee, 0, 0)
	require.ErrorIs(t, err, ErrInvalidFee)

	_, err = m.CreatePool(testKey, MaxTick+1, 0)
	require.ErrorIs(t, err, ErrTickOutOfRange)

	_, err = m.CreatePool(testKey, 0, 0)
	require.NoError(t, err)
	_, err = m.CreatePool(testKey, 0, 0)
	require.ErrorIs(t, err, ErrPoolExists)
}

func TestModifyLiquidityTickChecks(t *testing.T) {
	m, addr := newTestPool(t, 0, 0)

	require.ErrorIs(t, m.ModifyLiquidity(addr, 60, -60, big.NewInt(1), 0), ErrInvalidTickRange)
	require.ErrorIs(t, m.ModifyLiquidity(addr, -61, 60, big.NewInt(1), 0), ErrInvalidTickSpacing)
	require.ErrorIs(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(-1), 0), ErrInsufficientLiquidity)
	require.ErrorIs(t, m.ModifyLiquidity(common.Address{}, -60, 60, big.NewInt(1), 0), ErrPoolNotFound)
}

func TestSecondsInsideSinglePosition(t *testing.T) {
	m, addr := newTestPool(t, 0, 1000)
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(10), 1000))

	start, err := m.SnapshotCumulativesInside(addr, -60, 60, 1000)
	require.NoError(t, err)
	end, err := m.SnapshotCumulativesInside(addr, -60, 60, 1100)
	require.NoError(t, err)

	// 100 seconds with the position as the only in-range liquidity
	perLiquidity := new(uint256.Int).Sub(end, start)
	secondsX128 := new(uint256.Int).Mul(perLiquidity, uint256.NewInt(10))
	require.Equal(t, q128(100), secondsX128)
}

func TestSecondsInsideSharedLiquidity(t *testing.T) {
	m, addr := newTestPool(t, 0, 0)
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(10), 0))
	require.NoError(t, m.ModifyLiquidity(addr, -120, 120, big.NewInt(30), 0))

	start, err := m.SnapshotCumulativesInside(addr, -60, 60, 0)
	require.NoError(t, err)
	end, err := m.SnapshotCumulativesInside(addr, -60, 60, 400)
	require.NoError(t, err)

	// a quarter of the in-range liquidity for 400 seconds
	secondsX128 := new(uint256.Int).Mul(new(uint256.Int).Sub(end, start), uint256.NewInt(10))
	require.Equal(t, q128(100), secondsX128)
}

func TestSecondsInsideStopsOutOfRange(t *testing.T) {
	m, addr := newTestPool(t, 0, 0)
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(10), 0))

	start, err := m.SnapshotCumulativesInside(addr, -60, 60, 0)
	require.NoError(t, err)

	// in range for 50s, above the range for 50s, back in range for 25s
	require.NoError(t, m.MoveTick(addr, 120, 50))
	p, err := m.GetPool(addr)
	require.NoError(t, err)
	require.True(t, p.Liquidity.IsZero())

	require.NoError(t, m.MoveTick(addr, 0, 100))
	end, err := m.SnapshotCumulativesInside(addr, -60, 60, 125)
	require.NoError(t, err)

	secondsX128 := new(uint256.Int).Mul(new(uint256.Int).Sub(end, start), uint256.NewInt(10))
	require.Equal(t, q128(75), secondsX128)
}

func TestSecondsInsideBelowRange(t *testing.T) {
	m, addr := newTestPool(t, -300, 0)
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(5), 0))

	start, err := m.SnapshotCumulativesInside(addr, -60, 60, 0)
	require.NoError(t, err)
	require.NoError(t, m.MoveTick(addr, 0, 10))
	require.NoError(t, m.MoveTick(addr, -300, 30))
	end, err := m.SnapshotCumulativesInside(addr, -60, 60, 90)
	require.NoError(t, err)

	secondsX128 := new(uint256.Int).Mul(new(uint256.Int).Sub(end, start), uint256.NewInt(5))
	require.Equal(t, q128(20), secondsX128)
}

func TestAccumulatorWraparound(t *testing.T) {
	m, addr := newTestPool(t, 0, 0)

	// put the accumulator 5 seconds-per-liquidity below 2^256
	m.pools[addr].SecondsPerLiquidityCumulativeX128 = new(uint256.Int).Sub(new(uint256.Int), q128(5))
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(1), 0))

	before, err := m.GetPool(addr)
	require.NoError(t, err)
	start, err := m.SnapshotCumulativesInside(addr, -60, 60, 0)
	require.NoError(t, err)
	end, err := m.SnapshotCumulativesInside(addr, -60, 60, 10)
	require.NoError(t, err)

	after, err := m.GetPool(addr)
	require.NoError(t, err)
	require.Equal(t, q128(5), after.SecondsPerLiquidityCumulativeX128, "accumulator should have wrapped")
	require.True(t, after.SecondsPerLiquidityCumulativeX128.Lt(before.SecondsPerLiquidityCumulativeX128))

	require.Equal(t, q128(10), new(uint256.Int).Sub(end, start))
}

func TestObserveRejectsPastTime(t *testing.T) {
	m, addr := newTestPool(t, 0, 100)
	require.ErrorIs(t, m.Observe(addr, 99), ErrTimeWentBackwards)
	require.NoError(t, m.Observe(addr, 100))
}

func TestRemoveLiquidityClearsTicks(t *testing.T) {
	m, addr := newTestPool(t, 0, 0)
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(10), 0))
	require.NoError(t, m.ModifyLiquidity(addr, -60, 60, big.NewInt(-10), 5))

	_, err := m.SnapshotCumulativesInside(addr, -60, 60, 5)
	require.ErrorIs(t, err, ErrTickNotInitialized)

	p, err := m.GetPool(addr)
	require.NoError(t, err)
	require.True(t, p.Liquidity.IsZero())
}

func BenchmarkSnapshotCumulativesInside(b *testing.B) {
	m := NewManager(log.NewTestLogger(log.InfoLevel))
	addr, _ := m.CreatePool(testKey, 0, 0)
	_ = m.ModifyLiquidity(addr, -600, 600, big.NewInt(1_000_000), 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.SnapshotCumulativesInside(addr, -600, 600, uint64(i))
	}
}
