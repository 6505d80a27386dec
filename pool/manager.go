// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Manager owns every pool and serializes access to them
type Manager struct {
	// mu protects concurrent access to shared state
	mu sync.RWMutex

	// pools stores all pool states by pool address
	pools map[common.Address]*Pool

	log log.Logger
}

// NewManager creates an empty pool manager
func NewManager(logger log.Logger) *Manager {
	return &Manager{
		pools: make(map[common.Address]*Pool),
		log:   logger,
	}
}

// CreatePool registers a pool at [tick], starting its accumulator at [now]
func (m *Manager) CreatePool(key PoolKey, tick int24, now uint64) (common.Address, error) {
	if bytes.Compare(key.Currency0.Address.Bytes(), key.Currency1.Address.Bytes()) >= 0 {
		return common.Address{}, ErrCurrencyNotSorted
	}
	if key.Fee > FeeMax {
		return common.Address{}, ErrInvalidFee
	}
	if key.TickSpacing <= 0 {
		return common.Address{}, ErrInvalidTickSpacing
	}
	if tick < MinTick || tick > MaxTick {
		return common.Address{}, ErrTickOutOfRange
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	addr := key.Address()
	if _, ok := m.pools[addr]; ok {
		return common.Address{}, ErrPoolExists
	}
	m.pools[addr] = &Pool{
		Key:                               key,
		Tick:                              tick,
		Liquidity:                         uint256.NewInt(0),
		SecondsPerLiquidityCumulativeX128: uint256.NewInt(0),
		LastObservation:                   now,
		ticks:                             make(map[int24]*TickInfo),
	}
	m.log.Debug("pool created", "pool", addr, "tick", tick)
	return addr, nil
}

// ModifyLiquidity adds (positive delta) or removes (negative delta) liquidity
// over [tickLower, tickUpper) at time [now]
func (m *Manager) ModifyLiquidity(addr common.Address, tickLower, tickUpper int24, delta *big.Int, now uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[addr]
	if !ok {
		return ErrPoolNotFound
	}
	if err := checkTicks(p.Key, tickLower, tickUpper); err != nil {
		return err
	}
	if err := p.observe(now); err != nil {
		return err
	}

	if delta.Sign() < 0 {
		for _, t := range []int24{tickLower, tickUpper} {
			info, ok := p.ticks[t]
			if !ok || info.LiquidityGross.ToBig().CmpAbs(delta) < 0 {
				return ErrInsufficientLiquidity
			}
		}
	}

	active := p.Liquidity.ToBig()
	if tickLower <= p.Tick && p.Tick < tickUpper {
		active.Add(active, delta)
		if active.Sign() < 0 {
			return ErrInsufficientLiquidity
		}
	}

	p.updateTick(tickLower, delta, false)
	p.updateTick(tickUpper, delta, true)
	p.Liquidity = uint256.MustFromBig(active)
	return nil
}

// MoveTick moves the current price to [tick] at time [now], crossing every
// initialized tick in between
func (m *Manager) MoveTick(addr common.Address, tick int24, now uint64) error {
	if tick < MinTick || tick > MaxTick {
		return ErrTickOutOfRange
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[addr]
	if !ok {
		return ErrPoolNotFound
	}
	if err := p.observe(now); err != nil {
		return err
	}

	crossed := p.initializedBetween(p.Tick, tick)
	liquidity := p.Liquidity.ToBig()
	for _, t := range crossed {
		if tick > p.Tick {
			liquidity.Add(liquidity, p.ticks[t].LiquidityNet)
		} else {
			liquidity.Sub(liquidity, p.ticks[t].LiquidityNet)
		}
	}
	if liquidity.Sign() < 0 {
		return fmt.Errorf("%w: crossing to tick %d", ErrInsufficientLiquidity, tick)
	}

	for _, t := range crossed {
		info := p.ticks[t]
		info.SecondsPerLiquidityOutsideX128 = new(uint256.Int).Sub(p.SecondsPerLiquidityCumulativeX128, info.SecondsPerLiquidityOutsideX128)
	}
	p.Liquidity = uint256.MustFromBig(liquidity)
	p.Tick = tick
	return nil
}

// Observe advances the pool's accumulator to [now]
func (m *Manager) Observe(addr common.Address, now uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[addr]
	if !ok {
		return ErrPoolNotFound
	}
	return p.observe(now)
}

// SnapshotCumulativesInside returns the seconds per liquidity spent inside
// [tickLower, tickUpper) as of [now]. The value wraps; only differences between
// two snapshots of the same range are meaningful.
func (m *Manager) SnapshotCumulativesInside(addr common.Address, tickLower, tickUpper int24, now uint64) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[addr]
	if !ok {
		return nil, ErrPoolNotFound
	}
	if err := checkTicks(p.Key, tickLower, tickUpper); err != nil {
		return nil, err
	}
	lower, okLower := p.ticks[tickLower]
	upper, okUpper := p.ticks[tickUpper]
	if !okLower || !okUpper {
		return nil, ErrTickNotInitialized
	}
	if err := p.observe(now); err != nil {
		return nil, err
	}

	inside := new(uint256.Int)
	switch {
	case p.Tick < tickLower:
		inside.Sub(lower.SecondsPerLiquidityOutsideX128, upper.SecondsPerLiquidityOutsideX128)
	case p.Tick < tickUpper:
		inside.Sub(p.SecondsPerLiquidityCumulativeX128, lower.SecondsPerLiquidityOutsideX128)
		inside.Sub(inside, upper.SecondsPerLiquidityOutsideX128)
	default:
		inside.Sub(upper.SecondsPerLiquidityOutsideX128, lower.SecondsPerLiquidityOutsideX128)
	}
	return inside, nil
}

// GetPool returns a copy of the pool's top-level state
func (m *Manager) GetPool(addr common.Address) (Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pools[addr]
	if !ok {
		return Pool{}, ErrPoolNotFound
	}
	return Pool{
		Key:                               p.Key,
		Tick:                              p.Tick,
		Liquidity:                         p.Liquidity.Clone(),
		SecondsPerLiquidityCumulativeX128: p.SecondsPerLiquidityCumulativeX128.Clone(),
		LastObservation:                   p.LastObservation,
	}, nil
}

// observe accumulates elapsed seconds / in-range liquidity since the last
// observation. The accumulator wraps modulo 2^256.
func (p *Pool) observe(now uint64) error {
	if now < p.LastObservation {
		return ErrTimeWentBackwards
	}
	if now == p.LastObservation {
		return nil
	}
	if !p.Liquidity.IsZero() {
		elapsed := new(uint256.Int).Lsh(uint256.NewInt(now-p.LastObservation), 128)
		elapsed.Div(elapsed, p.Liquidity)
		p.SecondsPerLiquidityCumulativeX128 = new(uint256.Int).Add(p.SecondsPerLiquidityCumulativeX128, elapsed)
	}
	p.LastObservation = now
	return nil
}

// updateTick applies a liquidity delta to one boundary tick, initializing or
// clearing it as gross liquidity moves away from or back to zero
func (p *Pool) updateTick(tick int24, delta *big.Int, upper bool) {
	info, ok := p.ticks[tick]
	if !ok {
		info = &TickInfo{
			LiquidityGross:                 uint256.NewInt(0),
			LiquidityNet:                   big.NewInt(0),
			SecondsPerLiquidityOutsideX128: uint256.NewInt(0),
		}
		// By convention all growth happened below a tick at or under the current one
		if tick <= p.Tick {
			info.SecondsPerLiquidityOutsideX128 = p.SecondsPerLiquidityCumulativeX128.Clone()
		}
		p.ticks[tick] = info
	}

	gross := new(big.Int).Add(info.LiquidityGross.ToBig(), delta)
	info.LiquidityGross = uint256.MustFromBig(gross)
	if upper {
		info.LiquidityNet = new(big.Int).Sub(info.LiquidityNet, delta)
	} else {
		info.LiquidityNet = new(big.Int).Add(info.LiquidityNet, delta)
	}

	if info.LiquidityGross.IsZero() {
		delete(p.ticks, tick)
	}
}

// initializedBetween returns the initialized ticks crossed moving from
// [from] to [to], in crossing order
func (p *Pool) initializedBetween(from, to int24) []int24 {
	crossed := make([]int24, 0)
	for t := range p.ticks {
		if (to > from && t > from && t <= to) || (to < from && t <= from && t > to) {
			crossed = append(crossed, t)
		}
	}
	sort.Slice(crossed, func(i, j int) bool {
		if to > from {
			return crossed[i] < crossed[j]
		}
		return crossed[i] > crossed[j]
	})
	return crossed
}

func checkTicks(key PoolKey, tickLower, tickUpper int24) error {
	if tickLower >= tickUpper {
		return ErrInvalidTickRange
	}
	if tickLower < MinTick || tickUpper > MaxTick {
		return ErrTickOutOfRange
	}
	if tickLower%key.TickSpacing != 0 || tickUpper%key.TickSpacing != 0 {
		return ErrInvalidTickSpacing
	}
	return nil
}
