// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// RewardInputs is the state a reward is computed from
type RewardInputs struct {
	TotalRewardUnclaimed    *uint256.Int
	TotalSecondsClaimedX128 *uint256.Int
	StartTime               uint64
	EndTime                 uint64

	Liquidity                            *uint256.Int
	SecondsPerLiquidityInsideInitialX128 *uint256.Int
	SecondsPerLiquidityInsideX128        *uint256.Int

	Now uint64
}

// ComputeRewardAmount returns the reward owed to one stake and the
// liquidity-seconds (Q128) it claims.
//
// The stake's liquidity-seconds are the wrapping difference of the pool's
// seconds-per-liquidity-inside accumulator times the staked liquidity. The
// reward is that share of the unclaimed liquidity-seconds elapsed so far,
// applied to the unclaimed budget. Claimed seconds never exceed the unclaimed
// seconds, so the sum of all rewards stays within the budget.
func ComputeRewardAmount(in RewardInputs) (reward, secondsInsideX128 *uint256.Int) {
	delta := new(uint256.Int).Sub(in.SecondsPerLiquidityInsideX128, in.SecondsPerLiquidityInsideInitialX128)
	secondsInsideX128, overflow := new(uint256.Int).MulOverflow(delta, in.Liquidity)

	until := in.Now
	if until > in.EndTime {
		until = in.EndTime
	}
	if until <= in.StartTime {
		return new(uint256.Int), new(uint256.Int)
	}
	elapsedX128 := new(uint256.Int).Lsh(uint256.NewInt(until-in.StartTime), 128)
	if !elapsedX128.Gt(in.TotalSecondsClaimedX128) {
		return new(uint256.Int), new(uint256.Int)
	}
	unclaimedX128 := new(uint256.Int).Sub(elapsedX128, in.TotalSecondsClaimedX128)

	if overflow || secondsInsideX128.Gt(unclaimedX128) {
		secondsInsideX128 = unclaimedX128
	}
	// secondsInsideX128 <= unclaimedX128 so the quotient fits
	reward, _ = new(uint256.Int).MulDivOverflow(in.TotalRewardUnclaimed, secondsInsideX128, unclaimedX128)
	return reward, secondsInsideX128
}

// RewardInfo previews the reward [tokenID] would collect from the incentive
// at [key] if it were unstaked now
func (s *Staker) RewardInfo(ctx context.Context, tokenID uint64, key IncentiveKey) (reward, secondsInsideX128 *uint256.Int, err error) {
	id := IncentiveID(key)
	err = s.view(ctx, func(tx *txn) error {
		st, err := tx.getStake(tokenID, id)
		if err != nil {
			return err
		}
		inc, err := tx.getIncentive(id)
		if err != nil {
			return err
		}
		snap, err := s.oracle.PositionSnapshot(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("position %d: %w", tokenID, err)
		}
		reward, secondsInsideX128 = ComputeRewardAmount(rewardInputs(inc, st, snap, s.clock.Now()))
		return nil
	})
	return reward, secondsInsideX128, err
}

func rewardInputs(inc *Incentive, st *Stake, snap PositionSnapshot, now uint64) RewardInputs {
	return RewardInputs{
		TotalRewardUnclaimed:                 inc.TotalRewardUnclaimed,
		TotalSecondsClaimedX128:              inc.TotalSecondsClaimedX128,
		StartTime:                            inc.Key.StartTime,
		EndTime:                              inc.Key.EndTime,
		Liquidity:                            st.Liquidity,
		SecondsPerLiquidityInsideInitialX128: st.SecondsPerLiquidityInsideInitialX128,
		SecondsPerLiquidityInsideX128:        snap.SecondsPerLiquidityInsideX128,
		Now:                                  now,
	}
}
