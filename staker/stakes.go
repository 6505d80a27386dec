// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// StakeToken stakes deposited [tokenID] in the incentive at [key], recording
// the position's liquidity and seconds-per-liquidity-inside as of now
func (s *Staker) StakeToken(ctx context.Context, tokenID uint64, key IncentiveKey, caller common.Address) error {
	id := IncentiveID(key)

	err := s.update(ctx, func(ctx context.Context, tx *txn) error {
		d, err := s.ownedDeposit(tx, tokenID, caller)
		if err != nil {
			return err
		}
		if _, err := tx.getIncentive(id); err != nil {
			return err
		}

		now := s.clock.Now()
		if now < key.StartTime {
			return fmt.Errorf("%w: starts at %d, now %d", ErrIncentiveNotStarted, key.StartTime, now)
		}
		if now >= key.EndTime {
			return fmt.Errorf("%w: ended at %d, now %d", ErrIncentiveEnded, key.EndTime, now)
		}

		_, err = tx.getStake(tokenID, id)
		switch {
		case err == nil:
			return fmt.Errorf("%w: token %d in %s", ErrAlreadyStaked, tokenID, id)
		case !errors.Is(err, ErrNoStake):
			return err
		}

		snap, err := s.oracle.PositionSnapshot(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("position %d: %w", tokenID, err)
		}
		if snap.Pool != key.Pool {
			return fmt.Errorf("%w: token %d is in %s, incentive pool %s", ErrPoolMismatch, tokenID, snap.Pool, key.Pool)
		}
		if snap.Liquidity == nil || snap.Liquidity.IsZero() {
			return fmt.Errorf("%w: token %d", ErrNoLiquidity, tokenID)
		}

		tx.putStake(tokenID, id, &Stake{
			SecondsPerLiquidityInsideInitialX128: snap.SecondsPerLiquidityInsideX128.Clone(),
			Liquidity:                            snap.Liquidity.Clone(),
		})
		d.NumberOfStakes++
		tx.putDeposit(tokenID, d)
		if err := tx.incrementStakeCount(id); err != nil {
			return err
		}
		tx.emit(TokenStaked{TokenID: tokenID, IncentiveID: id, Liquidity: snap.Liquidity.Clone()})
		s.log.Info("token staked", "tokenID", tokenID, "incentiveID", id, "liquidity", snap.Liquidity)
		return nil
	})
	if err != nil {
		s.log.Debug("stake rejected", "tokenID", tokenID, "incentiveID", id, "err", err)
	}
	return err
}

// UnstakeToken ends the stake of [tokenID] in the incentive at [key] and pays
// the accrued reward to the deposit owner. The stake is gone and the reward
// counted as claimed even if the payment fails; the returned error then wraps
// ErrTransferFailed.
func (s *Staker) UnstakeToken(ctx context.Context, tokenID uint64, key IncentiveKey, caller common.Address) (*uint256.Int, error) {
	id := IncentiveID(key)

	var (
		reward *uint256.Int
		owner  common.Address
	)
	err := s.update(ctx, func(ctx context.Context, tx *txn) error {
		d, err := s.ownedDeposit(tx, tokenID, caller)
		if err != nil {
			return err
		}
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

		var secondsInsideX128 *uint256.Int
		reward, secondsInsideX128 = ComputeRewardAmount(rewardInputs(inc, st, snap, s.clock.Now()))
		inc.TotalRewardUnclaimed = new(uint256.Int).Sub(inc.TotalRewardUnclaimed, reward)
		inc.TotalSecondsClaimedX128 = new(uint256.Int).Add(inc.TotalSecondsClaimedX128, secondsInsideX128)
		tx.putIncentive(id, inc)
		if err := tx.decrementStakeCount(id); err != nil {
			return err
		}

		d.NumberOfStakes--
		tx.putDeposit(tokenID, d)
		tx.delete(stakeKey(tokenID, id))
		tx.emit(TokenUnstaked{TokenID: tokenID, IncentiveID: id, Reward: reward.Clone()})
		if err := tx.commit(); err != nil {
			return err
		}
		owner = d.Owner

		if reward.IsZero() {
			return nil
		}
		if err := s.gateway.TransferOut(ctx, key.RewardToken, owner, reward); err != nil {
			s.log.Warn("reward transfer failed",
				"tokenID", tokenID,
				"incentiveID", id,
				"to", owner,
				"amount", reward,
				"err", err,
			)
			return fmt.Errorf("%w: reward %s to %s: %w", ErrTransferFailed, reward.Dec(), owner, err)
		}
		return nil
	})
	if reward == nil || owner == (common.Address{}) {
		s.log.Debug("unstake rejected", "tokenID", tokenID, "incentiveID", id, "err", err)
		return nil, err
	}

	s.log.Info("token unstaked", "tokenID", tokenID, "incentiveID", id, "reward", reward, "owner", owner)
	return reward, err
}
