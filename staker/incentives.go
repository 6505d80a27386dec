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

// CreateIncentive funds a new incentive with [reward] pulled from [sponsor]
func (s *Staker) CreateIncentive(ctx context.Context, key IncentiveKey, reward *uint256.Int, claimDeadline uint64, sponsor common.Address) (common.Hash, error) {
	id := IncentiveID(key)
	if err := s.validateIncentive(key, reward, claimDeadline); err != nil {
		s.log.Debug("incentive rejected", "incentiveID", id, "err", err)
		return common.Hash{}, err
	}

	err := s.update(ctx, func(ctx context.Context, tx *txn) error {
		exists, err := tx.has(incentiveKey(id))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateIncentive, id)
		}
		if err := s.gateway.TransferIn(ctx, key.RewardToken, sponsor, reward); err != nil {
			return fmt.Errorf("%w: budget from %s: %w", ErrTransferFailed, sponsor, err)
		}

		tx.putIncentive(id, &Incentive{
			Key:                     key,
			TotalRewardUnclaimed:    reward.Clone(),
			TotalSecondsClaimedX128: new(uint256.Int),
			ClaimDeadline:           claimDeadline,
		})
		tx.emit(IncentiveCreated{IncentiveID: id, Key: key, ClaimDeadline: claimDeadline, Reward: reward.Clone()})
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}

	s.log.Info("incentive created",
		"incentiveID", id,
		"pool", key.Pool,
		"rewardToken", key.RewardToken,
		"reward", reward,
		"start", key.StartTime,
		"end", key.EndTime,
	)
	return id, nil
}

func (s *Staker) validateIncentive(key IncentiveKey, reward *uint256.Int, claimDeadline uint64) error {
	if key.RewardToken == (common.Address{}) {
		return ErrInvalidRewardToken
	}
	if reward == nil || reward.IsZero() {
		return ErrInvalidReward
	}
	if key.EndTime <= key.StartTime {
		return fmt.Errorf("%w: end time %d not after start time %d", ErrInvalidWindow, key.EndTime, key.StartTime)
	}
	if claimDeadline < key.EndTime {
		return fmt.Errorf("%w: claim deadline %d before end time %d", ErrInvalidWindow, claimDeadline, key.EndTime)
	}

	now := s.clock.Now()
	if lead := s.params.MaxIncentiveStartLeadTime; lead > 0 && key.StartTime > now && key.StartTime-now > lead {
		return fmt.Errorf("%w: start time %d too far in the future", ErrInvalidWindow, key.StartTime)
	}
	if limit := s.params.MaxIncentiveDuration; limit > 0 && key.EndTime-key.StartTime > limit {
		return fmt.Errorf("%w: duration %d exceeds %d", ErrInvalidWindow, key.EndTime-key.StartTime, limit)
	}
	return nil
}

// EndIncentive deletes an incentive past its claim deadline and refunds the
// unclaimed budget to its refundee. The deletion stands even when the refund
// fails; the returned error then wraps ErrRefundFailed.
func (s *Staker) EndIncentive(ctx context.Context, key IncentiveKey) (*uint256.Int, error) {
	id := IncentiveID(key)

	var refund *uint256.Int
	err := s.update(ctx, func(ctx context.Context, tx *txn) error {
		inc, err := tx.getIncentive(id)
		if err != nil {
			return err
		}
		if now := s.clock.Now(); now <= inc.ClaimDeadline {
			return fmt.Errorf("%w: now %d, deadline %d", ErrTooEarly, now, inc.ClaimDeadline)
		}
		if inc.NumberOfStakes > 0 {
			return fmt.Errorf("%w: %d stakes remain in %s", ErrActiveStakes, inc.NumberOfStakes, id)
		}

		refund = inc.TotalRewardUnclaimed
		tx.delete(incentiveKey(id))
		tx.emit(IncentiveEnded{IncentiveID: id, Refund: refund.Clone()})
		if err := tx.commit(); err != nil {
			return err
		}

		if refund.IsZero() {
			return nil
		}
		if err := s.gateway.TransferOut(ctx, key.RewardToken, key.Refundee, refund); err != nil {
			s.log.Warn("incentive refund failed",
				"incentiveID", id,
				"refundee", key.Refundee,
				"amount", refund,
				"err", err,
			)
			return fmt.Errorf("%w: %w: %s to %s: %w", ErrRefundFailed, ErrTransferFailed, refund.Dec(), key.Refundee, err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrRefundFailed) {
		return nil, err
	}

	s.log.Info("incentive ended", "incentiveID", id, "refund", refund)
	return refund, err
}

// incrementStakeCount adds a stake to incentive [id]
func (t *txn) incrementStakeCount(id common.Hash) error {
	inc, err := t.getIncentive(id)
	if err != nil {
		return err
	}
	inc.NumberOfStakes++
	t.putIncentive(id, inc)
	return nil
}

// decrementStakeCount removes a stake from incentive [id]
func (t *txn) decrementStakeCount(id common.Hash) error {
	inc, err := t.getIncentive(id)
	if err != nil {
		return err
	}
	if inc.NumberOfStakes == 0 {
		return fmt.Errorf("%w: stake count underflow in %s", ErrCorruptRecord, id)
	}
	inc.NumberOfStakes--
	t.putIncentive(id, inc)
	return nil
}
