// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
)

// DepositToken moves [tokenID] from [depositor] into the staker's custody.
// The Deposit is created by OnPositionReceived inside the same transaction,
// so a failed custody transfer leaves no record behind.
func (s *Staker) DepositToken(ctx context.Context, tokenID uint64, depositor common.Address) error {
	err := s.update(ctx, func(ctx context.Context, tx *txn) error {
		exists, err := tx.has(depositKey(tokenID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: token %d", ErrAlreadyDeposited, tokenID)
		}

		if err := s.custody.SafeTransferFrom(ctx, depositor, depositor, s.params.Address, tokenID, nil); err != nil {
			return fmt.Errorf("%w: custody of token %d: %w", ErrTransferFailed, tokenID, err)
		}

		// Registries that skip the hook still leave the token with us
		exists, err = tx.has(depositKey(tokenID))
		if err != nil {
			return err
		}
		if !exists {
			s.log.Debug("custody hook not called, recording deposit", "tokenID", tokenID)
			tx.putDeposit(tokenID, &Deposit{Owner: depositor})
			tx.emit(TokenDeposited{TokenID: tokenID, Owner: depositor})
		}
		return nil
	})
	if err != nil {
		s.log.Debug("deposit failed", "tokenID", tokenID, "depositor", depositor, "err", err)
	}
	return err
}

// OnPositionReceived is the custody registry's acceptance hook. It records a
// Deposit owned by [from] for a token that has just moved into custody,
// either through DepositToken or through a direct transfer to the staker.
func (s *Staker) OnPositionReceived(ctx context.Context, operator, from common.Address, tokenID uint64, data []byte) error {
	return s.join(ctx, func(ctx context.Context, tx *txn) error {
		owner, err := s.custody.OwnerOf(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		if owner != s.params.Address {
			return fmt.Errorf("%w: token %d is held by %s", ErrUnauthorized, tokenID, owner)
		}
		exists, err := tx.has(depositKey(tokenID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: token %d", ErrAlreadyDeposited, tokenID)
		}

		tx.putDeposit(tokenID, &Deposit{Owner: from})
		tx.emit(TokenDeposited{TokenID: tokenID, Owner: from})
		s.log.Info("token deposited", "tokenID", tokenID, "owner", from, "operator", operator)
		return nil
	})
}

// WithdrawToken returns [tokenID] to [recipient]. Only the deposit owner may
// withdraw, and only once the token has no stakes.
func (s *Staker) WithdrawToken(ctx context.Context, tokenID uint64, caller, recipient common.Address) error {
	if recipient == (common.Address{}) || recipient == s.params.Address {
		return fmt.Errorf("%w: %s", ErrInvalidRecipient, recipient)
	}

	return s.update(ctx, func(ctx context.Context, tx *txn) error {
		d, err := s.ownedDeposit(tx, tokenID, caller)
		if err != nil {
			return err
		}
		if d.NumberOfStakes != 0 {
			return fmt.Errorf("%w: token %d has %d", ErrActiveStakes, tokenID, d.NumberOfStakes)
		}

		tx.delete(depositKey(tokenID))
		if err := s.custody.SafeTransferFrom(ctx, s.params.Address, s.params.Address, recipient, tokenID, nil); err != nil {
			return fmt.Errorf("%w: custody of token %d: %w", ErrTransferFailed, tokenID, err)
		}
		tx.emit(TokenWithdrawn{TokenID: tokenID, To: recipient})
		s.log.Info("token withdrawn", "tokenID", tokenID, "to", recipient)
		return nil
	})
}

// TransferDeposit hands ownership of a deposit to [newOwner] without moving
// the token
func (s *Staker) TransferDeposit(ctx context.Context, tokenID uint64, caller, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: %s", ErrInvalidRecipient, newOwner)
	}

	return s.update(ctx, func(_ context.Context, tx *txn) error {
		d, err := s.ownedDeposit(tx, tokenID, caller)
		if err != nil {
			return err
		}

		old := d.Owner
		d.Owner = newOwner
		tx.putDeposit(tokenID, d)
		tx.emit(DepositTransferred{TokenID: tokenID, OldOwner: old, NewOwner: newOwner})
		s.log.Info("deposit transferred", "tokenID", tokenID, "from", old, "to", newOwner)
		return nil
	})
}

// ownedDeposit loads the deposit of [tokenID] and checks [caller] owns it. A
// missing deposit has no owner.
func (s *Staker) ownedDeposit(tx *txn, tokenID uint64, caller common.Address) (*Deposit, error) {
	d, err := tx.getDeposit(tokenID)
	if errors.Is(err, ErrDepositNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotOwner, err)
	}
	if err != nil {
		return nil, err
	}
	if d.Owner != caller {
		return nil, fmt.Errorf("%w: token %d", ErrNotOwner, tokenID)
	}
	return d, nil
}
