// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Record sizes in bytes
const (
	incentiveKeyLen    = 20 + 20 + 8 + 8 + 20
	incentiveRecordLen = incentiveKeyLen + 32 + 32 + 8 + 8
	depositRecordLen   = 20 + 8
	stakeRecordLen     = 32 + 32
)

func encodeIncentive(inc *Incentive) []byte {
	buf := make([]byte, incentiveRecordLen)
	copy(buf[0:20], inc.Key.RewardToken.Bytes())
	copy(buf[20:40], inc.Key.Pool.Bytes())
	binary.BigEndian.PutUint64(buf[40:48], inc.Key.StartTime)
	binary.BigEndian.PutUint64(buf[48:56], inc.Key.EndTime)
	copy(buf[56:76], inc.Key.Refundee.Bytes())

	reward := inc.TotalRewardUnclaimed.Bytes32()
	copy(buf[76:108], reward[:])
	seconds := inc.TotalSecondsClaimedX128.Bytes32()
	copy(buf[108:140], seconds[:])
	binary.BigEndian.PutUint64(buf[140:148], inc.NumberOfStakes)
	binary.BigEndian.PutUint64(buf[148:156], inc.ClaimDeadline)
	return buf
}

func decodeIncentive(data []byte) (*Incentive, error) {
	if len(data) != incentiveRecordLen {
		return nil, fmt.Errorf("%w: incentive is %d bytes", ErrCorruptRecord, len(data))
	}
	return &Incentive{
		Key: IncentiveKey{
			RewardToken: common.BytesToAddress(data[0:20]),
			Pool:        common.BytesToAddress(data[20:40]),
			StartTime:   binary.BigEndian.Uint64(data[40:48]),
			EndTime:     binary.BigEndian.Uint64(data[48:56]),
			Refundee:    common.BytesToAddress(data[56:76]),
		},
		TotalRewardUnclaimed:    new(uint256.Int).SetBytes(data[76:108]),
		TotalSecondsClaimedX128: new(uint256.Int).SetBytes(data[108:140]),
		NumberOfStakes:          binary.BigEndian.Uint64(data[140:148]),
		ClaimDeadline:           binary.BigEndian.Uint64(data[148:156]),
	}, nil
}

func encodeDeposit(d *Deposit) []byte {
	buf := make([]byte, depositRecordLen)
	copy(buf[0:20], d.Owner.Bytes())
	binary.BigEndian.PutUint64(buf[20:28], d.NumberOfStakes)
	return buf
}

func decodeDeposit(data []byte) (*Deposit, error) {
	if len(data) != depositRecordLen {
		return nil, fmt.Errorf("%w: deposit is %d bytes", ErrCorruptRecord, len(data))
	}
	return &Deposit{
		Owner:          common.BytesToAddress(data[0:20]),
		NumberOfStakes: binary.BigEndian.Uint64(data[20:28]),
	}, nil
}

func encodeStake(st *Stake) []byte {
	buf := make([]byte, stakeRecordLen)
	initial := st.SecondsPerLiquidityInsideInitialX128.Bytes32()
	copy(buf[0:32], initial[:])
	liquidity := st.Liquidity.Bytes32()
	copy(buf[32:64], liquidity[:])
	return buf
}

func decodeStake(data []byte) (*Stake, error) {
	if len(data) != stakeRecordLen {
		return nil, fmt.Errorf("%w: stake is %d bytes", ErrCorruptRecord, len(data))
	}
	return &Stake{
		SecondsPerLiquidityInsideInitialX128: new(uint256.Int).SetBytes(data[0:32]),
		Liquidity:                            new(uint256.Int).SetBytes(data[32:64]),
	}, nil
}
