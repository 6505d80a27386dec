// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"encoding/binary"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Storage key prefixes
var (
	incentivePrefix = []byte("incentive")
	depositPrefix   = []byte("deposit")
	stakePrefix     = []byte("stake")
)

// IncentiveID returns keccak256(abi.encode(rewardToken, pool, startTime,
// endTime, refundee)) with every field padded to a 32-byte word
func IncentiveID(key IncentiveKey) common.Hash {
	return common.BytesToHash(crypto.Keccak256(encodeIncentiveKey(key)))
}

func encodeIncentiveKey(key IncentiveKey) []byte {
	buf := make([]byte, 5*32)
	copy(buf[12:32], key.RewardToken.Bytes())
	copy(buf[44:64], key.Pool.Bytes())
	binary.BigEndian.PutUint64(buf[88:96], key.StartTime)
	binary.BigEndian.PutUint64(buf[120:128], key.EndTime)
	copy(buf[140:160], key.Refundee.Bytes())
	return buf
}

func incentiveKey(id common.Hash) []byte {
	return makeStorageKey(incentivePrefix, id.Bytes())
}

func depositKey(tokenID uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], tokenID)
	return makeStorageKey(depositPrefix, b[:])
}

func stakeKey(tokenID uint64, incentiveID common.Hash) []byte {
	var b [40]byte
	binary.BigEndian.PutUint64(b[:8], tokenID)
	copy(b[8:], incentiveID.Bytes())
	return makeStorageKey(stakePrefix, b[:])
}

// makeStorageKey creates a storage key from prefix and id
func makeStorageKey(prefix []byte, id []byte) []byte {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	key := make([]byte, 32)
	h.Digest().Read(key)
	return key
}
