// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

// StakerRawABI is the Solidity-facing interface of the staker precompile.
// Incentive keys are passed as five flat arguments.
const StakerRawABI = `[
	{"type":"function","name":"createIncentive","stateMutability":"nonpayable",
	 "inputs":[{"name":"rewardToken","type":"address"},{"name":"pool","type":"address"},{"name":"startTime","type":"uint64"},{"name":"endTime","type":"uint64"},{"name":"refundee","type":"address"},{"name":"reward","type":"uint256"},{"name":"claimDeadline","type":"uint64"}],
	 "outputs":[{"name":"incentiveId","type":"bytes32"}]},
	{"type":"function","name":"endIncentive","stateMutability":"nonpayable",
	 "inputs":[{"name":"rewardToken","type":"address"},{"name":"pool","type":"address"},{"name":"startTime","type":"uint64"},{"name":"endTime","type":"uint64"},{"name":"refundee","type":"address"}],
	 "outputs":[{"name":"refund","type":"uint256"},{"name":"refunded","type":"bool"}]},
	{"type":"function","name":"depositToken","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"withdrawToken","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"to","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"transferDeposit","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"to","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"stakeToken","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"rewardToken","type":"address"},{"name":"pool","type":"address"},{"name":"startTime","type":"uint64"},{"name":"endTime","type":"uint64"},{"name":"refundee","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"unstakeToken","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"rewardToken","type":"address"},{"name":"pool","type":"address"},{"name":"startTime","type":"uint64"},{"name":"endTime","type":"uint64"},{"name":"refundee","type":"address"}],
	 "outputs":[{"name":"reward","type":"uint256"},{"name":"paid","type":"bool"}]},
	{"type":"function","name":"getIncentiveId","stateMutability":"pure",
	 "inputs":[{"name":"rewardToken","type":"address"},{"name":"pool","type":"address"},{"name":"startTime","type":"uint64"},{"name":"endTime","type":"uint64"},{"name":"refundee","type":"address"}],
	 "outputs":[{"name":"incentiveId","type":"bytes32"}]},
	{"type":"function","name":"incentives","stateMutability":"view",
	 "inputs":[{"name":"incentiveId","type":"bytes32"}],
	 "outputs":[{"name":"totalRewardUnclaimed","type":"uint256"},{"name":"totalSecondsClaimedX128","type":"uint256"},{"name":"numberOfStakes","type":"uint64"},{"name":"claimDeadline","type":"uint64"}]},
	{"type":"function","name":"deposits","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"owner","type":"address"},{"name":"numberOfStakes","type":"uint64"}]},
	{"type":"function","name":"stakes","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"incentiveId","type":"bytes32"}],
	 "outputs":[{"name":"secondsPerLiquidityInsideInitialX128","type":"uint256"},{"name":"liquidity","type":"uint256"}]},
	{"type":"function","name":"getRewardInfo","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"rewardToken","type":"address"},{"name":"pool","type":"address"},{"name":"startTime","type":"uint64"},{"name":"endTime","type":"uint64"},{"name":"refundee","type":"address"}],
	 "outputs":[{"name":"reward","type":"uint256"},{"name":"secondsInsideX128","type":"uint256"}]},
	{"type":"function","name":"getPositionDetails","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"pool","type":"address"},{"name":"tickLower","type":"int32"},{"name":"tickUpper","type":"int32"},{"name":"liquidity","type":"uint256"}]},
	{"type":"event","name":"IncentiveCreated","anonymous":false,
	 "inputs":[{"name":"incentiveId","type":"bytes32","indexed":true},{"name":"rewardToken","type":"address","indexed":true},{"name":"pool","type":"address","indexed":true},{"name":"startTime","type":"uint64","indexed":false},{"name":"endTime","type":"uint64","indexed":false},{"name":"refundee","type":"address","indexed":false},{"name":"claimDeadline","type":"uint64","indexed":false},{"name":"reward","type":"uint256","indexed":false}]},
	{"type":"event","name":"IncentiveEnded","anonymous":false,
	 "inputs":[{"name":"incentiveId","type":"bytes32","indexed":true},{"name":"refund","type":"uint256","indexed":false}]},
	{"type":"event","name":"TokenDeposited","anonymous":false,
	 "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true}]},
	{"type":"event","name":"TokenWithdrawn","anonymous":false,
	 "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"to","type":"address","indexed":true}]},
	{"type":"event","name":"DepositTransferred","anonymous":false,
	 "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"oldOwner","type":"address","indexed":true},{"name":"newOwner","type":"address","indexed":true}]},
	{"type":"event","name":"TokenStaked","anonymous":false,
	 "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"incentiveId","type":"bytes32","indexed":true},{"name":"liquidity","type":"uint256","indexed":false}]},
	{"type":"event","name":"TokenUnstaked","anonymous":false,
	 "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"incentiveId","type":"bytes32","indexed":true},{"name":"reward","type":"uint256","indexed":false}]}
]`

// StakerABI is the parsed precompile interface
var StakerABI = ParseABI(StakerRawABI)

// ExtendedABI wraps the standard ABI and adds PackOutput, UnpackInput, and PackEvent methods
type ExtendedABI struct {
	abi.ABI
}

// ParseABI parses the raw ABI JSON and returns an ExtendedABI
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

// PackOutput packs the given args as the output of given method name to conform the ABI.
// This does not include method ID.
func (e ExtendedABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	return method.Outputs.Pack(args...)
}

// UnpackInput unpacks the input according to the ABI.
// useStrictMode indicates whether to check the input data length strictly.
func (e ExtendedABI) UnpackInput(name string, data []byte, useStrictMode bool) ([]interface{}, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	if useStrictMode && len(data)%32 != 0 {
		return nil, fmt.Errorf("abi: improperly formatted input of %d bytes", len(data))
	}
	return method.Inputs.Unpack(data)
}

// PackEvent packs the given event name and arguments to conform the ABI.
// Returns the topics for the event and the packed data of non-indexed args.
func (e ExtendedABI) PackEvent(name string, args ...interface{}) ([]common.Hash, []byte, error) {
	event, exist := e.Events[name]
	if !exist {
		return nil, nil, fmt.Errorf("event '%s' not found", name)
	}
	if len(args) != len(event.Inputs) {
		return nil, nil, fmt.Errorf("event '%s' unexpected number of inputs %d", name, len(args))
	}

	var (
		nonIndexedInputs = make([]interface{}, 0)
		indexedInputs    = make([]interface{}, 0)
		nonIndexedArgs   abi.Arguments
	)

	for i, arg := range event.Inputs {
		if arg.Indexed {
			indexedInputs = append(indexedInputs, args[i])
		} else {
			nonIndexedArgs = append(nonIndexedArgs, arg)
			nonIndexedInputs = append(nonIndexedInputs, args[i])
		}
	}

	packedArguments, err := nonIndexedArgs.Pack(nonIndexedInputs...)
	if err != nil {
		return nil, nil, err
	}

	topics := make([]common.Hash, 0, len(indexedInputs)+1)
	if !event.Anonymous {
		topics = append(topics, event.ID)
	}
	for _, input := range indexedInputs {
		topic, err := packTopic(input)
		if err != nil {
			return nil, nil, err
		}
		topics = append(topics, topic)
	}

	return topics, packedArguments, nil
}

// packTopic packs a single indexed argument into a topic hash
func packTopic(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Address:
		return common.BytesToHash(v.Bytes()), nil
	case common.Hash:
		return v, nil
	case [32]byte:
		return common.Hash(v), nil
	case *big.Int:
		if v.Sign() < 0 || v.BitLen() > 256 {
			return common.Hash{}, fmt.Errorf("indexed integer out of range: %s", v)
		}
		return common.BigToHash(v), nil
	case []byte:
		return common.BytesToHash(crypto.Keccak256(v)), nil
	case string:
		return common.BytesToHash(crypto.Keccak256([]byte(v))), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported indexed type: %T", value)
	}
}

// packEvent encodes a staker event as log topics and data
func packEvent(e Event) ([]common.Hash, []byte, error) {
	switch ev := e.(type) {
	case IncentiveCreated:
		return StakerABI.PackEvent(ev.EventName(), [32]byte(ev.IncentiveID), ev.Key.RewardToken, ev.Key.Pool,
			ev.Key.StartTime, ev.Key.EndTime, ev.Key.Refundee, ev.ClaimDeadline, ev.Reward.ToBig())
	case IncentiveEnded:
		return StakerABI.PackEvent(ev.EventName(), [32]byte(ev.IncentiveID), ev.Refund.ToBig())
	case TokenDeposited:
		return StakerABI.PackEvent(ev.EventName(), new(big.Int).SetUint64(ev.TokenID), ev.Owner)
	case TokenWithdrawn:
		return StakerABI.PackEvent(ev.EventName(), new(big.Int).SetUint64(ev.TokenID), ev.To)
	case DepositTransferred:
		return StakerABI.PackEvent(ev.EventName(), new(big.Int).SetUint64(ev.TokenID), ev.OldOwner, ev.NewOwner)
	case TokenStaked:
		return StakerABI.PackEvent(ev.EventName(), new(big.Int).SetUint64(ev.TokenID), [32]byte(ev.IncentiveID), ev.Liquidity.ToBig())
	case TokenUnstaked:
		return StakerABI.PackEvent(ev.EventName(), new(big.Int).SetUint64(ev.TokenID), [32]byte(ev.IncentiveID), ev.Reward.ToBig())
	default:
		return nil, nil, fmt.Errorf("unknown event %T", e)
	}
}
