// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"

	"github.com/luxfi/staker/contract"
	"github.com/luxfi/staker/nft"
	"github.com/luxfi/staker/token"
)

var _ contract.StatefulPrecompiledContract = (*StakerContract)(nil)

// Gas costs
const (
	GasCreateIncentive   uint64 = 60_000
	GasEndIncentive      uint64 = 30_000
	GasDepositToken      uint64 = 40_000
	GasWithdrawToken     uint64 = 30_000
	GasTransferDeposit   uint64 = 10_000
	GasStakeToken        uint64 = 50_000
	GasUnstakeToken      uint64 = 60_000
	GasIncentiveID       uint64 = 500
	GasLookup            uint64 = 2_600
	GasRewardInfo        uint64 = 8_000
	GasGetPositionDetail uint64 = 5_000
)

var (
	ErrOutOfGas          = errors.New("out of gas")
	ErrWriteProtection   = errors.New("cannot write in read-only mode")
	ErrInputTooShort     = errors.New("input too short")
	ErrUnknownMethod     = errors.New("unknown method selector")
	ErrInvalidTokenID    = errors.New("token id does not fit in 64 bits")
	ErrNoPositionManager = errors.New("position manager not configured")
)

type methodSpec struct {
	gas       uint64
	writes    bool
	positions bool // needs the position manager
}

var methods = map[string]methodSpec{
	"createIncentive":    {gas: GasCreateIncentive, writes: true},
	"endIncentive":       {gas: GasEndIncentive, writes: true},
	"depositToken":       {gas: GasDepositToken, writes: true, positions: true},
	"withdrawToken":      {gas: GasWithdrawToken, writes: true, positions: true},
	"transferDeposit":    {gas: GasTransferDeposit, writes: true},
	"stakeToken":         {gas: GasStakeToken, writes: true, positions: true},
	"unstakeToken":       {gas: GasUnstakeToken, writes: true, positions: true},
	"getIncentiveId":     {gas: GasIncentiveID},
	"incentives":         {gas: GasLookup},
	"deposits":           {gas: GasLookup},
	"stakes":             {gas: GasLookup},
	"getRewardInfo":      {gas: GasRewardInfo, positions: true},
	"getPositionDetails": {gas: GasGetPositionDetail, positions: true},
}

// StakerContract runs a Staker over EVM state. Records live in the storage
// of the contract address, reward budgets are token balances of that address
// and events become logs.
type StakerContract struct {
	mu sync.RWMutex

	addr      common.Address
	positions *PositionManagerBackend
	params    Params

	log log.Logger
}

func NewStakerContract(addr common.Address, logger log.Logger) *StakerContract {
	return &StakerContract{
		addr:   addr,
		params: Params{Address: addr},
		log:    logger,
	}
}

// SetPositionManager connects the position manager used for custody and
// position snapshots, and registers the contract as a token receiver. This
// should be called during VM initialization.
func (c *StakerContract) SetPositionManager(pm *nft.PositionManager) error {
	if err := pm.RegisterReceiver(c.addr, c); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = NewPositionManagerBackend(pm)
	return nil
}

// SetLimits updates the incentive creation limits; zero disables a limit
func (c *StakerContract) SetLimits(maxStartLeadTime, maxDuration uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.MaxIncentiveStartLeadTime = maxStartLeadTime
	c.params.MaxIncentiveDuration = maxDuration
}

func (c *StakerContract) SetLogger(logger log.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = logger
}

// OnPositionReceived hands the custody hook to the Staker of the call in
// flight. Tokens sent outside a staker call are refused.
func (c *StakerContract) OnPositionReceived(ctx context.Context, operator, from common.Address, tokenID uint64, data []byte) error {
	tx, ok := ctx.Value(txnKey{}).(*txn)
	if !ok {
		return fmt.Errorf("%w: no staker call in progress", ErrUnauthorized)
	}
	return tx.s.OnPositionReceived(ctx, operator, from, tokenID, data)
}

// Run executes the precompile
func (c *StakerContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if len(input) < 4 {
		return nil, suppliedGas, ErrInputTooShort
	}
	method, err := StakerABI.MethodById(input[:4])
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("%w: %x", ErrUnknownMethod, input[:4])
	}
	ms, ok := methods[method.Name]
	if !ok {
		return nil, suppliedGas, fmt.Errorf("%w: %s", ErrUnknownMethod, method.Name)
	}
	if suppliedGas < ms.gas {
		return nil, 0, ErrOutOfGas
	}
	remainingGas = suppliedGas - ms.gas
	if ms.writes && readOnly {
		return nil, remainingGas, ErrWriteProtection
	}

	args, err := StakerABI.UnpackInput(method.Name, input[4:], true)
	if err != nil {
		return nil, remainingGas, err
	}

	s, err := c.newStaker(accessibleState, ms.positions)
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := accessibleState.GetStateDB()
	snapshot := stateDB.Snapshot()
	ret, err = c.call(context.Background(), s, method.Name, caller, args)
	if err != nil {
		stateDB.RevertToSnapshot(snapshot)
		return nil, remainingGas, err
	}
	return ret, remainingGas, nil
}

func (c *StakerContract) newStaker(state contract.AccessibleState, needsPositions bool) (*Staker, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stateDB := state.GetStateDB()
	block := state.GetBlockContext()
	backend := Backend{
		Gateway: token.NewLedger(stateDB, c.log).Gateway(c.addr),
		Clock:   ClockFunc(block.Timestamp),
		Events:  &logSink{state: stateDB, addr: c.addr, block: block.Number().Uint64(), log: c.log},
	}
	if c.positions != nil {
		backend.Oracle = c.positions
		backend.Custody = c.positions
	} else if needsPositions {
		return nil, ErrNoPositionManager
	}
	return New(newStateStore(stateDB, c.addr), backend, c.params, c.log), nil
}

func (c *StakerContract) call(ctx context.Context, s *Staker, name string, caller common.Address, args []interface{}) ([]byte, error) {
	switch name {
	case "createIncentive":
		reward, overflow := uint256.FromBig(args[5].(*big.Int))
		if overflow {
			return nil, ErrInvalidReward
		}
		id, err := s.CreateIncentive(ctx, keyFromArgs(args[:5]), reward, args[6].(uint64), caller)
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, [32]byte(id))

	case "endIncentive":
		refund, err := s.EndIncentive(ctx, keyFromArgs(args))
		refunded := err == nil
		if errors.Is(err, ErrRefundFailed) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, refund.ToBig(), refunded)

	case "depositToken":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.DepositToken(ctx, tokenID, caller)

	case "withdrawToken":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.WithdrawToken(ctx, tokenID, caller, args[1].(common.Address))

	case "transferDeposit":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.TransferDeposit(ctx, tokenID, caller, args[1].(common.Address))

	case "stakeToken":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.StakeToken(ctx, tokenID, keyFromArgs(args[1:]), caller)

	case "unstakeToken":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		reward, err := s.UnstakeToken(ctx, tokenID, keyFromArgs(args[1:]), caller)
		paid := err == nil
		if reward != nil && errors.Is(err, ErrTransferFailed) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, reward.ToBig(), paid)

	case "getIncentiveId":
		return StakerABI.PackOutput(name, [32]byte(IncentiveID(keyFromArgs(args))))

	case "incentives":
		inc, err := s.GetIncentive(ctx, common.Hash(args[0].([32]byte)))
		if errors.Is(err, ErrIncentiveNotFound) {
			return StakerABI.PackOutput(name, new(big.Int), new(big.Int), uint64(0), uint64(0))
		}
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, inc.TotalRewardUnclaimed.ToBig(), inc.TotalSecondsClaimedX128.ToBig(), inc.NumberOfStakes, inc.ClaimDeadline)

	case "deposits":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		d, err := s.GetDeposit(ctx, tokenID)
		if errors.Is(err, ErrDepositNotFound) {
			return StakerABI.PackOutput(name, common.Address{}, uint64(0))
		}
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, d.Owner, d.NumberOfStakes)

	case "stakes":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		st, err := s.GetStake(ctx, tokenID, common.Hash(args[1].([32]byte)))
		if errors.Is(err, ErrNoStake) {
			return StakerABI.PackOutput(name, new(big.Int), new(big.Int))
		}
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, st.SecondsPerLiquidityInsideInitialX128.ToBig(), st.Liquidity.ToBig())

	case "getRewardInfo":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		reward, seconds, err := s.RewardInfo(ctx, tokenID, keyFromArgs(args[1:]))
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, reward.ToBig(), seconds.ToBig())

	case "getPositionDetails":
		tokenID, err := tokenIDFromArg(args[0])
		if err != nil {
			return nil, err
		}
		snap, err := s.GetPositionDetails(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		return StakerABI.PackOutput(name, snap.Pool, snap.TickLower, snap.TickUpper, snap.Liquidity.ToBig())

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
}

// keyFromArgs reads an incentive key from five unpacked ABI arguments
func keyFromArgs(args []interface{}) IncentiveKey {
	return IncentiveKey{
		RewardToken: args[0].(common.Address),
		Pool:        args[1].(common.Address),
		StartTime:   args[2].(uint64),
		EndTime:     args[3].(uint64),
		Refundee:    args[4].(common.Address),
	}
}

func tokenIDFromArg(arg interface{}) (uint64, error) {
	v := arg.(*big.Int)
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTokenID, v)
	}
	return v.Uint64(), nil
}

// logSink turns committed staker events into EVM logs
type logSink struct {
	state contract.StateDB
	addr  common.Address
	block uint64
	log   log.Logger
}

func (l *logSink) Emit(e Event) {
	topics, data, err := packEvent(e)
	if err != nil {
		l.log.Warn("failed to pack staker event", "event", e.EventName(), "err", err)
		return
	}
	l.state.AddLog(&ethtypes.Log{
		Address:     l.addr,
		Topics:      topics,
		Data:        data,
		BlockNumber: l.block,
		TxHash:      l.state.TxHash(),
	})
}
