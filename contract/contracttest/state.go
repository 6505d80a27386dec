// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contracttest provides in-memory implementations of the precompile
// host interfaces for tests.
package contracttest

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/staker/contract"
)

var (
	_ contract.StateDB         = (*MockStateDB)(nil)
	_ contract.AccessibleState = (*MockAccessibleState)(nil)
	_ contract.BlockContext    = (*MockBlockContext)(nil)
)

type snapshot struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	logs     int
}

// MockStateDB is a map-backed StateDB with working snapshots
type MockStateDB struct {
	storage   map[common.Address]map[common.Hash]common.Hash
	balances  map[common.Address]*uint256.Int
	logs      []*ethtypes.Log
	snapshots []snapshot
	txHash    common.Hash
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		logs:     make([]*ethtypes.Log, 0),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m.storage[addr] == nil {
		return common.Hash{}
	}
	return m.storage[addr][key]
}

func (m *MockStateDB) SetState(addr common.Address, key, value common.Hash) common.Hash {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	prev := m.storage[addr][key]
	m.storage[addr][key] = value
	return prev
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	prev := m.balances[addr].Clone()
	m.balances[addr] = new(uint256.Int).Add(m.balances[addr], amount)
	return *prev
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	prev := m.balances[addr].Clone()
	m.balances[addr] = new(uint256.Int).Sub(m.balances[addr], amount)
	return *prev
}

// SetBalance overwrites the native balance of addr
func (m *MockStateDB) SetBalance(addr common.Address, amount *uint256.Int) {
	m.balances[addr] = amount.Clone()
}

func (m *MockStateDB) CreateAccount(common.Address) {}
func (m *MockStateDB) Exist(common.Address) bool    { return true }
func (m *MockStateDB) AddLog(log *ethtypes.Log)     { m.logs = append(m.logs, log) }
func (m *MockStateDB) Logs() []*ethtypes.Log        { return m.logs }
func (m *MockStateDB) TxHash() common.Hash          { return m.txHash }
func (m *MockStateDB) SetTxHash(h common.Hash)      { m.txHash = h }

// Snapshot copies storage, balances and the log count
func (m *MockStateDB) Snapshot() int {
	s := snapshot{
		storage:  make(map[common.Address]map[common.Hash]common.Hash, len(m.storage)),
		balances: make(map[common.Address]*uint256.Int, len(m.balances)),
		logs:     len(m.logs),
	}
	for addr, slots := range m.storage {
		cp := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		s.storage[addr] = cp
	}
	for addr, bal := range m.balances {
		s.balances[addr] = bal.Clone()
	}
	m.snapshots = append(m.snapshots, s)
	return len(m.snapshots) - 1
}

// RevertToSnapshot restores the state captured by Snapshot
func (m *MockStateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	s := m.snapshots[id]
	m.storage = s.storage
	m.balances = s.balances
	m.logs = m.logs[:s.logs]
	m.snapshots = m.snapshots[:id]
}

// MockBlockContext is a settable block number and timestamp
type MockBlockContext struct {
	BlockNumber *big.Int
	Time        uint64
}

func (b *MockBlockContext) Number() *big.Int  { return b.BlockNumber }
func (b *MockBlockContext) Timestamp() uint64 { return b.Time }

// MockAccessibleState bundles a MockStateDB with a MockBlockContext
type MockAccessibleState struct {
	State *MockStateDB
	Block *MockBlockContext
}

// NewMockAccessibleState returns fresh state at block 1, timestamp [now]
func NewMockAccessibleState(now uint64) *MockAccessibleState {
	return &MockAccessibleState{
		State: NewMockStateDB(),
		Block: &MockBlockContext{BlockNumber: big.NewInt(1), Time: now},
	}
}

func (a *MockAccessibleState) GetStateDB() contract.StateDB           { return a.State }
func (a *MockAccessibleState) GetBlockContext() contract.BlockContext { return a.Block }
