// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Event is a state change published after its transaction commits
type Event interface {
	EventName() string
}

// EventSink receives committed events in order
type EventSink interface {
	Emit(Event)
}

type IncentiveCreated struct {
	IncentiveID   common.Hash
	Key           IncentiveKey
	ClaimDeadline uint64
	Reward        *uint256.Int
}

type IncentiveEnded struct {
	IncentiveID common.Hash
	Refund      *uint256.Int
}

type TokenDeposited struct {
	TokenID uint64
	Owner   common.Address
}

type TokenWithdrawn struct {
	TokenID uint64
	To      common.Address
}

type DepositTransferred struct {
	TokenID  uint64
	OldOwner common.Address
	NewOwner common.Address
}

type TokenStaked struct {
	TokenID     uint64
	IncentiveID common.Hash
	Liquidity   *uint256.Int
}

type TokenUnstaked struct {
	TokenID     uint64
	IncentiveID common.Hash
	Reward      *uint256.Int
}

func (IncentiveCreated) EventName() string   { return "IncentiveCreated" }
func (IncentiveEnded) EventName() string     { return "IncentiveEnded" }
func (TokenDeposited) EventName() string     { return "TokenDeposited" }
func (TokenWithdrawn) EventName() string     { return "TokenWithdrawn" }
func (DepositTransferred) EventName() string { return "DepositTransferred" }
func (TokenStaked) EventName() string        { return "TokenStaked" }
func (TokenUnstaked) EventName() string      { return "TokenUnstaked" }

// EventLog is an EventSink that keeps every event in memory
type EventLog struct {
	Events []Event
}

func (l *EventLog) Emit(e Event) {
	l.Events = append(l.Events, e)
}

// Names returns the names of the recorded events in order
func (l *EventLog) Names() []string {
	names := make([]string, len(l.Events))
	for i, e := range l.Events {
		names[i] = e.EventName()
	}
	return names
}
