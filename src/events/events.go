// Package events carries domain events from the wallet connector to the
// notification dispatcher and the lifecycle coordinator.
package events

import (
	"sync"

	"github.com/0xb10c/block-alert/src/types"
)

// Emitter receives the events published by the wallet connector.
type Emitter interface {
	// EmitTransaction publishes a transaction_detection event.
	EmitTransaction(analysis types.TransactionAnalysis)
	// EmitBalance publishes a balance_report event.
	EmitBalance(snapshot types.UtxoSnapshot)
	// EmitShutdown publishes a shutdown event; reason names the failure.
	EmitShutdown(reason string)
}

const defaultBufferSize = 64

// Bus is a set of typed channels, one per event kind. It is created and
// owned by the lifecycle coordinator. Sends block while the buffer is full
// and are dropped once the bus is closed.
type Bus struct {
	transactions   chan types.TransactionAnalysis
	balances       chan types.UtxoSnapshot
	startupSuccess chan struct{}
	shutdown       chan string

	quit      chan struct{}
	closeOnce sync.Once
}

var _ Emitter = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		transactions:   make(chan types.TransactionAnalysis, defaultBufferSize),
		balances:       make(chan types.UtxoSnapshot, defaultBufferSize),
		startupSuccess: make(chan struct{}, 1),
		shutdown:       make(chan string, 1),
		quit:           make(chan struct{}),
	}
}

func (b *Bus) EmitTransaction(analysis types.TransactionAnalysis) {
	select {
	case b.transactions <- analysis:
	case <-b.quit:
	}
}

func (b *Bus) EmitBalance(snapshot types.UtxoSnapshot) {
	select {
	case b.balances <- snapshot:
	case <-b.quit:
	}
}

// EmitShutdown never blocks: one pending shutdown is enough to terminate
// the process, later ones are dropped.
func (b *Bus) EmitShutdown(reason string) {
	select {
	case b.shutdown <- reason:
	default:
	}
}

// EmitStartupSuccess signals that every service started. Like shutdown it
// never blocks.
func (b *Bus) EmitStartupSuccess() {
	select {
	case b.startupSuccess <- struct{}{}:
	default:
	}
}

func (b *Bus) Transactions() <-chan types.TransactionAnalysis { return b.transactions }
func (b *Bus) Balances() <-chan types.UtxoSnapshot             { return b.balances }
func (b *Bus) StartupSuccess() <-chan struct{}                 { return b.startupSuccess }
func (b *Bus) Shutdown() <-chan string                         { return b.shutdown }

// Done is closed by Close.
func (b *Bus) Done() <-chan struct{} { return b.quit }

// Close releases blocked senders. Events emitted afterwards are dropped.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.quit) })
}
