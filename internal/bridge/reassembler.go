package bridge

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/vigliensoni/OSC-output-parser/internal/forward"
	"github.com/vigliensoni/OSC-output-parser/internal/metrics"
	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// Reassembler collects indexed single-value messages into a slot table and
// emits one bundled message on outputAddress whenever a store leaves every
// slot populated. Slots are keyed 1..valueCount, a repeated index overwrites
// the previous value, and the table is never cleared: once all slots have
// been filled, every subsequent store triggers a fresh emission carrying the
// latest value for each slot.
type Reassembler struct {
	inputPrefix   string
	outputAddress string
	valueCount    int
	sender        forward.Sender
	logger        *slog.Logger
	metrics       *metrics.Metrics

	// Slot table and statistics. The mutex spans store, completion check and
	// emission so that concurrent stores cannot interleave between a store
	// and the send it triggers.
	slots             map[int]osc.Argument
	messagesHandled   uint64
	valuesStored      uint64
	aggregatesEmitted uint64
	messagesDropped   uint64
	sendFailures      uint64
	mu                sync.RWMutex
}

// ReassemblerStats contains reassembler statistics for monitoring
type ReassemblerStats struct {
	MessagesHandled   uint64 `json:"messages_handled"`
	ValuesStored      uint64 `json:"values_stored"`
	AggregatesEmitted uint64 `json:"aggregates_emitted"`
	MessagesDropped   uint64 `json:"messages_dropped"`
	SendFailures      uint64 `json:"send_failures"`
	SlotsPopulated    int    `json:"slots_populated"`
	ValueCount        int    `json:"value_count"`
}

// NewReassembler creates a reassembler expecting valueCount indexed messages
// on addresses of the form inputPrefix+i with i in 1..valueCount.
func NewReassembler(inputPrefix, outputAddress string, valueCount int, sender forward.Sender, logger *slog.Logger, m *metrics.Metrics) (*Reassembler, error) {
	if valueCount < 1 {
		return nil, fmt.Errorf("value count must be at least 1, got %d", valueCount)
	}

	return &Reassembler{
		inputPrefix:   inputPrefix,
		outputAddress: outputAddress,
		valueCount:    valueCount,
		sender:        sender,
		logger:        logger,
		metrics:       m,
		slots:         make(map[int]osc.Argument, valueCount),
	}, nil
}

// HandleMessage validates one indexed message, stores its value in the slot
// table and emits the bundled message if the table is complete afterwards.
// Empty payloads, malformed addresses and out-of-range indices are logged
// and dropped without affecting the table.
func (r *Reassembler) HandleMessage(msg *osc.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messagesHandled++

	if len(msg.Arguments) == 0 {
		r.logger.Warn("Dropping indexed message with empty payload",
			slog.String("address", msg.Address),
		)
		r.metrics.RecordRejected("empty_payload")
		r.messagesDropped++
		return
	}

	if len(msg.Arguments) > 1 {
		r.logger.Warn("Indexed message carries multiple arguments, using the first",
			slog.String("address", msg.Address),
			slog.Int("argument_count", len(msg.Arguments)),
		)
		r.metrics.RecordExtraArgumentsIgnored()
	}

	index, err := r.parseIndex(msg.Address)
	if err != nil {
		r.logger.Warn("Ignoring message with unrecognized address",
			slog.String("address", msg.Address),
			slog.String("error", err.Error()),
		)
		r.metrics.RecordRejected("malformed_address")
		r.messagesDropped++
		return
	}

	if index < 1 || index > r.valueCount {
		r.logger.Warn("Ignoring message with out-of-range index",
			slog.String("address", msg.Address),
			slog.Int("index", index),
			slog.Int("value_count", r.valueCount),
		)
		r.metrics.RecordRejected("out_of_range_index")
		r.messagesDropped++
		return
	}

	arg := msg.Arguments[0]
	r.slots[index] = arg
	r.valuesStored++
	r.metrics.RecordValueStored()
	r.metrics.SetSlotsPopulated(len(r.slots))

	r.logger.Info("Stored indexed value",
		slog.Int("index", index),
		slog.String("value", arg.String()),
		slog.Int("populated", len(r.slots)),
		slog.Int("value_count", r.valueCount),
	)

	if len(r.slots) < r.valueCount {
		r.logger.Debug("Waiting for remaining values",
			slog.String("missing_indices", fmt.Sprint(r.missingLocked())),
		)
		return
	}

	r.emitLocked()
}

// emitLocked sends the bundled message built from the current slot values in
// index order. Callers must hold the write lock.
func (r *Reassembler) emitLocked() {
	args := make([]osc.Argument, r.valueCount)
	for i := 1; i <= r.valueCount; i++ {
		args[i-1] = r.slots[i]
	}

	if err := r.sender.Send(r.outputAddress, args); err != nil {
		r.logger.Warn("Failed to send aggregate message",
			slog.String("address", r.outputAddress),
			slog.String("error", err.Error()),
		)
		r.metrics.RecordSendError()
		r.sendFailures++
		return
	}

	r.aggregatesEmitted++
	r.metrics.RecordMessageSent()
	r.metrics.RecordAggregateEmitted()

	r.logger.Info("Emitted aggregate message",
		slog.String("address", r.outputAddress),
		slog.Int("value_count", r.valueCount),
	)
}

// parseIndex extracts the 1-based slot index from an indexed address.
func (r *Reassembler) parseIndex(address string) (int, error) {
	if !strings.HasPrefix(address, r.inputPrefix) {
		return 0, fmt.Errorf("address does not start with prefix %q", r.inputPrefix)
	}

	suffix := strings.TrimPrefix(address, r.inputPrefix)
	index, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("non-integer slot suffix %q", suffix)
	}

	return index, nil
}

// missingLocked returns the indices of the slots that are still empty, in
// ascending order. Callers must hold the lock.
func (r *Reassembler) missingLocked() []int {
	missing := make([]int, 0, r.valueCount-len(r.slots))
	for i := 1; i <= r.valueCount; i++ {
		if _, ok := r.slots[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// InputPrefix returns the address prefix the reassembler subscribes to.
func (r *Reassembler) InputPrefix() string {
	return r.inputPrefix
}

// SlotValues returns a snapshot of the populated slots keyed by index, with
// each value rendered as a string.
func (r *Reassembler) SlotValues() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make(map[int]string, len(r.slots))
	for index, arg := range r.slots {
		values[index] = arg.String()
	}
	return values
}

// MissingIndices returns the indices of the slots that have never been
// populated, in ascending order.
func (r *Reassembler) MissingIndices() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.missingLocked()
}

// GetStats returns current reassembler statistics
func (r *Reassembler) GetStats() ReassemblerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return ReassemblerStats{
		MessagesHandled:   r.messagesHandled,
		ValuesStored:      r.valuesStored,
		AggregatesEmitted: r.aggregatesEmitted,
		MessagesDropped:   r.messagesDropped,
		SendFailures:      r.sendFailures,
		SlotsPopulated:    len(r.slots),
		ValueCount:        r.valueCount,
	}
}
