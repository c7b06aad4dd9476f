package bridge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vigliensoni/OSC-output-parser/internal/forward"
	"github.com/vigliensoni/OSC-output-parser/internal/metrics"
	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// Splitter fans a bundled multi-value message out into one indexed message
// per argument. A message with N arguments produces N messages addressed
// outputPrefix+1 through outputPrefix+N, each carrying exactly one argument.
// The Splitter holds no state between messages.
type Splitter struct {
	inputAddress string
	outputPrefix string
	sender       forward.Sender
	logger       *slog.Logger
	metrics      *metrics.Metrics

	// Statistics
	messagesHandled uint64
	valuesFannedOut uint64
	messagesDropped uint64
	sendFailures    uint64
	mu              sync.RWMutex
}

// SplitterStats contains splitter statistics for monitoring
type SplitterStats struct {
	MessagesHandled uint64 `json:"messages_handled"`
	ValuesFannedOut uint64 `json:"values_fanned_out"`
	MessagesDropped uint64 `json:"messages_dropped"`
	SendFailures    uint64 `json:"send_failures"`
}

// NewSplitter creates a splitter that listens for bundled messages on
// inputAddress and fans them out through sender under outputPrefix.
func NewSplitter(inputAddress, outputPrefix string, sender forward.Sender, logger *slog.Logger, m *metrics.Metrics) *Splitter {
	return &Splitter{
		inputAddress: inputAddress,
		outputPrefix: outputPrefix,
		sender:       sender,
		logger:       logger,
		metrics:      m,
	}
}

// HandleMessage fans one bundled message out into indexed messages. A message
// with no arguments is dropped. Send failures on individual values are logged
// and do not stop the remaining values from being sent.
func (s *Splitter) HandleMessage(msg *osc.Message) {
	s.mu.Lock()
	s.messagesHandled++
	s.mu.Unlock()

	if len(msg.Arguments) == 0 {
		s.logger.Warn("Dropping message with empty payload",
			slog.String("address", msg.Address),
		)
		s.metrics.RecordRejected("empty_payload")
		s.mu.Lock()
		s.messagesDropped++
		s.mu.Unlock()
		return
	}

	// Slot indices are 1-based: argument i goes to outputPrefix+(i+1).
	for i, arg := range msg.Arguments {
		address := fmt.Sprintf("%s%d", s.outputPrefix, i+1)
		if err := s.sender.Send(address, []osc.Argument{arg}); err != nil {
			s.logger.Warn("Failed to send indexed value",
				slog.String("address", address),
				slog.Int("index", i+1),
				slog.String("error", err.Error()),
			)
			s.metrics.RecordSendError()
			s.mu.Lock()
			s.sendFailures++
			s.mu.Unlock()
			continue
		}

		s.metrics.RecordMessageSent()
		s.metrics.RecordValueFannedOut()
		s.mu.Lock()
		s.valuesFannedOut++
		s.mu.Unlock()

		s.logger.Info("Fanned out indexed value",
			slog.String("address", address),
			slog.String("value", arg.String()),
		)
	}

	s.logger.Debug("Bundled message fanned out",
		slog.String("address", msg.Address),
		slog.Int("value_count", len(msg.Arguments)),
	)
}

// InputAddress returns the address the splitter expects bundled messages on.
func (s *Splitter) InputAddress() string {
	return s.inputAddress
}

// GetStats returns current splitter statistics
func (s *Splitter) GetStats() SplitterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SplitterStats{
		MessagesHandled: s.messagesHandled,
		ValuesFannedOut: s.valuesFannedOut,
		MessagesDropped: s.messagesDropped,
		SendFailures:    s.sendFailures,
	}
}
