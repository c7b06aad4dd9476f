package bridge

import (
	"log/slog"
	"os"
	"testing"

	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// handlerSender feeds sent messages straight into a reassembler, standing in
// for the UDP hop between the two processes.
type handlerSender struct {
	reassembler *Reassembler
}

func (h *handlerSender) Send(address string, args []osc.Argument) error {
	h.reassembler.HandleMessage(osc.NewMessage(address, args...))
	return nil
}

func TestSplitterReassemblerRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	out := &fakeSender{}
	reassembler, err := NewReassembler("/parsed/output-", "/wek/outputs", 5, out, logger, createTestMetrics())
	if err != nil {
		t.Fatalf("Failed to create reassembler: %v", err)
	}
	splitter := NewSplitter("/wek/outputs", "/parsed/output-", &handlerSender{reassembler: reassembler}, logger, createTestMetrics())

	first := []osc.Argument{
		osc.Float32(0.1),
		osc.Float32(0.2),
		osc.Float32(0.3),
		osc.Float32(0.4),
		osc.Float32(0.5),
	}
	splitter.HandleMessage(osc.NewMessage("/wek/outputs", first...))

	sent := out.sent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 aggregate message after the first bundle, got %d", len(sent))
	}
	if sent[0].address != "/wek/outputs" {
		t.Errorf("Expected address /wek/outputs, got %s", sent[0].address)
	}
	for i, arg := range sent[0].args {
		if !arg.Equal(first[i]) {
			t.Errorf("Argument %d: expected %s, got %s", i, first[i].String(), arg.String())
		}
	}

	// A second bundle re-stores all five slots on an already complete table,
	// so each of the five fanned out values triggers its own emission. The
	// last one carries the full updated payload.
	second := []osc.Argument{
		osc.Float32(0.6),
		osc.Float32(0.7),
		osc.Float32(0.8),
		osc.Float32(0.9),
		osc.Float32(1.0),
	}
	splitter.HandleMessage(osc.NewMessage("/wek/outputs", second...))

	sent = out.sent()
	if len(sent) != 6 {
		t.Fatalf("Expected 6 aggregate messages after the second bundle, got %d", len(sent))
	}
	final := sent[len(sent)-1]
	for i, arg := range final.args {
		if !arg.Equal(second[i]) {
			t.Errorf("Final argument %d: expected %s, got %s", i, second[i].String(), arg.String())
		}
	}
}
