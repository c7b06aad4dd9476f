package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// Wekinator stand-in for exercising the bridge end to end. It sends a
// bundled /wek/outputs message with random floats at a fixed interval,
// and optionally listens on a port and prints every OSC message that
// arrives there.
//
// Full loopback chain on one machine:
//
//	go run test_wekinator_sim.go -listen 12002
//	osc-splitter
//	osc-reassembler -target-port 12002

func main() {
	target := flag.String("target", "127.0.0.1:12000", "Where to send bundled messages")
	address := flag.String("address", "/wek/outputs", "OSC address of the bundled message")
	count := flag.Int("count", 5, "Number of float values per message")
	interval := flag.Duration("interval", 500*time.Millisecond, "Delay between messages")
	listenPort := flag.Int("listen", 0, "Also print OSC messages received on this port (0 = off)")
	flag.Parse()

	if *listenPort > 0 {
		go receiveLoop(*listenPort)
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatal("Failed to open UDP socket:", err)
	}
	defer conn.Close()

	log.Printf("🚀 Wekinator simulator sending %d floats to %s every %s", *count, *target, *interval)
	log.Printf("📡 Bundled address: %s", *address)

	for {
		args := make([]osc.Argument, *count)
		parts := make([]string, *count)
		for i := range args {
			v := float32(rand.Float64())
			args[i] = osc.Float32(v)
			parts[i] = fmt.Sprintf("%.3f", v)
		}

		data, err := osc.EncodeMessage(&osc.Message{Address: *address, Arguments: args})
		if err != nil {
			log.Fatal("Failed to encode message:", err)
		}
		if _, err := conn.Write(data); err != nil {
			log.Printf("⚠️  Send failed: %v", err)
		} else {
			log.Printf("➡️  %s [%s]", *address, strings.Join(parts, ", "))
		}

		time.Sleep(*interval)
	}
}

func receiveLoop(port int) {
	pc, err := net.ListenPacket("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Fatal("Failed to listen:", err)
	}
	log.Printf("👂 Printing OSC messages received on port %d", port)

	buf := make([]byte, 65536)
	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			log.Printf("⚠️  Read failed: %v", err)
			continue
		}

		messages, err := osc.DecodePacket(buf[:n])
		if err != nil {
			log.Printf("⚠️  Undecodable packet (%d bytes): %v", n, err)
			continue
		}
		for i := range messages {
			log.Printf("⬅️  %s", messages[i].String())
		}
	}
}
