package forward

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// UDPClient sends OSC messages to a fixed UDP destination over a connected
// socket. Sends are fire-and-forget: no acknowledgment, no retry.
type UDPClient struct {
	conn   *net.UDPConn
	target string

	// Statistics
	messagesSent uint64
	sendErrors   uint64

	mu sync.RWMutex
}

// ClientStats represents sender statistics for monitoring.
type ClientStats struct {
	Target       string `json:"target"`
	MessagesSent uint64 `json:"messages_sent"`
	SendErrors   uint64 `json:"send_errors"`
}

// NewUDPClient resolves the target endpoint and opens a connected UDP socket
// to it.
func NewUDPClient(host string, port int) (*UDPClient, error) {
	target := net.JoinHostPort(host, strconv.Itoa(port))

	udpAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target address %s: %w", target, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket to %s: %w", target, err)
	}

	return &UDPClient{
		conn:   conn,
		target: target,
	}, nil
}

// Send encodes one message and writes it to the target as a single datagram.
func (c *UDPClient) Send(address string, args []osc.Argument) error {
	data, err := osc.EncodeMessage(&osc.Message{Address: address, Arguments: args})
	if err != nil {
		c.recordError()
		return fmt.Errorf("failed to encode message for %s: %w", address, err)
	}

	if _, err := c.conn.Write(data); err != nil {
		c.recordError()
		return fmt.Errorf("failed to send message to %s: %w", c.target, err)
	}

	c.mu.Lock()
	c.messagesSent++
	c.mu.Unlock()

	return nil
}

func (c *UDPClient) recordError() {
	c.mu.Lock()
	c.sendErrors++
	c.mu.Unlock()
}

// Target returns the resolved destination in host:port form.
func (c *UDPClient) Target() string {
	return c.target
}

// GetStats returns current sender statistics.
func (c *UDPClient) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ClientStats{
		Target:       c.target,
		MessagesSent: c.messagesSent,
		SendErrors:   c.sendErrors,
	}
}

// Close releases the sending socket.
func (c *UDPClient) Close() error {
	return c.conn.Close()
}
