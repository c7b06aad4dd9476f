package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vigliensoni/OSC-output-parser/internal/config"
	"github.com/vigliensoni/OSC-output-parser/internal/metrics"
	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// Handler consumes decoded OSC messages dispatched by the server.
type Handler interface {
	HandleMessage(msg *osc.Message)
}

// route binds an address pattern to a handler. A trailing '*' in the
// pattern matches any suffix; otherwise the match is exact.
type route struct {
	pattern string
	handler Handler
}

// UDPServer receives OSC packets, decodes them (flattening bundles) and
// dispatches each message to the first route whose pattern matches its
// address.
type UDPServer struct {
	conn       *net.UDPConn
	listenAddr string
	config     *config.ServerConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	routes     []route

	// Concurrency management. The receiver and the workers are tracked
	// separately so the packet channel can be closed after the receiver has
	// stopped writing to it.
	ctx    context.Context
	cancel context.CancelFunc
	recvWG sync.WaitGroup
	workWG sync.WaitGroup

	// Packet processing
	packetChan chan *incomingPacket

	// Statistics
	packetsReceived    uint64
	messagesDispatched uint64
	decodeErrors       uint64
	packetsDropped     uint64
	unroutedMessages   uint64
	mu                 sync.RWMutex
}

// incomingPacket represents a received UDP datagram with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// ServerStatistics represents server performance counters
type ServerStatistics struct {
	PacketsReceived    uint64 `json:"packets_received"`
	MessagesDispatched uint64 `json:"messages_dispatched"`
	DecodeErrors       uint64 `json:"decode_errors"`
	PacketsDropped     uint64 `json:"packets_dropped"`
	UnroutedMessages   uint64 `json:"unrouted_messages"`
	QueueSize          uint64 `json:"queue_size"`
	QueueCapacity      uint64 `json:"queue_capacity"`
}

// NewUDPServer creates a new UDP server instance listening on listenAddr.
func NewUDPServer(listenAddr string, cfg *config.ServerConfig, logger *slog.Logger, m *metrics.Metrics) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPServer{
		listenAddr: listenAddr,
		config:     cfg,
		logger:     logger,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		packetChan: make(chan *incomingPacket, cfg.QueueSize),
	}
}

// Route registers a handler for messages whose address matches pattern.
// Routes must be registered before Start.
func (s *UDPServer) Route(pattern string, handler Handler) {
	s.routes = append(s.routes, route{pattern: pattern, handler: handler})
}

// Start binds the UDP socket and begins receiving packets.
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", s.listenAddr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP %s: %w", s.listenAddr, err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.ReadBuffer); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("read_buffer", s.config.ReadBuffer),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP server started",
		slog.String("address", s.conn.LocalAddr().String()),
		slog.Int("read_buffer", s.config.ReadBuffer),
		slog.Int("workers", s.config.Workers),
	)

	for i := 0; i < s.config.Workers; i++ {
		s.workWG.Add(1)
		go s.packetProcessor(i)
	}

	s.recvWG.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop gracefully stops the UDP server
func (s *UDPServer) Stop() error {
	s.logger.Info("Stopping UDP server...")

	// Cancel context to signal shutdown
	s.cancel()

	// Close UDP connection to unblock the receive loop
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	// The receiver must be done before the channel can be closed safely.
	s.recvWG.Wait()
	close(s.packetChan)
	s.workWG.Wait()

	// Log final statistics
	stats := s.GetStatistics()
	s.logger.Info("UDP server stopped",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("messages_dispatched", stats.MessagesDispatched),
		slog.Uint64("decode_errors", stats.DecodeErrors),
		slog.Uint64("packets_dropped", stats.PacketsDropped),
	)

	return nil
}

// LocalAddr returns the bound UDP address, or nil before Start.
func (s *UDPServer) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// receiveLoop is the main packet receiving loop
func (s *UDPServer) receiveLoop() {
	defer s.recvWG.Done()

	buffer := make([]byte, s.config.ReadBuffer)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Receive loop stopping due to context cancellation")
			return
		default:
			// Continue to receive packets
		}

		// Set read deadline to check for context cancellation periodically
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			// Timeouts are expected, they let the loop poll the context.
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.packetsReceived++
		s.mu.Unlock()
		s.metrics.RecordPacketReceived()

		// Copy the datagram, the read buffer is reused.
		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case s.packetChan <- packet:
			s.metrics.SetQueueSize(len(s.packetChan))
		default:
			// Channel full, drop packet and log warning
			s.mu.Lock()
			s.packetsDropped++
			s.mu.Unlock()
			s.metrics.RecordPacketDropped()

			s.logger.Warn("Packet processing queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor processes packets from the packet channel
func (s *UDPServer) packetProcessor(workerID int) {
	defer s.workWG.Done()

	s.logger.Debug("Packet processor started", slog.Int("worker_id", workerID))

	for packet := range s.packetChan {
		s.handlePacket(packet, workerID)
		s.metrics.SetQueueSize(len(s.packetChan))
	}

	s.logger.Debug("Packet processor stopped", slog.Int("worker_id", workerID))
}

// handlePacket decodes one datagram and dispatches its messages. Bundles
// yield their messages in order.
func (s *UDPServer) handlePacket(packet *incomingPacket, workerID int) {
	messages, err := osc.DecodePacket(packet.data)
	if err != nil {
		s.mu.Lock()
		s.decodeErrors++
		s.mu.Unlock()
		s.metrics.RecordDecodeError()

		s.logger.Error("Failed to decode packet",
			slog.String("remote_addr", packet.remoteAddr.String()),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
		return
	}

	for i := range messages {
		s.dispatch(&messages[i], packet.remoteAddr, workerID)
	}
}

// dispatch routes a single decoded message to the first matching handler.
func (s *UDPServer) dispatch(msg *osc.Message, remoteAddr *net.UDPAddr, workerID int) {
	for _, rt := range s.routes {
		if !osc.MatchAddress(rt.pattern, msg.Address) {
			continue
		}

		s.mu.Lock()
		s.messagesDispatched++
		s.mu.Unlock()
		s.metrics.RecordMessageDispatched()

		s.logger.Debug("Dispatching message",
			slog.String("address", msg.Address),
			slog.String("remote_addr", remoteAddr.String()),
			slog.Int("argument_count", len(msg.Arguments)),
			slog.Int("worker_id", workerID),
		)

		rt.handler.HandleMessage(msg)
		return
	}

	s.mu.Lock()
	s.unroutedMessages++
	s.mu.Unlock()
	s.metrics.RecordUnroutedMessage()

	s.logger.Debug("Message matched no route",
		slog.String("address", msg.Address),
		slog.String("remote_addr", remoteAddr.String()),
	)
}

// GetStatistics returns current server statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		PacketsReceived:    s.packetsReceived,
		MessagesDispatched: s.messagesDispatched,
		DecodeErrors:       s.decodeErrors,
		PacketsDropped:     s.packetsDropped,
		UnroutedMessages:   s.unroutedMessages,
		QueueSize:          uint64(len(s.packetChan)),
		QueueCapacity:      uint64(cap(s.packetChan)),
	}
}
