// Package server wires a dns.Handler to a UDP listener, grounded on
// the teacher's server.ListenAndServeDNS but trimmed to the single
// UDP transport this resolver supports, and extended with the
// ephemeral-port startup emission test harnesses depend on.
package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
)

// Server binds a dns.Handler to a single UDP socket.
type Server struct {
	port    int
	handler dns.Handler

	udpServer *dns.Server
}

// New returns a Server that will listen on port (0 for ephemeral) and
// dispatch to handler.
func New(port int, handler dns.Handler) *Server {
	return &Server{port: port, handler: handler}
}

// Run binds the UDP socket and serves until Shutdown is called. It
// blocks until the listener exits, so callers typically run it in its
// own goroutine.
//
// After binding, it logs exactly one line of the form
// "Bound to port <N>", which test harnesses rely on byte-for-byte.
func (s *Server) Run() error {
	pc, err := net.ListenPacket("udp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("server: could not bind udp port %d: %w", s.port, err)
	}

	boundPort := s.port
	if addr, ok := pc.LocalAddr().(*net.UDPAddr); ok {
		boundPort = addr.Port
	}

	s.udpServer = &dns.Server{
		PacketConn: pc,
		Handler:    s.handler,
	}

	log.Info("Bound to port " + strconv.Itoa(boundPort))

	return s.udpServer.ActivateAndServe()
}

// Port returns the port last bound by Run, or the configured port if
// Run has not been called yet.
func (s *Server) Port() int {
	if s.udpServer == nil {
		return s.port
	}
	if addr, ok := s.udpServer.PacketConn.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return s.port
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown() error {
	if s.udpServer == nil {
		return nil
	}
	return s.udpServer.Shutdown()
}
