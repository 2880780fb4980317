// Package mock provides a dns.ResponseWriter that records the message
// written to it instead of touching a socket, the way the teacher's
// mock package stands in for a live connection in tests. Trimmed to
// the single UDP transport this resolver serves.
package mock

import (
	"net"

	"github.com/miekg/dns"
)

// Writer is a dns.ResponseWriter backed by an in-memory message.
type Writer struct {
	msg *dns.Msg

	localAddr  net.Addr
	remoteAddr net.Addr
}

// NewWriter returns a Writer that reports addr as its remote peer.
func NewWriter(addr string) *Writer {
	w := &Writer{
		localAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53},
	}
	w.remoteAddr, _ = net.ResolveUDPAddr("udp", addr)
	return w
}

// Rcode returns the written message's response code, or SERVFAIL if
// nothing has been written yet.
func (w *Writer) Rcode() int {
	if w.msg == nil {
		return dns.RcodeServerFailure
	}
	return w.msg.Rcode
}

// Msg returns the message written via WriteMsg, or nil.
func (w *Writer) Msg() *dns.Msg {
	return w.msg
}

// Written reports whether WriteMsg has been called.
func (w *Writer) Written() bool {
	return w.msg != nil
}

// WriteMsg implements dns.ResponseWriter.
func (w *Writer) WriteMsg(msg *dns.Msg) error {
	w.msg = msg
	return nil
}

// Write implements dns.ResponseWriter by unpacking the wire-format
// bytes into the recorded message.
func (w *Writer) Write(b []byte) (int, error) {
	w.msg = new(dns.Msg)
	if err := w.msg.Unpack(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// LocalAddr implements dns.ResponseWriter.
func (w *Writer) LocalAddr() net.Addr { return w.localAddr }

// RemoteAddr implements dns.ResponseWriter.
func (w *Writer) RemoteAddr() net.Addr { return w.remoteAddr }

// Close implements dns.ResponseWriter.
func (w *Writer) Close() error { return nil }

// TsigStatus implements dns.ResponseWriter.
func (w *Writer) TsigStatus() error { return nil }

// TsigTimersOnly implements dns.ResponseWriter.
func (w *Writer) TsigTimersOnly(bool) {}

// Hijack implements dns.ResponseWriter.
func (w *Writer) Hijack() {}
