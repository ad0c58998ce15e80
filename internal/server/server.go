// Package server previews built output over local HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Access levels for the preview server.
const (
	AccessPrivate = "private"
	AccessPublic  = "public"
)

// portTries bounds the search for a free port when the requested one is busy.
const portTries = 10

// Server serves a directory of built output.
type Server struct {
	// Dir is the directory to serve.
	Dir string
	// Port is the first port attempted.
	Port int
	// Access chooses the bind interface: private binds loopback only,
	// public binds all interfaces so other machines on the LAN can browse.
	Access string
}

// Listen binds the listener, trying successive ports when the requested one
// is taken. The listener's address carries the final choice.
func (s *Server) Listen() (net.Listener, error) {
	host := "127.0.0.1"
	if s.Access == AccessPublic {
		host = "0.0.0.0"
	}
	var lastErr error
	for i := 0; i < portTries; i++ {
		port := s.Port
		if port != 0 {
			port += i
		}
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err == nil {
			if i > 0 {
				log.Warn().Int("requested", s.Port).Int("using", tcpPort(ln)).Msg("requested port busy, using next free port")
			}
			return ln, nil
		}
		lastErr = err
		if port == 0 {
			break
		}
	}
	return nil, fmt.Errorf("no free port in %d..%d: %w", s.Port, s.Port+portTries-1, lastErr)
}

// Serve runs the file server on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: logRequests(http.FileServer(http.Dir(s.Dir)))}

	port := tcpPort(ln)
	log.Info().Str("dir", s.Dir).Msgf("serving at http://localhost:%d", port)
	if s.Access == AccessPublic {
		if ip := outboundIP(); ip != "" {
			log.Info().Msgf("reachable on your network at http://%s:%d", ip, port)
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return serveResult(<-errc)
	case err := <-errc:
		// The listener failed on its own; do not wait for a signal.
		return serveResult(err)
	}
}

func serveResult(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func tcpPort(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// outboundIP discovers the LAN-facing address by preparing (not sending) a
// UDP datagram to a public address.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
