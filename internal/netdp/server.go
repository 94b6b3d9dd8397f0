package netdp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// clientExpiry is how long a client counts as connected after its last
// batch.
const clientExpiry = 30 * time.Second

// Server accepts DP batches from solver clients and forwards them to the
// owner of the hash table.
type Server struct {
	cfg    ConfigMsg
	submit func(batch DPBatch) error

	mu       sync.Mutex
	lastSeen map[string]time.Time

	h3 *http3.Server
}

// NewServer wires a search configuration to a submission callback. The
// callback runs on request goroutines; it synchronises table access
// itself.
func NewServer(cfg ConfigMsg, submit func(batch DPBatch) error) *Server {
	return &Server{
		cfg:      cfg,
		submit:   submit,
		lastSeen: make(map[string]time.Time),
	}
}

// ConnectedClients counts clients seen within the expiry window.
func (s *Server) ConnectedClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for id, t := range s.lastSeen {
		if now.Sub(t) <= clientExpiry {
			n++
		} else {
			delete(s.lastSeen, id)
		}
	}
	return n
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.cfg)
	})
	mux.HandleFunc("/dp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var batch DPBatch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.lastSeen[batch.ClientID] = time.Now()
		s.mu.Unlock()
		if err := s.submit(batch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// ListenAndServe runs the HTTP/3 endpoint until ctx is cancelled. A
// self-signed certificate pair is generated at certPath and keyPath on
// first start.
func (s *Server) ListenAndServe(ctx context.Context, addr, certPath, keyPath string) error {
	if err := EnsureCert(certPath, keyPath); err != nil {
		return err
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return err
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3", "h3-29", "h3-28", "h3-27"},
	}
	quicConfig := &quic.Config{
		KeepAlivePeriod: 10 * time.Second,
		MaxIdleTimeout:  5 * time.Minute,
		Allow0RTT:       true,
	}

	s.h3 = &http3.Server{
		Addr:       addr,
		Handler:    s.handler(),
		TLSConfig:  tlsConfig,
		QUICConfig: quicConfig,
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.h3.Close()
		listener.Close()
	}()

	err = s.h3.ServeListener(listener)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
