// Copyright 2025 The ACE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server exposes a Metrics instance's Prometheus endpoint on a chi mux,
// mirroring the teacher's pkg/transport debug-mux wiring. It is meant
// to be bound to localhost only (spec §A.2: "bound to localhost only
// via --debug-addr") since `ace adapt` has no auth layer of its own.
type Server struct {
	http *http.Server
}

// NewServer builds a debug mux serving /metrics from m at addr.
func NewServer(addr string, m *Metrics) *Server {
	r := chi.NewRouter()
	r.Get("/metrics", m.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &Server{http: &http.Server{Addr: addr, Handler: r}}
}

// Start begins serving in the background and returns once the listener
// is bound, so a caller can log the final address immediately. Serve
// errors (other than a clean Shutdown) are logged, not returned, since
// the debug mux is a diagnostic aid, never required for `ace adapt` to
// complete its run.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("metrics: failed to bind %s: %w", s.http.Addr, err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics: debug server stopped", "err", err)
		}
	}()
	slog.Info("metrics: debug server listening", "addr", ln.Addr().String())
	return nil
}

// Shutdown gracefully stops the debug server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
