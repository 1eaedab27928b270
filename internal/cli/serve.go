package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/spf13/cobra"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

// server exposes an orchestrator over HTTP.
type server struct {
	orch   *pagecrop.Orchestrator
	logger *slog.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/screenshot", s.handleScreenshot)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an abort reason to an HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pagecrop.ErrBusy):
		return http.StatusConflict, "Busy"
	case errors.Is(err, pagecrop.ErrNoActivePage):
		return http.StatusNotFound, "NoActivePage"
	case errors.Is(err, pagecrop.ErrEmptyCrop):
		return http.StatusUnprocessableEntity, "EmptyCrop"
	case errors.Is(err, pagecrop.ErrMetricsUnavailable):
		return http.StatusGatewayTimeout, "MetricsUnavailable"
	case errors.Is(err, pagecrop.ErrCaptureUnavailable), errors.Is(err, pagecrop.ErrDecodeFailure):
		return http.StatusBadGateway, "CaptureUnavailable"
	case errors.Is(err, pagecrop.ErrOrchestratorStopped):
		return http.StatusServiceUnavailable, "Stopped"
	}
	return http.StatusInternalServerError, "Internal"
}

func (s *server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	report, err := s.orch.Trigger(r.Context())
	if err != nil {
		status, kind := statusFor(err)
		s.writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
		return
	}
	res := report.Result
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(res.Len()))
	w.Header().Set("X-Pagecrop-Cycle", strconv.FormatUint(report.Cycle, 10))
	if report.Location != "" {
		w.Header().Set("X-Pagecrop-Location", report.Location)
	}
	if _, err := res.WriteTo(w); err != nil {
		s.logger.Error("Unable to write screenshot", "err", err)
	}
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		State string `json:"state"`
	}{State: s.orch.State().String()})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v); err != nil {
		s.logger.Error("Unable to write response", "err", err)
	}
}

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve <url|file>",
		Short: "Open a page and capture it on HTTP request",
		Long: `Opens the page and starts an HTTP server. Every POST to /api/screenshot
runs one capture cycle, saves cropped-screenshot.png in the download
directory and returns the PNG. Requests that arrive while a capture is in
progress are answered with 409 Conflict.`,
		Example: `  pagecrop serve --port 8888 https://example.com
  curl -X POST -o crop.png http://localhost:8888/api/screenshot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			p, err := sess.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			orch := pagecrop.NewOrchestrator(sess, a.cfg.Options(a.logger)...)
			remove := sess.AddListener(orch.Deliver)
			defer remove()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go orch.Run(runCtx)

			srv := &server{orch: orch, logger: a.logger}
			addr := ":" + port
			httpServer := &http.Server{
				Addr:    addr,
				Handler: srv.routes(),
			}

			serverErr := make(chan error, 1)
			go func() {
				a.logger.Info("pagecrop server listening", "addr", addr, "tab", p.ID())
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("Server shutdown failed", "err", err)
					return err
				}
				a.logger.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	return cmd
}
