package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// statusReport is one ingredient's entry in the /status response.
type statusReport struct {
	Name   string `json:"name"`
	Dir    string `json:"dir"`
	State  string `json:"state"`
	Errors int    `json:"errors,omitempty"`
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("health endpoint hit", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports the derived lifecycle state of every ingredient.
func (a *App) statusHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports := make([]statusReport, 0, len(a.ingredients))
		for _, ing := range a.ingredients {
			st := ing.Status(ctx)
			reports = append(reports, statusReport{
				Name:   ing.Name(),
				Dir:    ing.Path(),
				State:  st.State.String(),
				Errors: st.ErrorCount,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reports); err != nil {
			a.logger.Error("status encode failed", "err", err)
		}
	}
}

// statusServer runs the status HTTP server until the context is cancelled.
func (a *App) statusServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler(ctx))

	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	a.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("status server shutdown failed", "err", err)
		}
	}()

	a.logger.Info("status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("status server failed", "err", err)
	}
}
