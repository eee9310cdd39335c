package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ambuplan/core/logger"
)

// Serve runs the API server until ctx is cancelled, then shuts it down
// gracefully. In-flight scheduling requests get a short drain window.
func Serve(ctx context.Context, addr string, h *Handler, log logger.Logger) error {
	if log == nil {
		log = logger.Nop{}
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("api server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("api server shutdown: %v", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
