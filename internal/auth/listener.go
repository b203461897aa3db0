package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vinothpandian/inkdash/internal/logger"
)

const successPage = `<html><body><h1>Authorization successful!</h1><p>You can close this window and return to inkdash.</p></body></html>`

// CallbackResult is the outcome of a single OAuth redirect: either an
// authorization code or the reason the provider refused one.
type CallbackResult struct {
	Code string
	Err  error
}

// CallbackListener is a one-shot loopback HTTP server that captures the
// OAuth redirect. It serves exactly one request, hands the parsed outcome to
// the single waiting consumer, and shuts itself down.
type CallbackListener struct {
	srv     *http.Server
	addr    string
	results chan CallbackResult
	claimed atomic.Bool
}

// NewCallbackListener binds addr and starts serving in the background.
// A bind failure (port already held, possibly by a stale listener from an
// aborted flow) is returned as *ListenerError and is fatal for this attempt.
func NewCallbackListener(addr string) (*CallbackListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &ListenerError{Addr: addr, Err: err}
	}

	l := &CallbackListener{
		addr:    ln.Addr().String(),
		results: make(chan CallbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", l.handleCallback)

	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if serveErr := l.srv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Warn("callback listener stopped unexpectedly", "error", serveErr)
		}
	}()

	logger.Debug("callback listener started", "addr", l.addr)
	return l, nil
}

// Result returns the single-slot channel the captured outcome is delivered on.
func (l *CallbackListener) Result() <-chan CallbackResult {
	return l.results
}

// Addr returns the address the listener is bound to.
func (l *CallbackListener) Addr() string {
	return l.addr
}

func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	// Only the first request is honored. A request racing the post-delivery
	// shutdown gets an explicit refusal instead of a second success page.
	if !l.claimed.CompareAndSwap(false, true) {
		http.Error(w, "Authorization already completed", http.StatusGone)
		return
	}

	q := r.URL.Query()

	switch {
	case q.Get("code") != "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, successPage)
		l.deliver(CallbackResult{Code: q.Get("code")})

	case q.Get("error") != "":
		reason := q.Get("error")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>%s</p></body></html>", reason)
		l.deliver(CallbackResult{Err: &AuthorizationError{Reason: reason}})

	default:
		http.Error(w, "Invalid callback", http.StatusBadRequest)
		l.deliver(CallbackResult{Err: ErrInvalidCallback})
	}
}

// deliver hands the outcome to the waiting consumer and tears the server
// down. Reached exactly once per listener: handleCallback claims the single
// slot before calling in here.
func (l *CallbackListener) deliver(res CallbackResult) {
	l.results <- res
	go func() {
		if err := l.Close(); err != nil {
			logger.Warn("failed to shut down callback listener", "error", err)
		}
	}()
}

// Close shuts the listener down, waiting for any in-flight response to
// finish. Safe to call more than once.
func (l *CallbackListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}
