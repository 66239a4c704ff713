package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadTimeout  = 60 * time.Second
	shutdownTimeout     = 30 * time.Second

	gracefulEnvKey     = "IS_GRACEFUL"
	gracefulEnvValue   = gracefulEnvKey + "=1"
	gracefulListenerFD = 3
)

// Server wraps http.Server with signal handling: SIGTERM/SIGINT shut down gracefully,
// SIGUSR2 hands the listener to a freshly started copy of the binary and then shuts down.
type Server struct {
	*http.Server

	listener   net.Listener
	isGraceful bool
	onShutdown []func()
	done       chan struct{}
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       defaultReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			// websocket streams manage their own deadlines
			WriteTimeout: 0,
		},
		isGraceful: os.Getenv(gracefulEnvKey) != "",
		done:       make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server stopped accepting requests.
func (srv *Server) OnShutdown(fn func()) {
	srv.onShutdown = append(srv.onShutdown, fn)
}

// ListenAndServe serves until a shutdown signal has been handled.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.netListener()
	if err != nil {
		return err
	}
	srv.listener = ln

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	defer signal.Stop(sig)
	go srv.handleSignals(sig)

	err = srv.Serve(ln)
	<-srv.done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) netListener() (net.Listener, error) {
	if srv.isGraceful {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, ""))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals(sig <-chan os.Signal) {
	for s := range sig {
		switch s {
		case syscall.SIGUSR2:
			pid, err := srv.startNewProcess()
			if err != nil {
				Logger.Error("graceful restart failed, continue serving", zap.Error(err))
				continue
			}
			Logger.Info("graceful restart: new process started", zap.Int("pid", pid))
		default:
			Logger.Info("shutting down HTTP server", zap.String("signal", s.String()))
		}
		srv.shutdown()
		return
	}
}

func (srv *Server) shutdown() {
	defer close(srv.done)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	for _, fn := range srv.onShutdown {
		fn()
	}
	Logger.Info("HTTP server stopped")
}

// startNewProcess re-executes the binary with the listening socket as fd 3.
func (srv *Server) startNewProcess() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not *net.TCPListener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}
	defer file.Close()

	envs := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			envs = append(envs, e)
		}
	}
	envs = append(envs, gracefulEnvValue)

	return syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
}
