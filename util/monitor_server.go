package util

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// MonitorServer serves the status pages, websocket feed and metrics. It can
// be restarted in place when details_port changes.
type MonitorServer struct {
	running *sync.Mutex
	mux     *http.ServeMux
	srv     *http.Server
	addr    func() string
	srvMu   sync.RWMutex // protects srv field
}

func NewMonitorServer() *MonitorServer {
	return &MonitorServer{
		running: &sync.Mutex{},
		mux:     http.NewServeMux(),
		srv:     &http.Server{},
		addr: func() string {
			return fmt.Sprintf(":%d", Config.GetInt("details_port"))
		},
	}
}

func (s *MonitorServer) Handler() http.Handler {
	return s.mux
}

func (s *MonitorServer) Start() error {
	if !s.running.TryLock() {
		return fmt.Errorf("already running")
	}
	s.running.Unlock()

	started := make(chan struct{})
	go func() {
		s.running.Lock()
		newSrv := &http.Server{
			Addr:              s.addr(),
			Handler:           s.mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.srvMu.Lock()
		s.srv = newSrv
		s.srvMu.Unlock()
		close(started)

		if err := newSrv.ListenAndServe(); err != http.ErrServerClosed {
			Logger.Warn().Msgf("Problem loading monitor server: %v", err)
		}
		Logger.Debug().Msg("monitor server shutdown")
		s.running.Unlock()
	}()
	<-started
	return nil
}

func (s *MonitorServer) AddHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(path, handler)
}

func (s *MonitorServer) AddRawHandler(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}

func (s *MonitorServer) Shutdown(ctx context.Context) error {
	s.srvMu.RLock()
	currentSrv := s.srv
	s.srvMu.RUnlock()
	if currentSrv == nil {
		return nil
	}
	return currentSrv.Shutdown(ctx)
}

func (s *MonitorServer) Restart() {
	Logger.Debug().Msg("restarting monitor server")
	if !s.running.TryLock() { // only shutdown if running
		Logger.Debug().Msg("monitor server running, shutting it down")
		if err := s.Shutdown(context.TODO()); err != nil {
			Logger.Error().Msgf("Error shutting down monitor server: %v", err)
		}
	} else {
		s.running.Unlock()
	}
	Logger.Debug().Msg("waiting for shutdown")
	s.running.Lock() // when server shuts down it will unlock, so wait for unlock
	Logger.Debug().Msg("http not running - good for startup")
	s.running.Unlock()
	if err := s.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
}
