// Package profiling starts the optional pprof endpoint and Pyroscope agent.
package profiling

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	infracontext "github.com/jonesrussell/north-cloud/categorizer/infrastructure/context"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
)

const (
	defaultPprofPort = "6060"
	pprofReadTimeout = 10 * time.Second
)

// Config controls both profilers. Both are off unless enabled.
type Config struct {
	Pprof     bool   `env:"ENABLE_PROFILING"            yaml:"pprof"`
	PprofPort string `env:"PPROF_PORT"                  yaml:"pprof_port"`
	Pyroscope bool   `env:"ENABLE_CONTINUOUS_PROFILING" yaml:"pyroscope"`
	ServerURL string `env:"PYROSCOPE_SERVER_URL"        yaml:"server_url"`
	// Environment tags profiles for filtering.
	Environment string `env:"PYROSCOPE_ENVIRONMENT" yaml:"environment"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.PprofPort == "" {
		c.PprofPort = defaultPprofPort
	}
	if c.ServerURL == "" {
		c.ServerURL = defaultPyroscopeURL
	}
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
}

// Profiler holds whatever Start enabled. A nil or zero Profiler stops cleanly.
type Profiler struct {
	pprof     *http.Server
	pyroscope *PyroscopeProfiler
}

// Start launches the enabled profilers. The pprof endpoint binds to
// localhost only.
func Start(cfg Config, service, version string, logger infralogger.Logger) (*Profiler, error) {
	cfg.SetDefaults()
	p := &Profiler{}

	if cfg.Pprof {
		p.pprof = startPprof(net.JoinHostPort("localhost", cfg.PprofPort), logger)
	}

	if cfg.Pyroscope {
		py, err := StartPyroscope(cfg, service, version)
		if err != nil {
			_ = p.Stop()
			return nil, err
		}
		p.pyroscope = py
		logger.Info("Pyroscope continuous profiling started",
			infralogger.String("server", cfg.ServerURL),
			infralogger.String("environment", cfg.Environment),
		)
	}
	return p, nil
}

// Stop shuts down the pprof listener and flushes the Pyroscope agent.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.pprof != nil {
		ctx, cancel := infracontext.WithShutdownTimeout()
		defer cancel()
		errs = append(errs, p.pprof.Shutdown(ctx))
	}
	errs = append(errs, p.pyroscope.Stop())
	return errors.Join(errs...)
}

// Addr returns the pprof listen address, or "" when pprof is off.
func (p *Profiler) Addr() string {
	if p == nil || p.pprof == nil {
		return ""
	}
	return p.pprof.Addr
}

func startPprof(addr string, logger infralogger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: pprofReadTimeout,
	}

	go func() {
		logger.Info("Starting pprof server",
			infralogger.String("addr", addr),
			infralogger.String("heap", "http://"+addr+"/debug/pprof/heap"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("pprof server stopped", infralogger.Error(err))
		}
	}()
	return srv
}
