// Command relay-server runs the rendezvous relay: the always-on WebSocket
// endpoint a daemon and its clients both dial to find each other.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/relaybridge/relaybridge/observability"
	"github.com/relaybridge/relaybridge/observability/prom"
	"github.com/relaybridge/relaybridge/relay"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type switchHandler struct {
	mu      sync.RWMutex
	handler http.Handler
}

func newSwitchHandler() *switchHandler {
	return &switchHandler{handler: http.NotFoundHandler()}
}

func (h *switchHandler) Set(next http.Handler) {
	if next == nil {
		next = http.NotFoundHandler()
	}
	h.mu.Lock()
	h.handler = next
	h.mu.Unlock()
}

func (h *switchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	handler.ServeHTTP(w, r)
}

type metricsController struct {
	mu       sync.Mutex
	enabled  bool
	handler  *switchHandler
	observer *observability.AtomicRelayObserver
	srv      *relay.Server
}

func newMetricsController(handler *switchHandler, observer *observability.AtomicRelayObserver, srv *relay.Server) *metricsController {
	return &metricsController{handler: handler, observer: observer, srv: srv}
}

func (c *metricsController) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return
	}
	reg := prom.NewRegistry()
	obs := prom.NewRelayObserver(reg)
	c.handler.Set(prom.Handler(reg))
	c.observer.Set(obs)
	stats := c.srv.Stats()
	obs.ConnCount(stats.ConnCount)
	obs.SessionCount(stats.SessionCount)
	c.enabled = true
}

func (c *metricsController) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.handler.Set(nil)
	c.observer.Set(observability.NoopRelayObserver)
	c.enabled = false
}

func validateTLSFiles(certFile, keyFile string) error {
	if certFile == "" && keyFile == "" {
		return nil
	}
	if certFile == "" || keyFile == "" {
		return errors.New("tls requires both --tls-cert-file and --tls-key-file")
	}
	return nil
}

type ready struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Date       string `json:"date"`
	Listen     string `json:"listen"`
	WSPath     string `json:"ws_path"`
	WSURL      string `json:"ws_url"`
	HTTPURL    string `json:"http_url"`
	HealthzURL string `json:"healthz_url"`
	MetricsURL string `json:"metrics_url,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := relay.DefaultConfig()
	logger := log.New(stderr, "", log.LstdFlags)

	listen := envString("RELAY_LISTEN", "127.0.0.1:0")
	path := envString("RELAY_WS_PATH", cfg.Path)
	metricsListen := envString("RELAY_METRICS_LISTEN", "")
	tlsCertFile := envString("RELAY_TLS_CERT_FILE", "")
	tlsKeyFile := envString("RELAY_TLS_KEY_FILE", "")
	allowedOrigins := stringSliceFlag(splitCSVEnv("RELAY_ALLOW_ORIGIN"))

	allowNoOrigin, err := envBoolWithErr("RELAY_ALLOW_NO_ORIGIN", false)
	if err != nil {
		fmt.Fprintf(stderr, "invalid RELAY_ALLOW_NO_ORIGIN: %v\n", err)
		return 2
	}
	maxConns, err := envIntWithErr("RELAY_MAX_CONNS", 0)
	if err != nil {
		fmt.Fprintf(stderr, "invalid RELAY_MAX_CONNS: %v\n", err)
		return 2
	}
	maxPendingFrames, err := envIntWithErr("RELAY_MAX_PENDING_FRAMES_PER_CONNECTION", cfg.MaxPendingFramesPerConnection)
	if err != nil {
		fmt.Fprintf(stderr, "invalid RELAY_MAX_PENDING_FRAMES_PER_CONNECTION: %v\n", err)
		return 2
	}
	probeInitialDelay, err := envDurationWithErr("RELAY_CONTROL_PROBE_INITIAL_DELAY", cfg.ControlProbeInitialDelay)
	if err != nil {
		fmt.Fprintf(stderr, "invalid RELAY_CONTROL_PROBE_INITIAL_DELAY: %v\n", err)
		return 2
	}
	probeSecondDelay, err := envDurationWithErr("RELAY_CONTROL_PROBE_SECOND_DELAY", cfg.ControlProbeSecondDelay)
	if err != nil {
		fmt.Fprintf(stderr, "invalid RELAY_CONTROL_PROBE_SECOND_DELAY: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("relay-server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	showVersion := false
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&listen, "listen", listen, "listen address (env: RELAY_LISTEN)")
	fs.StringVar(&path, "ws-path", path, "websocket path (env: RELAY_WS_PATH)")
	fs.Var(&allowedOrigins, "allow-origin", "allowed Origin value (repeatable): full Origin, hostname, hostname:port, wildcard hostname (*.example.com), or exact non-standard values (e.g. null) (env: RELAY_ALLOW_ORIGIN)")
	fs.BoolVar(&allowNoOrigin, "allow-no-origin", allowNoOrigin, "allow requests without Origin header (non-browser daemons) (env: RELAY_ALLOW_NO_ORIGIN)")
	fs.IntVar(&maxConns, "max-conns", maxConns, "max concurrent websocket connections (0 disables the cap) (env: RELAY_MAX_CONNS)")
	fs.IntVar(&maxPendingFrames, "max-pending-frames-per-connection", maxPendingFrames, "pending-frame FIFO bound per connectionId (env: RELAY_MAX_PENDING_FRAMES_PER_CONNECTION)")
	fs.DurationVar(&probeInitialDelay, "control-probe-initial-delay", probeInitialDelay, "control-liveness probe first wait (env: RELAY_CONTROL_PROBE_INITIAL_DELAY)")
	fs.DurationVar(&probeSecondDelay, "control-probe-second-delay", probeSecondDelay, "control-liveness probe second wait (env: RELAY_CONTROL_PROBE_SECOND_DELAY)")
	fs.StringVar(&tlsCertFile, "tls-cert-file", tlsCertFile, "enable TLS with the given certificate file (env: RELAY_TLS_CERT_FILE)")
	fs.StringVar(&tlsKeyFile, "tls-key-file", tlsKeyFile, "enable TLS with the given private key file (env: RELAY_TLS_KEY_FILE)")
	fs.StringVar(&metricsListen, "metrics-listen", metricsListen, "listen address for metrics server (empty disables) (env: RELAY_METRICS_LISTEN)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintf(stdout, "relay-server %s (%s, %s)\n", version, commit, date)
		return 0
	}

	usageErr := func(msg string) int {
		if msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		fs.Usage()
		return 2
	}
	if err := validateTLSFiles(tlsCertFile, tlsKeyFile); err != nil {
		return usageErr(err.Error())
	}

	observer := observability.NewAtomicRelayObserver()
	cfg.Path = path
	cfg.MaxPendingFramesPerConnection = maxPendingFrames
	cfg.ControlProbeInitialDelay = probeInitialDelay
	cfg.ControlProbeSecondDelay = probeSecondDelay
	cfg.Observer = observer

	s := relay.New(cfg, relay.ServerOptions{
		AllowedOrigins: allowedOrigins,
		AllowNoOrigin:  allowNoOrigin,
		MaxConns:       maxConns,
	})

	mux := http.NewServeMux()
	s.Register(mux)

	var metrics *metricsController
	var metricsSrv *http.Server
	var metricsLn net.Listener
	if metricsListen != "" {
		metricsMux := http.NewServeMux()
		metricsHandler := newSwitchHandler()
		metricsMux.Handle("/metrics", metricsHandler)
		metrics = newMetricsController(metricsHandler, observer, s)
		metrics.Enable()

		metricsLn, err = net.Listen("tcp", metricsListen)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		metricsSrv = &http.Server{Handler: metricsMux}
		go func() {
			if err := metricsSrv.Serve(metricsLn); err != nil && err != http.ErrServerClosed {
				logger.Fatal(err)
			}
		}()
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	httpSrv := &http.Server{Handler: mux}
	if tlsCertFile != "" {
		httpSrv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	go func() {
		var err error
		if tlsCertFile != "" {
			err = httpSrv.ServeTLS(ln, tlsCertFile, tlsKeyFile)
		} else {
			err = httpSrv.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal(err)
		}
	}()

	wsScheme, httpScheme := "ws", "http"
	if tlsCertFile != "" {
		wsScheme, httpScheme = "wss", "https"
	}
	bindAddr := ln.Addr().String()
	out := ready{
		Version:    version,
		Commit:     commit,
		Date:       date,
		Listen:     bindAddr,
		WSPath:     path,
		WSURL:      wsScheme + "://" + bindAddr + path,
		HTTPURL:    httpScheme + "://" + bindAddr,
		HealthzURL: httpScheme + "://" + bindAddr + "/healthz",
	}
	if metricsLn != nil {
		out.MetricsURL = httpScheme + "://" + metricsLn.Addr().String() + "/metrics"
	}
	_ = json.NewEncoder(stdout).Encode(out)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	for {
		switch <-sig {
		case syscall.SIGUSR1:
			if metrics == nil {
				logger.Printf("metrics server disabled (missing --metrics-listen)")
				continue
			}
			metrics.Enable()
			logger.Printf("metrics enabled")
		case syscall.SIGUSR2:
			if metrics == nil {
				continue
			}
			metrics.Disable()
			logger.Printf("metrics disabled")
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpSrv.Shutdown(ctx)
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			cancel()
			return 0
		}
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitCSVEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envBoolWithErr(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseBool(raw)
}

func envIntWithErr(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func envDurationWithErr(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
