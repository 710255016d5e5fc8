// Command tcpd opens a TUN device and runs the dispatch loop against it.
package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vincepr/rs-tcp/dispatch"
	"github.com/vincepr/rs-tcp/internal"
	"github.com/vincepr/rs-tcp/tcp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tcpd:", err)
		os.Exit(1)
	}
}

type config struct {
	iface       string
	cidr        string
	mtu         int
	recvWindow  uint16
	autoClose   bool
	issMode     string
	logLevel    string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	cfg := config{
		iface:       "tun0",
		cidr:        "192.168.10.1/24",
		mtu:         tcp.DefaultMTU,
		recvWindow:  uint16(tcp.DefaultRecvWindow),
		issMode:     "random",
		logLevel:    "info",
		metricsAddr: "127.0.0.1:9110",
	}
	cmd := &cobra.Command{
		Use:   "tcpd",
		Short: "Minimal passive-open TCP endpoint over a TUN device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.iface, "iface", cfg.iface, "TUN interface name")
	f.StringVar(&cfg.cidr, "cidr", cfg.cidr, "address/prefix assigned to the interface")
	f.IntVar(&cfg.mtu, "mtu", cfg.mtu, "MTU in bytes bounding emitted datagrams")
	f.Uint16Var(&cfg.recvWindow, "recv-window", cfg.recvWindow, "receive window advertised to peers")
	f.BoolVar(&cfg.autoClose, "auto-close", cfg.autoClose, "issue an active close immediately upon reaching ESTABLISHED")
	f.StringVar(&cfg.issMode, "iss-mode", cfg.issMode, `initial sequence number source: "zero" or "random"`)
	f.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "log/slog level: debug, trace, info, warn, error")
	f.StringVar(&cfg.metricsAddr, "metrics-addr", cfg.metricsAddr, "listen address for the /metrics endpoint")
	return cmd
}

func run(cfg config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.logLevel)}))

	ip, err := netip.ParsePrefix(cfg.cidr)
	if err != nil {
		return errors.Wrapf(err, "parsing cidr %q", cfg.cidr)
	}
	tun, err := internal.NewTun(cfg.iface, ip)
	if err != nil {
		return errors.Wrap(err, "opening tun device")
	}
	defer tun.Close()

	issGen, err := newISSGenerator(cfg.issMode)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := dispatch.NewMetrics(reg)
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(cfg.metricsAddr, nil); err != nil {
			logger.Error("metrics server stopped", slog.String("err", err.Error()))
		}
	}()

	loop := dispatch.NewLoop(tun, metrics, dispatch.Options{
		ConnOptions: tcp.Options{
			ISSGen:     issGen,
			RecvWindow: tcp.Size(cfg.recvWindow),
			AutoClose:  cfg.autoClose,
			MTU:        cfg.mtu,
			Log:        logger,
		},
		Log: logger,
	})
	logger.Info("tcpd listening", slog.String("iface", tun.Name()), slog.String("metrics", cfg.metricsAddr))
	return errors.Wrap(loop.Run(), "dispatch loop exited")
}

func newISSGenerator(mode string) (tcp.ISSGenerator, error) {
	switch mode {
	case "zero":
		return tcp.ZeroISS, nil
	case "random":
		var secret [32]byte
		if _, err := rand.Read(secret[:]); err != nil {
			return nil, errors.Wrap(err, "generating ISS secret")
		}
		return tcp.NewKeyedISSGenerator(secret), nil
	default:
		return nil, errors.Errorf("unknown --iss-mode %q (want zero or random)", mode)
	}
}

func parseLevel(name string) slog.Level {
	switch name {
	case "trace":
		return internal.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
