package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/ev3ctl/internal/logging"
	"github.com/danmuck/ev3ctl/internal/observability"
	"github.com/danmuck/ev3ctl/internal/protocol/session"
	"github.com/danmuck/ev3ctl/internal/transport"
)

// dialEngine is replaced in tests.
var dialEngine = session.Dial

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ev3ctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "ev3ctl",
		Short:         "Send direct and system commands to an EV3 brick",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file (.toml, .yaml)")
	f.StringVarP(&opts.transport, "transport", "t", string(transport.KindUSB), "link: usb|bluetooth|wifi")
	f.StringVarP(&opts.host, "host", "H", "", "brick MAC address / serial number")
	f.StringVar(&opts.sync, "sync", session.PolicyStandard.String(), "sync policy: STD|SYNC|ASYNC")
	f.StringVar(&opts.serialPort, "serial-port", "", "bound rfcomm tty for bluetooth")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on addr")
	f.DurationVar(&opts.connectTimeout, "connect-timeout", 10*time.Second, "time allowed to open the link")

	root.AddCommand(
		ledCmd(opts),
		toneCmd(opts),
		batteryCmd(opts),
		lsCmd(opts),
		motorCmd(opts),
		stopCmd(opts),
		tachoCmd(opts),
		followCmd(opts),
		configCmd(),
	)
	return root
}

// runWithEngine resolves config, connects and hands the engine to fn. The
// context passed to fn ends on SIGINT or SIGTERM.
func runWithEngine(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, eng *session.Engine) error) error {
	cfg, err := resolveConfig(*opts, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Msgf("ev3ctl metrics server failed addr=%s err=%v", cfg.MetricsAddr, err)
			}
		}()
	}

	dialCtx := ctx
	if opts.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.connectTimeout)
		defer cancel()
	}
	eng, err := dialEngine(dialCtx, cfg.TransportParams(), cfg.SessionConfig())
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Transport, err)
	}
	defer eng.Close()
	log.Debug().Msgf("ev3ctl connected link=%s sync=%s", eng.Kind(), eng.SyncPolicy())
	return fn(ctx, eng)
}
