// profview serves profiling captures as browsable, hyperlinked HTML.
//
// Usage:
//
//	profview [flags] [capture...]
//
// Each capture argument names a profile file: .jfr and .jfr.gz files are
// parsed as JFR recordings, .txt/.collapsed/.folded files as collapsed-stack
// text, and anything else as a pprof protobuf with a collapsed-text
// fallback. With --watch, a directory is rescanned for capture files on
// every index view instead of using the argument list.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		address string
		port    int
		watch   string
		event   string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "profview [capture...]",
		Short:         "Serve profiling captures as browsable HTML",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultConfig()
			if cfgPath != "" {
				var err error
				cfg, err = loadConfig(cfgPath)
				if err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("address") {
				cfg.Address = address
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("watch") {
				cfg.Watch = watch
			}
			if flags.Changed("event") {
				cfg.Event = event
			}
			if flags.Changed("verbose") {
				cfg.Verbose = verbose
			}
			if len(args) > 0 {
				cfg.Captures = args
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVarP(&address, "address", "a", "127.0.0.1", "address to listen on")
	cmd.Flags().IntVarP(&port, "port", "p", 4000, "port to listen on")
	cmd.Flags().StringVarP(&watch, "watch", "w", "", "directory to rescan for captures on each index view")
	cmd.Flags().StringVarP(&event, "event", "e", "cpu", "JFR event type: cpu, wall, alloc, lock")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log HTTP requests")
	return cmd
}

func serve(cfg config) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	reg := newRegistry(cfg.Captures, cfg.Watch, cfg.Event, logger)
	// Watch mode loads lazily on each index view; an explicit capture list
	// is loaded once up front so broken sources are reported at startup.
	if !reg.watching() {
		if err := reg.load(); err != nil {
			return fmt.Errorf("load captures: %w", err)
		}
	}

	srv := newServer(reg, logger, cfg.Verbose)
	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))

	ev := logger.Info().Str("addr", "http://"+addr)
	if reg.watching() {
		ev = ev.Str("watch", cfg.Watch)
	} else {
		ev = ev.Int("captures", len(cfg.Captures))
	}
	ev.Msg("profview listening")

	return http.ListenAndServe(addr, srv.handler())
}
