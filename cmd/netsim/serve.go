package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"netsim/internal/config"
	"netsim/internal/logging"
	"netsim/internal/server"
	"netsim/internal/sim"
)

var (
	serveConfigPath string
	serveSchemaPath string
	serveListenAddr string
	serveLogFile    string
	serveTUI        bool
	serveWebDir     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the traffic simulator and viewer server",
	Long:  "serve starts the simulation clock, the REST endpoints, and the websocket stream for live viewers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New()
		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logger))
		defer cancel()

		cfg, err := loadConfig(serveConfigPath, serveSchemaPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		consoleWriter, cleanup, err := newWriters(cfg, reg, serveTUI, serveLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		engine := sim.NewEngine(cfg, reg, nil, nil, nil)
		hub := server.NewHub(engine)
		engine.SetWriter(sim.NewMultiWriter(consoleWriter, hub))

		addr := cfg.ListenAddr
		if serveListenAddr != "" {
			addr = serveListenAddr
		}
		srv := server.New(addr, engine, hub, serveWebDir)

		go hub.Run(ctx)
		go engine.Run(ctx)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("server failed", "err", err)
				cancel()
			}
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigs:
		case <-ctx.Done():
		}

		cancel()
		logger.Info("simulation stopped")
		return nil
	},
}

// loadConfig reads the YAML config when present. A missing file is an
// error only when the path was given explicitly; the default path
// falls back to the built-in configuration.
func loadConfig(path, schemaPath string, explicit bool) (*config.SimulationConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return config.Default(), nil
		}
		return nil, err
	}
	return config.Load(path, schemaPath)
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Listen address override (e.g. :8080)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export the event stream (JSONL)")
	serveCmd.Flags().BoolVar(&serveTUI, "tui", false, "Render a terminal UI instead of line output")
	serveCmd.Flags().StringVar(&serveWebDir, "web", "web", "Directory holding viewer assets, empty to disable")
}
