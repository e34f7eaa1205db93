package main

import (
	"os"

	"golang.org/x/term"

	"netsim/internal/config"
	"netsim/internal/device"
	"netsim/internal/sim"
)

// newConsoleWriter picks the console sink. A TUI is used only when
// requested and STDOUT is a terminal; a colorized line writer when
// STDOUT is a terminal; plain JSON lines otherwise so piped output
// stays machine-readable.
func newConsoleWriter(cfg *config.SimulationConfig, reg *device.Registry, tui bool) (sim.EventWriter, func()) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if tui {
			tw := sim.NewTUIWriter(cfg, reg)
			return tw, func() { tw.Close() }
		}
		return sim.NewColorStdoutWriter(cfg, reg), func() {}
	}
	return &sim.StdoutWriter{}, func() {}
}

// newWriters composes the full sink stack: console output, the
// optional JSONL export, and the optional GreptimeDB export. Returns
// the composed writer and a cleanup closing any held resources.
func newWriters(cfg *config.SimulationConfig, reg *device.Registry, tui bool, logFile string) (sim.EventWriter, func(), error) {
	console, closeConsole := newConsoleWriter(cfg, reg, tui)
	writers := []sim.EventWriter{console}
	closers := []func() error{}

	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile)
		if err != nil {
			closeConsole()
			return nil, nil, err
		}
		writers = append(writers, fw)
		closers = append(closers, fw.Close)
	}

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		database := os.Getenv("GREPTIMEDB_DATABASE")
		if database == "" {
			database = "public"
		}
		gw, err := sim.NewGreptimeWriter(endpoint, database,
			os.Getenv("GREPTIMEDB_TRANSFER_TABLE"), os.Getenv("GREPTIMEDB_ALERT_TABLE"))
		if err != nil {
			closeConsole()
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		writers = append(writers, gw)
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
		closeConsole()
	}
	if len(writers) == 1 {
		return console, cleanup, nil
	}
	return sim.NewMultiWriter(writers...), cleanup, nil
}
