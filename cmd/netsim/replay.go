package main

import (
	"github.com/spf13/cobra"

	"netsim/internal/sim"
)

var (
	replayInput  string
	replaySpeed  float64
	replayTUI    bool
	replayConfig string
	replaySchema string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded event log",
	Long:  "replay feeds a JSONL event log back through the console writers, preserving recorded pacing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(replayConfig, replaySchema, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		writer, closeWriter := newConsoleWriter(cfg, reg, replayTUI)
		defer closeWriter()
		return sim.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to event log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayTUI, "tui", false, "Render a terminal UI instead of line output")
	replayCmd.Flags().StringVar(&replayConfig, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	replayCmd.Flags().StringVar(&replaySchema, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	replayCmd.MarkFlagRequired("input")
}
