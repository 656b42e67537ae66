// temptower rewrites sliced temperature-tower gcode so each floor of the
// tower prints at its own temperature.
//
// Usage:
//
//	temptower [source.gcode] MIN MAX [flags]
//
// With two numeric arguments the source path comes from settings.json
// (template_gcode_path, falling back to default_path). With three arguments
// the first is the source path. With none, everything comes from the
// settings file.
//
// Examples:
//
//	# Rewrite tower.gcode for a 190-210 C range
//	temptower 190 210
//
//	# Name the source explicitly and estimate print time
//	temptower mytower.gcode 190 210 --estimate
//
//	# Watch progress from a browser dashboard
//	temptower 190 210 --monitor :7125
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"temptower-go/pkg/errors"
	"temptower-go/pkg/log"
	"temptower-go/pkg/monitor"
	"temptower-go/pkg/settings"
	"temptower-go/pkg/tower"
)

var (
	logLevel     string
	settingsPath string
	monitorAddr  string
	estimate     bool
	version      = "1.0.0" // This could be set at build time
)

var rootCmd = &cobra.Command{
	Use:   "temptower [source.gcode] MIN MAX",
	Short: "Temperature tower G-code post-processor",
	Long: `temptower splices per-floor temperature commands into sliced gcode for a
configurable temperature tower, and truncates the print when the temperature
range runs out before the model does.`,
	Args: cobra.MaximumNArgs(3),
	RunE: runTower,
}

// runCmd is the explicit form of the default behavior.
var runCmd = &cobra.Command{
	Use:   "run [source.gcode] MIN MAX",
	Short: "Rewrite the tower gcode (default command)",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runTower,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Print the settings documentation",
	Long:  `Print the documentation for every setting, including its type and default.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := settings.New(settingsPath)
		if err := store.Load(); err != nil {
			return err
		}
		return store.WriteDocumentation(os.Stdout)
	},
}

var setCmd = &cobra.Command{
	Use:   "set NAME VALUE",
	Short: "Change one setting and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		store := settings.New(settingsPath)
		if err := store.Load(); err != nil {
			return err
		}
		if err := store.Set(args[0], args[1]); err != nil {
			return err
		}
		return store.Save()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("temptower v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", settings.DefaultPath, "Settings file path")
	rootCmd.PersistentFlags().StringVar(&monitorAddr, "monitor", "", "Serve rewrite progress over WebSocket on this address (e.g. :7125)")
	rootCmd.PersistentFlags().BoolVar(&estimate, "estimate", false, "Estimate print time with the toolhead emulator")

	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding settings flag: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// A .env file can hold TEMPTOWER_LOG_LEVEL and similar overrides.
	_ = godotenv.Load()
	if logLevel != "" {
		os.Setenv("TEMPTOWER_LOG_LEVEL", logLevel)
	}
}

// rangeArgs distributes positional arguments over source path and
// temperature bounds.
type rangeArgs struct {
	source   string
	min, max int
	hasRange bool
}

func parseArgs(args []string) (rangeArgs, error) {
	var out rangeArgs
	parseTemp := func(s, name string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.ConfigTypeError(name, s, "int", err)
		}
		return n, nil
	}
	var err error
	switch len(args) {
	case 0:
	case 1:
		out.source = args[0]
	case 2:
		if out.min, err = parseTemp(args[0], "min_temperature"); err != nil {
			return out, err
		}
		if out.max, err = parseTemp(args[1], "max_temperature"); err != nil {
			return out, err
		}
		out.hasRange = true
	case 3:
		out.source = args[0]
		if out.min, err = parseTemp(args[1], "min_temperature"); err != nil {
			return out, err
		}
		if out.max, err = parseTemp(args[2], "max_temperature"); err != nil {
			return out, err
		}
		out.hasRange = true
	}
	return out, nil
}

func runTower(_ *cobra.Command, args []string) error {
	echo := log.New("temptower")

	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}

	store := settings.New(settingsPath)
	if err := store.Load(); err != nil {
		return err
	}
	if written, err := store.SaveDocumentationOnce(""); err == nil && written {
		echo.Info("an explanation of settings has been written to '%s'",
			settings.DocumentationPath)
	}

	source := store.SourcePath(parsed.source)
	if err := settings.CheckSource(source); err != nil {
		return err
	}

	minTemp, maxTemp := parsed.min, parsed.max
	if !parsed.hasRange {
		minTemp = store.Int("min_temperature")
		maxTemp = store.Int("max_temperature")
		if minTemp == 0 {
			return errors.ConfigMissingError("min_temperature")
		}
		if maxTemp == 0 {
			return errors.ConfigMissingError("max_temperature")
		}
	}

	// Persist the resolved inputs so the next run can repeat them.
	store.SetString("template_gcode_path", source)
	store.SetInt("min_temperature", minTemp)
	store.SetInt("max_temperature", maxTemp)
	if err := store.Save(); err != nil {
		echo.Warn("could not save settings: %v", err)
	}

	var mon *monitor.Server
	runEcho := log.Echo(echo)
	if monitorAddr != "" {
		mon = monitor.New(monitorAddr)
		go func() {
			if err := mon.Start(); err != nil {
				echo.Warn("monitor server stopped: %v", err)
			}
		}()
		defer mon.Stop()
		runEcho = monitor.NewEcho(echo, mon)
	}

	cfg := store.TowerConfig(source, minTemp, maxTemp)
	cfg.EstimateTime = estimate

	res, err := tower.Rewrite(cfg, runEcho)
	if err != nil {
		return err
	}

	echo.Info("floors realized: %d of %d temperatures", res.FloorsRealized, len(res.Temperatures))
	echo.Info("temperatures spliced: %d", res.SplicedLines)
	if res.TruncatedAtLine > 0 {
		echo.Info("tower truncated at source line %d", res.TruncatedAtLine)
	}
	echo.Info("filament extruded: %.1f mm", res.ExtrudedBeforeStop)
	if estimate {
		echo.Info("estimated time: %.0f s extruding, %.0f s total",
			res.ExtrusionSeconds, res.TotalSeconds)
	}
	if mon != nil {
		mon.Broadcast(monitor.Event{Type: "done", Dest: res.DestPath})
	}
	return nil
}
