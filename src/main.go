// Command fpbridge fingerprints audio files with chromaprint.
//
// Usage:
//
//	fpbridge [--config FILE] <command> [args]
//
// Commands:
//
//	serve    - HTTP API (fingerprint, scan, lookup, metrics)
//	compute  - print the fingerprint of one or more files
//	scan     - fingerprint every supported file below a directory
//	watch    - fingerprint files as they appear in a directory
//	lookup   - fingerprint a file and resolve it on AcoustID
//	version  - print version information
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contre95/fpbridge/src/app"
	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/logging"
	"github.com/contre95/fpbridge/src/features/scanning"
)

var version = "dev"

var (
	configPath string
	cfgManager *config.Manager
)

var rootCmd = &cobra.Command{
	Use:           "fpbridge",
	Short:         "Chromaprint fingerprint bridge",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if !cmd.Flags().Changed("config") {
			if env := os.Getenv(config.EnvConfigPath); env != "" {
				path = env
			}
		}
		var err error
		cfgManager, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		slog.SetDefault(logging.SetupLogger(cfgManager))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file (overrides $"+config.EnvConfigPath+")")
	rootCmd.AddCommand(serveCmd, computeCmd, scanCmd, watchCmd, lookupCmd, versionCmd)

	computeCmd.Flags().BoolVar(&computeJSON, "json", false, "print JSON like fpcalc -json")
	computeCmd.Flags().IntVarP(&computeAlgorithm, "algorithm", "a", int(audio.AlgorithmDefault), "chromaprint algorithm (1-5)")
	computeCmd.Flags().DurationVarP(&computeLength, "length", "l", 120*time.Second, "maximum audio to fingerprint, 0 for the whole file")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the scan summary as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// overrideFingerprint applies --algorithm and --length to the loaded config.
func overrideFingerprint(cmd *cobra.Command, algorithm int, length time.Duration) error {
	cfg := *cfgManager.Get()
	if cmd.Flags().Changed("algorithm") {
		if !audio.Algorithm(algorithm).Valid() {
			return fmt.Errorf("algorithm must be between 1 and 5, got %d", algorithm)
		}
		cfg.Fingerprint.Algorithm = algorithm
	}
	if cmd.Flags().Changed("length") {
		cfg.Fingerprint.MaxDuration = length
	}
	cfgManager.Update(&cfg)
	return nil
}

func buildApp() (*app.App, error) {
	a, err := app.Build(cfgManager)
	if err != nil {
		return nil, fmt.Errorf("failed to build bridge: %w", err)
	}
	return a, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if watchPath := cfgManager.Get().Scan.WatchPath; watchPath != "" {
			go func() {
				if err := a.Watch(ctx, watchPath, nil); err != nil {
					slog.Error("Watcher stopped", "path", watchPath, "error", err)
				}
			}()
		}

		server := a.Server()
		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()
		slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfgManager.Get().Server.Port)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		slog.Info("Shutting down server...")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		slog.Info("Server gracefully shut down.")
		return nil
	},
}

var (
	computeJSON      bool
	computeAlgorithm int
	computeLength    time.Duration
)

var computeCmd = &cobra.Command{
	Use:   "compute <file>...",
	Short: "Print the fingerprint of audio files",
	Long: `Print the fingerprint of audio files in fpcalc's output format.

Exits with status 1 when any file could not be fingerprinted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := overrideFingerprint(cmd, computeAlgorithm, computeLength); err != nil {
			return err
		}
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		failed := 0
		for _, path := range args {
			res, err := a.Fingerprints.ComputeFingerprint(cmd.Context(), path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "ERROR: %s: %v\n", path, err)
				continue
			}
			if computeJSON {
				if err := printJSON(map[string]any{
					"file":        path,
					"duration":    res.Duration.Seconds(),
					"fingerprint": res.Fingerprint,
				}); err != nil {
					return err
				}
				continue
			}
			fmt.Printf("FILE=%s\nDURATION=%d\nFINGERPRINT=%s\n", path, int(res.Duration.Seconds()), res.Fingerprint)
			if len(args) > 1 {
				fmt.Println()
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be fingerprinted", failed, len(args))
		}
		return nil
	},
}

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Fingerprint every supported file below a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		summary, err := a.Scanner.Scan(ctx, args[0], func(pct int, msg string) {
			slog.Debug("Scan progress", "percent", pct, "status", msg)
		})
		if summary != nil {
			if scanJSON {
				if perr := printJSON(summary); perr != nil {
					return perr
				}
			} else {
				for _, f := range summary.Files {
					printResult(f)
				}
				fmt.Printf("%d files: %d fingerprinted, %d cached, %d failed (%.1fs)\n",
					summary.Total, summary.Fingerprinted, summary.Cached, summary.Failed, summary.Elapsed)
			}
		}
		return err
	},
}

func printResult(f scanning.FileResult) {
	switch f.Status {
	case scanning.StatusFailed:
		fmt.Printf("%-7s %s: %s\n", f.Status, f.Path, f.Error)
	case scanning.StatusRemoved:
		fmt.Printf("%-7s %s\n", f.Status, f.Path)
	default:
		fmt.Printf("%-7s %s %s\n", f.Status, f.Path, f.Fingerprint)
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Fingerprint audio files as they appear in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgManager.Get().Scan.WatchPath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no directory given and scan.watch_path is not set")
		}
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Watch(ctx, path, printResult)
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <file>",
	Short: "Fingerprint a file and look it up on AcoustID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ident, err := a.Fingerprints.Identify(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if ident.Match == nil {
			fmt.Println("No AcoustID match")
			return nil
		}
		return printJSON(ident.Match)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		engine := a.Fingerprints.Engine()
		fmt.Printf("fpbridge %s\n", version)
		if err := engine.Available(cmd.Context()); err != nil {
			fmt.Printf("engine %s: unavailable (%v)\n", engine.Name(), err)
			return nil
		}
		fmt.Printf("engine %s %s\n", engine.Name(), engine.Version())
		return nil
	},
}
