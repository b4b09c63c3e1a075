package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/agvkernel/pkg/kernel"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/model"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// modelLoadError wraps a failure to load or validate a topology model, so
// main can report it with a distinct exit code from an unrecoverable
// kernel error.
type modelLoadError struct{ err error }

func (e *modelLoadError) Error() string { return e.err.Error() }
func (e *modelLoadError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var modelErr *modelLoadError
		if errors.As(err, &modelErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "agvkernel",
	Short:   "A transportation control kernel for automated guided vehicles",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agvkernel version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)

	runCmd.Flags().String("model", "", "Path to a topology model XML file to load before entering OPERATING")
	runCmd.Flags().String("evaluator", "distance", "Route Evaluator: distance, turn-penalty, explicit-penalty, composite")
	runCmd.Flags().Int64("turn-penalty", 7, "Constant cost added for an orientation change between steps")
	runCmd.Flags().Duration("dispatch-tick", 2*time.Second, "Interval between dispatch passes absent a vehicle report")
	runCmd.Flags().Duration("archival-horizon", 24*time.Hour, "How long a finished transport order survives before garbage collection")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus metrics endpoint")

	validateCmd.Flags().String("model", "", "Path to a topology model XML file to validate")
	validateCmd.MarkFlagRequired("model")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the kernel, loading a topology model if one is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, _ := cmd.Flags().GetString("model")
		evaluator, _ := cmd.Flags().GetString("evaluator")
		turnPenalty, _ := cmd.Flags().GetInt64("turn-penalty")
		dispatchTick, _ := cmd.Flags().GetDuration("dispatch-tick")
		archivalHorizon, _ := cmd.Flags().GetDuration("archival-horizon")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg := kernel.DefaultConfig()
		cfg.Evaluator = kernel.EvaluatorKind(evaluator)
		cfg.TurnPenalty = turnPenalty
		cfg.DispatchTickInterval = dispatchTick
		cfg.ArchivalHorizon = archivalHorizon

		k, err := kernel.New(cfg)
		if err != nil {
			return fmt.Errorf("create kernel: %w", err)
		}

		if modelPath != "" {
			doc, err := model.Read(modelPath)
			if err != nil {
				return &modelLoadError{fmt.Errorf("load model: %w", err)}
			}
			if err := model.LoadIntoPool(doc, k.Pool); err != nil {
				return &modelLoadError{fmt.Errorf("load model into pool: %w", err)}
			}
			fmt.Printf("Loaded topology model: %s\n", modelPath)
		}

		collector := metrics.NewCollector(k.Pool)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("pool", true, "")
		metrics.RegisterComponent("router", true, "")
		metrics.RegisterComponent("dispatcher", false, "kernel is in MODELLING")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", metricsAddr)

		if modelPath != "" {
			if err := k.EnterOperating(); err != nil {
				return fmt.Errorf("enter OPERATING: %w", err)
			}
			metrics.RegisterComponent("dispatcher", true, "")
			fmt.Println("Kernel is OPERATING.")
		} else {
			fmt.Println("Kernel is in MODELLING; no model was loaded.")
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		k.Shutdown()
		fmt.Println("Shutdown complete")
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a topology model without starting the kernel",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, _ := cmd.Flags().GetString("model")

		doc, err := model.Read(modelPath)
		if err != nil {
			return &modelLoadError{fmt.Errorf("load model: %w", err)}
		}

		cfg := kernel.DefaultConfig()
		k, err := kernel.New(cfg)
		if err != nil {
			return fmt.Errorf("create kernel: %w", err)
		}
		if err := model.LoadIntoPool(doc, k.Pool); err != nil {
			return &modelLoadError{fmt.Errorf("model is invalid: %w", err)}
		}
		if err := k.Router.UpdateRoutingTables(); err != nil {
			return &modelLoadError{fmt.Errorf("model has unreachable routing: %w", err)}
		}

		fmt.Printf("Model %s is valid: %d points, %d paths, %d locations, %d blocks, %d vehicles\n",
			modelPath, len(doc.Points), len(doc.Paths), len(doc.Locations), len(doc.Blocks), len(doc.Vehicles))
		return nil
	},
}
