package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"aria/internal/config"
	"aria/internal/decision"
	"aria/internal/features"
	"aria/internal/inference"
	"aria/internal/logging"
	"aria/internal/observability"
	"aria/internal/registry"
	"aria/internal/router"
	"aria/internal/telemetry"
	"aria/internal/update"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type runtime struct {
	cfg      config.RuntimeConfig
	logger   logging.Logger
	olog     *observability.Logger
	metrics  *observability.MetricsCollector
	registry *registry.Registry
	hub      *inference.Hub
	router   *router.Router
	gate     *decision.Gate
	recorder *telemetry.Recorder
}

// buildRuntime wires the full dispatch pipeline from configuration.
func buildRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	logger := logging.FromObservabilityWithComponent(obsLogger, "aria")

	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{
		Enabled:        cfg.Metrics.Enabled,
		PrometheusPort: cfg.Metrics.PrometheusPort,
	})
	if err != nil {
		return nil, err
	}

	journal, err := telemetry.NewJournal(cfg.Telemetry.Path)
	if err != nil {
		return nil, err
	}
	rules := make([]telemetry.Rule, 0, len(cfg.Telemetry.Rules))
	for _, rule := range cfg.Telemetry.Rules {
		rules = append(rules, telemetry.Rule{Prefix: rule.Prefix, Rate: rule.Rate})
	}
	recorder := telemetry.NewRecorder(journal, telemetry.Config{
		Rules:       rules,
		DefaultRate: cfg.Telemetry.DefaultRate,
	}, logger)

	hub, err := inference.NewHub(&inference.MockEngine{}, inference.Config{
		ManifestPath:     cfg.Runtime.ManifestPath,
		InputDim:         cfg.Runtime.InputDim,
		SessionCacheSize: cfg.Runtime.SessionCache,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if err := hub.Init(reg); err != nil {
		return nil, err
	}

	var calibration [5]float64
	copy(calibration[:], cfg.Decision.Calibration)
	gate := decision.NewGate(decision.Config{
		Gates:       cfg.Decision.Gates,
		DefaultGate: cfg.Decision.DefaultGate,
		SafetyGate:  cfg.Decision.SafetyGate,
		Calibration: calibration,
		Disclaimer:  cfg.Decision.Disclaimer,
	})

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		olog:     obsLogger,
		metrics:  metrics,
		registry: reg,
		hub:      hub,
		router:   router.New(reg, cfg.Runtime.InputDim, recorder, metrics, logger),
		gate:     gate,
		recorder: recorder,
	}, nil
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "aria",
		Short:         "On-device skill routing and inference runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to runtime config file")

	root.AddCommand(newRouteCmd(&configPath))
	root.AddCommand(newSkillsCmd(&configPath))
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newWatchCmd(&configPath))
	root.AddCommand(newMetricsCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func newRouteCmd(configPath *string) *cobra.Command {
	var skillID, trigger, payloadJSON string

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Dispatch a payload to a skill by id or trigger phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}

			payload := features.Payload{}
			if payloadJSON != "" {
				if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
					return fmt.Errorf("parse payload: %w", err)
				}
			}

			ctx := observability.ContextWithTraceID(cmd.Context(), newTraceID())
			var results []router.Result
			switch {
			case skillID != "":
				results = []router.Result{rt.router.Route(ctx, skillID, payload)}
			case trigger != "":
				results = rt.router.RouteTrigger(ctx, trigger, payload)
			default:
				return fmt.Errorf("either --skill or --trigger is required")
			}

			for _, result := range results {
				rctx := observability.ContextWithSkillID(ctx, result.SkillID)
				if result.OK() {
					rt.olog.InfoContext(rctx, "route completed")
				} else {
					rt.olog.WarnContext(rctx, "route failed", "error", result.Err().Error())
				}
				printResult(rt, result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&skillID, "skill", "", "skill id to dispatch")
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger phrase to dispatch")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "request payload as JSON")
	return cmd
}

// newTraceID returns a random hex id correlating the log lines of one
// route invocation.
func newTraceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func printResult(rt *runtime, result router.Result) {
	if !result.OK() {
		fmt.Printf("%s %s: %v\n", red("✗"), result.SkillID, result.Err())
		return
	}

	output := result.Value()
	confidence := 0.0
	if len(output) > 0 {
		confidence = output[0]
	}
	d := rt.gate.Decide(result.SkillID, confidence, fmt.Sprintf("skill %s ready", result.SkillID))

	marker := green("✓")
	if d.Action == decision.ActionAsk {
		marker = yellow("?")
	}
	fmt.Printf("%s %s action=%s confidence=%.3f calibrated=%.3f\n",
		marker, bold(result.SkillID), d.Action, d.Confidence, d.CalibratedConfidence)
	fmt.Printf("  %s\n", gray(d.Message))
}

func newSkillsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "List registered skills and their triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}
			for _, id := range rt.registry.ListSkills() {
				reg, _ := rt.registry.Lookup(id)
				fmt.Printf("%s %s %s\n", bold(id), gray(reg.Definition.Builder),
					strings.Join(reg.Definition.Triggers, ", "))
			}
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	var manifestPath, signatureB64, keyB64 string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a detached signature over a manifest file",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := os.ReadFile(manifestPath)
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			verifier, err := update.NewVerifierBase64(keyB64)
			if err != nil {
				return err
			}
			if verifier.Verify(manifest, signatureB64) {
				fmt.Printf("%s manifest verified\n", green("✓"))
				return nil
			}
			fmt.Printf("%s manifest NOT verified\n", red("✗"))
			os.Exit(1)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to manifest file")
	cmd.Flags().StringVar(&signatureB64, "signature", "", "base64 detached signature")
	cmd.Flags().StringVar(&keyB64, "key", "", "base64 Ed25519 public key")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("signature")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newMetricsCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve the Prometheus scrape endpoint until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Metrics.PrometheusPort
			}
			if port == 0 {
				port = 9464
			}

			metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{
				Enabled:        true,
				PrometheusPort: port,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("%s serving /metrics on :%d\n", green("✓"), port)
			<-ctx.Done()
			return metrics.Shutdown(context.Background())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "scrape port (default from config)")
	return cmd
}

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the periodic signed-update check until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}
			if !rt.cfg.Update.Enabled {
				return fmt.Errorf("update checking is disabled in config")
			}

			worker, err := update.NewWorker(update.WorkerConfig{
				ManifestURL:     rt.cfg.Update.ManifestURL,
				PublicKeyBase64: rt.cfg.Update.PublicKeyBase64,
				Interval:        rt.cfg.Update.Interval(),
			}, func(manifest []byte) {
				rt.logger.Info("Verified update manifest ready (%d bytes)", len(manifest))
			}, func(err error) {
				fmt.Fprintf(os.Stderr, "%s %v\n", red("Terminal update error:"), err)
			}, rt.logger, rt.metrics)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			worker.Start(ctx)
			<-ctx.Done()
			worker.Stop()
			return nil
		},
	}
}
