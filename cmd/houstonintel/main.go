package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/urfave/cli/v2"

	"houstonintel/internal/analytics"
	"houstonintel/internal/auth"
	"houstonintel/internal/charts"
	"houstonintel/internal/config"
	"houstonintel/internal/dashboard"
	"houstonintel/internal/errors"
	"houstonintel/internal/intel"
	"houstonintel/internal/knowledge"
	"houstonintel/internal/server"
	"houstonintel/messages"
	"houstonintel/types"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "houstonintel",
		Usage:   "Houston real-estate intelligence platform",
		Version: version,
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(); err != nil {
				log.Println("⚠️  No .env file found, using environment variables only")
			} else {
				log.Println("✅ .env file loaded")
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			chartsCommand(),
			structureCommand(),
			reportCommand(),
			analyzeCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// ============================================================================
// SERVE
// ============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the analytics engine, alerting, and the dashboard server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP listen port (overrides HIP_SERVER_PORT)",
				EnvVars: []string{"HIP_SERVER_PORT"},
			},
			&cli.BoolFlag{
				Name:    "simulate",
				Usage:   "generate synthetic dashboard traffic",
				EnvVars: []string{"HIP_SIMULATE_CALLS"},
			},
			&cli.BoolFlag{
				Name:    "open",
				Usage:   "open the dashboard in the default browser",
				EnvVars: []string{"HIP_OPEN_BROWSER"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║       Houston Intelligence Platform - Analytics Core       ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg := config.Load()
	if c.IsSet("port") {
		cfg.ServerPort = c.Int("port")
	}
	if c.IsSet("simulate") {
		cfg.SimulateCalls = c.Bool("simulate")
	}
	if c.IsSet("open") {
		cfg.OpenBrowser = c.Bool("open")
	}

	validator := &config.DefaultSettingsValidator{}
	if err := validator.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Println("⚠️  Warning: HIP_JWT_SECRET not set, analyze endpoints will reject all tokens")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := analytics.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := analytics.NewEngine(analytics.EngineConfig{
		QueueSize:         cfg.Analytics.QueueSize,
		RecentBufferSize:  cfg.Analytics.RecentBufferSize,
		AggregateInterval: cfg.Analytics.AggregateInterval,
		WindowSize:        cfg.Analytics.WindowSize,
	}, db)

	alerting := analytics.NewAlertingSystem(500)
	for _, rule := range analytics.DefaultRules() {
		alerting.RegisterRule(rule)
	}
	alerting.RegisterHandler(analytics.CreateLogAlertHandler())
	engine.SetAlerting(alerting)

	hub := server.NewHub()
	go hub.Run(ctx, engine.GetSnapshotChannel())
	alerting.RegisterHandler(func(alert analytics.Alert) {
		hub.BroadcastFrame(messages.AlertFrame(messages.AlertMsg{
			Level:     messages.AlertLevel(alert.Level),
			Title:     alert.Title,
			Message:   alert.Description,
			Source:    alert.Source,
			Timestamp: alert.Timestamp,
		}))
	})

	// Background failures surface on the dashboard, not just in the log.
	errHandler := errors.NewErrorHandler()
	errHandler.SetNotificationFunction(func(appErr *errors.AppError) {
		hub.BroadcastFrame(messages.AlertFrame(messages.AlertMsg{
			Level:     messages.ErrorAlert,
			Title:     "Background task failed",
			Message:   appErr.Message,
			Source:    string(appErr.Type),
			Timestamp: time.Now(),
		}))
	})

	if cfg.Export.EnableKafka {
		exporter := analytics.NewEventExporter(analytics.ExporterConfig{
			KafkaBrokers: cfg.Export.KafkaBrokers,
			Topic:        cfg.Export.KafkaTopic,
			ClientID:     cfg.Export.ClientID,
		})
		if err := exporter.Connect(ctx); err != nil {
			log.Printf("⚠️  Kafka export disabled: %v", err)
		} else {
			engine.SetExporter(exporter)
			alerting.RegisterHandler(func(alert analytics.Alert) {
				if err := exporter.PublishAlert(ctx, alert); err != nil {
					errHandler.HandleError(errors.NewInternalError("failed to publish alert", err))
				}
			})
			defer exporter.Close()
		}
	}

	if cfg.Analytics.Enable {
		if err := engine.Start(); err != nil {
			return err
		}
		defer engine.Stop()

		collector := analytics.NewCollector(engine, db, cfg.Analytics.CollectorInterval)
		if err := collector.Start(); err != nil {
			return err
		}
		defer collector.Stop()

		go runRetentionSweeper(ctx, db, cfg.Analytics.RetentionDays, errHandler)
	} else {
		log.Println("⚠️  Analytics disabled, serving stored data only")
	}

	gen, err := dashboard.NewGenerator()
	if err != nil {
		return err
	}
	reports, err := dashboard.NewReportGenerator(db)
	if err != nil {
		return err
	}

	platform := &server.Platform{
		Config:    cfg,
		DB:        db,
		Engine:    engine,
		Alerting:  alerting,
		Registry:  intel.NewRegistry(),
		Dashboard: gen,
		Reports:   reports,
		Auth:      auth.NewService(cfg.Auth),
		Hub:       hub,
	}

	if cfg.SimulateCalls && cfg.Analytics.Enable {
		go simulateTraffic(ctx, engine)
	}
	if cfg.OpenBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			url := fmt.Sprintf("http://localhost:%d", cfg.ServerPort)
			if err := browser.OpenURL(url); err != nil {
				log.Printf("⚠️  Failed to open browser: %v", err)
			}
		}()
	}

	srv := server.NewServer(cfg.ServerPort)
	return server.Start(ctx, srv, platform)
}

// runRetentionSweeper prunes rows older than the retention window once an hour.
func runRetentionSweeper(ctx context.Context, db *analytics.Database, retentionDays int, errHandler *errors.ErrorHandler) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			removed, err := db.PruneBefore(cutoff)
			if err != nil {
				errHandler.HandleError(errors.NewStorageError("retention sweep", err))
			} else if removed > 0 {
				log.Printf("🧹 Retention sweep removed %d rows older than %s", removed, cutoff.Format("2006-01-02"))
			}
		}
	}
}

// simulateTraffic feeds synthetic calls into the engine so the dashboard has
// something to show during local development.
func simulateTraffic(ctx context.Context, engine *analytics.Engine) {
	endpoints := []string{
		"/api/v1/metrics", "/api/v1/endpoints", "/api/v1/insights",
		"/api/v1/calls/recent", "/api/v1/sessions",
	}
	sessions := []string{"sim-alpha", "sim-bravo", "sim-charlie"}

	log.Println("🧪 Traffic simulator started")
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			call := types.APICall{
				Endpoint:       endpoints[rand.Intn(len(endpoints))],
				Method:         "GET",
				StatusCode:     200,
				ResponseTimeMs: 5 + rand.Float64()*120,
				SessionID:      sessions[rand.Intn(len(sessions))],
			}
			if rand.Intn(20) == 0 {
				call.StatusCode = 500
				call.Error = "simulated failure"
			}
			engine.TrackCall(call)
		}
	}
}

// ============================================================================
// CHARTS
// ============================================================================

func chartsCommand() *cli.Command {
	return &cli.Command{
		Name:  "charts",
		Usage: "Render analytics charts as PNG files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Usage:   "output directory for rendered charts",
				EnvVars: []string{"HIP_CHARTS_OUTPUT_DIR"},
				Value:   "./charts",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "render a single chart from a CSV file instead of the built-in datasets",
			},
			&cli.StringFlag{
				Name:  "measures",
				Usage: "comma-separated CSV columns to treat as numeric measures",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "chart type for CSV input (bar, line, pie)",
				Value: "bar",
			},
			&cli.StringFlag{
				Name:  "group-by",
				Usage: "dimension column to group CSV rows by",
			},
			&cli.StringFlag{
				Name:  "measure",
				Usage: "measure column to aggregate for CSV input",
			},
			&cli.StringFlag{
				Name:  "aggregation",
				Usage: "aggregation for CSV input (sum, avg, count, max, min)",
				Value: "sum",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "chart title for CSV input",
			},
		},
		Action: runCharts,
	}
}

func runCharts(c *cli.Context) error {
	cfg := config.Load()
	outDir := c.String("out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	csvPath := c.String("csv")
	if csvPath == "" {
		paths, err := charts.RenderBuiltins(outDir, cfg.Charts.Width, cfg.Charts.Height)
		if err != nil {
			return err
		}
		log.Printf("✅ Rendered %d charts into %s", len(paths), outDir)
		return nil
	}

	if c.String("group-by") == "" || c.String("measure") == "" {
		return fmt.Errorf("--group-by and --measure are required with --csv")
	}

	measures := strings.Split(c.String("measures"), ",")
	if c.String("measures") == "" {
		measures = []string{c.String("measure")}
	}

	ds, err := charts.LoadCSV(csvPath, measures)
	if err != nil {
		return err
	}

	spec := charts.Spec{
		Type:        charts.ChartType(c.String("type")),
		Title:       c.String("title"),
		GroupBy:     c.String("group-by"),
		Measure:     c.String("measure"),
		Aggregation: c.String("aggregation"),
		Width:       cfg.Charts.Width,
		Height:      cfg.Charts.Height,
	}
	if spec.Title == "" {
		spec.Title = ds.Name
	}

	path := filepath.Join(outDir, ds.Name+".png")
	if err := charts.WritePNG(ds, spec, path); err != nil {
		return err
	}
	log.Printf("✅ Rendered %s", path)
	return nil
}

// ============================================================================
// KNOWLEDGE STRUCTURING
// ============================================================================

func structureCommand() *cli.Command {
	return &cli.Command{
		Name:  "structure",
		Usage: "Structure raw insight JSON into the organized knowledge tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Usage:   "directory of raw insight JSON files",
				EnvVars: []string{"HIP_KNOWLEDGE_INPUT_DIR"},
				Value:   "./insights/t2",
			},
			&cli.StringFlag{
				Name:    "output",
				Usage:   "directory for the structured knowledge tree",
				EnvVars: []string{"HIP_KNOWLEDGE_OUTPUT_DIR"},
				Value:   "./insights/t3",
			},
		},
		Action: func(c *cli.Context) error {
			structurer := knowledge.NewStructurer(knowledge.StructurerConfig{
				InputDir:  c.String("input"),
				OutputDir: c.String("output"),
			})
			result, err := structurer.Run(c.Context)
			if err != nil {
				return err
			}
			log.Printf("✅ Structured %d insights (%d read, %d skipped, %d duplicates) into %s",
				result.Written, result.Read, result.Skipped, result.Duplicates, c.String("output"))
			return nil
		},
	}
}

// ============================================================================
// REPORTS
// ============================================================================

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Generate an HTML traffic report from the analytics database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "period",
				Usage: "report period (daily or weekly)",
				Value: "daily",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "output HTML file",
				Value: "./report.html",
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "analytics database path",
				EnvVars: []string{"HIP_DATABASE_PATH"},
				Value:   "./data/analytics.db",
			},
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	period := dashboard.ReportPeriod(c.String("period"))
	if period != dashboard.ReportDaily && period != dashboard.ReportWeekly {
		return fmt.Errorf("unknown period %q (want daily or weekly)", c.String("period"))
	}

	db, err := analytics.NewDatabase(c.String("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := dashboard.NewReportGenerator(db)
	if err != nil {
		return err
	}
	if err := reports.WriteFile(period, c.String("out")); err != nil {
		return err
	}
	log.Printf("✅ Wrote %s report to %s", period, c.String("out"))
	return nil
}

// ============================================================================
// INTELLIGENCE
// ============================================================================

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run an intelligence analyzer over a JSON input file",
		ArgsUsage: "<domain> <input.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("usage: analyze <domain> <input.json>")
			}

			registry := intel.NewRegistry()
			analyzer, err := registry.Get(types.Domain(c.Args().Get(0)))
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(c.Args().Get(1))
			if err != nil {
				return err
			}

			insight, err := analyzer.AnalyzeJSON(raw)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(insight, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a JWT for the authenticated analyze endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "subject",
				Usage: "token subject (operator or service name)",
				Value: "operator",
			},
			&cli.StringFlag{
				Name:  "role",
				Usage: "token role (analyst or viewer)",
				Value: auth.RoleAnalyst,
			},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("HIP_JWT_SECRET is not set")
			}

			svc := auth.NewService(cfg.Auth)
			token, err := svc.GenerateToken(c.String("subject"), c.String("role"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
