package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/giygas/medfinder-api/catalogparser"
	"github.com/giygas/medfinder-api/config"
	"github.com/giygas/medfinder-api/data"
	"github.com/giygas/medfinder-api/handlers"
	"github.com/giygas/medfinder-api/health"
	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/logging"
	"github.com/giygas/medfinder-api/scheduler"
	"github.com/giygas/medfinder-api/search"
	"github.com/giygas/medfinder-api/server"
	"github.com/giygas/medfinder-api/validation"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	limitFlag := func(value int) *cli.IntFlag {
		return &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of results", Value: value}
	}

	return &cli.App{
		Name:  "medfinder",
		Usage: "Medicine lookup and cross-brand alternatives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "catalog",
				Aliases: []string{"c"},
				Usage:   "Path to the catalog JSON file (overrides CATALOG_PATH)",
			},
		},
		Before: loadConfig,
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serveCommand,
			},
			{
				Name:   "search",
				Usage:  "Search products by ingredient or by composition",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ingredient", Aliases: []string{"i"}, Usage: "Ingredient name, optionally with a dosage"},
					&cli.StringFlag{Name: "composition", Usage: "Whole formula, e.g. \"Paracetamol (500mg) + Caffeine (65mg)\""},
					&cli.BoolFlag{Name: "exact", Usage: "Match the composition exactly"},
					&cli.StringFlag{Name: "dosage", Aliases: []string{"d"}, Usage: "Dosage filter, e.g. 500mg"},
					limitFlag(20),
				},
			},
			{
				Name:   "alternatives",
				Usage:  "List other brands selling the same composition",
				Action: alternativesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Product name", Required: true},
					&cli.StringFlag{Name: "brand", Usage: "Brand, when the name is sold by several"},
					limitFlag(20),
				},
			},
			{
				Name:   "autocomplete",
				Usage:  "Suggest product names and compositions for a prefix",
				Action: autocompleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "Typed prefix", Required: true},
					limitFlag(10),
				},
			},
			{
				Name:   "fuzzy",
				Usage:  "Search names tolerating misspellings",
				Action: fuzzyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query", Required: true},
					limitFlag(20),
				},
			},
			{
				Name:   "stats",
				Usage:  "Print catalog statistics",
				Action: statsCommand,
			},
		},
	}
}

// loadConfig reads .env, then the environment, then the global flags
func loadConfig(c *cli.Context) error {
	if err := godotenv.Load(); err != nil {
		// Fall back to the executable directory, where deployments keep .env
		if ex, exErr := os.Executable(); exErr == nil {
			_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if path := c.String("catalog"); path != "" {
		cfg.CatalogPath = path
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[configKey].(*config.Config)
	return cfg
}

func initLogger(cfg *config.Config, quiet bool) {
	fileLevel, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fileLevel = slog.LevelInfo
	}

	opts := logging.Options{
		Dir:            cfg.LogDir,
		ConsoleLevel:   logging.ConsoleLevel(cfg.Env.String(), cfg.LogLevel),
		FileLevel:      fileLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}
	if quiet {
		// stdout carries the JSON result
		opts.Dir = ""
		opts.ConsoleLevel = slog.LevelError + 4
	}
	logging.InitLogger(opts)
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	initLogger(cfg, false)
	defer logging.Close()

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	validator := validation.NewDataValidator()
	loader := catalogparser.NewFileLoader(cfg.CatalogPath)

	sched := scheduler.NewScheduler(dataContainer, loader, validator, scheduler.Options{
		Interval: cfg.CatalogReloadInterval,
		Workers:  cfg.IndexWorkers,
		Settings: cfg.SearchSettings(),
	})
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		return err
	}
	defer sched.Stop()

	healthChecker := health.NewHealthChecker(dataContainer, cfg.CatalogReloadInterval)
	httpHandler := handlers.NewHTTPHandler(dataContainer, validator, healthChecker)
	srv := server.NewServer(cfg, httpHandler)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadEngine builds a one-shot engine for the offline commands
func loadEngine(c *cli.Context) (*search.Engine, error) {
	cfg := configFrom(c)
	initLogger(cfg, true)

	products, _, err := catalogparser.NewFileLoader(cfg.CatalogPath).LoadCatalog()
	if err != nil {
		return nil, err
	}

	settings := cfg.SearchSettings()
	settings.CacheMaxEntries = 0
	return search.NewEngine(index.Build(products, index.Options{Workers: cfg.IndexWorkers}), settings)
}

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func searchCommand(c *cli.Context) error {
	ingredient, formula := c.String("ingredient"), c.String("composition")
	if (ingredient == "") == (formula == "") {
		return errors.New("pass exactly one of --ingredient or --composition")
	}

	engine, err := loadEngine(c)
	if err != nil {
		return err
	}

	var res search.FormulaResult
	if ingredient != "" {
		res, err = engine.SearchByIngredient(ingredient, c.String("dosage"), c.Int("limit"))
	} else {
		res, err = engine.SearchByComposition(formula, c.Bool("exact"), c.String("dosage"), c.Int("limit"))
	}
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func alternativesCommand(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}

	var res search.AlternativesResult
	if brand := c.String("brand"); brand != "" {
		res, err = engine.GetAlternativesByBrand(c.String("name"), brand, c.Int("limit"))
	} else {
		res, err = engine.GetAlternatives(c.String("name"), c.Int("limit"))
	}
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func autocompleteCommand(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, engine.Autocomplete(c.String("prefix"), c.Int("limit")))
}

func fuzzyCommand(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}

	res, err := engine.FuzzySearch(c.String("query"), c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func statsCommand(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, engine.Stats())
}
