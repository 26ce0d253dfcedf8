package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/adaptquiz/internal/handler"
	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/llm"
	"github.com/pavelanni/adaptquiz/internal/llm/prompts"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/quizgen"
	"github.com/pavelanni/adaptquiz/internal/store"
)

//go:generate templ generate -path ../../internal

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adaptquiz",
		Short: "Adaptive multiple-choice quiz with an AI question generator",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), playCmd(), exportCmd(), hashKeyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `adaptquiz --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the question generation server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":3000", "HTTP listen address")
	addStoreFlags(f)
	addGeneratorFlags(f)
	f.StringP("lang", "l", "en", "Default language for API messages (en, ru)")
	f.Int("max-count", 20, "Largest question count accepted per request")
	f.Int("default-count", 10, "Question count used when a request omits it")
	f.Bool("debug-errors", false, "Include underlying error text in error responses")
	f.String("api-key-hash", "", "bcrypt hash of the X-API-Key value required for generation (empty disables)")
	f.Int("rate-limit", 100, "Requests per client IP per rate window on /api (0 disables)")
	f.Duration("rate-window", 15*time.Minute, "Rate limiter window")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (empty allows any)")
	f.String("cache", "memory", "Question cache backend (memory, redis, none)")
	f.Int("cache-size", 100, "Maximum entries in the memory cache")
	f.Duration("cache-ttl", 24*time.Hour, "Question cache entry lifetime")
	f.String("redis-url", "redis://localhost:6379/0", "Redis URL for the redis cache backend")
	f.Int("usage-retention-days", 90, "Delete daily usage tallies older than this at startup (0 keeps all)")
	addLogFlags(f)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one question set and print it as JSON",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("topic", "t", "", "Quiz topic (required)")
	f.IntP("difficulty", "d", 1, "Difficulty tier (1-3)")
	f.IntP("count", "n", 10, "Number of questions (1-20)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addStoreFlags(f)
	addGeneratorFlags(f)
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored quiz results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	f.StringP("topic", "t", "", "Only export results for this topic")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print a bcrypt hash of an API key for --api-key-hash",
		Long:  "Print a bcrypt hash of an API key. The key is read from the argument or, if absent, from standard input.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
				if err != nil {
					return fmt.Errorf("read key: %w", err)
				}
				key = strings.TrimSpace(string(data))
			}
			if key == "" {
				return errors.New("empty key")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash key: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return err
		},
	}
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("db", "adaptquiz.db", "SQLite database path or PostgreSQL URL")
	f.String("db-driver", "sqlite", "Database driver (sqlite, postgres)")
}

func addGeneratorFlags(f *pflag.FlagSet) {
	f.String("llm-url", "https://generativelanguage.googleapis.com/v1beta/openai/", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the generative model")
	f.String("llm-model", "gemini-2.0-flash", "Model name")
	f.Duration("generation-timeout", 30*time.Second, "Deadline for one generation call")
	f.Int("daily-request-limit", 0, "Upstream requests per day before falling back (0 = unlimited)")
	f.Bool("fallback", true, "Answer upstream failures with archived or synthetic questions")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ADAPTQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("adaptquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/adaptquiz")
	v.AddConfigPath("/etc/adaptquiz")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	driver, err := store.ParseDriver(v.GetString("db-driver"))
	if err != nil {
		return nil, err
	}
	db, err := store.Open(driver, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// logStoreStats prunes old usage tallies and logs what the database holds.
func logStoreStats(db *store.Store, retentionDays int) {
	if retentionDays > 0 {
		before := time.Now().AddDate(0, 0, -retentionDays).Format(quizgen.DayFormat)
		if n, err := db.PruneUsage(before); err != nil {
			slog.Warn("prune usage", "error", err)
		} else if n > 0 {
			slog.Info("pruned usage tallies", "rows", n, "before", before)
		}
	}
	results, err := db.CountResults()
	if err != nil {
		slog.Warn("count results", "error", err)
		return
	}
	sets, err := db.CountGeneratedSets("")
	if err != nil {
		slog.Warn("count generated sets", "error", err)
		return
	}
	slog.Info("database ready", "driver", db.Driver(), "results", results, "archived_sets", sets)
}

// newGenerator wires the LLM client, cache and store into a generation
// service. It warns rather than fails when the model endpoint is unreachable
// since fallback questions keep the service usable.
func newGenerator(ctx context.Context, v *viper.Viper, db *store.Store, cache quizgen.Cache, reg prometheus.Registerer) (*quizgen.Service, error) {
	if err := prompts.Load(prompts.Default()); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		slog.Warn("LLM health check failed", "url", v.GetString("llm-url"), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", client.Model())
	}

	var metrics *quizgen.Metrics
	if reg != nil {
		metrics = quizgen.NewMetrics(reg)
	}
	return quizgen.New(client, cache, db, metrics, quizgen.Config{
		Timeout:    v.GetDuration("generation-timeout"),
		DailyLimit: v.GetInt("daily-request-limit"),
		Fallback:   v.GetBool("fallback"),
	}), nil
}

func newCache(ctx context.Context, v *viper.Viper) (quizgen.Cache, func(), error) {
	noop := func() {}
	switch strings.ToLower(v.GetString("cache")) {
	case "none", "":
		return nil, noop, nil
	case "memory":
		c, err := quizgen.NewMemoryCache(v.GetInt("cache-size"), v.GetDuration("cache-ttl"))
		if err != nil {
			return nil, noop, fmt.Errorf("create memory cache: %w", err)
		}
		return c, noop, nil
	case "redis":
		opts, err := redis.ParseURL(v.GetString("redis-url"))
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		return quizgen.NewRedisCache(client, "adaptquiz:questions:", v.GetDuration("cache-ttl")),
			func() { client.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown cache backend %q", v.GetString("cache"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()
	logStoreStats(db, v.GetInt("usage-retention-days"))

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	slog.Debug("locales loaded", "languages", appI18n.Languages())

	cache, closeCache, err := newCache(ctx, v)
	if err != nil {
		return err
	}
	defer closeCache()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gen, err := newGenerator(ctx, v, db, cache, reg)
	if err != nil {
		return err
	}

	cfg := model.ServerConfig{
		MaxCount:     v.GetInt("max-count"),
		DefaultCount: v.GetInt("default-count"),
		DebugErrors:  v.GetBool("debug-errors"),
		APIKeyHash:   v.GetString("api-key-hash"),
		RateLimit:    v.GetInt("rate-limit"),
		RateWindow:   v.GetDuration("rate-window"),
		CORSOrigins:  v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(gen, db, cfg, reg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", "X-API-Key"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"db_driver", db.Driver(),
		"cache", v.GetString("cache"),
		"lang", lang,
		"fallback", v.GetBool("fallback"),
		"rate_limit", cfg.RateLimit,
		"daily_limit", v.GetInt("daily-request-limit"),
		"api_key", cfg.APIKeyHash != "",
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, n := v.GetInt("difficulty"), v.GetInt("count")
	p, err := quizgen.Validate(model.GenerateRequest{Topic: v.GetString("topic"), Difficulty: &d, Count: &n}, 20, 10)
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	gen, err := newGenerator(ctx, v, db, nil, nil)
	if err != nil {
		return err
	}
	set, err := gen.Generate(ctx, p.Topic, p.Tier, p.Count)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return writeJSONOutput(v.GetString("output"), set)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportResults(v.GetString("topic"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	slog.Info("exporting results", "count", export.Count, "topic", export.Topic)
	return writeJSONOutput(v.GetString("output"), export)
}

func writeJSONOutput(outPath string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
