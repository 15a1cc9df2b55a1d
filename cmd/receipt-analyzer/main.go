package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"

	"github.com/zombor/receipt-analyzer/internal/api"
	"github.com/zombor/receipt-analyzer/internal/receipt"
	"github.com/zombor/receipt-analyzer/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port      *int
	dbPath    *string
	store     *string
	logLevel  *string
	logFormat *string

	storageBackend *string
	storagePath    *string
	minioEndpoint  *string
	minioAccessKey *string
	minioSecretKey *string
	minioBucket    *string
	minioRegion    *string
	minioSSL       *bool
	gcsBucket      *string

	scannerType *string
	maxPages    *int
	geminiKey   *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string

	authUser *string
	authPass *string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-analyzer")
	cfg := config{
		port:      fs.IntLong("port", 8080, "HTTP server port"),
		dbPath:    fs.StringLong("db", "receipts.db", "Database file path"),
		store:     fs.StringLong("store", "bolt", "Record store: 'bolt' or 'sqlite'"),
		logLevel:  fs.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		logFormat: fs.StringLong("log-format", "text", "Log format: 'text' or 'json'"),

		storageBackend: fs.StringLong("storage-backend", "local", "File storage: 'local', 'minio' or 'gcs'"),
		storagePath:    fs.StringLong("storage", "./receipts", "Storage directory path for local storage"),
		minioEndpoint:  fs.StringLong("minio-endpoint", "localhost:9000", "MinIO endpoint"),
		minioAccessKey: fs.StringLong("minio-access-key", "", "MinIO access key"),
		minioSecretKey: fs.StringLong("minio-secret-key", "", "MinIO secret key"),
		minioBucket:    fs.StringLong("minio-bucket", "receipts", "MinIO bucket name"),
		minioRegion:    fs.StringLong("minio-region", "", "MinIO region"),
		minioSSL:       fs.BoolLong("minio-ssl", "Use TLS for MinIO"),
		gcsBucket:      fs.StringLong("gcs-bucket", "", "Google Cloud Storage bucket name"),

		scannerType: fs.StringLong("scanner", "none", "OCR engine for images and PDFs: 'gemini', 'ollama' or 'none'"),
		maxPages:    fs.IntLong("max-pages", 5, "Maximum PDF pages sent to the OCR engine"),
		geminiKey:   fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel: fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:   fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel: fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)"),

		authUser: fs.StringLong("auth-user", "", "Basic auth username (optional)"),
		authPass: fs.StringLong("auth-pass", "", "Basic auth password (optional)"),
	}
	_ = fs.StringLong("config", "", "YAML config file (optional)")
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_ANALYZER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(newLogger(os.Stderr, *cfg.logLevel, *cfg.logFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(ctx context.Context, cfg config) error {
	slog.Info("Initializing database...", "store", *cfg.store, "path", *cfg.dbPath)
	db, err := openDB(*cfg.store, *cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}

	engine, err := openEngine(cfg)
	if err != nil {
		db.Close()
		return fmt.Errorf("initializing scanner: %w", err)
	}
	recognizer := scanning.NewRouter(engine)

	slog.Info("Initializing storage...", "backend", *cfg.storageBackend)
	store, err := openStorage(ctx, cfg)
	if err != nil {
		recognizer.Close()
		db.Close()
		return fmt.Errorf("initializing storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	receiptService := receipt.NewService(db, recognizer, store)
	defer receiptService.Close()

	basicAuth := api.BasicAuth{
		Username: *cfg.authUser,
		Password: *cfg.authPass,
	}
	server := api.NewServer(receiptService, basicAuth)

	if *cfg.authUser != "" || *cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", *cfg.authUser)
	}

	return server.Start(ctx, fmt.Sprintf(":%d", *cfg.port))
}

func openDB(kind, path string) (receipt.DB, error) {
	switch kind {
	case "bolt":
		return receipt.NewBoltDB(path)
	case "sqlite":
		return receipt.NewSQLiteDB(path)
	default:
		return nil, fmt.Errorf("invalid store %q: want bolt or sqlite", kind)
	}
}

// openEngine returns nil for 'none' so only text uploads are read
func openEngine(cfg config) (scanning.Recognizer, error) {
	switch *cfg.scannerType {
	case "gemini":
		apiKey := *cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *cfg.geminiModel)
		return scanning.NewGemini(apiKey, *cfg.geminiModel, *cfg.maxPages)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		return scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel, *cfg.maxPages)
	case "none":
		slog.Warn("No OCR engine configured; images and PDFs will be stored for review")
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: want gemini, ollama or none", *cfg.scannerType)
	}
}

func openStorage(ctx context.Context, cfg config) (receipt.Storage, error) {
	switch *cfg.storageBackend {
	case "local":
		return receipt.NewLocalStorage(*cfg.storagePath)
	case "minio":
		return receipt.NewMinioStorage(ctx, receipt.MinioConfig{
			Endpoint:        *cfg.minioEndpoint,
			AccessKeyID:     *cfg.minioAccessKey,
			SecretAccessKey: *cfg.minioSecretKey,
			UseSSL:          *cfg.minioSSL,
			BucketName:      *cfg.minioBucket,
			Region:          *cfg.minioRegion,
		})
	case "gcs":
		if *cfg.gcsBucket == "" {
			return nil, errors.New("--gcs-bucket is required for gcs storage")
		}
		return receipt.NewGCSStorage(ctx, *cfg.gcsBucket)
	default:
		return nil, fmt.Errorf("invalid storage backend %q: want local, minio or gcs", *cfg.storageBackend)
	}
}
