// Package main is the pdfqa CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/pdfqa/internal/chat"
	"github.com/hyperjump/pdfqa/internal/cli"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/llm"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/server"
	"github.com/hyperjump/pdfqa/internal/vector"
	"github.com/hyperjump/pdfqa/internal/vectorstore"
	"github.com/hyperjump/pdfqa/internal/watcher"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

// loadConfig loads the .env file and the config at path. When path is the default
// and no config.yaml exists in the working directory, the user config directory
// (e.g. ~/.config/pdfqa/config.yaml) is tried before falling back to defaults.
// Returns the config and the path that was resolved.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if dir, dirErr := os.UserConfigDir(); dirErr == nil {
				fallback := filepath.Join(dir, "pdfqa", "config.yaml")
				if _, statErr := os.Stat(fallback); statErr == nil {
					path = fallback
				}
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "chat":
		runChat()
	case "serve", "server":
		runServe()
	case "build":
		runBuild()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("pdfqa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup parses common flags, loads config, and creates the logger.
func setup(fs *flag.FlagSet, args []string) (*config.Config, *zap.Logger) {
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	showSources := fs.Bool("sources", false, "print the source pages under each answer")
	cfg, logger := setup(fs, os.Args[2:])
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("\nLoading documents and building knowledge base...")
	if err := components.Pipeline.BuildOrLoad(ctx); err != nil {
		fmt.Printf("Failed to prepare the index: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Vector DB ready. Launching QA Chat...")

	repl := chat.NewREPL(components.Pipeline, cfg.Chat, os.Stdin, os.Stdout,
		chat.WithLogger(logger), chat.WithSources(*showSources))
	if err := repl.Run(ctx); err != nil {
		fmt.Printf("Chat failed: %v\n", err)
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	watch := fs.Bool("watch", false, "rebuild the index when files in the data directory change")
	host := fs.String("host", "", "listen host (overrides config)")
	port := fs.Int("port", 0, "listen port (overrides config)")
	cfg, logger := setup(fs, os.Args[2:])
	defer logger.Sync()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	if err := components.Pipeline.BuildOrLoad(ctx); err != nil {
		if !errors.Is(err, vectorstore.ErrNoValidChunks) {
			logger.Fatal("Failed to prepare the index", zap.Error(err))
		}
		logger.Warn("no indexable text in data directory; upload documents to start", zap.Error(err))
	}

	if *watch || cfg.Watch.Enabled {
		pipeline := components.Pipeline
		w := watcher.NewWatcher(cfg.Data.Dir, pipeline.Loader().Matches, func() {
			rebuilt, err := pipeline.Refresh(ctx)
			if err != nil {
				logger.Warn("rebuild after file change failed", zap.Error(err))
				return
			}
			if rebuilt {
				logger.Info("index refreshed after file change")
			}
		}, watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		logger.Info("watching data directory", zap.String("dir", cfg.Data.Dir))
	}

	srv := server.NewServer(components.Pipeline, chat.NewSessions(), cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	cfg, logger := setup(fs, os.Args[2:])
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	report, err := components.Pipeline.Rebuild(context.Background())
	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		os.Exit(1)
	}
	st, err := components.Pipeline.Status()
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	cli.WriteReport(os.Stdout, report, st.Chunks)
	if st.Chunks == 0 {
		fmt.Printf("No documents found in %s; the index was cleared.\n", cfg.Data.Dir)
	}
}

// buildQuestion joins positional args so multi-word questions work with or without quotes.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the question to the front so that
// flag.Parse sees them; flag parsing stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: pdfqa ask [flags] <question>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  pdfqa ask When does the lease end?
  pdfqa ask --filtered --output json "Who pays for repairs?"
  pdfqa ask --server http://localhost:8501 "What is the notice period?"
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	output := fs.String("output", "text", "output format: text or json")
	filtered := fs.Bool("filtered", false, "drop matches below chat.similarity_threshold")
	serverURL := fs.String("server", "", "ask a running 'pdfqa serve' instead of loading the index")
	fs.Usage = func() { printAskUsage(fs) }
	cfg, logger := setup(fs, argsReorder(os.Args[2:]))
	defer logger.Sync()

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}

	var result *models.QueryResult
	if *serverURL != "" {
		result, err = askViaHTTP(*serverURL, question, *filtered)
	} else {
		result, err = askDirect(cfg, logger, question, *filtered)
	}
	if err != nil {
		fmt.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, result, format); err != nil {
		fmt.Printf("Failed to write answer: %v\n", err)
		os.Exit(1)
	}
}

func askDirect(cfg *config.Config, logger *zap.Logger, question string, filtered bool) (*models.QueryResult, error) {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Pipeline.BuildOrLoad(ctx); err != nil {
		return nil, err
	}
	if filtered {
		return components.Pipeline.AnswerFiltered(ctx, question)
	}
	return components.Pipeline.Answer(ctx, question)
}

// askViaHTTP opens a session on a running server and asks one question.
func askViaHTTP(serverURL, question string, filtered bool) (*models.QueryResult, error) {
	base := strings.TrimRight(serverURL, "/")
	client := &http.Client{Timeout: 10 * time.Minute}

	var session struct {
		ID string `json:"id"`
	}
	if err := postJSON(client, base+"/api/v1/sessions", nil, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	var result models.QueryResult
	body := map[string]interface{}{"question": question, "filtered": filtered}
	if err := postJSON(client, base+"/api/v1/sessions/"+session.ID+"/messages", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func postJSON(client *http.Client, url string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	resp, err := client.Post(url, "application/json", body)
	if err != nil {
		return fmt.Errorf("request failed (is the server running?): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error  string            `json:"error"`
			Errors map[string]string `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" && len(e.Errors) > 0 {
			e.Error = fmt.Sprintf("%v", e.Errors)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	output := fs.String("output", "text", "output format: text or json")
	serverURL := fs.String("server", "", "query a running 'pdfqa serve' instead of reading the index")
	cfg, logger := setup(fs, os.Args[2:])
	defer logger.Sync()

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var st *rag.Status
	if *serverURL != "" {
		st, err = statusViaHTTP(*serverURL)
	} else {
		st, err = statusDirect(cfg, logger)
	}
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Printf("Failed to write status: %v\n", err)
		os.Exit(1)
	}
}

func statusDirect(cfg *config.Config, logger *zap.Logger) (*rag.Status, error) {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Pipeline.Status()
}

func statusViaHTTP(serverURL string) (*rag.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed (is the server running?): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	var st rag.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

// Components holds initialized services.
type Components struct {
	Embedder  embedding.Embedder
	Generator llm.Generator
	Pipeline  *rag.Pipeline
}

func (c *Components) Close() {
	if c.Pipeline != nil {
		_ = c.Pipeline.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	indexType, err := vector.ParseIndexType(cfg.Index.Type)
	if err != nil {
		return nil, err
	}
	if indexType == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not compiled in, falling back to memory index",
			zap.String("requested_type", cfg.Index.Type))
		indexType = vector.IndexTypeMemory
	}
	cfg.Index.Type = string(indexType)

	embedder, err := embedding.New(cfg.Embedding, embedding.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	generator, err := llm.New(cfg.LLM, llm.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	pipeline, err := rag.New(cfg, embedder, generator, rag.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	logger.Debug("components initialized",
		zap.String("embedding_model", embedder.ModelID()),
		zap.String("llm_model", generator.Model()),
		zap.String("index_type", cfg.Index.Type))
	return &Components{Embedder: embedder, Generator: generator, Pipeline: pipeline}, nil
}

func printUsage() {
	fmt.Println(`pdfqa - Chat with your PDF documents using a local LLM

Usage:
  pdfqa chat [flags]             Answer questions in the terminal
  pdfqa serve [flags]            Start the web UI and HTTP API
  pdfqa build [flags]            Rebuild the index from the data directory
  pdfqa ask [flags] <question>   Answer one question and exit
  pdfqa status [flags]           Show index and model status
  pdfqa version                  Show version
  pdfqa help                     Show this help

Common Flags:
  --config string    Config file path (default: config.yaml)
  --debug            Enable debug logging

Chat Flags:
  --sources          Print source pages under each answer

Serve Flags:
  --watch            Rebuild when files in the data directory change
  --host string      Listen host (default from config)
  --port int         Listen port (default from config)

Ask Flags:
  --output string    Output format: text or json (default: text)
  --filtered         Drop matches below chat.similarity_threshold
  --server string    Ask a running server instead of loading the index

Status Flags:
  --output string    Output format: text or json (default: text)
  --server string    Query a running server

Examples:
  pdfqa chat
  pdfqa serve --watch
  pdfqa ask --output json "When does the lease end?"
  pdfqa status`)
}
