package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/piligrim-code/manifesto/pkg/archive"
	"github.com/piligrim-code/manifesto/pkg/config"
	"github.com/piligrim-code/manifesto/pkg/generator"
	"github.com/piligrim-code/manifesto/pkg/manifest"
	"github.com/piligrim-code/manifesto/pkg/mining"
	mcpminer "github.com/piligrim-code/manifesto/pkg/mining/mcp"
	"github.com/piligrim-code/manifesto/pkg/mining/modfile"
	"github.com/piligrim-code/manifesto/pkg/publish"
	"github.com/piligrim-code/manifesto/pkg/telemetry"
)

const serviceName = "manifesto"

type globalFlags struct {
	ConfigPath string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig(serviceName, manifest.Version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	switch args[0] {
	case "generate":
		runGenerate(ctx, global, cfg, args[1:])
	case "empty":
		runEmpty(ctx, global, cfg, args[1:])
	case "actions":
		runActions(ctx, global, cfg, args[1:])
	case "serve":
		runServe(ctx, cfg, args[1:])
	case "archive":
		runArchive(ctx, global, cfg, args[1:])
	case "version":
		fmt.Println(manifest.Version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// newProvider assembles the module providers declared in config: the
// module declaration file, then one miner per configured MCP server.
func newProvider(cfg *config.Config) (mining.Provider, error) {
	var providers []mining.Provider

	if cfg.Modules.File != "" {
		_, statErr := os.Stat(cfg.Modules.File)
		// A missing declaration file is fine when MCP servers cover mining.
		if statErr == nil || len(cfg.Modules.MCP) == 0 {
			f, err := modfile.Load(cfg.Modules.File)
			if err != nil {
				return nil, err
			}
			providers = append(providers, f)
		}
	}

	for _, srv := range cfg.Modules.MCP {
		name := srv.Name
		if name == "" {
			name = srv.Command
		}
		miner, err := mcpminer.Connect(name, srv.Command, srv.Args)
		if err != nil {
			return nil, err
		}
		providers = append(providers, miner)
	}

	return mining.NewMulti(providers...)
}

func newGenerator(cfg *config.Config) (*generator.Generator, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewMiningMetrics()
	if err != nil {
		return nil, err
	}
	return generator.New(provider, provider, generator.WithMetrics(metrics))
}

func runGenerate(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("generate", flag.ContinueOnError)
	domain := cmd.String("domain", cfg.Manifest.Domain, "Manifest domain")
	id := cmd.String("id", cfg.Manifest.ID, "Application identifier")
	out := cmd.String("out", "", "Write manifest to file instead of stdout")
	save := cmd.Bool("save", false, "Archive the generated manifest")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		fatal(err)
	}
	m, payload, err := gen.GenerateManifest(ctx, *domain, *id)
	if err != nil {
		fatal(err)
	}

	if *save {
		store, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			fatal(err)
		}
		defer store.Close()
		key, err := store.Save(ctx, m, payload)
		if err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "archived as %s\n", key)
	}

	writePayload(*out, payload)
}

func runEmpty(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("empty", flag.ContinueOnError)
	domain := cmd.String("domain", cfg.Manifest.Domain, "Manifest domain")
	id := cmd.String("id", cfg.Manifest.ID, "Application identifier")
	out := cmd.String("out", "", "Write manifest to file instead of stdout")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	// No mining happens for an empty manifest, so no provider is needed.
	m := manifest.Build(nil, nil, nil, *domain, *id)
	payload, err := manifest.Marshal(m)
	if err != nil {
		fatal(err)
	}
	writePayload(*out, payload)
}

func runActions(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	ensureNoArgs(args)

	gen, err := newGenerator(cfg)
	if err != nil {
		fatal(err)
	}
	names, err := gen.ExtractManifestData(ctx)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(names)
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func runServe(ctx context.Context, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := cmd.String("addr", cfg.Serve.Addr, "Listen address")
	domain := cmd.String("domain", cfg.Manifest.Domain, "Manifest domain")
	id := cmd.String("id", cfg.Manifest.ID, "Application identifier")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		fatal(err)
	}

	mux := http.NewServeMux()
	mux.Handle(publish.WellKnownPath, publish.Handler(gen, *domain, *id))
	server := &http.Server{Addr: *addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	fmt.Fprintf(os.Stderr, "serving manifest at http://%s%s\n", *addr, publish.WellKnownPath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fatal(err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(err)
		}
	}
}

func runArchive(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(errors.New("usage: manifesto archive list"))
	}
	ensureNoArgs(args[1:])

	store, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	records, err := store.List(ctx)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		out := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			out = append(out, map[string]any{
				"key":        rec.Key,
				"domain":     rec.Domain,
				"app_id":     rec.AppID,
				"version":    rec.Version,
				"created_at": rec.CreatedAt.Format(time.RFC3339),
				"bytes":      len(rec.Payload),
			})
		}
		printJSON(out)
		return
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "KEY\tDOMAIN\tAPP_ID\tVERSION\tCREATED\tBYTES")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%d\n",
			rec.Key, rec.Domain, rec.AppID, rec.Version,
			rec.CreatedAt.Format(time.RFC3339), len(rec.Payload))
	}
	_ = writer.Flush()
}

func writePayload(path string, payload []byte) {
	if path == "" {
		fmt.Println(string(payload))
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		fatal(err)
	}
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func printUsage() {
	fmt.Println(`manifesto - action manifest generator

Usage:
  manifesto [global flags] <command> [args]

Global flags:
  --config <path>      Path to manifesto.yaml
  --json               JSON output

Commands:
  generate [--domain D] [--id ID] [--out <path>] [--save]
  empty [--domain D] [--id ID] [--out <path>]
  actions
  serve [--addr :8080] [--domain D] [--id ID]
  archive list
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
