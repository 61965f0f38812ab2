package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/WikiGraph/internal/config"
	"github.com/TobiSchelling/WikiGraph/internal/fetch"
	"github.com/TobiSchelling/WikiGraph/internal/graph"
	"github.com/TobiSchelling/WikiGraph/internal/nlp"
	"github.com/TobiSchelling/WikiGraph/internal/pipeline"
	"github.com/TobiSchelling/WikiGraph/internal/server"
	"github.com/TobiSchelling/WikiGraph/internal/session"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "wikigraph",
	Short:   "Knowledge graphs from Wikipedia articles",
	Long:    "WikiGraph fetches a Wikipedia article, resolves coreferences and builds a browsable graph of noun-phrase relationships.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetReportTimestamp(true)
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.SetReportCaller(true)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Could not load .env", "err", err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !verbose {
			level, err := log.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logging.level: %w", err)
			}
			log.SetLevel(level)
		}
		log.Debug("Config loaded", "path", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("wikigraph", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/wikigraph/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose the Wikipedia language and NLP backend.")
		return nil
	},
}

// --- build command ---

var (
	buildQuery string
	buildJSON  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [title]",
	Short: "Fetch an article and build its knowledge graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := newPipelineFactory(cfg)()
		result := pipe.Run(ctx, args[0])

		if buildJSON {
			if result.Failed() {
				return stepFailure(result)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Graph)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			switch {
			case step.Err != nil:
				fmt.Printf("  Error: %v\n", step.Err)
			case step.Warning != "":
				fmt.Printf("  Warning: %s\n", step.Warning)
			default:
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if result.Failed() {
			return stepFailure(result)
		}

		if len(result.Chains) > 0 {
			fmt.Println("\nCoreference chains:")
			for i, c := range result.Chains {
				fmt.Printf("  Chain %d: %s\n", i+1, c)
			}
		}

		if buildQuery != "" {
			printNeighbors(result.Graph, buildQuery)
		}
		fmt.Println("\nGraph ready. Run 'wikigraph serve' to explore it in the browser.")
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildQuery, "query", "q", "", "List the outgoing neighbors of this node")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the graph as JSON instead of a summary")
}

func printNeighbors(g *graph.Graph, entity string) {
	dests, err := g.Query(entity)
	switch {
	case errors.Is(err, graph.ErrNodeNotFound):
		fmt.Printf("\nNode '%s' does not exist in the graph.\n", entity)
	case len(dests) == 0:
		fmt.Printf("\nNo related entities found for '%s'.\n", entity)
	default:
		fmt.Printf("\nRelated entities for '%s':\n", entity)
		for _, d := range dests {
			fmt.Printf("  - %s\n", d)
		}
	}
}

func stepFailure(r *pipeline.Result) error {
	for _, st := range r.Steps {
		if st.Err != nil {
			return fmt.Errorf("%s: %w", st.Name, st.Err)
		}
	}
	return fmt.Errorf("pipeline failed for %q", r.Title)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		store := session.NewStore(cfg.Server.MaxSessions, cfg.Server.SessionTTL(), newPipelineFactory(cfg))

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(store, port, cfg.NLP.Timeout()+cfg.Wikipedia.Timeout())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// newPipelineFactory returns a constructor for per-session pipelines. The
// Wikipedia client is shared so rate limiting applies across sessions; each
// pipeline gets its own annotator.
func newPipelineFactory(cfg *config.Config) func() *pipeline.Pipeline {
	fetcher := fetch.NewClient(fetch.Options{
		Endpoint:          cfg.Wikipedia.Endpoint(),
		UserAgent:         cfg.Wikipedia.UserAgent,
		Timeout:           cfg.Wikipedia.Timeout(),
		RequestsPerSecond: cfg.Wikipedia.RequestsPerSecond,
		AutoSuggest:       cfg.Wikipedia.AutoSuggest,
	})
	opts := nlp.Options{
		Backend:   cfg.NLP.Backend,
		RemoteURL: cfg.NLP.RemoteURL,
		APIKeyEnv: cfg.NLP.APIKeyEnv,
		Timeout:   cfg.NLP.Timeout(),
	}
	return func() *pipeline.Pipeline {
		return pipeline.New(fetcher, nlp.CreateAnnotator(opts), cfg.NLP.Coreference)
	}
}
