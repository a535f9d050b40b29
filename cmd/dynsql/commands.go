package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dynsql/internal/batch"
	"dynsql/internal/config"
	"dynsql/internal/correction"
	"dynsql/internal/embedding"
	"dynsql/internal/llm"
	"dynsql/internal/logging"
	"dynsql/internal/nlsql"
	"dynsql/internal/retrieval"
	"dynsql/internal/schema"
	"dynsql/internal/sqlexec"
)

var (
	columnMeanings string
	exampleFile    string
	linkTopK       int
)

// env holds the wired pipeline components for one command invocation.
// Components are built lazily per command so, for example, "link" never
// requires an oracle API key.
type env struct {
	cfg      *config.Config
	renderer *schema.Renderer
	exec     *sqlexec.Executor
	oracle   llm.Client
	store    *retrieval.Store
	linker   *retrieval.Linker
}

func newEnv(cfg *config.Config) *env {
	renderer := schema.NewRenderer(cfg.Databases.Root)
	if columnMeanings != "" {
		if err := renderer.LoadColumnMeanings(columnMeanings); err != nil {
			logging.Boot("column meanings not loaded from %s: %v", columnMeanings, err)
		}
	}
	return &env{
		cfg:      cfg,
		renderer: renderer,
		exec:     sqlexec.New(cfg.Databases.Root, cfg.GetExecTimeout(), cfg.Databases.PreviewRows),
	}
}

func (e *env) openOracle() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	oracle, err := llm.NewClient(llm.Config{
		Provider: e.cfg.LLM.Provider,
		APIKey:   e.cfg.LLM.APIKey,
		Model:    e.cfg.LLM.Model,
		BaseURL:  e.cfg.LLM.BaseURL,
		Timeout:  e.cfg.GetLLMTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	e.oracle = oracle
	return nil
}

func (e *env) openLinker() error {
	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       e.cfg.Embedding.Provider,
		OllamaEndpoint: e.cfg.Embedding.OllamaEndpoint,
		OllamaModel:    e.cfg.Embedding.OllamaModel,
		GenAIAPIKey:    e.cfg.Embedding.GenAIAPIKey,
		GenAIModel:     e.cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding engine: %w", err)
	}
	store, err := retrieval.Open(e.cfg.Embedding.IndexPath, engine)
	if err != nil {
		return fmt.Errorf("failed to open schema index: %w", err)
	}
	e.store = store
	e.linker = retrieval.NewLinker(store, e.renderer, linkTopK)
	return nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
}

func (e *env) orchestrator() *correction.Orchestrator {
	judge := correction.NewJudge(e.oracle, correction.SemanticCheckMode(e.cfg.Correction.SemanticCheck))
	return correction.NewOrchestrator(e.exec, judge, correction.NewRepairer(e.oracle), e.cfg.Correction.ValidateIdentifiers)
}

// runStage reads the input JSONL, runs a stage over it with the configured
// worker pool, and streams results to the output JSONL.
func runStage(ctx context.Context, cfg *config.Config, stage batch.Stage) error {
	if inputFile == "" || outputFile == "" {
		return fmt.Errorf("--input and --output are required")
	}
	records, err := batch.ReadRecords(inputFile)
	if err != nil {
		return err
	}
	out, err := batch.NewWriter(outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	workers := cfg.Batch.MaxWorkers
	if maxWorkers > 0 {
		workers = maxWorkers
	}
	start := cfg.Batch.StartIndex
	if startIndex > 0 {
		start = startIndex
	}

	written, err := batch.NewRunner(workers, start).Run(ctx, records, stage, out)
	if err != nil {
		return err
	}
	logging.Batch("wrote %d of %d records to %s", written, len(records), outputFile)
	return nil
}

// chain runs stages in sequence over each record.
type chain []batch.Stage

func (c chain) Process(ctx context.Context, rec batch.Record) (batch.Record, error) {
	var err error
	for _, s := range c {
		if rec, err = s.Process(ctx, rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func loadExample() (*nlsql.Example, error) {
	if exampleFile == "" {
		return nil, nil
	}
	ex, err := nlsql.LoadExample(exampleFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load example: %w", err)
	}
	return ex, nil
}

var indexCmd = &cobra.Command{
	Use:   "index [database...]",
	Short: "Build the schema embedding index",
	Long: `Embeds every table.column of the named databases (or of every
database under the configured root when none are named) into the schema
index used by "link".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cfg)
		if err := e.openLinker(); err != nil {
			return err
		}
		defer e.close()

		dbs := args
		if len(dbs) == 0 {
			var err error
			dbs, err = listDatabases(cfg.Databases.Root)
			if err != nil {
				return err
			}
		}
		for _, db := range dbs {
			t := logging.StartTimer(logging.CategoryRetrieval, "index "+db)
			if err := e.linker.IndexDatabase(cmd.Context(), db); err != nil {
				return fmt.Errorf("failed to index %s: %w", db, err)
			}
			t.Stop()
		}
		logging.Retrieval("indexed %d databases", len(dbs))
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:     "link",
	Aliases: []string{"link-schema"},
	Short:   "Resolve relevant tables and columns for each question",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cfg)
		if err := e.openLinker(); err != nil {
			return err
		}
		defer e.close()
		return runStage(cmd.Context(), cfg, &batch.LinkStage{Linker: e.linker, Renderer: e.renderer})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the two seed queries per question",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cfg)
		if err := e.openOracle(); err != nil {
			return err
		}
		example, err := loadExample()
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), cfg, &batch.GenerateStage{
			Generator: nlsql.NewGenerator(e.oracle),
			Renderer:  e.renderer,
			Example:   example,
		})
	},
}

var fuseCmd = &cobra.Command{
	Use:     "fuse",
	Aliases: []string{"synthesize"},
	Short:   "Fuse the seed queries into a single candidate",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cfg)
		if err := e.openOracle(); err != nil {
			return err
		}
		return runStage(cmd.Context(), cfg, &batch.FuseStage{Fuser: nlsql.NewFuser(e.oracle, e.exec)})
	},
}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Run the self-correction loop on fused candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cfg)
		if err := e.openOracle(); err != nil {
			return err
		}
		return runStage(cmd.Context(), cfg, &batch.CorrectStage{Orchestrator: e.orchestrator()})
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run link, generate, fuse, and correct in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cfg)
		if err := e.openOracle(); err != nil {
			return err
		}
		if err := e.openLinker(); err != nil {
			return err
		}
		defer e.close()
		example, err := loadExample()
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), cfg, chain{
			&batch.LinkStage{Linker: e.linker, Renderer: e.renderer},
			&batch.GenerateStage{Generator: nlsql.NewGenerator(e.oracle), Renderer: e.renderer, Example: example},
			&batch.FuseStage{Fuser: nlsql.NewFuser(e.oracle, e.exec)},
			&batch.CorrectStage{Orchestrator: e.orchestrator()},
		})
	},
}

// listDatabases returns every directory under root that contains a
// matching <name>/<name>.sqlite file.
func listDatabases(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read database root %s: %w", root, err)
	}
	var dbs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		if _, err := os.Stat(cfg.DatabasePath(name)); err == nil {
			dbs = append(dbs, name)
		}
	}
	if len(dbs) == 0 {
		return nil, fmt.Errorf("no databases found under %s", root)
	}
	return dbs, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&columnMeanings, "column-meanings", "", "JSON file mapping db/table/column to descriptions")
	rootCmd.PersistentFlags().IntVar(&linkTopK, "top-k", 10, "columns retrieved per linking query")
	generateCmd.Flags().StringVar(&exampleFile, "example", "", "JSON file with a one-shot question/sql example")
	pipelineCmd.Flags().StringVar(&exampleFile, "example", "", "JSON file with a one-shot question/sql example")
}
