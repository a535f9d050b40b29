// dynsql is a text-to-SQL pipeline over SQLite benchmark databases. It
// links schemas, generates seed queries, fuses them, and drives an
// execution-feedback self-correction loop to a final query per question.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dynsql/internal/config"
	"dynsql/internal/logging"
)

var version = "0.3.0"

var (
	cfgPath    string
	cfg        *config.Config
	inputFile  string
	outputFile string
	startIndex int
	maxWorkers int
)

var rootCmd = &cobra.Command{
	Use:   "dynsql",
	Short: "dynsql - text-to-SQL with execution-feedback self-correction",
	Long: `dynsql turns natural-language questions over SQLite databases into SQL.

The pipeline runs in stages, each reading and writing JSONL:
  1. index     build the schema embedding index for a database root
  2. link      resolve the tables and columns relevant to each question
  3. generate  produce two seed queries (full schema and linked schema)
  4. fuse      merge the seeds into a single fused candidate
  5. correct   judge the fused candidate and repair it through escalating
               strategies until it passes or the tiers are exhausted

Stages can be run separately to resume long benchmark runs, or together
with "pipeline".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logging.Initialize(logging.Options{
			Level: cfg.Logging.Level,
			File:  cfg.Logging.File,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("dynsql %s starting: db_root=%s model=%s", version, cfg.Databases.Root, cfg.LLM.Model)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dynsql %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default: built-in defaults plus env overrides)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "input", "i", "", "input JSONL file")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output JSONL file")
	rootCmd.PersistentFlags().IntVar(&startIndex, "start-index", 0, "skip the first N input records")
	rootCmd.PersistentFlags().IntVar(&maxWorkers, "max-workers", 0, "worker pool size (default from config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fuseCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(pipelineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
