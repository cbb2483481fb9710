// Command coderagd is the long-lived daemon: it watches one project's
// source tree, keeps its vector and keyword indexes up to date, and runs
// the scheduled health/archival/capacity jobs described in spec.md.
//
// Configuration follows the same precedence as the rest of the command
// surface: command-line flag, then CODERAG_* environment variable, then
// config file, then default.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coderag.evalgo.org/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "coderagd",
	Short: "index and watch one project's source tree for coderag",
	RunE:  runDaemon,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.coderag.yaml)")
	rootCmd.Flags().String("root", "", "project root directory to watch and index (required)")
	rootCmd.Flags().String("project", "", "project name; defaults to the root directory's base name")
	rootCmd.Flags().String("embedding-endpoint", "", "HTTP endpoint of the embedding service (required)")
	rootCmd.Flags().String("embedding-model-name", "", "embedding model name, recorded alongside cached vectors")
	rootCmd.Flags().Int("embedding-dim", 0, "embedding vector dimensionality")

	viper.BindPFlag("root", rootCmd.Flags().Lookup("root"))
	viper.BindPFlag("project", rootCmd.Flags().Lookup("project"))
	viper.BindPFlag("embedding.endpoint", rootCmd.Flags().Lookup("embedding-endpoint"))
	viper.BindPFlag("embedding.model_name", rootCmd.Flags().Lookup("embedding-model-name"))
	viper.BindPFlag("embedding.dim", rootCmd.Flags().Lookup("embedding-dim"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".coderag")
	}

	viper.SetEnvPrefix("CODERAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // a missing config file is not an error; env and flags still apply
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log := logging.ServiceLogger("coderagd")

	root := viper.GetString("root")
	if root == "" {
		return fmt.Errorf("--root is required")
	}
	project := viper.GetString("project")
	if project == "" {
		project = filepath.Base(root)
	}

	rt, err := newRuntime(runtimeOptions{
		root:               root,
		project:            project,
		embeddingEndpoint:  viper.GetString("embedding.endpoint"),
		embeddingModelName: viper.GetString("embedding.model_name"),
		embeddingDim:       viper.GetInt("embedding.dim"),
	})
	if err != nil {
		return fmt.Errorf("starting coderagd: %w", err)
	}

	ctx, cancelMetrics := context.WithCancel(context.Background())
	if err := rt.start(ctx); err != nil {
		cancelMetrics()
		return fmt.Errorf("starting coderagd: %w", err)
	}
	go rt.runMetricsLoop(ctx)

	log.WithField("root", root).Info("coderagd started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancelMetrics()
	rt.stop()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
