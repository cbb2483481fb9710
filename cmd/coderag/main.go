// Command coderag is the terminal front-end onto coderag's archival and
// health/maintenance operations. It holds no business logic of its own:
// every subcommand parses flags, opens the components it needs against the
// configured storage root, and calls straight into them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coderag.evalgo.org/internal/config"
	"coderag.evalgo.org/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "coderag",
	Short:         "manage coderag project archives and health/maintenance",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.coderag.yaml)")
	rootCmd.PersistentFlags().String("storage-root", "", "coderag storage root (default $HOME/.claude-rag)")
	viper.BindPFlag("storage_root", rootCmd.PersistentFlags().Lookup("storage-root"))

	rootCmd.AddCommand(archivalCmd)
	rootCmd.AddCommand(healthCmd)
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
	viper.AutomaticEnv()
	viper.ReadInConfig() // a missing config file is not an error; env and flags still apply
}

// loadConfig resolves the effective config.Config for this invocation:
// config.Load() applies the CODERAG_* environment layer, then the
// --storage-root flag (if set) overrides it.
func loadConfig() config.Config {
	cfg := config.Load()
	if root := viper.GetString("storage_root"); root != "" {
		cfg.StorageRoot = root
	}
	return cfg
}

// exitCode maps a returned error to the exit-code contract: 0 success, 1
// user/operator error or policy failure, 2 internal error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errs.OfKind(err, errs.KindValidation),
		errs.OfKind(err, errs.KindNotFound),
		errs.OfKind(err, errs.KindConflict),
		errs.OfKind(err, errs.KindReadOnly),
		errs.OfKind(err, errs.KindCapacity):
		return 1
	default:
		return 2
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
