package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coderag.evalgo.org/archival"
	"coderag.evalgo.org/compressor"
	"coderag.evalgo.org/exportimport"
	"coderag.evalgo.org/internal/errs"
)

var archivalCmd = &cobra.Command{
	Use:   "archival",
	Short: "inspect and manage project archival state",
}

func openArchivalManager() (*archival.Manager, error) {
	cfg := loadConfig()
	return archival.New(cfg.StorageRoot + "/project_states.json")
}

func init() {
	archivalCmd.AddCommand(archivalStatusCmd)
	archivalCmd.AddCommand(archivalArchiveCmd)
	archivalCmd.AddCommand(archivalReactivateCmd)
	archivalCmd.AddCommand(archivalExportCmd)
	archivalCmd.AddCommand(archivalImportCmd)
	archivalCmd.AddCommand(archivalListExportableCmd)

	archivalExportCmd.Flags().String("output", "", "output bundle path (default derived from project name and timestamp)")
	archivalExportCmd.Flags().Bool("no-readme", false, "omit the generated README.txt from the bundle")

	archivalImportCmd.Flags().String("name", "", "target project name (default: name recorded in the bundle)")
	archivalImportCmd.Flags().String("conflict", "skip", "conflict policy when the target already has an archive: skip|overwrite")
}

var archivalStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "list every tracked project's lifecycle state",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArchivalManager()
		if err != nil {
			return err
		}
		states, err := mgr.ListProjectStates()
		if err != nil {
			return err
		}
		for _, s := range states {
			fmt.Printf("%-30s %-10s last_activity=%s files=%d\n",
				s.ProjectName, s.State, s.LastActivity.Format(time.RFC3339), s.FilesIndexed)
		}
		return nil
	},
}

var archivalArchiveCmd = &cobra.Command{
	Use:   "archive <name>",
	Short: "archive a project's index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArchivalManager()
		if err != nil {
			return err
		}
		if err := mgr.ArchiveProject(args[0], time.Now()); err != nil {
			return err
		}
		fmt.Printf("archived %s\n", args[0])
		return nil
	},
}

var archivalReactivateCmd = &cobra.Command{
	Use:   "reactivate <name>",
	Short: "reactivate a previously archived project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArchivalManager()
		if err != nil {
			return err
		}
		if err := mgr.ReactivateProject(args[0], time.Now()); err != nil {
			return err
		}
		fmt.Printf("reactivated %s\n", args[0])
		return nil
	},
}

var archivalExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "bundle a project's archive into a portable file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		output, _ := cmd.Flags().GetString("output")
		noReadme, _ := cmd.Flags().GetBool("no-readme")

		result, err := exportimport.Export(args[0], cfg.ArchivesDir(), output, !noReadme, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(result.BundlePath)
		return nil
	},
}

var archivalImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "restore a project archive bundle produced by export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		name, _ := cmd.Flags().GetString("name")
		conflict, _ := cmd.Flags().GetString("conflict")

		policy := exportimport.ConflictPolicy(conflict)
		if policy != exportimport.ConflictSkip && policy != exportimport.ConflictOverwrite {
			return errs.Validation("coderag", "archival_import", "--conflict must be skip or overwrite")
		}

		result, err := exportimport.Import(args[0], cfg.ArchivesDir(), name, policy, time.Now())
		if err != nil {
			return err
		}
		if !result.Success {
			if result.Conflict {
				return errs.Conflict("coderag", "archival_import", result.ErrorMessage)
			}
			return errs.Validation("coderag", "archival_import", result.ErrorMessage)
		}
		fmt.Printf("imported %s\n", result.ProjectName)
		return nil
	},
}

var archivalListExportableCmd = &cobra.Command{
	Use:   "list-exportable",
	Short: "list archived projects available for export",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c := compressor.New(cfg.ArchivesDir())
		summaries, err := c.ListArchives()
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%-30s version=%s archived=%s savings=%.1f%%\n",
				s.Name, s.Manifest.ArchiveVersion, s.Manifest.ArchivedAt.Format(time.RFC3339),
				s.Manifest.CompressionInfo.SavingsPercent)
		}
		return nil
	},
}
