package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docpin/docpin/internal/config"
	"github.com/docpin/docpin/internal/home"
	"github.com/docpin/docpin/version"
)

var (
	cfgFile string
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "docpin",
	Short: "Extract typed entities from PDFs with verified document locations",
	Long: `docpin extracts structured, typed information (company names, people,
numbers, titles, proposals) from PDF documents using an LLM backend, and
pins every extracted value to its exact location in the source document:
page number, bounding box, and surrounding context.

Values the model returns that cannot be found in the document text are
dropped, so every reported item is grounded in the PDF.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docpin/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docpin home directory (default: ~/.docpin)",
	)

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getConfigManager loads configuration, preferring the --config flag, then
// the home directory config file if one exists.
func getConfigManager() (*config.Manager, error) {
	if cfgFile != "" {
		return config.NewManager(cfgFile)
	}
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	if h.ConfigExists() {
		return config.NewManager(h.ConfigPath())
	}
	return config.NewManager("")
}
