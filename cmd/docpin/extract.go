package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docpin/docpin/internal/extract"
	"github.com/docpin/docpin/internal/pdfindex"
)

var (
	extractTypes    string
	extractProvider string
	extractModel    string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Extract entities from a PDF and print located results",
	Long: `Extract entities from a PDF without running the server.

The file is indexed, the requested query types are extracted through the
configured backend, and each value is resolved to its page, bounding box,
and surrounding context. Results print as JSON on stdout.

Examples:
  docpin extract report.pdf --types company_name,person_name
  docpin extract report.pdf --types number --provider ollama
  docpin extract report.pdf --types book_title --provider rules`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))

		configMgr, err := getConfigManager()
		if err != nil {
			return err
		}
		appCfg := configMgr.Get()

		providerCfg, err := appCfg.ToProviderConfig(extractProvider)
		if err != nil {
			return err
		}
		if extractModel != "" {
			providerCfg.Model = extractModel
		}

		registry, err := loadRegistry(configMgr)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		index, err := pdfindex.New(data)
		if err != nil {
			return err
		}

		resp, err := extract.Run(cmd.Context(), extract.Request{
			Index:        index,
			QueryTypes:   splitTypes(extractTypes),
			Config:       providerCfg,
			Registry:     registry,
			ContextRunes: appCfg.Defaults.ContextRunes,
			Logger:       logger,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func splitTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	extractCmd.Flags().StringVar(&extractTypes, "types", "",
		"Comma-separated query types (see 'docpin querytypes')")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "",
		"Backend to use (default: configured default)")
	extractCmd.Flags().StringVar(&extractModel, "model", "",
		"Model override for the selected backend")
	_ = extractCmd.MarkFlagRequired("types")

	rootCmd.AddCommand(extractCmd)
}
