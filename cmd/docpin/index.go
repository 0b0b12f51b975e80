package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docpin/docpin/internal/pdfindex"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index <file.pdf>",
	Short: "Index a PDF and print the positioned text segments",
	Long: `Index a PDF without running any extraction.

Prints a per-page summary of the text segments the resolver would search,
including reading order and bounding boxes. Useful for checking what text a
document actually exposes before running 'docpin extract'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		idx, err := pdfindex.New(data)
		if err != nil {
			return err
		}

		if indexJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Pages    int                    `json:"pages"`
				Segments []pdfindex.PageSegment `json:"segments"`
			}{idx.PageCount(), idx.Segments()})
		}

		fmt.Printf("%s: %d pages, %d segments\n", args[0], idx.PageCount(), idx.SegmentCount())
		lastPage := 0
		for _, seg := range idx.Segments() {
			if seg.Page != lastPage {
				fmt.Printf("--- page %d ---\n", seg.Page)
				lastPage = seg.Page
			}
			text := seg.Text
			if runes := []rune(text); len(runes) > 80 {
				text = string(runes[:80]) + "..."
			}
			fmt.Printf("  [%3d] (%.0f,%.0f)-(%.0f,%.0f) %s\n",
				seg.Order, seg.BBox.X0, seg.BBox.Y0, seg.BBox.X1, seg.BBox.Y1, text)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "Print the full index as JSON")
	rootCmd.AddCommand(indexCmd)
}
