package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"bookgateway/internal/book"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var searchJson bool

func init() {
	searchCmd.Flags().BoolVar(&searchJson, "json", false, "print the raw search result as json")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <platform> <keyword>",
	Short: "Search a platform once and print what it found.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeoutDuration())
		defer cancel()

		adapter, err := registry.Get(args[0])
		if err != nil {
			return err
		}
		result, err := adapter.Search(ctx, args[1])
		if err != nil {
			return err
		}

		if searchJson {
			return writeJson(os.Stdout, result)
		}
		renderRecords(os.Stdout, result)
		return nil
	},
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderRecords(out io.Writer, result book.SearchResult) {
	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Title", "Author", "Year", "Format", "Size", "Language", "URL"})
	for i, r := range result.Records {
		t.AppendRow(table.Row{i + 1, r.Title, r.Author, r.Year, r.Extension, r.FilesizeLabel, r.Language, r.SourceURL})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d books on %s", result.Total, result.PlatformStatus.Name)})
	t.Render()
}

func writeJson(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
