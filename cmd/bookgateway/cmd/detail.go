package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"bookgateway/internal/book"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var detailHeaders bool

func init() {
	detailCmd.Flags().BoolVar(&detailHeaders, "headers", false, "print the response status and headers instead of the content")
	rootCmd.AddCommand(detailCmd)
}

var detailCmd = &cobra.Command{
	Use:   "detail <platform> <book id>",
	Short: "Fetch the page of a single book.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeoutDuration())
		defer cancel()

		adapter, err := registry.Get(args[0])
		if err != nil {
			return err
		}
		detail, err := adapter.Detail(ctx, args[1])
		if err != nil {
			return err
		}

		if detailHeaders {
			renderHeaders(os.Stdout, detail)
			return nil
		}
		_, err = fmt.Fprintln(os.Stdout, detail.Content)
		return err
	},
}

func renderHeaders(out io.Writer, detail book.Detail) {
	keys := make([]string, 0, len(detail.Headers))
	for k := range detail.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t := newTable(out)
	t.AppendHeader(table.Row{"Header", "Value"})
	t.AppendRow(table.Row{"Status", detail.Status})
	t.AppendSeparator()
	for _, k := range keys {
		t.AppendRow(table.Row{k, detail.Headers[k]})
	}
	t.Render()
}
