package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"offline-cart-sync/internal/domain"

	"github.com/spf13/cobra"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// requestError reports an engine refusal as ExitFailure and anything else,
// usually a dead engine, as ExitCommandError.
func requestError(opts *RootOptions, out *OutputFormatter, err error) error {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		out.Error(fmt.Sprintf("HTTP%d", engErr.StatusCode), engErr.Message)
		return WrapExitError(ExitFailure, "engine refused request", err)
	}
	out.Error("UNREACHABLE", err.Error())
	return WrapExitError(ExitCommandError, "engine unreachable at "+opts.EngineURL, err)
}

func printItems(w io.Writer, items []domain.OfflineLineItem, count int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Offline cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tQTY\tNAME")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", it.SKU, it.Quantity, it.Name)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d item(s) queued\n", count)
}
