package cli

import (
	"fmt"
	"io"

	"offline-cart-sync/internal/domain"

	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	CartID string
	Wait   bool
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the offline cart into the server cart",
		Long: `Ask the engine to drain the offline cart now. Without --wait the drain
runs in the background and the current sync status is printed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CartID, "cart-id", "", "server cart to drain into (defaults to the engine's known cart)")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "block until the pass finishes and print its result")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	client := newEngineClient(opts.EngineURL)

	if !opts.Wait {
		status, err := client.TriggerSync(cmd.Context(), opts.CartID)
		if err != nil {
			return requestError(opts.RootOptions, out, err)
		}
		return out.Success(status, func(w io.Writer) {
			fmt.Fprintf(w, "Sync started (state: %s)\n", status.State)
		})
	}

	res, err := client.RunSync(cmd.Context(), opts.CartID)
	if err != nil {
		return requestError(opts.RootOptions, out, err)
	}
	return out.Success(res, func(w io.Writer) {
		printPass(w, res)
	})
}

func printPass(w io.Writer, res *domain.PassResult) {
	if res.Aborted {
		fmt.Fprintln(w, "Sync aborted: no cart available")
		if res.Error != "" {
			fmt.Fprintf(w, "  %s\n", res.Error)
		}
		return
	}
	fmt.Fprintf(w, "Cart:      %s\n", res.CartID)
	fmt.Fprintf(w, "Added:     %d\n", res.Count(domain.ResolutionAdded))
	fmt.Fprintf(w, "In cart:   %d\n", res.Count(domain.ResolutionAlreadyInCart))
	fmt.Fprintf(w, "Dropped:   %d\n", res.Count(domain.ResolutionOutOfStock))
	fmt.Fprintf(w, "Failed:    %d\n", res.Count(domain.ResolutionFailed))
	fmt.Fprintf(w, "Remaining: %d\n", res.Remaining)
	if res.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", res.Error)
	}
}
