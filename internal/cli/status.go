package cli

import (
	"fmt"
	"io"

	"offline-cart-sync/internal/domain"

	"github.com/spf13/cobra"
)

type statusReport struct {
	Sync         *domain.SyncStatus         `json:"sync"`
	Connectivity *domain.ConnectivityStatus `json:"connectivity"`
	Cart         *domain.CartView           `json:"cart"`
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show sync state, connectivity and cart contents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts, cmd)
			client := newEngineClient(opts.EngineURL)
			ctx := cmd.Context()

			var report statusReport
			var err error
			if report.Sync, err = client.SyncStatus(ctx); err != nil {
				return requestError(opts, out, err)
			}
			if report.Connectivity, err = client.Connectivity(ctx); err != nil {
				return requestError(opts, out, err)
			}
			if report.Cart, err = client.Cart(ctx); err != nil {
				return requestError(opts, out, err)
			}

			return out.Success(report, func(w io.Writer) {
				printStatus(w, &report)
			})
		},
	}
}

func printStatus(w io.Writer, r *statusReport) {
	online := "offline"
	if r.Connectivity.Online {
		online = "online"
	}
	fmt.Fprintf(w, "Backend:   %s (mode %s)\n", online, r.Connectivity.Mode)
	fmt.Fprintf(w, "Sync:      %s\n", r.Sync.State)
	if r.Cart.CartID != "" {
		fmt.Fprintf(w, "Cart:      %s\n", r.Cart.CartID)
	}
	fmt.Fprintf(w, "Items:     %d\n", r.Cart.Count)
	if r.Sync.LastPass != nil {
		fmt.Fprintf(w, "Last pass: %s, %d remaining\n",
			r.Sync.LastPass.FinishedAt.Format("2006-01-02 15:04:05"), r.Sync.LastPass.Remaining)
	}
	if len(r.Cart.Offline) > 0 {
		fmt.Fprintln(w)
		printItems(w, r.Cart.Offline, domain.ItemCount(r.Cart.Offline))
	}
}
