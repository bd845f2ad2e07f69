package cli

import (
	"fmt"
	"io"

	"offline-cart-sync/internal/domain"

	"github.com/spf13/cobra"
)

// QueueAddOptions holds flags for queue add.
type QueueAddOptions struct {
	*RootOptions
	Quantity     int
	Name         string
	Price        float64
	Currency     string
	ThumbnailURL string
}

// NewQueueCommand groups the offline cart inspection commands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the offline cart",
	}

	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueueAddCommand(rootOpts))
	cmd.AddCommand(newQueueRemoveCommand(rootOpts))
	cmd.AddCommand(newQueueClearCommand(rootOpts))

	return cmd
}

func newQueueListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List queued line items",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts, cmd)
			res, err := newEngineClient(opts.EngineURL).ListQueue(cmd.Context())
			if err != nil {
				return requestError(opts, out, err)
			}
			return out.Success(res, func(w io.Writer) {
				printItems(w, res.Items, res.Count)
			})
		},
	}
}

func newQueueAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <sku>",
		Short: "Add a product to the cart",
		Long: `Add a product to the cart through the engine. While the backend is
unreachable the line is queued offline; otherwise it goes straight to the
server cart.

Example:
  cartsync queue add VA12-SI-NA --qty 2 --name "Silver Amor Bangle Set"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return queueAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Quantity, "qty", 1, "quantity to add")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().Float64Var(&opts.Price, "price", 0, "unit price")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "ISO 4217 currency code")
	cmd.Flags().StringVar(&opts.ThumbnailURL, "thumbnail-url", "", "thumbnail image URL")

	return cmd
}

func queueAdd(opts *QueueAddOptions, sku string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if opts.Quantity < 1 {
		return NewExitError(ExitCommandError, "--qty must be at least 1")
	}

	req := &domain.AddToCartRequest{
		SKU:          sku,
		Quantity:     opts.Quantity,
		Name:         opts.Name,
		Currency:     opts.Currency,
		ThumbnailURL: opts.ThumbnailURL,
	}
	if cmd.Flags().Changed("price") {
		price := opts.Price
		req.Price = &price
	}

	out.VerboseLog("POST %s/api/v1/cart/items sku=%s qty=%d", opts.EngineURL, sku, opts.Quantity)

	res, err := newEngineClient(opts.EngineURL).AddToCart(cmd.Context(), req)
	if err != nil {
		return requestError(opts.RootOptions, out, err)
	}

	return out.Success(res, func(w io.Writer) {
		if res.Outcome == domain.OutcomeQueued {
			fmt.Fprintf(w, "Queued %d x %s offline\n", res.Item.Quantity, res.Item.SKU)
			return
		}
		fmt.Fprintf(w, "Added %d x %s to cart %s\n", res.Item.Quantity, res.Item.SKU, res.CartID)
	})
}

func newQueueRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <sku>",
		Short:         "Remove a line item from the offline cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts, cmd)
			res, err := newEngineClient(opts.EngineURL).RemoveFromQueue(cmd.Context(), args[0])
			if err != nil {
				return requestError(opts, out, err)
			}
			return out.Success(res, func(w io.Writer) {
				printItems(w, res.Items, res.Count)
			})
		},
	}
}

func newQueueClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Discard every queued line item",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts, cmd)
			if err := newEngineClient(opts.EngineURL).ClearQueue(cmd.Context()); err != nil {
				return requestError(opts, out, err)
			}
			return out.Success(map[string]bool{"cleared": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Offline cart cleared")
			})
		},
	}
}
