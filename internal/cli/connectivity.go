package cli

import (
	"fmt"
	"io"

	"offline-cart-sync/internal/domain"

	"github.com/spf13/cobra"
)

func NewConnectivityCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connectivity [online|offline|auto]",
		Short: "Show or force the engine's view of backend reachability",
		Long: `Without an argument, print whether the engine considers the backend
reachable. With one, force the engine online or offline, or return it to
probing with auto.`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{"online", "offline", "auto"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts, cmd)
			client := newEngineClient(opts.EngineURL)

			var (
				status *domain.ConnectivityStatus
				err    error
			)
			if len(args) == 0 {
				status, err = client.Connectivity(cmd.Context())
			} else {
				mode := domain.ConnectivityMode(args[0])
				switch mode {
				case domain.ModeAuto, domain.ModeForcedOnline, domain.ModeForcedOffline:
				default:
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be online, offline or auto", args[0]))
				}
				status, err = client.SetConnectivity(cmd.Context(), mode)
			}
			if err != nil {
				return requestError(opts, out, err)
			}

			return out.Success(status, func(w io.Writer) {
				state := "offline"
				if status.Online {
					state = "online"
				}
				fmt.Fprintf(w, "Backend is %s (mode %s)\n", state, status.Mode)
			})
		},
	}
}
