package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"offline-cart-sync/pkg/hash"

	"github.com/spf13/cobra"
)

// NewHashSecretCommand prints a bcrypt hash for CARTSERVER_CLIENT_SECRET_HASH.
// The secret is read from stdin so it stays out of shell history.
func NewHashSecretCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "hash-secret",
		Short:         "Hash a client secret read from stdin for the cart server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts, cmd)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return WrapExitError(ExitCommandError, "failed to read secret", err)
			}

			hashed, err := hash.HashSecret(strings.TrimSpace(line))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to hash secret", err)
			}

			return out.Success(map[string]string{"hash": hashed}, func(w io.Writer) {
				fmt.Fprintln(w, hashed)
			})
		},
	}
}
