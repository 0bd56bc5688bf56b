package commands

import (
	"fmt"
	"io"

	"miniappctl/internal/version"

	"github.com/spf13/cobra"
)

// VersionCommand prints build information
func VersionCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(w, version.String())
		},
	}
}
