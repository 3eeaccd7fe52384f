// Command gsafetyctl drives an Accountable Safety scenario file
// end to end through a [gsregistry.Registry] and exits with the codes
// of §6: 0 success, 2 invalid input, 3 timeout with Byzantine
// addressees, 4 internal invariant violation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gsafetyctl",
		Short: "Drive a GRANDPA accountable safety scenario to a verdict",
	}
	root.AddCommand(newRunCmd())
	return root
}
