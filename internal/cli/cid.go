// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/mdlayher/vsock"
	"github.com/spf13/cobra"
)

func newCIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cid",
		Short: "Print the local vsock context id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cid, err := vsock.ContextID()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", cid)
			return nil
		},
	}
}
