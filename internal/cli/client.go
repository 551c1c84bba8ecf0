// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loopholelabs/vmci/pkg/vsock"
)

func newClientCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "client",
		Short: "Send a ping to the host and print its reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v)
			logger := newLogger(cmd.ErrOrStderr()).SubLogger("client")

			stream, err := vsock.Dial(cfg.port)
			if err != nil {
				return err
			}
			defer stream.Close()
			logger.Info().Uint32("port", cfg.port).Msg("connected to host")

			reply, err := ping(stream)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recv=%s\n", reply)
			return nil
		},
	}
}

// ping writes "ping" and returns the first read of the reply.
func ping(rw io.ReadWriter) (string, error) {
	if _, err := rw.Write([]byte("ping")); err != nil {
		return "", err
	}
	buf := make([]byte, 5)
	n, err := rw.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return string(buf[:n]), nil
}
