// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/loopholelabs/logging/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loopholelabs/vmci/internal/vsish"
	"github.com/loopholelabs/vmci/pkg/server"
	"github.com/loopholelabs/vmci/pkg/vsock"
)

func newServerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Answer pings from guests and report which VM sent them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v)
			logger := newLogger(cmd.ErrOrStderr())

			s, err := server.New(&server.Options{
				Port:   cfg.port,
				Handle: pongHandle(logger.SubLogger("pong"), vsish.New(cfg.vsish)),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			if addr, err := s.Addr(); err == nil {
				logger.Info().Str("addr", addr.String()).Msg("listening")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info().Msg("shutting down")
			return s.Close()
		},
	}

	cmd.Flags().String("vsish", vsish.DefaultPath, "path to the vsish binary (env VMCI_VSISH)")
	_ = v.BindPFlag("vsish", cmd.Flags().Lookup("vsish"))
	return cmd
}

// pongHandle answers a ping and logs who sent it. The peer VM id is only
// available on ESX hosts, so failing to get it is not fatal.
func pongHandle(logger types.Logger, lookup *vsish.Client) server.HandleFunc {
	return func(ctx context.Context, stream *vsock.Stream, remote *vsock.Addr) {
		local, err := stream.LocalAddr()
		if err != nil {
			logger.Error().Err(err).Msg("unable to get local address")
			return
		}

		buf := make([]byte, 5)
		n, err := stream.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Error().Err(err).Msg("unable to read ping")
			return
		}
		logger.Info().Str("recv", string(buf[:n])).Msg("received ping")

		if _, err = stream.Write([]byte("pong")); err != nil {
			logger.Error().Err(err).Msg("unable to write pong")
			return
		}

		vmid, err := stream.PeerHostVMID()
		if err != nil {
			logger.Warn().Err(err).Str("laddr", local.String()).Str("raddr", remote.String()).Msg("peer vm id is not available")
			return
		}
		logger.Info().Str("laddr", local.String()).Str("raddr", remote.String()).Str("vmid", strconv.Itoa(int(vmid))).Msg("connection")

		info, err := lookup.Lookup(ctx, vmid)
		if err != nil {
			logger.Warn().Err(err).Msg("unable to look up vm info")
			return
		}
		logger.Info().Str("leader", info.Leader).Str("group", info.GroupInfo).Msg("vm info")
	}
}
