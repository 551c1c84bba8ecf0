// SPDX-License-Identifier: Apache-2.0

// Package cli implements the vmci command, a ping/pong check of vsock
// connectivity between an ESX host and its guests.
package cli

import (
	"io"

	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loopholelabs/vmci/internal/vsish"
)

const (
	DefaultPort = 15000

	envPrefix = "vmci"
)

type config struct {
	port  uint32
	vsish string
}

func loadConfig(v *viper.Viper) config {
	return config{
		port:  v.GetUint32("port"),
		vsish: v.GetString("vsish"),
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("vsish", vsish.DefaultPath)
	return v
}

func newLogger(w io.Writer) types.Logger {
	return logging.New(logging.Zerolog, "vmci", w)
}

// Execute runs the vmci command line.
func Execute() error {
	return newRootCmd(newViper()).Execute()
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vmci",
		Short:        "Check vsock connectivity between an ESX host and its guests",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().Uint32P("port", "p", DefaultPort, "vsock port to connect to or listen on (env VMCI_PORT)")
	_ = v.BindPFlag("port", cmd.PersistentFlags().Lookup("port"))

	cmd.AddCommand(newClientCmd(v))
	cmd.AddCommand(newServerCmd(v))
	cmd.AddCommand(newCIDCmd())
	return cmd
}
