package cmd

import (
	"github.com/spf13/cobra"
	"training-relay/config"
	server2 "training-relay/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start the relay server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
