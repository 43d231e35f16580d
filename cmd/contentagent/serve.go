package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zainabsaad99/EECE798S-Project/config"
	srv "github.com/zainabsaad99/EECE798S-Project/internal/server"
)

func serveCMD() *cobra.Command {
	var addr string
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if addr == "" {
				addr = os.Getenv("CONTENTAGENT_HTTP_ADDR")
			}
			return srv.Run(cfg, addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}
