package main

import (
	"github.com/spf13/cobra"

	"github.com/zainabsaad99/EECE798S-Project/config"
	srv "github.com/zainabsaad99/EECE798S-Project/internal/server"
)

func migrateCMD() *cobra.Command {
	var dir string
	var direction string
	var steps int
	var cfgPath string
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Migrate(dir, cfg.Storage.Postgres.DSN(), direction, steps)
		},
	}
	migrate.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return migrate
}
