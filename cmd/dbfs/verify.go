package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbfs/dbfs/internal/logging"
	"github.com/dbfs/dbfs/internal/query"
	"github.com/dbfs/dbfs/internal/registry"
)

func newVerifyCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check connectivity to every configured server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServers(); err != nil {
				return err
			}
			logger, closer, err := logging.Setup(cfg.Global)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			reg := registry.New(cfg)
			executor := query.NewExecutor(cfg.Query, logger)

			failed := 0
			for _, server := range reg.All() {
				if err := executor.Verify(cmd.Context(), server); err != nil {
					failed++
					fmt.Printf("%s: FAILED (%v)\n", server.Name, err)
					continue
				}
				fmt.Printf("%s: ok\n", server.Name)
			}
			if failed > 0 {
				return fmt.Errorf("%d server(s) unreachable", failed)
			}
			return nil
		},
	}
}
