package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/flowdesigner/internal/store"
	"github.com/rendis/flowdesigner/pkg/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Serves the designer tools (designer.ports, designer.graph, designer.validate,
designer.save, designer.load, designer.list) over stdin/stdout. Stored
definitions and descriptors live in the database at db_path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var st store.Store
			if !noStore {
				lst, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer lst.Close()
				st = lst
			}

			t, err := a.tooling(ctx, st)
			if err != nil {
				return err
			}
			srv, err := mcp.NewDesignerServer(mcp.DesignerServerDeps{
				Store:    st,
				Resolver: t.resolver,
				Registry: t.registry,
				Logger:   a.logger,
				Version:  version,
			})
			if err != nil {
				return err
			}

			a.logger.Info("starting flowdesigner MCP server over stdio",
				"db_path", a.cfg.DBPath, "descriptors", t.registry.Count())
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "Run without a database; save/load/list report errors")
	return cmd
}

