package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/flowdesigner/internal/designer"
	"github.com/rendis/flowdesigner/internal/store"
	"github.com/rendis/flowdesigner/internal/streaming"
	"github.com/rendis/flowdesigner/internal/surface"
)

// saveTimeout bounds the final sync and write after the editor exits.
const saveTimeout = 15 * time.Second

func newEditCmd(a *app) *cobra.Command {
	var flags struct {
		url       string
		headless  bool
		readOnly  bool
		container string
		save      bool
	}

	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Edit a workflow in a browser-hosted render surface",
		Long: `Opens the page at --url in Chrome, binds a designer session to its
window.flowdesigner graph API and keeps the document in sync with the
canvas. On interrupt the session is flushed and the document is written
back to <file>, and with --save also stored as a new revision.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var st *store.LibSQLStore
			if flags.save {
				var err error
				if st, err = a.openStore(ctx); err != nil {
					return err
				}
				defer st.Close()
			}
			t, err := a.tooling(ctx, storeOrNil(st))
			if err != nil {
				return err
			}
			def, result, err := t.load(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			writeIssues(cmd.ErrOrStderr(), result)

			hub := streaming.NewMemoryHub()
			bs, err := surface.NewBrowserSurface(ctx, surface.BrowserOptions{
				URL:      flags.url,
				Headless: flags.headless,
				Hub:      hub,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			defer bs.Close()

			sess := designer.New(bs, designer.Options{
				Resolver:  t.resolver,
				Registry:  t.registry,
				Validator: t.validator,
				Hub:       hub,
				Logger:    a.logger,
				GridColor: a.cfg.GridColor,
				ReadOnly:  flags.readOnly,
			})
			if err := sess.Open(ctx, flags.container); err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
				defer cancel()
				if err := sess.Close(closeCtx); err != nil {
					a.logger.Warn("dispose surface failed", slog.String("error", err.Error()))
				}
			}()
			if err := sess.Load(ctx, def); err != nil {
				return err
			}
			a.logger.Info("editing",
				slog.String("file", args[0]),
				slog.String("session", sess.ID()),
				slog.String("url", flags.url))

			if err := sess.Run(ctx); err != nil {
				return err
			}
			if flags.readOnly {
				return nil
			}

			saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			defer cancel()
			if err := sess.Flush(saveCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("final sync failed", slog.String("error", err.Error()))
			}
			final := sess.Definition()
			data, err := json.MarshalIndent(final, "", "  ")
			if err != nil {
				return err
			}
			if args[0] != "-" {
				if err := os.WriteFile(args[0], append(data, '\n'), 0o644); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
			if st != nil {
				saved, err := st.SaveDefinition(saveCtx, final)
				if err != nil {
					return err
				}
				a.logger.Info("definition stored",
					slog.String("id", saved.ID),
					slog.Int64("revision", saved.Revision))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.url, "url", "", "URL of the page hosting window.flowdesigner (required)")
	f.BoolVar(&flags.headless, "headless", false, "Run Chrome headless")
	f.BoolVar(&flags.readOnly, "read-only", false, "Open the canvas read-only and write nothing back")
	f.StringVar(&flags.container, "container", "canvas", "DOM container id the surface draws into")
	f.BoolVar(&flags.save, "save", false, "Also store the result as a new revision in db_path")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// storeOrNil keeps a nil *LibSQLStore from becoming a non-nil Store.
func storeOrNil(st *store.LibSQLStore) store.Store {
	if st == nil {
		return nil
	}
	return st
}
