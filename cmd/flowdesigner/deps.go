package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/internal/store"
	"github.com/rendis/flowdesigner/internal/validation"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// resolver returns the built-in providers over reg followed by the
// declarative providers of providers_file.
func (a *app) resolver(reg descriptors.Registry) (*ports.Resolver, error) {
	r := ports.NewCatalogResolver(reg)
	if a.cfg.ProvidersFile == "" {
		return r, nil
	}
	engines, err := ports.NewEngines()
	if err != nil {
		return nil, fmt.Errorf("expression engines: %w", err)
	}
	providers, err := ports.LoadProvidersFile(a.cfg.ProvidersFile, engines)
	if err != nil {
		return nil, err
	}
	ports.RegisterProviders(r, providers)
	a.logger.Debug("declarative port providers loaded",
		slog.String("file", a.cfg.ProvidersFile),
		slog.Int("count", len(providers)))
	return r, nil
}

// registry returns the built-in catalog, overlaid with descriptors_file and
// then with the descriptors held by st. st may be nil.
func (a *app) registry(ctx context.Context, st store.Store) (*descriptors.MemoryRegistry, error) {
	reg := descriptors.Builtin()
	if a.cfg.DescriptorsFile != "" {
		ds, err := descriptors.LoadCatalogFile(a.cfg.DescriptorsFile)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			reg.Put(d)
		}
	}
	if st == nil {
		return reg, nil
	}
	return store.LoadRegistry(ctx, st, reg)
}

// openStore opens and migrates the database at db_path.
func (a *app) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

// tooling bundles the resolver, registry and validator used by the
// file-based commands.
type tooling struct {
	resolver  *ports.Resolver
	registry  *descriptors.MemoryRegistry
	validator *validation.WorkflowValidator
}

func (a *app) tooling(ctx context.Context, st store.Store) (*tooling, error) {
	reg, err := a.registry(ctx, st)
	if err != nil {
		return nil, err
	}
	r, err := a.resolver(reg)
	if err != nil {
		return nil, err
	}
	v, err := validation.NewWorkflowValidator(r, reg)
	if err != nil {
		return nil, err
	}
	return &tooling{resolver: r, registry: reg, validator: v}, nil
}

// readDocument reads path, or stdin when path is "-".
func readDocument(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// load reads and validates a workflow document. Only structural failures are
// fatal; the full result is returned for the caller to report.
func (t *tooling) load(path string, stdin io.Reader) (*schema.WorkflowDefinition, *schema.ValidationResult, error) {
	raw, err := readDocument(path, stdin)
	if err != nil {
		return nil, nil, err
	}
	def, result := t.validator.ValidateDocument(raw)
	if def == nil {
		return nil, result, fmt.Errorf("%s: %w", path, result.ToError())
	}
	return def, result, nil
}

// writeIssues prints one line per issue.
func writeIssues(w io.Writer, result *schema.ValidationResult) {
	for _, is := range result.Issues() {
		fmt.Fprintf(w, "%-7s %-20s %s: %s\n", is.Severity, is.Code, is.Path, strings.TrimSpace(is.Message))
	}
}
