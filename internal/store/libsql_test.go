package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func sampleDefinition(id, name string) *schema.WorkflowDefinition {
	root := schema.NewFlowchartActivity("root")
	root.SetFlowchart(&schema.Flowchart{
		Activities: []*schema.Activity{
			{ID: "start", Type: "Elsa.Start", Version: 1},
			{ID: "log", Type: "Elsa.WriteLine", Version: 1, Props: map[string]any{"text": "hello"}},
		},
		Connections: []schema.Connection{{Source: "start", Target: "log"}},
	})
	return &schema.WorkflowDefinition{DefinitionID: id, Name: name, Version: 1, Root: root}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	ms, err := loadMigrations(migrationFS)
	require.NoError(t, err)
	var v int
	require.NoError(t, s.DB().QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v))
	assert.Equal(t, ms[len(ms)-1].Version, v)
}

func TestLoadMigrations(t *testing.T) {
	ms, err := loadMigrations(fstest.MapFS{
		"migrations/002_indexes.sql": {Data: []byte("CREATE INDEX a ON t(x);")},
		"migrations/001_initial.sql": {Data: []byte("CREATE TABLE t (x INT);")},
	})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "initial", ms[0].Name)
	assert.Equal(t, "indexes", ms[1].Name)

	_, err = loadMigrations(fstest.MapFS{"migrations/init.sql": {Data: []byte("x")}})
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("x")},
		"migrations/1_b.sql":   {Data: []byte("y")},
	})
	assert.ErrorContains(t, err, "used by")
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment;\nCREATE INDEX i ON a(x);\n")
	assert.Equal(t, []string{"-- header\nCREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, got)
}

func TestDefinition_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveDefinition(ctx, sampleDefinition("wf-1", "Orders"))
	require.NoError(t, err)
	assert.Equal(t, "wf-1", saved.ID)
	assert.Equal(t, "Orders", saved.Name)
	assert.Equal(t, int64(1), saved.Revision)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.GetDefinition(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, got.Definition.Root)
	fc, ok := got.Definition.Root.Flowchart()
	require.True(t, ok)
	require.Len(t, fc.Activities, 2)
	assert.Equal(t, "log", fc.Activities[1].ID)
	assert.Equal(t, "hello", fc.Activities[1].Props["text"])
	require.Len(t, fc.Connections, 1)
	assert.Equal(t, "start", fc.Connections[0].Source)
}

func TestDefinition_SaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveDefinition(context.Background(), sampleDefinition("", "x"))
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = s.SaveDefinition(context.Background(), nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestDefinition_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDefinition(context.Background(), "missing")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestDefinition_SaveTwiceAppendsRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveDefinition(ctx, sampleDefinition("wf-1", "Orders"))
	require.NoError(t, err)

	def := sampleDefinition("wf-1", "Orders v2")
	def.Version = 2
	second, err := s.SaveDefinition(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Revision)
	assert.Equal(t, "Orders v2", second.Name)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	revs, err := s.ListRevisions(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, int64(1), revs[0].Sequence)
	assert.Equal(t, int64(2), revs[1].Sequence)

	old, err := revs[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "Orders", old.Name)
}

func TestDefinition_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []struct{ id, name string }{
		{"a", "orders-intake"}, {"b", "orders-refund"}, {"c", "billing"},
	} {
		_, err := s.SaveDefinition(ctx, sampleDefinition(d.id, d.name))
		require.NoError(t, err)
	}

	all, err := s.ListDefinitions(ctx, DefinitionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	orders, err := s.ListDefinitions(ctx, DefinitionFilter{NamePrefix: "orders-"})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	page, err := s.ListDefinitions(ctx, DefinitionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestDefinition_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveDefinition(ctx, sampleDefinition("wf-1", "Orders"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteDefinition(ctx, "wf-1"))
	_, err = s.GetDefinition(ctx, "wf-1")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	revs, err := s.ListRevisions(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, revs)

	err = s.DeleteDefinition(ctx, "wf-1")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	require.NoError(t, s.Vacuum(ctx))
}

func TestRevision_GetAndRestore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveDefinition(ctx, sampleDefinition("wf-1", "first"))
	require.NoError(t, err)
	_, err = s.SaveDefinition(ctx, sampleDefinition("wf-1", "second"))
	require.NoError(t, err)

	_, err = s.GetRevision(ctx, "wf-1", 9)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	restored, err := RestoreRevision(ctx, s, "wf-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", restored.Name)
	assert.Equal(t, int64(3), restored.Revision)
}

func TestRevision_ConcurrentSavesAreContiguous(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SaveDefinition(ctx, sampleDefinition("wf-1", "Orders"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	revs, err := s.ListRevisions(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, revs, n)

	got, err := s.GetDefinition(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.Revision)
}

func TestDescriptor_UpsertListDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &schema.ActivityDescriptor{
		Type:     "Acme.SendInvoice",
		Version:  1,
		Category: "Billing",
		Ports:    []schema.Port{{Name: "Sent", Kind: schema.PortKindFlow}},
	}
	require.NoError(t, s.UpsertDescriptor(ctx, d))

	d.DisplayName = "Send invoice"
	require.NoError(t, s.UpsertDescriptor(ctx, d))

	list, err := s.ListDescriptors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Send invoice", list[0].DisplayName)
	require.Len(t, list[0].Ports, 1)
	assert.Equal(t, "Sent", list[0].Ports[0].Name)

	require.NoError(t, s.DeleteDescriptor(ctx, "Acme.SendInvoice", 1))
	err = s.DeleteDescriptor(ctx, "Acme.SendInvoice", 1)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestDescriptor_UpsertRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertDescriptor(context.Background(), &schema.ActivityDescriptor{Type: "X"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestLoadRegistry_OverlaysStored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertDescriptor(ctx, &schema.ActivityDescriptor{
		Type: "Elsa.Flowchart", Version: 1, DisplayName: "Custom flowchart", Category: "Flow",
	}))
	require.NoError(t, s.UpsertDescriptor(ctx, &schema.ActivityDescriptor{
		Type: "Acme.Ping", Version: 1, Category: "Custom",
	}))

	reg, err := LoadRegistry(ctx, s, nil)
	require.NoError(t, err)

	fc, ok := reg.Find("Elsa.Flowchart", 1)
	require.True(t, ok)
	assert.Equal(t, "Custom flowchart", fc.DisplayName)

	_, ok = reg.Find("Acme.Ping", 1)
	assert.True(t, ok)
	assert.Greater(t, reg.Count(), 2)

	base := descriptors.NewMemoryRegistry()
	reg, err = LoadRegistry(ctx, s, base)
	require.NoError(t, err)
	assert.Same(t, base, reg)
	assert.Equal(t, 2, reg.Count())
}
