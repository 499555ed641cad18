package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowdesigner/internal/designer"
	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/logging"
	"github.com/rendis/flowdesigner/internal/navigation"
	"github.com/rendis/flowdesigner/internal/store"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// handlePorts lists the ports of one activity.
func (s *DesignerServer) handlePorts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activityID, err := req.RequireString("activity_id")
	if err != nil {
		return mcp.NewToolResultError("activity_id is required"), nil
	}
	def, errResult := s.workflowArgument(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	path, err := navigation.ParsePath(req.GetStringSlice("path", nil))
	if err != nil {
		return errorResult(err), nil
	}

	res, err := navigation.Resolve(s.resolver, s.registry, def.Root, path)
	if err != nil {
		return errorResult(err), nil
	}
	a := res.Flowchart().Find(activityID)
	if a == nil {
		return errorResult(schema.NewErrorf(schema.ErrCodeNotFound,
			"activity %q not found in %q", activityID, res.Container.ID)), nil
	}
	all, err := s.resolver.GetPorts(a, descriptors.Lookup(s.registry, a))
	if err != nil {
		return errorResult(err), nil
	}

	return marshalResult(map[string]any{
		"activity_id": a.ID,
		"type":        a.Type,
		"flow":        nonNil(schema.FilterPorts(all, schema.PortKindFlow)),
		"embedded":    nonNil(schema.FilterPorts(all, schema.PortKindEmbedded)),
	})
}

// handleGraph renders the container reached by path.
func (s *DesignerServer) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "json")
	if format != "json" && format != "mermaid" {
		return mcp.NewToolResultError("format must be json or mermaid"), nil
	}
	def, errResult := s.workflowArgument(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	path, err := navigation.ParsePath(req.GetStringSlice("path", nil))
	if err != nil {
		return errorResult(err), nil
	}

	view, err := designer.RenderView(def, s.resolver, s.registry, path)
	if err != nil {
		return errorResult(err), nil
	}
	if format == "mermaid" {
		return marshalResult(map[string]any{
			"mermaid":     diagram.RenderMermaid(view.Graph),
			"breadcrumbs": view.Breadcrumbs,
			"path":        view.Path,
		})
	}
	return marshalResult(view)
}

// handleValidate runs both validation stages on a document.
func (s *DesignerServer) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, errResult := rawWorkflow(req)
	if errResult != nil {
		return errResult, nil
	}
	_, result := s.validator.ValidateDocument(raw)
	return marshalResult(validationPayload(result))
}

// handleSave validates a document and appends it as a new revision.
func (s *DesignerServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	raw, errResult := rawWorkflow(req)
	if errResult != nil {
		return errResult, nil
	}
	def, result := s.validator.ValidateDocument(raw)
	if def == nil || !result.Valid() {
		return marshalError(validationPayload(result))
	}

	saved, err := s.store.SaveDefinition(ctx, def)
	if err != nil {
		return errorResult(err), nil
	}

	ctx = logging.WithDefinitionID(ctx, saved.ID)
	origin := sessionID(ctx)
	if err := s.notifier.Notify(ctx, saved.ID, origin, map[string]any{
		"event":         "definition_saved",
		"definition_id": saved.ID,
		"revision":      saved.Revision,
	}); err != nil {
		logging.LogWith(ctx, s.logger).Warn("notify watchers failed", slog.String("error", err.Error()))
	}

	return marshalResult(map[string]any{
		"definition_id": saved.ID,
		"revision":      saved.Revision,
		"warnings":      result.Warnings,
	})
}

// handleLoad returns a stored definition, optionally at a past revision.
func (s *DesignerServer) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	id, err := req.RequireString("definition_id")
	if err != nil {
		return mcp.NewToolResultError("definition_id is required"), nil
	}

	var out *store.Definition
	if rev := int64(req.GetInt("revision", 0)); rev > 0 {
		out, err = s.loadRevision(ctx, id, rev)
	} else {
		out, err = s.store.GetDefinition(ctx, id)
	}
	if err != nil {
		return errorResult(err), nil
	}

	if req.GetBool("watch", false) {
		if sid := sessionID(ctx); sid != "" {
			s.watchers.Watch(id, sid)
		}
	}
	return marshalResult(out)
}

// handleList lists stored definitions without their documents.
func (s *DesignerServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	defs, err := s.store.ListDefinitions(ctx, store.DefinitionFilter{
		NamePrefix: req.GetString("name_prefix", ""),
		Limit:      req.GetInt("limit", 50),
	})
	if err != nil {
		return errorResult(err), nil
	}

	type summary struct {
		ID       string `json:"id"`
		Name     string `json:"name,omitempty"`
		Version  int    `json:"version"`
		Revision int64  `json:"revision"`
	}
	out := make([]summary, 0, len(defs))
	for _, d := range defs {
		out = append(out, summary{ID: d.ID, Name: d.Name, Version: d.Version, Revision: d.Revision})
	}
	return marshalResult(map[string]any{"definitions": out})
}

// --- Internal helpers ---

// workflowArgument returns the inline workflow, or the stored one named by
// definition_id. A document failing the structural stage is an error result.
func (s *DesignerServer) workflowArgument(ctx context.Context, req mcp.CallToolRequest) (*schema.WorkflowDefinition, *mcp.CallToolResult) {
	if id := req.GetString("definition_id", ""); id != "" {
		if s.store == nil {
			return nil, mcp.NewToolResultError("no store configured")
		}
		d, err := s.store.GetDefinition(ctx, id)
		if err != nil {
			return nil, errorResult(err)
		}
		return d.Definition, nil
	}

	raw, errResult := rawWorkflow(req)
	if errResult != nil {
		return nil, errResult
	}
	def, result := s.validator.ValidateDocument(raw)
	if def == nil {
		res, _ := marshalError(validationPayload(result))
		return nil, res
	}
	return def, nil
}

func (s *DesignerServer) loadRevision(ctx context.Context, id string, sequence int64) (*store.Definition, error) {
	rev, err := s.store.GetRevision(ctx, id, sequence)
	if err != nil {
		return nil, err
	}
	def, err := rev.Decode()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode revision %d of %s", sequence, id).WithCause(err)
	}
	return &store.Definition{
		ID:         id,
		Name:       def.Name,
		Version:    def.Version,
		Revision:   rev.Sequence,
		Definition: def,
		CreatedAt:  rev.CreatedAt,
		UpdatedAt:  rev.CreatedAt,
	}, nil
}

// rawWorkflow re-encodes the workflow argument for the validator.
func rawWorkflow(req mcp.CallToolRequest) ([]byte, *mcp.CallToolResult) {
	doc := mcp.ParseStringMap(req, "workflow", nil)
	if doc == nil {
		return nil, mcp.NewToolResultError("workflow is required")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid workflow: %v", err))
	}
	return raw, nil
}

func validationPayload(r *schema.ValidationResult) map[string]any {
	return map[string]any{
		"valid":    r.Valid(),
		"errors":   nonNil(r.Errors),
		"warnings": nonNil(r.Warnings),
	}
}

// sessionID returns the current MCP session, or "" outside a session.
func sessionID(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}

// errorResult reports err as a tool error. DesignerError messages carry
// their code.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

// marshalError is marshalResult flagged as a tool error.
func marshalError(v any) (*mcp.CallToolResult, error) {
	res, err := marshalResult(v)
	if res != nil {
		res.IsError = true
	}
	return res, err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
