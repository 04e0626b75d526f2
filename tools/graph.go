package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/athapong/cardiograph/pkg/graph/views"
	"github.com/athapong/cardiograph/util"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterGraphTools exposes the knowledge graph to MCP clients. The view
// generator is injected; tool handlers hold no global state.
func RegisterGraphTools(s *server.MCPServer, gen *views.Generator) {
	searchTool := mcp.NewTool("search_entities",
		mcp.WithDescription("Search the cardiology knowledge graph for entities by name. Performs a case-insensitive substring match and returns matching entities ordered by how often they appear in the literature."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against entity names (e.g. 'myocardial')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default 10)"),
		),
	)
	s.AddTool(searchTool, util.ErrorGuard(searchEntitiesHandler(gen)))

	infoTool := mcp.NewTool("get_entity_info",
		mcp.WithDescription("Get detailed information about one entity in the cardiology knowledge graph: its type, total mention frequency, the sources it appears in, and its most frequent direct relationships."),
		mcp.WithString("entity",
			mcp.Required(),
			mcp.Description("Name of the entity (e.g. 'heart failure')"),
		),
		mcp.WithString("entity_type",
			mcp.Description("Optional entity type to disambiguate: Anatomy, Condition, Diagnostic, Procedure, Treatment, Finding or Mechanism"),
		),
	)
	s.AddTool(infoTool, util.ErrorGuard(entityInfoHandler(gen)))

	viewTool := mcp.NewTool("get_graph_view",
		mcp.WithDescription("Generate a dual-process view of the knowledge graph centered on an entity. 'system1' returns only strong, frequently reinforced associations; 'system2' ranks every relationship by evidence; 'complete' returns everything with both classifications."),
		mcp.WithString("entity",
			mcp.Required(),
			mcp.Description("Name of the central entity"),
		),
		mcp.WithString("view",
			mcp.Required(),
			mcp.Description("View kind: system1, system2 or complete"),
		),
		mcp.WithString("entity_type",
			mcp.Description("Optional entity type to disambiguate the central entity"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum relationships per direction (default 50, complete view 100)"),
		),
	)
	s.AddTool(viewTool, util.ErrorGuard(graphViewHandler(gen)))
}

func searchEntitiesHandler(gen *views.Generator) server.ToolHandlerFunc {
	return func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
		query, ok := arguments["query"].(string)
		if !ok || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query must be a non-empty string"), nil
		}

		hits, err := gen.Search(context.Background(), query, intArg(arguments, "limit"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %s", err)), nil
		}

		return jsonResult(hits)
	}
}

func entityInfoHandler(gen *views.Generator) server.ToolHandlerFunc {
	return func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
		entity, ok := arguments["entity"].(string)
		if !ok || strings.TrimSpace(entity) == "" {
			return mcp.NewToolResultError("entity must be a non-empty string"), nil
		}

		entityType, errResult := entityTypeArg(arguments)
		if errResult != nil {
			return errResult, nil
		}

		info, err := gen.EntityInfo(context.Background(), entity, entityType)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("entity lookup failed: %s", err)), nil
		}

		return jsonResult(info)
	}
}

func graphViewHandler(gen *views.Generator) server.ToolHandlerFunc {
	return func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
		entity, ok := arguments["entity"].(string)
		if !ok || strings.TrimSpace(entity) == "" {
			return mcp.NewToolResultError("entity must be a non-empty string"), nil
		}
		kind, ok := arguments["view"].(string)
		if !ok {
			return mcp.NewToolResultError("view must be a string: system1, system2 or complete"), nil
		}

		entityType, errResult := entityTypeArg(arguments)
		if errResult != nil {
			return errResult, nil
		}

		view, err := gen.View(context.Background(), kind, entity, entityType, intArg(arguments, "limit"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("view generation failed: %s", err)), nil
		}

		return jsonResult(view)
	}
}

func entityTypeArg(arguments map[string]interface{}) (*graph.EntityType, *mcp.CallToolResult) {
	raw, ok := arguments["entity_type"].(string)
	if !ok || raw == "" {
		return nil, nil
	}

	entityType, err := graph.ParseEntityType(raw)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid entity_type: %s", err))
	}
	return &entityType, nil
}

func intArg(arguments map[string]interface{}, key string) int {
	if v, ok := arguments[key].(float64); ok {
		return int(v)
	}
	return 0
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %s", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
