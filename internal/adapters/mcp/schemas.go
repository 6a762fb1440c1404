package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func searchProperties() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search query text",
		},
		"user_id": map[string]interface{}{
			"type":        "string",
			"description": "Owner of the corpus to search",
		},
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of results to return",
			"default":     10,
			"minimum":     1,
			"maximum":     100,
		},
		"document_ids": map[string]interface{}{
			"type":        "array",
			"description": "Restrict retrieval to these document ids",
			"items":       map[string]interface{}{"type": "string"},
		},
	}
}

func searchVectorTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_vector",
		Description: "Dense similarity search over the user's indexed documents",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchProperties(),
			Required:   []string{"query", "user_id"},
		},
	}
}

func searchHybridTool() mcp.Tool {
	props := searchProperties()
	props["fusion"] = map[string]interface{}{
		"type":        "string",
		"description": "Fusion algorithm for combining the dense and lexical channels",
		"enum":        []string{"weighted", "rrf", "adaptive"},
		"default":     "weighted",
	}
	props["use_rerank"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Refine the fused ordering with the cross-encoder reranker",
		"default":     false,
	}
	return mcp.Tool{
		Name:        "search_hybrid",
		Description: "Hybrid search fusing dense vectors with full-text retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query", "user_id"},
		},
	}
}

func searchContextTool() mcp.Tool {
	props := searchProperties()
	props["history"] = map[string]interface{}{
		"type":        "array",
		"description": "Recent conversation messages, oldest first",
		"items":       map[string]interface{}{"type": "string"},
	}
	return mcp.Tool{
		Name:        "search_context",
		Description: "Hybrid search boosted by terms mined from the conversation history",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query", "user_id"},
		},
	}
}

func searchMultiStepTool() mcp.Tool {
	props := searchProperties()
	props["max_steps"] = map[string]interface{}{
		"type":        "integer",
		"description": "Maximum refinement iterations",
		"default":     3,
		"minimum":     1,
		"maximum":     3,
	}
	return mcp.Tool{
		Name:        "search_multistep",
		Description: "Iterative search that refines the query between steps for broad questions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query", "user_id"},
		},
	}
}

func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report backend health and configuration validity",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
