package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

const (
	errorCodeInvalidParams = -32602
	errorCodeInternalError = -32603
)

type mcpError struct {
	Code    int
	Message string
}

func (e *mcpError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func invalidParams(message string) error {
	return &mcpError{Code: errorCodeInvalidParams, Message: message}
}

type searchArgs struct {
	query   string
	userID  string
	limit   int
	history []string
	filter  domain.SearchFilter
	raw     map[string]interface{}
}

func parseSearchArgs(request mcp.CallToolRequest) (searchArgs, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return searchArgs{}, invalidParams("invalid arguments")
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return searchArgs{}, invalidParams("query parameter is required")
	}
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return searchArgs{}, invalidParams("user_id parameter is required")
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return searchArgs{}, invalidParams("limit must be between 1 and 100")
	}

	return searchArgs{
		query:   query,
		userID:  userID,
		limit:   limit,
		history: getStringSlice(args, "history"),
		filter:  domain.SearchFilter{DocumentIDs: getStringSlice(args, "document_ids")},
		raw:     args,
	}, nil
}

func (s *Server) handleVectorSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseSearchArgs(request)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.VectorSearch(ctx, args.query, args.userID, domain.VectorSearchOptions{
		Limit:  args.limit,
		Filter: args.filter,
	})
	if err != nil {
		return nil, &mcpError{Code: errorCodeInternalError, Message: err.Error()}
	}
	return toolResult(resp)
}

func (s *Server) handleHybridSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseSearchArgs(request)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.HybridSearch(ctx, args.query, args.userID, hybridOptions(args))
	if err != nil {
		return nil, &mcpError{Code: errorCodeInternalError, Message: err.Error()}
	}
	return toolResult(resp)
}

func (s *Server) handleContextSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseSearchArgs(request)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.ContextAwareSearch(ctx, args.query, args.userID, args.history, domain.ContextSearchOptions{
		Hybrid: hybridOptions(args),
	})
	if err != nil {
		return nil, &mcpError{Code: errorCodeInternalError, Message: err.Error()}
	}
	return toolResult(resp)
}

func (s *Server) handleMultiStepSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseSearchArgs(request)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.MultiStepSearch(ctx, args.query, args.userID, domain.MultiStepSearchOptions{
		Hybrid:   hybridOptions(args),
		MaxSteps: getIntDefault(args.raw, "max_steps", 0),
	})
	if err != nil {
		return nil, &mcpError{Code: errorCodeInternalError, Message: err.Error()}
	}
	return toolResult(resp)
}

func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]interface{}{
		"status":     s.provider.Status(ctx),
		"validation": s.provider.ValidateConfiguration(ctx),
	}
	return toolResult(payload)
}

func hybridOptions(args searchArgs) domain.HybridSearchOptions {
	return domain.HybridSearchOptions{
		Limit:     args.limit,
		Fusion:    domain.FusionAlgorithm(getStringDefault(args.raw, "fusion", "")),
		UseRerank: getBoolDefault(args.raw, "use_rerank", false),
		Filter:    args.filter,
	}
}

func toolResult(payload any) (*mcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, &mcpError{Code: errorCodeInternalError, Message: err.Error()}
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
