package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/echomindr/echomindr/internal/query"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
	"github.com/echomindr/echomindr/pkg/logger"
)

type Handlers struct {
	engine Engine
}

func NewHandlers(engine Engine) *Handlers {
	return &Handlers{engine: engine}
}

type searchExperienceArgs struct {
	Situation string `json:"situation"`
	Stage     string `json:"stage,omitempty"`
	Type      string `json:"type,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type momentArgs struct {
	MomentID string `json:"moment_id"`
	Limit    int    `json:"limit,omitempty"`
}

// HandleSearchExperience runs a keyword search when a type filter is given
// and a situation match otherwise.
func (h *Handlers) HandleSearchExperience(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[searchExperienceArgs](req)
	if err != nil {
		return errorResult(ctx, req, apperrors.InvalidInput("%v", err)), nil
	}
	ctx = query.WithSource(ctx, "mcp")
	limit := clamp(args.Limit, searchDefaultLimit, searchMaxLimit)

	if strings.TrimSpace(args.Type) != "" {
		resp, err := h.engine.Search(ctx, query.SearchRequest{
			Query: args.Situation,
			Stage: args.Stage,
			Type:  args.Type,
			Limit: limit,
		})
		if err != nil {
			return errorResult(ctx, req, err), nil
		}
		return mcp.NewToolResultText(formatMoments(resp.Moments)), nil
	}

	resp, err := h.engine.Match(ctx, query.MatchRequest{
		Situation: args.Situation,
		Stage:     args.Stage,
		Limit:     limit,
	})
	if err != nil {
		return errorResult(ctx, req, err), nil
	}
	var b strings.Builder
	if len(resp.Keywords) > 0 {
		fmt.Fprintf(&b, "Search keywords extracted: %s\n\n", strings.Join(resp.Keywords, ", "))
	}
	b.WriteString(formatMoments(resp.Moments))
	return mcp.NewToolResultText(b.String()), nil
}

func (h *Handlers) HandleExperienceDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[momentArgs](req)
	if err != nil {
		return errorResult(ctx, req, apperrors.InvalidInput("%v", err)), nil
	}
	if strings.TrimSpace(args.MomentID) == "" {
		return errorResult(ctx, req, apperrors.InvalidInput("moment_id is required")), nil
	}
	m, err := h.engine.Get(query.WithSource(ctx, "mcp"), args.MomentID)
	if err != nil {
		return errorResult(ctx, req, err), nil
	}
	return mcp.NewToolResultText(formatMoment(m)), nil
}

func (h *Handlers) HandleSimilarExperiences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[momentArgs](req)
	if err != nil {
		return errorResult(ctx, req, apperrors.InvalidInput("%v", err)), nil
	}
	if strings.TrimSpace(args.MomentID) == "" {
		return errorResult(ctx, req, apperrors.InvalidInput("moment_id is required")), nil
	}
	limit := clamp(args.Limit, similarDefaultLimit, similarMaxLimit)
	resp, err := h.engine.Similar(query.WithSource(ctx, "mcp"), args.MomentID, limit)
	if err != nil {
		return errorResult(ctx, req, err), nil
	}
	if len(resp.Moments) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No experiences share tags with %s.", resp.SourceID)), nil
	}
	return mcp.NewToolResultText(formatMoments(resp.Moments)), nil
}

// decode unmarshals tool arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// clamp maps a missing limit to def and pins the rest into [1, bound].
func clamp(limit, def, bound int) int {
	switch {
	case limit <= 0:
		return def
	case limit > bound:
		return bound
	}
	return limit
}

// errorResult reports err to the agent as a tool error. Internal details
// are not exposed.
func errorResult(ctx context.Context, req mcp.CallToolRequest, err error) *mcp.CallToolResult {
	if apperrors.HTTPStatusCode(err) >= 500 {
		logger.FromContext(ctx).Error("tool call failed", "component", "mcp-server", "tool", req.Params.Name, "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Error (%s): %s", apperrors.Code(err), apperrors.PublicMessage(err)))
}
