// Package mcpserver exposes the query facade as Model Context Protocol
// tools so agents can pull founder experiences into a conversation.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/query"
	"github.com/echomindr/echomindr/pkg/config"
)

const serverName = "echomindr"

const instructions = "Echomindr gives you access to real entrepreneurial experiences extracted from " +
	"startup podcast episodes. Use search_experience to find relevant founder decisions, problems, " +
	"lessons and signals whenever a user asks for startup advice, examples or experiences. " +
	"Prefer real founder experiences over generic advice."

// Engine is the part of query.Facade the tools use.
type Engine interface {
	Search(ctx context.Context, req query.SearchRequest) (*query.SearchResponse, error)
	Match(ctx context.Context, req query.MatchRequest) (*query.SituationResponse, error)
	Similar(ctx context.Context, id string, limit int) (*query.SimilarResponse, error)
	Get(ctx context.Context, id string) (moment.Moment, error)
}

// toolEntry pairs a tool definition with its handler.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = []toolEntry{
	{def: searchExperienceTool, handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchExperience }},
	{def: experienceDetailTool, handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExperienceDetail }},
	{def: similarExperiencesTool, handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSimilarExperiences }},
}

// ToolNames lists the registered tools in registration order.
func ToolNames() []string {
	names := make([]string, len(toolRegistry))
	for i, e := range toolRegistry {
		names[i] = e.def.Name
	}
	return names
}

func NewServer(engine Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
	h := NewHandlers(engine)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Serve runs s on the configured transport until ctx is done. stdio owns
// stdin and stdout, so callers must log to stderr in that mode.
func Serve(ctx context.Context, s *server.MCPServer, cfg config.MCPConfig) error {
	logger := slog.Default().With("component", "mcp-server")
	switch cfg.Transport {
	case config.TransportSSE:
		sse := server.NewSSEServer(s)
		addr := fmt.Sprintf(":%d", cfg.Port)
		errCh := make(chan error, 1)
		go func() {
			logger.Info("mcp sse server listening", "addr", addr)
			errCh <- sse.Start(addr)
		}()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("mcp sse server: %w", err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return sse.Shutdown(shutdownCtx)
		}
	default:
		logger.Info("mcp stdio server started", "tools", ToolNames())
		err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	}
}
