// Package mcp serves the tool registry over JSON-RPC 2.0 on
// newline-delimited stdio, speaking the Model Context Protocol.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/ticketsmith-io/ticketsmith/internal/tool"
)

// Server exposes a tool registry as an MCP server.
type Server struct {
	registry *tool.Registry
	name     string
	version  string
	logger   *slog.Logger
}

func NewServer(registry *tool.Registry, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, name: name, version: version, logger: logger}
}

// Run processes requests from input until EOF. Each message occupies one
// line. A bad tool invocation produces an error-flagged result, never a
// transport failure; only a broken input stream returns an error.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	// Tool results can be large (full agent transcripts).
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); err != nil {
				return fmt.Errorf("mcp: write response: %w", err)
			}
			continue
		}

		if req.isNotification() {
			// notifications/initialized and friends need no reply.
			continue
		}

		if err := s.dispatch(ctx, encoder, &req); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mcp: read: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, encoder *json.Encoder, req *request) error {
	switch req.Method {
	case "initialize":
		return writeResult(encoder, req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    serverCapabilities{Tools: &toolCapability{}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		})
	case "ping":
		return writeResult(encoder, req.ID, map[string]any{})
	case "tools/list":
		return s.handleToolsList(encoder, req)
	case "tools/call":
		return s.handleToolsCall(ctx, encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleToolsList(encoder *json.Encoder, req *request) error {
	defs := s.registry.Definitions()
	descriptions := make([]toolDescription, 0, len(defs))
	for _, d := range defs {
		descriptions = append(descriptions, toolDescription{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return writeResult(encoder, req.ID, toolsListResult{Tools: descriptions})
}

func (s *Server) handleToolsCall(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}
	if _, ok := s.registry.Get(params.Name); !ok {
		return writeError(encoder, req.ID, codeInvalidParams, "unknown tool: "+params.Name)
	}

	s.logger.Info("tool call", "tool", params.Name)
	output, err := s.registry.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", params.Name, "error", err)
		return writeResult(encoder, req.ID, toolResult{
			Content: []contentBlock{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		})
	}
	return writeResult(encoder, req.ID, toolResult{
		Content: []contentBlock{{Type: "text", Text: output}},
	})
}

func writeResult(encoder *json.Encoder, id json.RawMessage, result any) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
