// Package mcp registers the core certification tools on an MCP server, so
// MCP clients can certify, verify, and query the vault over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/certnode/certnode/internal/certify"
	"github.com/certnode/certnode/internal/config"
	"github.com/certnode/certnode/internal/ics"
	"github.com/certnode/certnode/internal/vault"
)

// NewServer creates an MCPServer with all certification tools registered.
func NewServer(pipeline *certify.Pipeline, store *vault.Store) *server.MCPServer {
	srv := server.NewMCPServer(
		"certnode",
		config.Version,
		server.WithToolCapabilities(true),
	)

	registerCertifyContent(srv, pipeline)
	registerVerifyContent(srv, pipeline)
	registerVaultSearch(srv, store)
	registerVaultStats(srv, store)
	registerDriftCheck(srv, store)

	return srv
}

// --- certify_content ---

func registerCertifyContent(srv *server.MCPServer, pipeline *certify.Pipeline) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":   map[string]string{"type": "string", "description": "Document text to certify"},
			"cert_type": map[string]string{"type": "string", "description": "One of: LOGIC_FRAGMENT, FULL_DOCUMENT, RESEARCH_PAPER (default FULL_DOCUMENT)"},
			"author_id": map[string]string{"type": "string", "description": "Optional author identifier, hashed into the certificate"},
		},
		"required": []string{"content"},
	})
	tool := mcp.NewToolWithRawSchema("certify_content",
		"Run the full certification pipeline over content and issue a certificate if it passes", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		certType := ics.CertType(stringArg(args, "cert_type"))
		if certType == "" {
			certType = ics.CertFullDocument
		}
		res, err := pipeline.Certify(certify.Request{
			Content:  stringArg(args, "content"),
			CertType: certType,
			AuthorID: stringArg(args, "author_id"),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	})
}

// --- verify_content ---

func registerVerifyContent(srv *server.MCPServer, pipeline *certify.Pipeline) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":     map[string]string{"type": "string", "description": "Content to verify"},
			"certificate": map[string]string{"type": "string", "description": "Serialized certificate JSON; omit to look the certificate up in the vault"},
		},
		"required": []string{"content"},
	})
	tool := mcp.NewToolWithRawSchema("verify_content",
		"Verify content against its certificate (provided or looked up in the vault)", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		valid, errs, err := pipeline.Verify(stringArg(args, "content"), []byte(stringArg(args, "certificate")))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"valid": valid, "errors": errs})
	})
}

// --- vault_search ---

func registerVaultSearch(srv *server.MCPServer, store *vault.Store) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cert_type": map[string]string{"type": "string", "description": "Filter by certification type"},
			"author":    map[string]string{"type": "string", "description": "Filter by author signature"},
			"from":      map[string]string{"type": "string", "description": "Earliest timestamp (YYYY-MM-DD)"},
			"to":        map[string]string{"type": "string", "description": "Latest timestamp (YYYY-MM-DD)"},
			"limit":     map[string]string{"type": "integer", "description": "Max results (default 10, cap 100)"},
		},
	})
	tool := mcp.NewToolWithRawSchema("vault_search", "Search the certification ledger", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		limit := 0
		if v, ok := args["limit"].(float64); ok {
			limit = int(v)
		}
		entries, err := store.Search(vault.Filter{
			CertType:        stringArg(args, "cert_type"),
			AuthorSignature: stringArg(args, "author"),
			DateFrom:        stringArg(args, "from"),
			DateTo:          stringArg(args, "to"),
			Limit:           limit,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"entries": entries, "count": len(entries)})
	})
}

// --- vault_stats ---

func registerVaultStats(srv *server.MCPServer, store *vault.Store) {
	schema, _ := json.Marshal(map[string]any{"type": "object", "properties": map[string]any{}})
	tool := mcp.NewToolWithRawSchema("vault_stats", "Report ledger size and outstanding drift alerts", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := store.Stats()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(stats)
	})
}

// --- drift_check ---

func registerDriftCheck(srv *server.MCPServer, store *vault.Store) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cert_id": map[string]string{"type": "string", "description": "Certificate ID to check against"},
			"content": map[string]string{"type": "string", "description": "Current content to compare"},
		},
		"required": []string{"cert_id", "content"},
	})
	tool := mcp.NewToolWithRawSchema("drift_check",
		"Compare current content against the hash stored for a certificate and raise a drift alert on mismatch", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		alert, err := store.DetectDrift(stringArg(args, "cert_id"), stringArg(args, "content"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp := map[string]any{"drift_detected": alert != nil}
		if alert != nil {
			resp["alert"] = alert
		}
		return jsonResult(resp)
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
