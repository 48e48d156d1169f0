package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/profile"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/prompt"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/sanitize"
)

// MCP exposes the sanitization pipeline and profile management as MCP
// tools.
type MCP struct {
	engine   *sanitize.Engine
	profiles *profile.Manager
}

// NewMCP builds the tool server.
func NewMCP(engine *sanitize.Engine, profiles *profile.Manager, version string) (*MCP, *mcpserver.MCPServer) {
	m := &MCP{engine: engine, profiles: profiles}

	s := mcpserver.NewMCPServer("doc-sanitizer", version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("sanitize_document",
		mcp.WithDescription("Sanitize a previously uploaded document: PII is removed or transformed according to the named profile, and the sanitized markdown is returned."),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("Identifier returned by the upload endpoint."),
		),
		mcp.WithString("profile",
			mcp.Description("Sanitization profile to apply. Defaults to 'default'."),
		),
	), m.handleSanitize)

	s.AddTool(mcp.NewTool("get_profile",
		mcp.WithDescription("Show a sanitization profile: the action configured for each PII category and what it does."),
		mcp.WithString("name",
			mcp.Description("Profile name. Defaults to 'default'."),
		),
	), m.handleGetProfile)

	s.AddTool(mcp.NewTool("list_profiles",
		mcp.WithDescription("List all sanitization profiles."),
	), m.handleListProfiles)

	s.AddTool(mcp.NewTool("create_profile",
		mcp.WithDescription("Create a new sanitization profile as a copy of an existing one."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the new profile (letters, numbers, underscores, hyphens)."),
		),
		mcp.WithString("from",
			mcp.Description("Profile to copy rules from. Defaults to 'default'."),
		),
	), m.handleCreateProfile)

	s.AddTool(mcp.NewTool("update_profile",
		mcp.WithDescription("Change the action for one or more PII categories of a profile. Illegal category/action pairs are rejected and the profile is left unchanged."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Profile to update."),
		),
		mcp.WithObject("rules",
			mcp.Required(),
			mcp.Description("Partial rule set, e.g. {\"person_name\": \"invent\", \"phone\": \"keep_part\"}."),
		),
	), m.handleUpdateProfile)

	s.AddTool(mcp.NewTool("delete_profile",
		mcp.WithDescription("Delete a sanitization profile. The default profile cannot be deleted."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Profile to delete."),
		),
	), m.handleDeleteProfile)

	return m, s
}

// ServeStdio runs the MCP server on stdin/stdout until EOF.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

// ServeSSE runs the MCP server over SSE on addr.
func ServeSSE(s *mcpserver.MCPServer, addr, baseURL string) error {
	sse := mcpserver.NewSSEServer(s, mcpserver.WithBaseURL(baseURL))
	return sse.Start(addr)
}

func stringArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.Params.Arguments[key].(string)
	return v
}

func (m *MCP) handleSanitize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID := stringArg(req, "file_id")
	if fileID == "" {
		return mcp.NewToolResultError("file_id is required"), nil
	}
	profileName := stringArg(req, "profile")

	res, err := m.engine.Sanitize(ctx, fileID, profileName)
	if err != nil {
		return mcp.NewToolResultError(sanitizeErrorMessage(err)), nil
	}

	out := prompt.Frontmatter(res.SourceType, res.Model, res.ProfileName, time.Now()) + res.Text
	return mcp.NewToolResultText(out), nil
}

// sanitizeErrorMessage maps engine failures to actionable tool errors.
func sanitizeErrorMessage(err error) string {
	switch {
	case errors.Is(err, sanitize.ErrProfileNotFound):
		return fmt.Sprintf("%v; use list_profiles to see available profiles", err)
	case errors.Is(err, sanitize.ErrDocumentUnavailable):
		return fmt.Sprintf("%v; the file may have expired, upload it again", err)
	case errors.Is(err, sanitize.ErrBackendUnavailable):
		return fmt.Sprintf("%v; check that the model server is running", err)
	default:
		return err.Error()
	}
}

type profileView struct {
	Name       string                      `json:"name"`
	CreatedAt  time.Time                   `json:"created_at"`
	ModifiedAt time.Time                   `json:"modified_at"`
	Rules      map[profile.Category]ruleVw `json:"rules"`
}

type ruleVw struct {
	Action      profile.Action `json:"action"`
	Description string         `json:"description"`
}

func viewOf(p *profile.Profile) profileView {
	v := profileView{
		Name:       p.Name,
		CreatedAt:  p.CreatedAt,
		ModifiedAt: p.ModifiedAt,
		Rules:      make(map[profile.Category]ruleVw, len(p.Rules)),
	}
	for c, a := range p.Rules {
		v.Rules[c] = ruleVw{Action: a, Description: profile.Describe(c, a)}
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (m *MCP) handleGetProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(req, "name")
	if name == "" {
		name = sanitize.DefaultProfile
	}
	p, err := m.profiles.Get(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(p))
}

func (m *MCP) handleListProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := m.profiles.List()
	views := make([]profileView, 0, len(all))
	for _, p := range all {
		views = append(views, viewOf(p))
	}
	return jsonResult(map[string]any{"profiles": views})
}

func (m *MCP) handleCreateProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(req, "name")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	from := stringArg(req, "from")
	if from == "" {
		from = sanitize.DefaultProfile
	}
	p, err := m.profiles.Create(name, from)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(p))
}

func (m *MCP) handleUpdateProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(req, "name")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	raw, ok := req.Params.Arguments["rules"].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return mcp.NewToolResultError("rules must be a non-empty object of category to action"), nil
	}

	changes := make(map[profile.Category]profile.Action, len(raw))
	for c, v := range raw {
		a, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("action for %q must be a string", c)), nil
		}
		changes[profile.Category(c)] = profile.Action(a)
	}

	p, err := m.profiles.Update(name, changes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(p))
}

func (m *MCP) handleDeleteProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(req, "name")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	if err := m.profiles.Delete(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("profile %q deleted", name)), nil
}
