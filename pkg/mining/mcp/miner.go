// Package mcp mines action declarations from an MCP server. Each server is
// one module: its tools become actions, and the JSON-schema types its tool
// parameters use become the entities those parameters reference.
package mcp

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
	"github.com/piligrim-code/manifesto/pkg/mining"
)

const defaultTimeout = 10 * time.Second

// ToolLister is the subset of the mcp-go client the miner uses.
// *client.Client satisfies it.
type ToolLister interface {
	Initialize(ctx context.Context, req mcpgo.InitializeRequest) (*mcpgo.InitializeResult, error)
	ListTools(ctx context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error)
}

// Option customizes the miner.
type Option func(*Miner)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Miner) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// Miner exposes a single MCP server as one scannable module. It implements
// both mining.Source and mining.Miner.
type Miner struct {
	module  string
	client  ToolLister
	timeout time.Duration

	mu          sync.Mutex
	initialized bool
}

// New creates a miner over an already-connected MCP client. The module
// name identifies the server in diagnostics and manifests.
func New(module string, client ToolLister, opts ...Option) *Miner {
	m := &Miner{
		module:  module,
		client:  client,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect launches an MCP server as a subprocess speaking stdio and
// returns a miner bound to it. The handshake happens later, on the first
// Initialize call of a generation.
func Connect(module, command string, args []string, opts ...Option) (*Miner, error) {
	c, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, errors.New(errors.CodeEnumeration, "start mcp server", err).
			WithContext("module", module).
			WithContext("command", command)
	}
	return New(module, c, opts...), nil
}

type serverModule struct {
	name string
}

func (m serverModule) Name() string { return m.name }

// TargetModules implements mining.Source: one module per server.
func (m *Miner) TargetModules(ctx context.Context) ([]mining.Module, error) {
	return []mining.Module{serverModule{name: m.module}}, nil
}

// Initialize implements mining.Miner. The MCP handshake runs once; repeat
// calls are no-ops.
func (m *Miner) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{
		Name:    "manifesto-miner",
		Version: manifest.Version,
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if _, err := m.client.Initialize(reqCtx, req); err != nil {
		return errors.New(errors.CodeMining, "mcp initialize", err).
			WithContext("module", m.module)
	}
	m.initialized = true
	return nil
}

// ExtractActions implements mining.Miner. Tools map to actions; schema
// properties map to typed parameters in name order.
func (m *Miner) ExtractActions(ctx context.Context, mod mining.Module) ([]manifest.Action, error) {
	tools, err := m.listTools(ctx, mod)
	if err != nil {
		return nil, err
	}

	actions := make([]manifest.Action, 0, len(tools))
	for _, tool := range tools {
		params := make([]manifest.Parameter, 0, len(tool.InputSchema.Properties))
		for _, name := range sortedKeys(tool.InputSchema.Properties) {
			params = append(params, manifest.Parameter{
				Name:       name,
				EntityType: propertyType(tool.InputSchema.Properties[name]),
			})
		}
		actions = append(actions, manifest.Action{Name: tool.Name, Parameters: params})
	}
	return actions, nil
}

// ExtractEntities implements mining.Miner. The entity domains an MCP
// module offers are the distinct schema types its tool parameters use.
func (m *Miner) ExtractEntities(ctx context.Context, mod mining.Module) ([]manifest.Entity, error) {
	tools, err := m.listTools(ctx, mod)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var types []string
	for _, tool := range tools {
		for _, prop := range tool.InputSchema.Properties {
			typ := propertyType(prop)
			if _, ok := seen[typ]; ok {
				continue
			}
			seen[typ] = struct{}{}
			types = append(types, typ)
		}
	}
	sort.Strings(types)

	entities := make([]manifest.Entity, 0, len(types))
	for _, typ := range types {
		entities = append(entities, manifest.Entity{ID: typ, Name: titleCase(typ)})
	}
	return entities, nil
}

// ExtractErrorHandlers implements mining.Miner. MCP servers declare no
// error handlers, so extraction always fails with a mining error and the
// generator's per-module leniency applies.
func (m *Miner) ExtractErrorHandlers(ctx context.Context, mod mining.Module) ([]manifest.ErrorHandler, error) {
	return nil, errors.New(errors.CodeMining, "mcp servers declare no error handlers", nil).
		WithContext("module", m.module)
}

func (m *Miner) listTools(ctx context.Context, mod mining.Module) ([]mcpgo.Tool, error) {
	if mod == nil || mod.Name() != m.module {
		name := "<nil>"
		if mod != nil {
			name = mod.Name()
		}
		return nil, errors.New(errors.CodeMining, "unknown module handle", nil).
			WithContext("module", name)
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	resp, err := m.client.ListTools(reqCtx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, errors.New(errors.CodeMining, "mcp list tools", err).
			WithContext("module", m.module)
	}
	return resp.Tools, nil
}

func sortedKeys(properties map[string]interface{}) []string {
	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// propertyType pulls the JSON-schema type out of a property definition,
// defaulting to string when the schema leaves it open.
func propertyType(prop interface{}) string {
	if schema, ok := prop.(map[string]interface{}); ok {
		if typ, ok := schema["type"].(string); ok && typ != "" {
			return typ
		}
	}
	return "string"
}
