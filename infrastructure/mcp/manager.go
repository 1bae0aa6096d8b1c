// Package mcp adapts externally-managed Model-Context-Protocol servers to
// the manager interface the data source layer consumes. Servers are spawned
// over stdio and sessions are cached per server id.
package mcp

import (
	"context"
	"os/exec"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

// ServerConfig describes one external MCP server to spawn.
type ServerConfig struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Command     string   `json:"command" yaml:"command"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env         []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Manager owns the client sessions to configured MCP servers. Sessions are
// established lazily on first use and reused until Close.
type Manager struct {
	servers map[string]ServerConfig
	order   []string
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sdk.ClientSession
}

// NewManager builds a manager over a static server configuration.
func NewManager(servers []ServerConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		servers:  make(map[string]ServerConfig, len(servers)),
		logger:   logger,
		sessions: make(map[string]*sdk.ClientSession),
	}
	for _, s := range servers {
		if _, dup := m.servers[s.ID]; dup {
			continue
		}
		m.servers[s.ID] = s
		m.order = append(m.order, s.ID)
	}
	return m
}

// session returns the cached session for a server, connecting on first use.
func (m *Manager) session(ctx context.Context, serverID string) (*sdk.ClientSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[serverID]; ok {
		return session, nil
	}
	cfg, ok := m.servers[serverID]
	if !ok {
		return nil, errors.NewNotFound("mcp server " + serverID)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}

	client := sdk.NewClient(&sdk.Implementation{Name: "bb-datasources", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, errors.NewUpstream("mcp", err)
	}
	m.logger.Info("connected to mcp server", zap.String("server", serverID))
	m.sessions[serverID] = session
	return session, nil
}

// ListServers enumerates the configured servers, probing each for exposed
// resources. Unreachable servers are reported without resources.
func (m *Manager) ListServers(ctx context.Context) ([]ports.MCPServerInfo, error) {
	out := make([]ports.MCPServerInfo, 0, len(m.order))
	for _, id := range m.order {
		cfg := m.servers[id]
		info := ports.MCPServerInfo{
			ID:           cfg.ID,
			Name:         cfg.Name,
			Description:  cfg.Description,
			Capabilities: []valueobjects.Capability{valueobjects.CapabilityRead, valueobjects.CapabilityList},
		}
		resources, err := m.ListResources(ctx, id)
		if err != nil {
			m.logger.Warn("mcp server unreachable", zap.String("server", id), zap.Error(err))
		} else {
			info.HasResources = len(resources) > 0
		}
		out = append(out, info)
	}
	return out, nil
}

// ListResources lists the resources a server exposes.
func (m *Manager) ListResources(ctx context.Context, serverID string) ([]ports.ResourceMetadata, error) {
	session, err := m.session(ctx, serverID)
	if err != nil {
		return nil, err
	}
	result, err := session.ListResources(ctx, &sdk.ListResourcesParams{})
	if err != nil {
		return nil, errors.NewUpstream("mcp", err)
	}

	out := make([]ports.ResourceMetadata, 0, len(result.Resources))
	for _, r := range result.Resources {
		out = append(out, ports.ResourceMetadata{
			URI:         r.URI,
			Name:        r.Name,
			Type:        "resource",
			MimeType:    r.MIMEType,
			Description: r.Description,
		})
	}
	return out, nil
}

// LoadResource reads one resource from a server. Text contents win over
// binary blobs when a server returns both.
func (m *Manager) LoadResource(ctx context.Context, serverID, path string) (*ports.LoadResult, error) {
	session, err := m.session(ctx, serverID)
	if err != nil {
		return nil, err
	}
	result, err := session.ReadResource(ctx, &sdk.ReadResourceParams{URI: path})
	if err != nil {
		return nil, errors.NewUpstream("mcp", err)
	}
	if len(result.Contents) == 0 {
		return nil, errors.NewNotFound(path)
	}

	load := &ports.LoadResult{
		Metadata: ports.ResourceMetadata{URI: path, Name: path, Type: "resource"},
	}
	for _, c := range result.Contents {
		if c.Text != "" {
			load.Content = []byte(c.Text)
			load.Metadata.MimeType = c.MIMEType
			return load, nil
		}
	}
	first := result.Contents[0]
	load.Content = first.Blob
	load.IsBinary = true
	load.Metadata.MimeType = first.MIMEType
	return load, nil
}

// Close tears down every open session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, session := range m.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.sessions, id)
	}
	return firstErr
}
