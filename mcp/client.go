// Package mcp holds the optional extension-server integration. Servers
// are declared in a JSON config file; this client manages that
// bookkeeping. Live tool-serving sessions are not established here: the
// connection layer is a deliberate extension point, and until it exists
// the available-tool set is always empty.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"geode/tools"
	"geode/util"
)

// ServerConfig declares one extension server launchable by command.
type ServerConfig struct {
	Name    string            `json:"name"`
	Command []string          `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	Enabled bool              `json:"enabled"`
}

type serversFile struct {
	Comment string         `json:"_comment,omitempty"`
	Note    string         `json:"_note,omitempty"`
	Servers []ServerConfig `json:"servers"`
}

// ServerStatus is the reportable state of one configured server.
type ServerStatus struct {
	Enabled   bool     `json:"enabled"`
	Connected bool     `json:"connected"`
	Command   []string `json:"command"`
	ToolCount int      `json:"tool_count"`
}

// Client manages extension-server configuration. A disabled client
// refuses mutations and reports empty state, so callers need no nil or
// enabled checks of their own.
type Client struct {
	enabled   bool
	servers   map[string]ServerConfig
	order     []string
	connected map[string]bool
	tools     []*tools.Tool
}

func NewClient(enabled bool) *Client {
	if !enabled {
		slog.Info("extension-server integration is disabled")
	} else {
		slog.Info("extension-server client initialized (optional)")
	}
	return &Client{
		enabled:   enabled,
		servers:   make(map[string]ServerConfig),
		connected: make(map[string]bool),
	}
}

func (c *Client) Enabled() bool { return c.enabled }

// AddServerConfig registers or replaces a server declaration by name.
func (c *Client) AddServerConfig(cfg ServerConfig) bool {
	if !c.enabled {
		slog.Warn("extension servers disabled, ignoring server config", "name", cfg.Name)
		return false
	}
	if cfg.Name == "" {
		slog.Warn("ignoring extension server config without a name")
		return false
	}
	if _, exists := c.servers[cfg.Name]; !exists {
		c.order = append(c.order, cfg.Name)
	}
	c.servers[cfg.Name] = cfg
	slog.Info("added extension server config", "name", cfg.Name)
	return true
}

// LoadServerConfigs reads server declarations from path. An absent file
// is not an error; the integration is optional.
func (c *Client) LoadServerConfigs(path string) error {
	if !c.enabled {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no extension server config file found", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read extension server config: %w", err)
	}

	var file serversFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse extension server config %s: %w", path, err)
	}

	for _, cfg := range file.Servers {
		c.AddServerConfig(cfg)
	}
	slog.Info("loaded extension server configurations", "count", len(c.servers))
	return nil
}

// SaveServerConfigs writes the current declarations back to path.
func (c *Client) SaveServerConfigs(path string) error {
	if !c.enabled {
		return nil
	}

	file := serversFile{Servers: make([]ServerConfig, 0, len(c.order))}
	for _, name := range c.order {
		file.Servers = append(file.Servers, c.servers[name])
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode extension server config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save extension server config: %w", err)
	}
	slog.Info("saved extension server configurations", "path", path)
	return nil
}

// AvailableTools returns the tools offered by connected servers. Always a
// copy; empty until a connection layer exists.
func (c *Client) AvailableTools() []*tools.Tool {
	if !c.enabled {
		return nil
	}
	return append([]*tools.Tool(nil), c.tools...)
}

// Status reports the state of every configured server by name.
func (c *Client) Status() map[string]ServerStatus {
	status := make(map[string]ServerStatus)
	if !c.enabled {
		return status
	}
	for name, cfg := range c.servers {
		status[name] = ServerStatus{
			Enabled:   cfg.Enabled,
			Connected: c.connected[name],
			Command:   cfg.Command,
		}
	}
	return status
}

func (c *Client) ServerCount() int {
	if !c.enabled {
		return 0
	}
	return len(c.servers)
}

func (c *Client) ConnectedCount() int {
	if !c.enabled {
		return 0
	}
	return len(c.connected)
}

// DisconnectAll tears down any live connections and clears the tool set.
func (c *Client) DisconnectAll() {
	if !c.enabled {
		return
	}
	for name := range c.connected {
		slog.Info("disconnected from extension server", "name", name)
	}
	c.connected = make(map[string]bool)
	c.tools = nil
}

// WriteExampleConfig writes a reference config file users can copy and
// adapt. All example servers ship disabled.
func WriteExampleConfig(path string) error {
	file := serversFile{
		Comment: "Example extension server configurations",
		Note:    "Copy this to mcp_servers.json and modify as needed. Extension servers are optional.",
		Servers: []ServerConfig{
			{
				Name:    "filesystem",
				Command: []string{"npx", "-y", "@modelcontextprotocol/server-filesystem"},
				Args:    []string{"/path/to/directory"},
			},
			{
				Name:    "sqlite",
				Command: []string{"npx", "-y", "@modelcontextprotocol/server-sqlite"},
				Args:    []string{"--db-path", "/path/to/database.db"},
			},
			{
				Name:    "github",
				Command: []string{"npx", "-y", "@modelcontextprotocol/server-github"},
				Env:     map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": "your_token_here"},
			},
		},
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode example config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}
	slog.Info("created example extension server config", "path", path)
	return nil
}
