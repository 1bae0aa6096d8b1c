// Command inspect prints the registered data source providers and
// optionally validates a connections file against them.
//
//	inspect [-connections file.json] [-mcp-servers servers.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/entities"
	"bb-datasources/infrastructure/config"
	"bb-datasources/infrastructure/mcp"
	"bb-datasources/infrastructure/registry"
	"bb-datasources/pkg/logging"
)

func main() {
	connectionsPath := flag.String("connections", "", "JSON file of connection records to validate")
	mcpServersPath := flag.String("mcp-servers", "", "YAML file of MCP server configs")
	flag.Parse()

	if err := run(*connectionsPath, *mcpServersPath); err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}

func run(connectionsPath, mcpServersPath string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var manager ports.MCPManager
	if mcpServersPath != "" {
		servers, err := loadMCPServers(mcpServersPath)
		if err != nil {
			return err
		}
		m := mcp.NewManager(servers, logger)
		defer m.Close()
		manager = m
	}

	ctx := context.Background()
	reg, err := registry.Get(ctx, cfg, manager, logger)
	if err != nil {
		return err
	}

	fmt.Println("Providers:")
	for _, p := range reg.ListProviders(nil) {
		caps := p.Capabilities()
		fmt.Printf("  %s+%s  %s\n", p.AccessMethod(), p.ProviderType(), p.Name())
		fmt.Printf("    uri: %s\n", p.URITemplate())
		fmt.Printf("    auth: %s  capabilities: %v\n", p.AuthMethod(), caps.Coarse)
	}

	if connectionsPath == "" {
		return nil
	}
	return validateConnections(reg, connectionsPath, logger)
}

func loadMCPServers(path string) ([]mcp.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read mcp server file: %w", err)
	}
	var servers []mcp.ServerConfig
	if err := yaml.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("cannot parse mcp server file: %w", err)
	}
	return servers, nil
}

func validateConnections(reg *registry.Registry, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read connections file: %w", err)
	}
	var records []entities.ConnectionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("cannot parse connections file: %w", err)
	}

	fmt.Println("\nConnections:")
	failures := 0
	for _, rec := range records {
		conn, err := entities.FromRecord(rec)
		if err != nil {
			failures++
			fmt.Printf("  %s: INVALID record: %v\n", rec.Name, err)
			continue
		}
		method := conn.AccessMethod()
		provider, err := reg.GetProvider(conn.ProviderType().String(), &method)
		if err != nil {
			failures++
			fmt.Printf("  %s: no provider: %v\n", conn.Name(), err)
			continue
		}
		if err := provider.ValidateConfig(conn.Config()); err != nil {
			failures++
			fmt.Printf("  %s: config: %v\n", conn.Name(), err)
			continue
		}
		if err := provider.ValidateAuth(conn.Auth()); err != nil {
			failures++
			fmt.Printf("  %s: auth: %v\n", conn.Name(), err)
			continue
		}
		fmt.Printf("  %s: ok (%s)\n", conn.Name(), conn.URIPrefix())
	}
	if failures > 0 {
		logger.Warn("connection validation finished with failures", zap.Int("failures", failures))
		return fmt.Errorf("%d connection(s) failed validation", failures)
	}
	return nil
}
