package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"todo-api/internal/mcptools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// stdout carries the protocol; keep logs on stderr.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:     "todo-mcp",
		Short:   "Expose the to-do API as MCP tools over stdio",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeout <= 0 {
				return fmt.Errorf("--timeout must be positive, got %s", timeout)
			}
			log.Printf("todo-mcp %s forwarding to %s", Version, baseURL)

			client := mcptools.NewClient(baseURL, timeout)
			return server.ServeStdio(mcptools.NewServer(client, Version))
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", getEnv("TODO_API_BASE_URL", mcptools.DefaultBaseURL), "Base URL of the to-do HTTP API")
	cmd.Flags().DurationVar(&timeout, "timeout", mcptools.DefaultTimeout, "Per-request timeout")

	return cmd
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
