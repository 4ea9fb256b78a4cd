/*
Package main is the entry point for the persona-mcp CLI.

persona-mcp stores prompt personas, suggests the best persona for a context
from keyword rules and past usage, and serves both over MCP.

Usage:

	persona-mcp [command]

Available Commands:

	serve       Run the MCP server (stdio transport)
	http        Serve the HTTP API backed by an MCP server child process
	list        List saved personas
	create      Create or replace a persona
	delete      Delete a persona
	suggest     Suggest the best persona for a context
	analytics   Inspect and manage persona usage analytics
	history     Inspect the activation history database
	version     Show version information

Examples:

	# Run as MCP server
	persona-mcp serve

	# Ask for a suggestion from the shell
	persona-mcp suggest "please explain how recursion works"
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/persona-mcp/internal/cli"
	"github.com/khanglvm/persona-mcp/internal/version"
)

func main() {
	rootCmd := cli.NewRootCmd()
	rootCmd.Version = version.Get().String()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
