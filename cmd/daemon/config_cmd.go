// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/version"
)

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pubsub config validate [--config config.yaml]")
	fmt.Fprintln(w, "  pubsub config dump [--config config.yaml]")
}

func parseConfigFlags(name string, args []string, stderr io.Writer) (string, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "config", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return "", false
	}
	return resolveConfigPath(strings.TrimSpace(file)), true
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	configPath, ok := parseConfigFlags("pubsub config validate", args, stderr)
	if !ok {
		return 2
	}

	if _, err := config.NewLoader(configPath, version.Version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describePath(configPath), err)
		return 1
	}

	fmt.Fprintf(stdout, "%s is valid\n", describePath(configPath))
	return 0
}

// runConfigDump prints the effective configuration (defaults + file + env) with secrets masked.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	configPath, ok := parseConfigFlags("pubsub config dump", args, stderr)
	if !ok {
		return 2
	}

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describePath(configPath), err)
		return 1
	}

	if err := config.WriteYAML(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}
	return 0
}

func describePath(p string) string {
	if p == "" {
		return "environment and defaults"
	}
	return p
}
