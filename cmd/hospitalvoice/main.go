package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/DreamCats/hospitalvoice/cmd/hospitalvoice/internal"
	"github.com/DreamCats/hospitalvoice/internal/config"
)

// main 启动 hospitalvoice 命令行工具，解析全局参数并执行对应子命令。
// 若参数无效或缺少子命令则打印用法并退出。
func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	configPath := ""
	args := os.Args[1:]

	validSubcommands := map[string]bool{
		"init":  true,
		"build": true,
		"query": true,
		"find":  true,
		"stats": true,
		"serve": true,
		"mcp":   true,
	}

	// Find the subcommand (first non-flag argument that is a valid subcommand)
	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	// Parse global flags (before subcommand)
	globalFlags := args
	if subcommandIndex >= 0 {
		globalFlags = args[:subcommandIndex]
	}
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		switch flag {
		case "-config", "--config":
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		case "-h", "-help", "--help":
			internal.PrintUsage()
			os.Exit(0)
		case "-v", "-version", "--version":
			fmt.Printf("hospitalvoice version %s\n", internal.Version)
			os.Exit(0)
		default:
			if strings.HasPrefix(flag, "-") {
				fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
				internal.PrintUsage()
				os.Exit(1)
			}
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	if subcommand == "init" {
		handleInit(configPath, subcommandArgs)
		return
	}

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		if config.IsConfigNotFound(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			internal.PrintConfigExample()
			os.Exit(1)
		}
		log.Fatalf("Failed to load config: %v\n", err)
	}

	if subcommand == "build" || subcommand == "serve" {
		if err := internal.SetupLogging(subcommand); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
		}
	}

	switch subcommand {
	case "build":
		handleBuild(cfg, subcommandArgs)
	case "query":
		handleQuery(cfg, subcommandArgs)
	case "find":
		handleFind(cfg, subcommandArgs)
	case "stats":
		handleStats(cfg, subcommandArgs)
	case "serve":
		handleServe(cfg, subcommandArgs)
	case "mcp":
		handleMCP(cfg, subcommandArgs)
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", subcommand)
		internal.PrintUsage()
		os.Exit(1)
	}
}
