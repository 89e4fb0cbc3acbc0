// snipe - static bounds checker for C
//
// The pipeline:
//   1. Tree-sitter parses C into a syntax tree
//   2. Extractor pulls out declarations, subscripts, and calls
//   3. Symbol table merges declarations across files; first definition wins
//   4. Bound checker compares every constant index against the
//      authoritative array size
//   5. CUE validates the fact tables, OPA evaluates the policy rules
//   6. Diagnostics are reported with file/line locations and the defining
//      file of the symbol involved
//
// When investigating false positives, start at the beginning of the
// pipeline, not the end: extraction issues before checker issues.

package main

import (
	"fmt"
	"os"

	"github.com/snipe-tools/snipe/internal/config"
	"github.com/snipe-tools/snipe/internal/indexer"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	opts := options{}
	args := os.Args[1:]
	var path string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "init":
			runInit()
			return
		case "-h", "--help", "help":
			printUsage()
			return
		case "-j", "--json":
			opts.jsonOutput = true
		case "-v", "--verbose":
			opts.verbose = true
		case "--progress":
			opts.progress = true
		case "--timing":
			opts.timing = true
		case "-c", "--config":
			if i+1 >= len(args) {
				printUsage()
				os.Exit(1)
			}
			i++
			opts.configPath = args[i]
		case "-p", "--policies":
			if i+1 >= len(args) {
				printUsage()
				os.Exit(1)
			}
			i++
			opts.policyDir = args[i]
		default:
			path = args[i]
		}
	}

	if path == "" {
		printUsage()
		os.Exit(1)
	}
	runLint(path, opts)
}

type options struct {
	configPath string
	policyDir  string
	jsonOutput bool
	verbose    bool
	progress   bool
	timing     bool
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: snipe [command] [options] <path>

Commands:
  init              Create a snipe.json configuration file
  <path>            Check C files in the given path

Options:
  -j, --json        Emit machine-readable JSON instead of text
  -v, --verbose     Dump extracted declarations and accesses per file
  --progress        Stream per-file extraction progress
  --timing          Write timing.jsonl next to the project
  -c, --config      Specify config file: snipe -c config.json <path>
  -p, --policies    Directory with extra .rego policy files
  -h, --help        Show this help message

Configuration:
  snipe looks for configuration in:
    1. ./snipe.json
    2. ./.snipe.json
    3. ~/.config/snipe/config.json

  Run 'snipe init' to create a default configuration file.`)
}

func runInit() {
	configPath := "snipe.json"

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Component group file patterns")
	fmt.Println("  - Third-party file detection")
	fmt.Println("  - Rule severities")
}

func runLint(path string, opts options) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", opts.configPath, err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			fmt.Printf("Warning: Could not load config: %v (using defaults)\n", err)
			cfg = config.DefaultConfig()
		}
	}

	idx := indexer.NewWithConfig(cfg)
	idx.JSONOutput = opts.jsonOutput
	idx.Verbose = opts.verbose
	idx.Progress = opts.progress
	idx.Timing = opts.timing
	idx.PolicyDir = opts.policyDir
	if err := idx.Run(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
