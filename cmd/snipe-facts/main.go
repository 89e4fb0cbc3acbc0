package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/snipe-tools/snipe/internal/config"
	"github.com/snipe-tools/snipe/internal/facts"
	"github.com/snipe-tools/snipe/internal/indexer"
)

func main() {
	output := flag.String("output", "", "write facts JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write facts JSON to file (shorthand)")
	deltaFrom := flag.String("delta-from", "", "previous facts JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	group := flag.String("group", "", "restrict output to files in the named group")
	graphOut := flag.String("graph", "", "write the symbol-reference graph JSON to file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: snipe-facts [--output file] [--group name] [--graph graph.json] [--delta-from prev.json --delta-out delta.json] <path>")
		os.Exit(1)
	}

	path := args[0]
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	idx := indexer.NewWithConfig(cfg)

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	oldStdout := os.Stdout
	os.Stdout = devNull
	runErr := idx.Run(path)
	_ = devNull.Close()
	os.Stdout = oldStdout
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}

	symbolRows := make([]facts.SymbolRow, 0)
	for _, sym := range idx.Symbols.All() {
		symbolRows = append(symbolRows, facts.SymbolRow{
			Name:       sym.Name,
			Kind:       sym.Kind,
			File:       sym.DefFile,
			Line:       sym.DefLine,
			ExternOnly: sym.ExternOnly,
		})
	}

	tables := facts.BuildTables(idx.Facts, idx.FileGroups, idx.ThirdPartyFiles, symbolRows)

	var groupFiles map[string]bool
	if *group != "" {
		groupFiles = make(map[string]bool)
		for file, info := range idx.FileGroups {
			if info.GroupName == *group {
				groupFiles[file] = true
			}
		}
		if len(groupFiles) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no files in group %q\n", *group)
			os.Exit(1)
		}
		tables = facts.FilterTablesByFiles(tables, groupFiles)
	}

	if *output != "" {
		if err := writeJSON(*output, tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing facts: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding facts: %v\n", err)
			os.Exit(1)
		}
	}

	if *graphOut != "" {
		if err := writeJSON(*graphOut, facts.BuildGraph(tables)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing graph: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readTables(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := facts.ComputeDelta(prev, tables)
		if groupFiles != nil {
			delta = facts.FilterDeltaByFiles(delta, groupFiles)
		}
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
