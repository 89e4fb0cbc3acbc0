package indexer

// The indexer sits between extraction and reporting. It aggregates facts
// from all files, builds the cross-file symbol table, runs the bound
// checks, and feeds the relational fact tables through the CUE contract
// and the OPA policy engine.
//
// The indexer does not work around extraction bugs. If data arriving here
// needs fixing up, the extractor is where the fix belongs; the CUE
// validator exists to make that class of bug loud instead of silent.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/snipe-tools/snipe/internal/checker"
	"github.com/snipe-tools/snipe/internal/config"
	"github.com/snipe-tools/snipe/internal/extractor"
	"github.com/snipe-tools/snipe/internal/facts"
	"github.com/snipe-tools/snipe/internal/policy"
	"github.com/snipe-tools/snipe/internal/symtab"
	"github.com/snipe-tools/snipe/internal/validator"
)

// Indexer is the cross-file linker that builds the symbol table and
// checks every array access against its authoritative definition.
type Indexer struct {
	// Configuration loaded from snipe.json
	Config *config.Config

	// Cross-file symbol table built from all extracted declarations
	Symbols *symtab.Table

	// Extracted facts from all files
	Facts []extractor.FileFacts

	// Resolved group information (file -> group mapping)
	FileGroups map[string]config.FileGroupInfo

	// Third-party files (for suppressing warnings)
	ThirdPartyFiles map[string]bool

	// Extra policy directory (builtin policies always apply)
	PolicyDir string

	// Progress output (lightweight, streaming)
	Progress bool

	// JSON output mode
	JSONOutput bool

	// Verbose dumps extracted declarations and accesses per file
	Verbose bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Optional extractor factory (for tests)
	extractorFactory func() FactsExtractor

	// Optional cache version override (for tests)
	cacheVersionOverride *cacheVersions
}

// LintResult is the structured result of running the linter.
// This can be serialized to JSON for programmatic consumption.
type LintResult struct {
	// Number of files that went through extraction
	FilesAnalyzed int `json:"files_analyzed"`

	// All diagnostics: bound checks, conflicts, drift, policy violations
	Diagnostics []checker.Diagnostic `json:"diagnostics"`

	// Summary counts
	Summary ResultSummary `json:"summary"`

	// Extraction statistics
	Stats ExtractionStats `json:"stats"`

	// Per-file breakdown
	Files []FileResult `json:"files"`

	// Parse errors encountered
	ParseErrors []ParseError `json:"parse_errors,omitempty"`
}

// ResultSummary provides aggregate diagnostic counts
type ResultSummary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// ExtractionStats provides counts of extracted elements
type ExtractionStats struct {
	Files     int `json:"files"`
	Arrays    int `json:"arrays"`
	Scalars   int `json:"scalars"`
	Functions int `json:"functions"`
	Accesses  int `json:"accesses"`
	Calls     int `json:"calls"`
	Symbols   int `json:"symbols"`
	Fallbacks int `json:"fallbacks"`
}

// FileResult provides per-file diagnostic counts
type FileResult struct {
	Path     string `json:"path"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
	Infos    int    `json:"infos"`
}

// ParseError represents a file that failed extraction entirely
type ParseError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// FactsExtractor abstracts extraction for caching tests
type FactsExtractor interface {
	Extract(path string) (extractor.FileFacts, error)
}

type cacheVersions struct {
	parser    string
	extractor string
}

// defaultSeverities maps each rule to the severity used when the config
// does not override it.
var defaultSeverities = map[string]string{
	checker.RuleArrayBounds:      checker.SeverityError,
	checker.RuleConflictingDecl:  checker.SeverityWarning,
	checker.RuleSignatureDrift:   checker.SeverityWarning,
	checker.RuleUnresolvedExtern: checker.SeverityInfo,
	checker.RuleUnverifiable:     checker.SeverityInfo,
}

// New creates a new Indexer with default configuration
func New() *Indexer {
	return &Indexer{
		Config:          config.DefaultConfig(),
		Symbols:         symtab.Build(nil),
		FileGroups:      make(map[string]config.FileGroupInfo),
		ThirdPartyFiles: make(map[string]bool),
	}
}

// NewWithConfig creates a new Indexer with the given configuration
func NewWithConfig(cfg *config.Config) *Indexer {
	idx := New()
	idx.Config = cfg
	return idx
}

func (idx *Indexer) newExtractor() FactsExtractor {
	if idx.extractorFactory != nil {
		return idx.extractorFactory()
	}
	return extractor.New()
}

func (idx *Indexer) cacheVersionInfo() cacheVersions {
	if idx.cacheVersionOverride != nil {
		return *idx.cacheVersionOverride
	}
	return computeCacheVersions()
}

// Run executes the full analysis pipeline
func (idx *Indexer) Run(rootPath string) error {
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}
	timing := newTimingRecorder(runStart, idx.resolveTimingPath(rootPath))
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()

	// 0. Load configuration if not already loaded
	if idx.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		idx.Config = cfg
	}

	// Reset per-run state
	idx.Facts = nil
	idx.FileGroups = make(map[string]config.FileGroupInfo)
	idx.ThirdPartyFiles = make(map[string]bool)

	// 1. Find all C files using configuration
	stepStart := time.Now()
	var files []string
	var err error

	if len(idx.Config.Groups) > 0 {
		groups, resolveErr := idx.Config.ResolveGroups(rootPath)
		if resolveErr != nil {
			return fmt.Errorf("resolve groups: %w", resolveErr)
		}

		fileSet := make(map[string]bool)
		for _, group := range groups {
			for _, f := range group.Files {
				if !fileSet[f] {
					fileSet[f] = true
					files = append(files, f)

					idx.FileGroups[f] = config.FileGroupInfo{
						GroupName:    group.Name,
						IsThirdParty: group.IsThirdParty,
					}

					if group.IsThirdParty {
						idx.ThirdPartyFiles[f] = true
					}
				}
			}
		}

		if !idx.JSONOutput {
			fmt.Printf("Loaded configuration with %d groups\n", len(groups))
			for _, group := range groups {
				thirdParty := ""
				if group.IsThirdParty {
					thirdParty = " (third-party)"
				}
				fmt.Printf("  %s: %d files%s\n", group.Name, len(group.Files), thirdParty)
			}
		}
	}

	// Fallback to directory scan if no files from config
	if len(files) == 0 {
		files, err = idx.findCFiles(rootPath)
		if err != nil {
			return fmt.Errorf("scanning files: %w", err)
		}
	}

	// Filter out ignored files
	var filteredFiles []string
	for _, f := range files {
		if !idx.Config.ShouldIgnoreFile(f) {
			filteredFiles = append(filteredFiles, f)
		}
	}
	files = filteredFiles
	sort.Strings(files)

	if !idx.JSONOutput {
		fmt.Printf("Found %d C files\n", len(files))
	}
	scanDuration := time.Since(stepStart)
	timing.RecordStage("scan", stepStart, scanDuration, "")

	// 2. Parallel extraction (with optional cache)
	stepStart = time.Now()
	var cache *factsCache
	var cacheDir string
	if cacheEnabled(idx.Config) {
		cacheDir = resolveCacheDir(rootPath, idx.Config)
		versions := idx.cacheVersionInfo()
		cache = newFactsCache(cacheDir, versions.parser, versions.extractor)
		if err := cache.Load(); err != nil {
			recordPipelineErr(fmt.Errorf("cache disabled: %w", err))
			cache = nil
		}
	}

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	progress := 0
	progressEnabled := idx.Progress && !idx.JSONOutput
	if progressEnabled {
		fmt.Printf("\n=== Extraction Progress ===\n")
	}
	factsChan := make(chan extractor.FileFacts, len(files))
	errChan := make(chan error, len(files))
	pipelineErrChan := make(chan error, len(files))

	// Bound concurrency if configured; otherwise one goroutine per file
	var sem chan struct{}
	if idx.Config.Analysis.MaxParallelFiles > 0 {
		sem = make(chan struct{}, idx.Config.Analysis.MaxParallelFiles)
	}

	for _, file := range files {
		wg.Add(1)
		go func(f string) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			fileStart := time.Now()
			var contentHash string
			if cache != nil {
				h, err := hashFile(f)
				if err != nil {
					errChan <- fmt.Errorf("%s: %w", f, err)
					return
				}
				contentHash = h
				if unit, ok, err := cache.Get(f, contentHash); err == nil && ok {
					factsChan <- unit
					fileDuration := time.Since(fileStart)
					timing.RecordFile("extract", f, "cache_hit", fileStart, fileDuration)
					if progressEnabled {
						emitProgress(&progressMu, &progress, len(files), unit, "cache hit", fileDuration)
					}
					return
				} else if err != nil {
					pipelineErrChan <- fmt.Errorf("cache read failed for %s: %w", f, err)
				}
			}

			// Each goroutine owns its extractor: a tree-sitter parser
			// carries mutable C state and must never be shared.
			unit, err := idx.newExtractor().Extract(f)
			if err != nil {
				errChan <- fmt.Errorf("%s: %w", f, err)
				return
			}
			if cache != nil && contentHash != "" {
				if err := cache.Put(f, contentHash, unit); err != nil {
					pipelineErrChan <- fmt.Errorf("cache write failed for %s: %w", f, err)
				}
			}
			fileDuration := time.Since(fileStart)
			timing.RecordFile("extract", f, "extracted", fileStart, fileDuration)
			if progressEnabled {
				emitProgress(&progressMu, &progress, len(files), unit, "extracted", fileDuration)
			}
			factsChan <- unit
		}(file)
	}

	wg.Wait()
	close(factsChan)
	close(errChan)
	close(pipelineErrChan)

	// Collect errors
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	for err := range pipelineErrChan {
		recordPipelineErr(err)
	}

	// Collect facts, deterministic order
	for unit := range factsChan {
		idx.Facts = append(idx.Facts, unit)
	}
	sort.Slice(idx.Facts, func(i, j int) bool { return idx.Facts[i].File < idx.Facts[j].File })
	if cache != nil {
		if err := cache.Save(); err != nil {
			recordPipelineErr(fmt.Errorf("cache save failed: %w", err))
		}
	}
	extractDuration := time.Since(stepStart)
	timing.RecordStage("extract", stepStart, extractDuration, "")

	// 3. Merge declarations into the cross-file symbol table
	stepStart = time.Now()
	idx.Symbols = symtab.Build(idx.Facts)
	mergeDuration := time.Since(stepStart)
	timing.RecordStage("merge", stepStart, mergeDuration, "")

	if idx.Verbose && !idx.JSONOutput {
		idx.printExtractionDump()
	}

	// 4. Run the deterministic cross-file checks
	stepStart = time.Now()
	diagnostics := checker.Run(idx.Facts, idx.Symbols)
	checkDuration := time.Since(stepStart)
	timing.RecordStage("check", stepStart, checkDuration, "")

	// 5. Build and validate relational fact tables
	stepStart = time.Now()
	factTables := facts.BuildTables(idx.Facts, idx.FileGroups, idx.ThirdPartyFiles, idx.buildSymbolRows())
	factsValidator, err := validator.NewFactsValidator()
	if err != nil {
		return fmt.Errorf("CRITICAL: Failed to initialize facts validator: %w", err)
	}
	if err := factsValidator.Validate(factTables); err != nil {
		return fmt.Errorf("CRITICAL: Fact table contract violation: %w", err)
	}
	factsValidateDuration := time.Since(stepStart)
	timing.RecordStage("facts_validate", stepStart, factsValidateDuration, "")

	// 6. Run policy evaluation and merge into the diagnostics
	stepStart = time.Now()
	policyEngine, err := policy.New(idx.PolicyDir)
	if err != nil {
		return fmt.Errorf("initialize policy engine: %w", err)
	}
	policyResult, err := policyEngine.Evaluate(factTables)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	for _, v := range policyResult.Violations {
		diagnostics = append(diagnostics, checker.Diagnostic{
			File:     v.File,
			Line:     v.Line,
			Severity: v.Severity,
			Rule:     v.Rule,
			Message:  v.Message,
		})
	}
	policyDuration := time.Since(stepStart)
	timing.RecordStage("policy", stepStart, policyDuration, "")

	// 7. Apply config severities and third-party suppression
	diagnostics = idx.applyConfig(diagnostics)
	checker.Sort(diagnostics)

	// 8. Build and emit the result
	lintResult := LintResult{
		FilesAnalyzed: len(idx.Facts),
		Diagnostics:   diagnostics,
		ParseErrors:   []ParseError{},
		Files:         []FileResult{},
		Stats:         idx.buildStats(factTables),
	}
	for _, e := range errs {
		lintResult.ParseErrors = append(lintResult.ParseErrors, ParseError{
			Message: e.Error(),
		})
	}
	summarize(&lintResult)

	if idx.JSONOutput {
		outputValidator, err := validator.NewOutputValidator()
		if err != nil {
			return fmt.Errorf("CRITICAL: Failed to initialize output validator: %w", err)
		}
		if err := outputValidator.Validate(lintResult); err != nil {
			return fmt.Errorf("CRITICAL: Output contract violation: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(lintResult); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		idx.printText(lintResult)
	}

	if idx.Progress && !idx.JSONOutput {
		fmt.Printf("\n=== Timing Summary ===\n")
		fmt.Printf("  scan:    %s\n", formatDuration(scanDuration))
		fmt.Printf("  extract: %s\n", formatDuration(extractDuration))
		fmt.Printf("  merge:   %s\n", formatDuration(mergeDuration))
		fmt.Printf("  check:   %s\n", formatDuration(checkDuration))
		fmt.Printf("  facts:   %s\n", formatDuration(factsValidateDuration))
		fmt.Printf("  policy:  %s\n", formatDuration(policyDuration))
		fmt.Printf("  total:   %s\n", formatDuration(time.Since(runStart)))
	}
	timing.RecordStage("total", runStart, time.Since(runStart), "")

	if len(pipelineErrs) > 0 {
		return fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return nil
}

// applyConfig drops disabled rules, applies configured severities, and
// suppresses non-error diagnostics in third-party files.
func (idx *Indexer) applyConfig(diagnostics []checker.Diagnostic) []checker.Diagnostic {
	out := make([]checker.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		if !idx.Config.IsRuleEnabled(d.Rule) {
			continue
		}
		defaultSeverity := d.Severity
		if s, ok := defaultSeverities[d.Rule]; ok {
			defaultSeverity = s
		}
		severity := idx.Config.GetRuleSeverity(d.Rule, defaultSeverity)
		if severity == "off" {
			continue
		}
		d.Severity = severity
		if idx.ThirdPartyFiles[d.File] && d.Severity != checker.SeverityError {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (idx *Indexer) buildStats(tables facts.Tables) ExtractionStats {
	fallbacks := 0
	for _, unit := range idx.Facts {
		if unit.UsedFallback {
			fallbacks++
		}
	}
	return ExtractionStats{
		Files:     len(tables.Files),
		Arrays:    len(tables.Arrays),
		Scalars:   len(tables.Scalars),
		Functions: len(tables.Functions),
		Accesses:  len(tables.Accesses),
		Calls:     len(tables.Calls),
		Symbols:   idx.Symbols.Len(),
		Fallbacks: fallbacks,
	}
}

func (idx *Indexer) buildSymbolRows() []facts.SymbolRow {
	if idx.Symbols == nil {
		return nil
	}
	symbols := idx.Symbols.All()
	rows := make([]facts.SymbolRow, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, facts.SymbolRow{
			Name:       sym.Name,
			Kind:       sym.Kind,
			File:       sym.DefFile,
			Line:       sym.DefLine,
			ExternOnly: sym.ExternOnly,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name == rows[j].Name {
			return rows[i].File < rows[j].File
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func summarize(result *LintResult) {
	fileResults := make(map[string]*FileResult)
	for _, d := range result.Diagnostics {
		fr, ok := fileResults[d.File]
		if !ok {
			fr = &FileResult{Path: d.File}
			fileResults[d.File] = fr
		}
		switch d.Severity {
		case checker.SeverityError:
			result.Summary.Errors++
			fr.Errors++
		case checker.SeverityWarning:
			result.Summary.Warnings++
			fr.Warnings++
		default:
			result.Summary.Infos++
			fr.Infos++
		}
	}
	paths := make([]string, 0, len(fileResults))
	for path := range fileResults {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		result.Files = append(result.Files, *fileResults[path])
	}
}

func (idx *Indexer) printText(result LintResult) {
	if len(result.Diagnostics) > 0 {
		fmt.Printf("\n=== Diagnostics ===\n")
		for _, d := range result.Diagnostics {
			icon := "ℹ"
			if d.Severity == checker.SeverityError {
				icon = "✗"
			} else if d.Severity == checker.SeverityWarning {
				icon = "⚠"
			}
			fmt.Printf("%s [%s] %s:%d - %s\n", icon, d.Rule, d.File, d.Line, d.Message)
		}
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("  Errors:   %d\n", result.Summary.Errors)
	fmt.Printf("  Warnings: %d\n", result.Summary.Warnings)
	fmt.Printf("  Info:     %d\n", result.Summary.Infos)

	fmt.Printf("\n=== Extraction ===\n")
	fmt.Printf("  Files:     %d\n", result.Stats.Files)
	fmt.Printf("  Arrays:    %d\n", result.Stats.Arrays)
	fmt.Printf("  Scalars:   %d\n", result.Stats.Scalars)
	fmt.Printf("  Functions: %d\n", result.Stats.Functions)
	fmt.Printf("  Accesses:  %d\n", result.Stats.Accesses)
	fmt.Printf("  Symbols:   %d\n", result.Stats.Symbols)
	if result.Stats.Fallbacks > 0 {
		fmt.Printf("  Fallbacks: %d\n", result.Stats.Fallbacks)
	}

	if len(result.ParseErrors) > 0 {
		fmt.Printf("\n=== Parse Errors ===\n")
		for _, e := range result.ParseErrors {
			fmt.Printf("  %s\n", e.Message)
		}
	}
}

// printExtractionDump lists every extracted declaration and subscript
// per file, before any checking. Useful when a missing diagnostic traces
// back to extraction rather than the checker.
func (idx *Indexer) printExtractionDump() {
	fmt.Printf("\n=== Extracted Facts ===\n")
	for _, unit := range idx.Facts {
		fmt.Printf("\n%s", unit.File)
		if unit.UsedFallback {
			fmt.Printf(" (regex fallback)")
		}
		fmt.Printf("\n")
		for _, d := range unit.Declarations {
			switch d.Kind {
			case extractor.KindArray:
				size := "?"
				if d.HasSize {
					size = fmt.Sprintf("%d", d.Size)
				} else if d.SizeText != "" {
					size = d.SizeText
				}
				fmt.Printf("  array    %s %s[%s] (line %d)\n", d.Type, d.Name, size, d.Line)
			case extractor.KindFunction:
				fmt.Printf("  function %s %s(%d params) (line %d)\n", d.Type, d.Name, d.Params, d.Line)
			default:
				fmt.Printf("  scalar   %s %s (line %d)\n", d.Type, d.Name, d.Line)
			}
			if d.IsExtern {
				fmt.Printf("           extern\n")
			}
		}
		for _, s := range unit.Subscripts {
			if s.IndexKnown {
				fmt.Printf("  access   %s[%d] (line %d)\n", s.Symbol, s.Index, s.Line)
			} else {
				fmt.Printf("  access   %s[%s] unknown index (line %d)\n", s.Symbol, s.IndexText, s.Line)
			}
		}
		for _, c := range unit.Calls {
			if c.Args >= 0 {
				fmt.Printf("  call     %s(%d args) (line %d)\n", c.Callee, c.Args, c.Line)
			}
		}
	}
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (idx *Indexer) findCFiles(root string) ([]string, error) {
	var files []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".c" || ext == ".h" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func emitProgress(mu *sync.Mutex, progress *int, total int, unit extractor.FileFacts, status string, duration time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	*progress = *progress + 1
	fmt.Printf("  [%d/%d] %s (%s, %s)\n", *progress, total, unit.File, status, formatDuration(duration))
	fmt.Printf("    facts: declarations=%d accesses=%d calls=%d includes=%d\n",
		len(unit.Declarations), len(unit.Subscripts), len(unit.Calls), len(unit.Includes))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2fm", d.Minutes())
	default:
		return fmt.Sprintf("%.2fh", d.Hours())
	}
}
