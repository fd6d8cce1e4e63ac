// Command worship converts Bible text between its source schemas and the
// canonical nested index, and looks verses up in the result.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/worship-direct/core/cache"
	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/ir"
	"github.com/FocuswithJustin/worship-direct/core/lookup"
	"github.com/FocuswithJustin/worship-direct/core/normalize"
	"github.com/FocuswithJustin/worship-direct/internal/config"
	"github.com/FocuswithJustin/worship-direct/internal/ipc"
	"github.com/FocuswithJustin/worship-direct/internal/library"
	"github.com/FocuswithJustin/worship-direct/internal/logging"
	"github.com/FocuswithJustin/worship-direct/internal/source"
	"github.com/FocuswithJustin/worship-direct/internal/store"
	"github.com/FocuswithJustin/worship-direct/internal/validation"
)

const version = "0.4.0"

// stdout receives command results. Logs go to stderr.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// CLI defines the command-line interface for worship.
var CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Configuration file" type:"path" env:"WORSHIP_CONFIG"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" env:"WORSHIP_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" env:"WORSHIP_LOG_FORMAT"`

	Convert  ConvertCmd  `cmd:"" help:"Convert a Bible source file to the canonical nested index"`
	Lookup   LookupCmd   `cmd:"" help:"Look up one verse"`
	Suggest  SuggestCmd  `cmd:"" help:"List stored verses of a book or chapter"`
	Shell    ShellCmd    `cmd:"" help:"Interactive lookup session"`
	Serve    ServeCmd    `cmd:"" help:"Answer msgpack lookup requests on stdin/stdout"`
	Versions VersionsCmd `cmd:"" help:"List versions in the data directory"`
	Books    BooksCmd    `cmd:"" help:"List canonical book names"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// ConvertCmd normalizes a source file and writes the canonical index.
type ConvertCmd struct {
	Input  string `arg:"" optional:"" help:"Source file (default <data_dir>/kjv.json)" type:"path"`
	Out    string `short:"o" help:"Output path (default <input>_nested.json or .db)" type:"path"`
	From   string `help:"Source schema" enum:"auto,flat,tabular,tabular-xml,canonical" default:"auto"`
	To     string `help:"Output kind" enum:"json,sqlite" default:"json"`
	Strict bool   `help:"Fail when any record is skipped"`
}

func (c *ConvertCmd) Run(cfg *config.Config) error {
	ctx := logging.WithRunID(context.Background(), logging.NewRunID())
	start := time.Now()

	input := c.Input
	if input == "" {
		input = filepath.Join(cfg.Convert.DataDir, "kjv.json")
	}
	format, err := normalize.ParseFormat(c.From)
	if err != nil {
		return err
	}

	output := c.Out
	if output == "" {
		ext := ".json"
		if c.To == "sqlite" {
			ext = ".db"
		}
		if output, err = validation.DerivedOutput(input, library.NestedSuffix, ext); err != nil {
			return fmt.Errorf("invalid input path: %w", err)
		}
	}
	if err := validation.ValidatePath(output); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if sameFile(input, output) {
		return fmt.Errorf("output %s would overwrite the input", output)
	}

	logging.ConversionStart(ctx, input, output, string(format), "to", c.To)

	n := newNormalizer(cfg, func(done, total int) {
		logging.ConversionProgress(ctx, done, total)
	})
	idx, report, err := library.Load(ctx, input, n, format)
	if err != nil {
		logging.ErrorContext(ctx, "conversion_failed", "input", input, "kind", string(errors.KindOf(err)), "error", err)
		return err
	}
	for _, s := range report.Skips {
		logging.RecordSkipped(ctx, s.Record, string(s.Kind), s.Reason)
	}
	if (c.Strict || cfg.Convert.Strict) && report.Skipped() > 0 {
		return fmt.Errorf("%d records skipped in strict mode: %w", report.Skipped(), report.Err())
	}

	digest, err := idx.Digest()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	switch c.To {
	case "sqlite":
		if err := store.Save(ctx, output, idx, map[string]string{store.MetaSource: input}); err != nil {
			return fmt.Errorf("failed to write database: %w", err)
		}
	default:
		data, err := idx.CanonicalBytes()
		if err != nil {
			return fmt.Errorf("failed to encode index: %w", err)
		}
		if err := source.WriteAtomic(output, data); err != nil {
			return err
		}
	}

	books := len(idx.Books())
	logging.ConversionSummary(ctx, books, idx.Len(), report.Skipped(), time.Since(start),
		"duplicates", report.Duplicates, "digest", digest)

	fmt.Fprintf(stdout, "Converted: %s (%s)\n", input, report.Format)
	fmt.Fprintf(stdout, "  Output: %s\n", output)
	fmt.Fprintf(stdout, "  Books: %d\n", books)
	fmt.Fprintf(stdout, "  Verses: %d\n", idx.Len())
	fmt.Fprintf(stdout, "  Skipped: %d\n", report.Skipped())
	if report.Duplicates > 0 {
		fmt.Fprintf(stdout, "  Duplicates: %d\n", report.Duplicates)
	}
	fmt.Fprintf(stdout, "  BLAKE3: %s\n", digest)
	return nil
}

// LookupCmd resolves a reference and prints the verse or suggestions.
type LookupCmd struct {
	Source    string   `arg:"" help:"Version name in the data directory, source file or verse database"`
	Reference []string `arg:"" help:"Reference, e.g. John 3:16"`
	Limit     int      `help:"Suggestions on a miss (default from config)"`
	JSON      bool     `name:"json" help:"Print the result as JSON"`
}

func (c *LookupCmd) Run(cfg *config.Config) error {
	ctx := logging.WithRunID(context.Background(), logging.NewRunID())

	svc, err := openService(ctx, cfg, c.Source, c.Limit)
	if err != nil {
		return err
	}
	query := strings.Join(c.Reference, " ")
	res, err := svc.Lookup(query)
	if err != nil {
		return err
	}
	if !res.Found {
		logging.LookupMiss(ctx, query, len(res.Suggestions))
	}

	if c.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(stdout, res)
	}

	if !res.Found {
		return errors.NewNotFound("verse", res.Ref.String())
	}
	return nil
}

// SuggestCmd lists the first stored references of a book or chapter.
type SuggestCmd struct {
	Source  string `arg:"" help:"Version name in the data directory, source file or verse database"`
	Book    string `arg:"" help:"Book name (quote names with spaces)"`
	Chapter int    `arg:"" optional:"" help:"Chapter number; omit to walk the whole book"`
	Limit   int    `help:"Maximum suggestions (default from config)"`
}

func (c *SuggestCmd) Run(cfg *config.Config) error {
	ctx := logging.WithRunID(context.Background(), logging.NewRunID())

	if c.Chapter < 0 {
		return errors.NewReference(fmt.Sprintf("%s %d", c.Book, c.Chapter), "chapter must not be negative")
	}
	svc, err := openService(ctx, cfg, c.Source, c.Limit)
	if err != nil {
		return err
	}
	refs, err := svc.Suggest(c.Book, c.Chapter)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		fmt.Fprintln(stdout, ref)
	}
	if len(refs) == 0 {
		return errors.NewNotFound("verses", strings.TrimSpace(fmt.Sprintf("%s %s", c.Book, chapterLabel(c.Chapter))))
	}
	return nil
}

func chapterLabel(ch int) string {
	if ch == 0 {
		return ""
	}
	return fmt.Sprint(ch)
}

// BooksCmd lists registry books, optionally completing a prefix.
type BooksCmd struct {
	Prefix string `arg:"" optional:"" help:"Name prefix to complete"`
}

func (c *BooksCmd) Run() error {
	reg := ir.DefaultRegistry()

	books := reg.Books()
	if c.Prefix != "" {
		books = reg.Complete(c.Prefix)
		if len(books) == 0 {
			return errors.NewNotFound("book", c.Prefix)
		}
	}
	for _, b := range books {
		fmt.Fprintf(stdout, "%2d  %-16s %-5s %s\n", b.ID, b.Name, b.OSIS, b.Testament)
	}
	return nil
}

// VersionsCmd lists the versions found in the data directory.
type VersionsCmd struct{}

func (c *VersionsCmd) Run(cfg *config.Config) error {
	versions, err := openLibrary(cfg).Versions()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return errors.NewNotFound("versions", cfg.Convert.DataDir)
	}
	for _, v := range versions {
		fmt.Fprintf(stdout, "%-8s %s\n", v.Name, v.Path)
	}
	return nil
}

// ShellCmd reads references from standard input until EOF or :quit.
type ShellCmd struct {
	Source string `arg:"" optional:"" default:"kjv" help:"Version or source file to start with"`
	Limit  int    `help:"Suggestions on a miss (default from config)"`
	Prompt bool   `default:"true" negatable:"" help:"Print a prompt before each line"`
}

const shellHelp = `Enter a reference such as "John 3:16", or:
  :version NAME         switch to another version or source file
  :versions             list versions in the data directory
  :suggest BOOK [CH]    list stored verses of a book or chapter
  :quit                 leave the session
`

func (c *ShellCmd) Run(cfg *config.Config) error {
	ctx := logging.WithRunID(context.Background(), logging.NewRunID())
	lib := openLibrary(cfg)

	loaded, err := lib.Open(ctx, c.Source)
	if err != nil {
		return err
	}
	limit := c.Limit
	if limit <= 0 {
		limit = cfg.Lookup.SuggestionLimit
	}
	svc := lookup.New(loaded.Index, limit)
	current := c.Source

	scanner := bufio.NewScanner(stdin)
	for {
		if c.Prompt {
			fmt.Fprintf(stdout, "%s> ", current)
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, ":") {
			res, err := svc.Lookup(line)
			if err != nil {
				fmt.Fprintf(stdout, "Error: %v\n", err)
				continue
			}
			if !res.Found {
				logging.LookupMiss(ctx, line, len(res.Suggestions))
			}
			printResult(stdout, res)
			continue
		}

		cmd, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "q", "quit", "exit":
			return nil
		case "h", "help":
			fmt.Fprint(stdout, shellHelp)
		case "v", "version":
			if arg == "" {
				fmt.Fprintf(stdout, "Using %s (%s)\n", current, loaded.Path)
				continue
			}
			next, err := lib.Open(ctx, arg)
			if err != nil {
				fmt.Fprintf(stdout, "Error: %v\n", err)
				continue
			}
			svc.Swap(next.Index)
			loaded, current = next, arg
			fmt.Fprintf(stdout, "Using %s (%d verses)\n", current, next.Index.Len())
		case "versions":
			versions, err := lib.Versions()
			if err != nil {
				fmt.Fprintf(stdout, "Error: %v\n", err)
				continue
			}
			for _, v := range versions {
				fmt.Fprintf(stdout, "%-8s %s\n", v.Name, v.Path)
			}
		case "s", "suggest":
			book, chapter := splitChapter(arg)
			refs, err := svc.Suggest(book, chapter)
			if err != nil {
				fmt.Fprintf(stdout, "Error: %v\n", err)
				continue
			}
			for _, ref := range refs {
				fmt.Fprintln(stdout, ref)
			}
		default:
			fmt.Fprintf(stdout, "Unknown command :%s\n", cmd)
		}
	}
	if c.Prompt {
		fmt.Fprintln(stdout)
	}

	s := lib.Stats()
	logging.DebugContext(ctx, "shell_closed", "loads", s.Loads, "hits", s.Hits)
	return scanner.Err()
}

// ServeCmd answers msgpack requests for editor and tool integrations.
type ServeCmd struct {
	Source string `arg:"" optional:"" default:"kjv" help:"Version or source file to start with"`
	Limit  int    `help:"Suggestions on a miss (default from config)"`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	ctx := logging.WithRunID(context.Background(), logging.NewRunID())
	lib := openLibrary(cfg)

	loaded, err := lib.Open(ctx, c.Source)
	if err != nil {
		return err
	}
	limit := c.Limit
	if limit <= 0 {
		limit = cfg.Lookup.SuggestionLimit
	}
	srv := ipc.NewServer(lookup.New(loaded.Index, limit), lib, c.Source, stdin, stdout)
	return srv.Serve(ctx)
}

// splitChapter separates a trailing chapter number from a book name.
// "1 John 3" gives ("1 John", 3); "1 John" gives ("1 John", 0).
func splitChapter(s string) (string, int) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return s, 0
	}
	ch, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || ch < 1 {
		return s, 0
	}
	return strings.Join(fields[:len(fields)-1], " "), ch
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "worship version %s\n", version)
	return nil
}

// Helper functions

// loadSettings layers flags and environment over the config file and
// starts the logger.
func loadSettings() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Log.Format = CLI.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.InitLogger(logging.ParseLevel(cfg.Log.Level), logging.ParseFormat(cfg.Log.Format))
	return cfg, nil
}

func newNormalizer(cfg *config.Config, progress func(done, total int)) *normalize.Normalizer {
	opts := []normalize.Option{normalize.WithMarker(cfg.Convert.Marker)}
	if progress != nil && cfg.Convert.ProgressEvery > 0 {
		opts = append(opts, normalize.WithProgress(cfg.Convert.ProgressEvery, progress))
	}
	if cfg.Convert.UnregisteredBooks {
		opts = append(opts, normalize.WithUnregisteredBooks())
	}
	return normalize.New(nil, opts...)
}

// openLibrary returns the version library under the configured data directory.
func openLibrary(cfg *config.Config) *library.Library {
	return library.New(cfg.Convert.DataDir, newNormalizer(cfg, nil), cache.DefaultConfig())
}

// openService loads a version or source file into a lookup service.
func openService(ctx context.Context, cfg *config.Config, src string, limit int) (*lookup.Service, error) {
	loaded, err := openLibrary(cfg).Open(ctx, src)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = cfg.Lookup.SuggestionLimit
	}
	return lookup.New(loaded.Index, limit), nil
}

// printResult writes a lookup result the way the lookup command shows it.
func printResult(w io.Writer, res *lookup.Result) {
	if res.Found {
		fmt.Fprintf(w, "%s %s\n", res.Ref, res.Text)
		return
	}
	fmt.Fprintf(w, "Verse not found: %s\n", res.Ref)
	if len(res.Suggestions) > 0 {
		fmt.Fprintln(w, "Did you mean:")
		for _, ref := range res.Suggestions {
			fmt.Fprintf(w, "  %s\n", ref)
		}
	}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("worship"),
		kong.Description("Worship Direct - Bible verse conversion and lookup"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	cfg, err := loadSettings()
	ctx.FatalIfErrorf(err)
	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
}
