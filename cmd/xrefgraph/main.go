// Command xrefgraph turns verse-level Bible cross-reference datasets into
// chapter-level graph artifacts and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/core/sqlite"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
	"github.com/FocuswithJustin/xrefgraph/internal/api"
	"github.com/FocuswithJustin/xrefgraph/internal/fileutil"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
	"github.com/FocuswithJustin/xrefgraph/internal/pipeline"
	"github.com/FocuswithJustin/xrefgraph/internal/source"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    kong.ConfigFlag `help:"YAML configuration file" type:"path" env:"XREFGRAPH_CONFIG"`
	LogLevel  string          `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error" env:"XREFGRAPH_LOG_LEVEL"`
	LogFormat string          `name:"log-format" help:"Log format (text, json)" default:"text" enum:"text,json" env:"XREFGRAPH_LOG_FORMAT"`
}

// CLI defines the command-line interface for xrefgraph.
type CLI struct {
	Globals

	Build   BuildCmd   `cmd:"" help:"Build graph, statistics and preview artifacts from a dataset"`
	Preview PreviewCmd `cmd:"" help:"Extract a preview script from a graph artifact"`
	Stats   StatsCmd   `cmd:"" help:"Compute statistics only"`
	Parse   ParseCmd   `cmd:"" help:"Parse verse reference tokens"`
	SQLite  SQLiteCmd  `cmd:"" name:"sqlite" help:"Export a graph artifact to SQLite"`
	Verify  VerifyCmd  `cmd:"" help:"Verify artifacts against their manifest"`
	Serve   ServeCmd   `cmd:"" help:"Serve artifacts over HTTP"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func (g *Globals) initLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// BuildCmd runs the full pipeline.
type BuildCmd struct {
	Input        string `short:"i" help:"Cross-reference dataset (.txt, .xml; .xz/.gz accepted)" default:"cross_references.txt" type:"path" env:"XREFGRAPH_INPUT"`
	Format       string `help:"Input format (auto, tsv, osis)" default:"auto" env:"XREFGRAPH_FORMAT"`
	Out          string `short:"o" help:"Output directory" default:"processed" type:"path" env:"XREFGRAPH_OUT"`
	GraphName    string `name:"graph-name" help:"Graph artifact file name" default:"graph_data.json"`
	StatsName    string `name:"stats-name" help:"Statistics artifact file name" default:"stats.json"`
	PreviewLimit int    `name:"preview-limit" help:"Connections kept in the preview" default:"200" env:"XREFGRAPH_PREVIEW_LIMIT"`
	PreviewOut   string `name:"preview-out" help:"Also write the preview script here" type:"path" env:"XREFGRAPH_PREVIEW_OUT"`
	SQLite       string `name:"sqlite" help:"Also export the graph to this SQLite database" type:"path" env:"XREFGRAPH_SQLITE"`
	SnapshotDir  string `name:"snapshot-dir" help:"Store every artifact in a content-addressed store" type:"path" env:"XREFGRAPH_SNAPSHOT_DIR"`
	NoManifest   bool   `name:"no-manifest" help:"Do not write manifest.json"`
}

func (c *BuildCmd) config() (pipeline.Config, error) {
	format, err := source.ParseFormat(c.Format)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Input:        c.Input,
		Format:       format,
		OutDir:       c.Out,
		GraphName:    c.GraphName,
		StatsName:    c.StatsName,
		PreviewOut:   c.PreviewOut,
		PreviewLimit: c.PreviewLimit,
		SQLitePath:   c.SQLite,
		SnapshotDir:  c.SnapshotDir,
		NoManifest:   c.NoManifest,
		Version:      version,
	}, nil
}

func (c *BuildCmd) Run(ctx context.Context, out io.Writer) error {
	if c.PreviewLimit <= 0 {
		return fmt.Errorf("--preview-limit must be positive")
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}

	sum, err := pipeline.Run(ctx, cfg, nil)
	if err != nil {
		return inputError(c.Input, err)
	}

	in := sum.Input
	fmt.Fprintf(out, "Parsed %d of %d lines (%d skipped, %d votes defaulted to 0)\n",
		in.Parsed, in.Lines, in.Skipped, in.BadVotes)
	fmt.Fprintf(out, "Graph: %d chapters, %d connections (%d dropped), %d book links\n",
		sum.Chapters, sum.Connections, sum.Dropped, sum.BookLinks)
	names := make([]string, 0, len(sum.Artifacts))
	for name := range sum.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := sum.Artifacts[name]
		size := "?"
		if n, err := fileutil.Size(path); err == nil {
			size = fileutil.HumanSize(n)
		}
		fmt.Fprintf(out, "  %-8s %s (%s)\n", name, path, size)
	}
	if sum.Preview != nil {
		fmt.Fprintf(out, "Preview: %s\n", sum.Preview)
	}
	if sum.RunID != "" {
		fmt.Fprintf(out, "Run: %s in %s\n", sum.RunID, sum.Duration.Round(time.Millisecond))
	}
	return nil
}

// inputError turns a missing dataset into the message users expect.
func inputError(input string, err error) error {
	if errors.Is(err, source.ErrDataFilesNotFound) {
		return fmt.Errorf("data files not found: %s", input)
	}
	return err
}

// PreviewCmd derives the preview script from an existing graph.
type PreviewCmd struct {
	Graph string `help:"Graph artifact" default:"processed/graph_data.json" type:"path" env:"XREFGRAPH_GRAPH"`
	Limit int    `short:"n" help:"Connections to keep" default:"200" env:"XREFGRAPH_PREVIEW_LIMIT"`
	Out   string `short:"o" help:"Preview script path" default:"js/preview-data.js" type:"path" env:"XREFGRAPH_PREVIEW_OUT"`
}

func (c *PreviewCmd) Run(out io.Writer) error {
	sum, err := pipeline.RunPreview(c.Graph, c.Limit, c.Out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s: %s\n", sum.Path, sum)
	return nil
}

// StatsCmd writes only stats.json.
type StatsCmd struct {
	Input  string `short:"i" help:"Cross-reference dataset" default:"cross_references.txt" type:"path" env:"XREFGRAPH_INPUT"`
	Format string `help:"Input format (auto, tsv, osis)" default:"auto" env:"XREFGRAPH_FORMAT"`
	Out    string `short:"o" help:"Output directory" default:"processed" type:"path" env:"XREFGRAPH_OUT"`
	Top    int    `help:"Books to print from each ranking" default:"5"`
}

func (c *StatsCmd) Run(ctx context.Context, out io.Writer) error {
	format, err := source.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	st, err := pipeline.RunStats(ctx, pipeline.Config{Input: c.Input, Format: format, OutDir: c.Out})
	if err != nil {
		return inputError(c.Input, err)
	}

	fmt.Fprintf(out, "Verse references:    %d\n", st.TotalVerseReferences)
	fmt.Fprintf(out, "Chapter connections: %d\n", st.TotalChapterConnections)
	d := st.TestamentDistribution
	fmt.Fprintf(out, "OT->OT %d  OT->NT %d  NT->OT %d  NT->NT %d\n", d.OTToOT, d.OTToNT, d.NTToOT, d.NTToNT)
	fmt.Fprintln(out, "Most referenced:")
	for i, b := range st.MostReferencedBooks {
		if i == c.Top {
			break
		}
		fmt.Fprintf(out, "  %-16s %d\n", b.Book, b.Count)
	}
	fmt.Fprintln(out, "Most referencing:")
	for i, b := range st.MostReferencingBooks {
		if i == c.Top {
			break
		}
		fmt.Fprintf(out, "  %-16s %d\n", b.Book, b.Count)
	}
	return nil
}

// ParseCmd prints how reference tokens resolve.
type ParseCmd struct {
	Tokens []string `arg:"" help:"Tokens such as Gen.1.1 or 1John.4.8"`
}

func (c *ParseCmd) Run(out io.Writer) error {
	failed := 0
	for _, tok := range c.Tokens {
		ref, err := xref.ParseToken(tok)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s\terror: %v\n", tok, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t(book %d, %s)\n", tok, ref.FullRef, ref.BookIndex, ref.Testament)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tokens did not parse", failed, len(c.Tokens))
	}
	return nil
}

// SQLiteCmd loads a graph artifact into a SQLite database.
type SQLiteCmd struct {
	Graph string `help:"Graph artifact" default:"processed/graph_data.json" type:"path" env:"XREFGRAPH_GRAPH"`
	DB    string `name:"db" required:"" help:"SQLite database path" type:"path" env:"XREFGRAPH_SQLITE"`
	Top   int    `help:"Print the heaviest connections after export" default:"0"`
}

func (c *SQLiteCmd) Run(ctx context.Context, out io.Writer) error {
	a, err := graph.Load(c.Graph)
	if err != nil {
		return err
	}
	counts, err := sqlite.Export(ctx, c.DB, a)
	if err != nil {
		return err
	}
	info := sqlite.GetInfo()
	fmt.Fprintf(out, "Exported %d books, %d chapters, %d connections, %d book links to %s (%s)\n",
		counts.Books, counts.Chapters, counts.Connections, counts.BookLinks, c.DB, info.DriverType)

	if c.Top <= 0 {
		return nil
	}
	db, err := sqlite.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	links, err := sqlite.TopConnections(ctx, db, c.Top)
	if err != nil {
		return err
	}
	for _, l := range links {
		fmt.Fprintf(out, "  %5d  %s -> %s\n", l.Weight, l.SourceLabel, l.TargetLabel)
	}
	return nil
}

// VerifyCmd re-fingerprints artifacts listed in a manifest.
type VerifyCmd struct {
	Manifest   string `help:"Manifest path" default:"processed/manifest.json" type:"path" env:"XREFGRAPH_MANIFEST"`
	CheckInput bool   `name:"check-input" help:"Also verify the input dataset"`
}

func (c *VerifyCmd) Run(out io.Writer) error {
	mm, err := pipeline.Verify(c.Manifest, c.CheckInput)
	if err != nil {
		return err
	}
	if len(mm) == 0 {
		fmt.Fprintf(out, "OK: all artifacts in %s match\n", c.Manifest)
		return nil
	}
	for _, m := range mm {
		fmt.Fprintf(out, "MISMATCH %s\n", m)
	}
	return fmt.Errorf("%d artifacts do not match %s", len(mm), c.Manifest)
}

// ServeCmd starts the artifact API.
type ServeCmd struct {
	Dir             string        `help:"Artifact directory" default:"processed" type:"path" env:"XREFGRAPH_OUT"`
	DataDir         string        `name:"data-dir" help:"Directory rebuild jobs may read datasets from" type:"path" env:"XREFGRAPH_DATA_DIR"`
	Input           string        `short:"i" help:"Dataset rebuilt by POST /jobs without an input" type:"path" env:"XREFGRAPH_INPUT"`
	Port            int           `short:"p" help:"HTTP port" default:"8080" env:"XREFGRAPH_PORT"`
	Watch           bool          `help:"Reload artifacts when the directory changes" env:"XREFGRAPH_WATCH"`
	RateLimit       int           `name:"rate-limit" help:"Requests per minute per client (0 disables)" default:"0" env:"XREFGRAPH_RATE_LIMIT"`
	RateBurst       int           `name:"rate-burst" help:"Rate limit burst size" default:"10" env:"XREFGRAPH_RATE_BURST"`
	APIKey          string        `name:"api-key" help:"Require this X-API-Key on non-public endpoints" env:"XREFGRAPH_API_KEY"`
	AllowedOrigins  []string      `name:"allowed-origins" help:"CORS and WebSocket origins (empty allows all)" env:"XREFGRAPH_ALLOWED_ORIGINS"`
	TLSCert         string        `name:"tls-cert" help:"TLS certificate file" type:"path" env:"XREFGRAPH_TLS_CERT"`
	TLSKey          string        `name:"tls-key" help:"TLS key file" type:"path" env:"XREFGRAPH_TLS_KEY"`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" help:"Graceful shutdown timeout" default:"10s"`
}

func (c *ServeCmd) config() api.Config {
	return api.Config{
		Port:              c.Port,
		Dir:               c.Dir,
		DataDir:           c.DataDir,
		Build:             pipeline.Config{Input: c.Input, Version: version},
		Watch:             c.Watch,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		Auth:              api.AuthConfig{Enabled: c.APIKey != "", APIKey: c.APIKey},
		TLS:               api.TLSConfig{Enabled: c.TLSCert != "", CertFile: c.TLSCert, KeyFile: c.TLSKey},
		AllowedOrigins:    c.AllowedOrigins,
		ShutdownTimeout:   c.ShutdownTimeout,
		Version:           version,
	}
}

func (c *ServeCmd) Run(ctx context.Context) error {
	srv, err := api.New(c.config())
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(out io.Writer) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(out, "xrefgraph version %s\n", version)
	fmt.Fprintf(out, "sqlite driver: %s (%s)\n", info.DriverName, info.DriverType)
	return nil
}

// newParser builds the kong parser with ctx and out bound for command Run
// methods.
func newParser(cli *CLI, ctx context.Context, out io.Writer, configPaths ...string) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("xrefgraph"),
		kong.Description("Bible cross-reference graph builder"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Configuration(yamlLoader, configPaths...),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

func main() {
	loadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(&cli, ctx, os.Stdout, defaultConfigPaths()...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	parser.FatalIfErrorf(cli.initLogging())

	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
