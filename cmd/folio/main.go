// Command folio is the CLI tool for CedarPress.
// It provides commands for generating translation-helps documents,
// querying the translations catalog, inspecting the run ledger, and
// serving the REST API.
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/antchfx/htmlquery"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarPress/core/catalog"
	"github.com/FocuswithJustin/CedarPress/core/document"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/fetch"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/core/resource"
	"github.com/FocuswithJustin/CedarPress/core/typeset"
	"github.com/FocuswithJustin/CedarPress/internal/api"
	"github.com/FocuswithJustin/CedarPress/internal/ledger"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

const version = "0.2.0"

// CLI defines the command-line interface for folio.
var CLI struct {
	// Global flags
	LogLevel  string `help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"info" env:"FOLIO_LOG_LEVEL"`
	LogFormat string `help:"Log format (json, text)" enum:"json,text" default:"text" env:"FOLIO_LOG_FORMAT"`

	// Command groups (noun-first organization)
	Document DocumentGroup `cmd:"" help:"Document generation and verification"`
	Catalog  CatalogGroup  `cmd:"" help:"Translations catalog queries"`
	Ledger   LedgerGroup   `cmd:"" help:"Run ledger queries"`
	Serve    ServeGroup    `cmd:"" help:"Long-running servers"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// DocumentGroup contains document lifecycle operations.
type DocumentGroup struct {
	Generate GenerateCmd `cmd:"" help:"Generate a composite helps document"`
	Verify   VerifyCmd   `cmd:"" help:"Verify a generated document's links and digest"`
}

// CatalogGroup contains catalog listing operations.
type CatalogGroup struct {
	Languages LanguagesCmd `cmd:"" help:"List languages in the catalog"`
	Types     TypesCmd     `cmd:"" help:"List resource types for a language"`
	Codes     CodesCmd     `cmd:"" help:"List resource codes for a language and type"`
	Refresh   RefreshCmd   `cmd:"" help:"Refetch the catalog snapshot"`
}

// LedgerGroup contains run history operations.
type LedgerGroup struct {
	List ListRunsCmd `cmd:"" help:"List recorded document runs"`
	Show ShowRunCmd  `cmd:"" help:"Show one recorded run"`
}

// ServeGroup contains server commands.
type ServeGroup struct {
	API ServeAPICmd `cmd:"" name:"api" help:"Start the REST API server"`
}

// GenerateCmd generates a composite helps document.
type GenerateCmd struct {
	Lang     string   `short:"l" help:"Language code for a single-resource request"`
	Type     string   `short:"t" help:"Resource type for a single-resource request"`
	Code     string   `short:"c" help:"Book code for a single-resource request"`
	Resource []string `short:"r" help:"Resource as lang:type:code (repeatable)"`
	Strategy string   `help:"Assembly strategy (book_order, verse_interleave)" default:"book_order" env:"FOLIO_STRATEGY"`

	WorkingDir   string        `help:"Directory for provisioned resources (default: $TMPDIR/folio/working)" env:"FOLIO_WORKING_DIR" type:"path"`
	OutputDir    string        `help:"Directory for finished documents (default: $TMPDIR/folio/output)" env:"FOLIO_OUTPUT_DIR" type:"path"`
	CatalogURL   string        `help:"Translations catalog URL" env:"FOLIO_CATALOG_URL"`
	FetchTimeout time.Duration `help:"Per-fetch network timeout" default:"300s" env:"FOLIO_FETCH_TIMEOUT"`

	PDF             bool   `help:"Run the typesetter and produce a PDF"`
	TypesetCommand  string `help:"Typesetter binary" default:"pandoc" env:"FOLIO_TYPESET_COMMAND"`
	TypesetEngine   string `help:"PDF engine handed to the typesetter" default:"xelatex" env:"FOLIO_TYPESET_ENGINE"`
	TypesetTemplate string `help:"LaTeX template path" env:"FOLIO_TYPESET_TEMPLATE" type:"path"`

	Ledger   string `help:"Run ledger database path (default: $TMPDIR/folio/runs.db)" env:"FOLIO_LEDGER" type:"path"`
	NoLedger bool   `help:"Skip recording the run in the ledger"`
}

// buildRequest assembles the document request from the flag forms. The
// single-triple flags and the repeatable --resource flag combine in
// order, single triple first.
func (c *GenerateCmd) buildRequest() (model.DocumentRequest, error) {
	var resources []model.ResourceRequest
	if c.Lang != "" || c.Type != "" || c.Code != "" {
		if c.Lang == "" || c.Type == "" || c.Code == "" {
			return model.DocumentRequest{}, fmt.Errorf("--lang, --type, and --code must be given together")
		}
		resources = append(resources, model.ResourceRequest{Lang: c.Lang, Type: c.Type, Code: c.Code})
	}
	for _, spec := range c.Resource {
		rr, err := parseResourceSpec(spec)
		if err != nil {
			return model.DocumentRequest{}, err
		}
		resources = append(resources, rr)
	}
	if len(resources) == 0 {
		return model.DocumentRequest{}, fmt.Errorf("no resources requested: use --lang/--type/--code or --resource")
	}
	strategy, err := model.ParseStrategy(c.Strategy)
	if err != nil {
		return model.DocumentRequest{}, err
	}
	return model.DocumentRequest{Resources: resources, Strategy: strategy, PDF: c.PDF}, nil
}

func (c *GenerateCmd) Run() error {
	req, err := c.buildRequest()
	if err != nil {
		return err
	}

	base := defaultBaseDir()
	workingDir := c.WorkingDir
	if workingDir == "" {
		workingDir = filepath.Join(base, "working")
	}
	outputDir := c.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(base, "output")
	}

	catCfg := catalog.DefaultConfig()
	if c.CatalogURL != "" {
		catCfg.URL = c.CatalogURL
	}

	fetchCfg := fetch.DefaultConfig()
	if c.FetchTimeout > 0 {
		fetchCfg.Timeout = c.FetchTimeout
	}

	deps := document.Deps{
		Resolver:    catalog.New(catCfg),
		Provisioner: fetch.NewProvisioner(fetchCfg),
		Progress:    printProgress,
	}
	if c.PDF {
		deps.Typesetter = typeset.New(typeset.Config{
			Command:  c.TypesetCommand,
			Engine:   c.TypesetEngine,
			Template: c.TypesetTemplate,
		})
	}
	if !c.NoLedger {
		ledgerPath := c.Ledger
		if ledgerPath == "" {
			ledgerPath = filepath.Join(base, "runs.db")
		}
		store, err := ledger.Open(ledgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer store.Close()
		deps.Recorder = store
	}

	gen, err := document.New(document.Config{WorkingDir: workingDir, OutputDir: outputDir}, deps)
	if err != nil {
		return err
	}

	fmt.Printf("Generating document: %s\n", req.Key())
	fin, err := gen.Run(context.Background(), req)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Document ready: %s\n", fin.Key)
	fmt.Printf("  HTML: %s\n", fin.HTMLPath)
	if fin.PDFPath != "" {
		fmt.Printf("  PDF:  %s\n", fin.PDFPath)
	}
	if len(fin.Unfound) > 0 {
		fmt.Println("  Unfound resources:")
		for _, rr := range fin.Unfound {
			fmt.Printf("    - %s\n", rr.Spec())
		}
	}
	if len(fin.BadLinks) > 0 {
		fmt.Printf("  Unresolved links: %d\n", len(fin.BadLinks))
		for _, l := range fin.BadLinks {
			fmt.Printf("    - %s\n", l)
		}
	}
	return nil
}

// VerifyCmd verifies a generated document: every internal link must have
// a matching anchor, and when the run ledger recorded a digest for the
// document key, the file on disk must still match it.
type VerifyCmd struct {
	Path   string `arg:"" help:"Generated HTML document to verify" type:"existingfile"`
	Ledger string `help:"Ledger database to check the recorded digest against" env:"FOLIO_LEDGER" type:"path"`
}

func (c *VerifyCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := htmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	anchors := make(map[string]bool)
	for _, n := range htmlquery.Find(doc, "//*[@id]") {
		anchors[htmlquery.SelectAttr(n, "id")] = true
	}

	counts := make(map[string]int)
	var dangling []string
	internal := 0
	for _, a := range htmlquery.Find(doc, "//a[@href]") {
		href := htmlquery.SelectAttr(a, "href")
		if !strings.HasPrefix(href, "#") {
			continue
		}
		internal++
		target := strings.TrimPrefix(href, "#")
		if anchors[target] {
			continue
		}
		if counts[target] == 0 {
			dangling = append(dangling, target)
		}
		counts[target]++
	}

	fmt.Printf("Document: %s\n", c.Path)
	fmt.Printf("  Anchors: %d\n", len(anchors))
	fmt.Printf("  Internal links: %d\n", internal)

	if c.Ledger != "" {
		if err := c.checkDigest(data); err != nil {
			return err
		}
	}

	if len(dangling) == 0 {
		fmt.Println("\nVerification passed!")
		return nil
	}

	fmt.Println()
	for _, target := range dangling {
		fmt.Printf("  [FAIL] #%s (%d reference(s))\n", target, counts[target])
	}
	return fmt.Errorf("verification failed: %d dangling link target(s)", len(dangling))
}

// checkDigest compares the file contents against the digest the ledger
// recorded for the document key (the file's base name).
func (c *VerifyCmd) checkDigest(data []byte) error {
	store, err := ledger.Open(c.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	key := strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
	run, err := store.Get(context.Background(), key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			fmt.Printf("  Ledger: no run recorded for %s\n", key)
			return nil
		}
		return err
	}

	h := blake3.New()
	h.Write(data)
	digest := hex.EncodeToString(h.Sum(nil))

	if run.Digest != "" && digest != run.Digest {
		fmt.Printf("  Digest:   %s\n", digest)
		fmt.Printf("  Recorded: %s\n", run.Digest)
		return fmt.Errorf("digest mismatch: document does not match the recorded run")
	}
	fmt.Printf("  Digest: %s (matches ledger)\n", digest)
	return nil
}

// LanguagesCmd lists languages in the catalog.
type LanguagesCmd struct {
	URL   string `help:"Translations catalog URL" env:"FOLIO_CATALOG_URL"`
	Names bool   `help:"Include display names"`
}

func (c *LanguagesCmd) Run() error {
	cat := newCatalog(c.URL)
	ctx := context.Background()

	if c.Names {
		pairs, err := cat.LanguageNames(ctx)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			fmt.Printf("%-10s %s\n", p.Code, p.Name)
		}
		fmt.Printf("\nTotal: %d language(s)\n", len(pairs))
		return nil
	}

	codes, err := cat.Languages(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		fmt.Println(code)
	}
	fmt.Printf("\nTotal: %d language(s)\n", len(codes))
	return nil
}

// TypesCmd lists resource types for a language.
type TypesCmd struct {
	Lang string `required:"" help:"Language code"`
	URL  string `help:"Translations catalog URL" env:"FOLIO_CATALOG_URL"`
}

func (c *TypesCmd) Run() error {
	cat := newCatalog(c.URL)
	types, err := cat.Types(context.Background(), c.Lang)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		fmt.Printf("No resource types in the catalog for %s\n", c.Lang)
		fmt.Printf("Types the pipeline accepts: %s\n", strings.Join(resource.Types(), ", "))
		return nil
	}
	for _, t := range types {
		fmt.Println(t)
	}
	fmt.Printf("\nTotal: %d type(s)\n", len(types))
	return nil
}

// CodesCmd lists resource codes for a language and type.
type CodesCmd struct {
	Lang string `required:"" help:"Language code"`
	Type string `required:"" help:"Resource type"`
	URL  string `help:"Translations catalog URL" env:"FOLIO_CATALOG_URL"`
}

func (c *CodesCmd) Run() error {
	cat := newCatalog(c.URL)
	codes, err := cat.Codes(context.Background(), c.Lang, c.Type)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		fmt.Printf("No resource codes in the catalog for %s/%s\n", c.Lang, c.Type)
		return nil
	}
	for _, code := range codes {
		fmt.Println(code)
	}
	fmt.Printf("\nTotal: %d code(s)\n", len(codes))
	return nil
}

// RefreshCmd refetches the catalog snapshot.
type RefreshCmd struct {
	URL string `help:"Translations catalog URL" env:"FOLIO_CATALOG_URL"`
}

func (c *RefreshCmd) Run() error {
	cat := newCatalog(c.URL)
	if err := cat.Refresh(context.Background()); err != nil {
		return err
	}
	fmt.Println("Catalog snapshot refreshed.")
	return nil
}

// ListRunsCmd lists recorded document runs.
type ListRunsCmd struct {
	Ledger string `help:"Ledger database path (default: $TMPDIR/folio/runs.db)" env:"FOLIO_LEDGER" type:"path"`
	Limit  int    `help:"Maximum runs to list" default:"20"`
}

func (c *ListRunsCmd) Run() error {
	store, err := openLedger(c.Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-40s %-15s %-20s %10s\n", "KEY", "STATUS", "STARTED", "DURATION")
	for _, run := range runs {
		fmt.Printf("%-40s %-15s %-20s %8dms\n",
			run.Key, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), run.DurationMS)
	}
	fmt.Printf("\nTotal: %d run(s)\n", len(runs))
	return nil
}

// ShowRunCmd shows one recorded run.
type ShowRunCmd struct {
	Key    string `arg:"" help:"Document key"`
	Ledger string `help:"Ledger database path (default: $TMPDIR/folio/runs.db)" env:"FOLIO_LEDGER" type:"path"`
	JSON   bool   `help:"Output as JSON"`
}

func (c *ShowRunCmd) Run() error {
	store, err := openLedger(c.Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(context.Background(), c.Key)
	if err != nil {
		return err
	}

	if c.JSON {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Run: %s\n", run.Key)
	fmt.Printf("  Status: %s\n", run.Status)
	fmt.Printf("  HTML: %s\n", run.HTMLPath)
	if run.PDFPath != "" {
		fmt.Printf("  PDF: %s\n", run.PDFPath)
	}
	if run.Digest != "" {
		fmt.Printf("  Digest: %s\n", run.Digest)
	}
	fmt.Printf("  Started: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Printf("  Duration: %dms\n", run.DurationMS)
	if len(run.Unfound) > 0 {
		fmt.Println("  Unfound resources:")
		for _, rr := range run.Unfound {
			fmt.Printf("    - %s\n", rr.Spec())
		}
	}
	if len(run.BadLinks) > 0 {
		fmt.Println("  Unresolved links:")
		for _, l := range run.BadLinks {
			fmt.Printf("    - %s\n", l)
		}
	}
	return nil
}

// ServeAPICmd starts the REST API server.
type ServeAPICmd struct {
	Host string `help:"Listen host (empty binds all interfaces)" env:"FOLIO_HOST"`
	Port int    `help:"Listen port" default:"8090" env:"FOLIO_PORT"`

	WorkingDir string `help:"Directory for provisioned resources" env:"FOLIO_WORKING_DIR" type:"path"`
	OutputDir  string `help:"Directory for finished documents" env:"FOLIO_OUTPUT_DIR" type:"path"`
	Ledger     string `help:"Run ledger database path" env:"FOLIO_LEDGER" type:"path"`

	CatalogURL   string        `help:"Translations catalog URL" env:"FOLIO_CATALOG_URL"`
	CatalogTTL   time.Duration `help:"Catalog snapshot lifetime" default:"1h" env:"FOLIO_CATALOG_TTL"`
	FetchTimeout time.Duration `help:"Per-fetch network timeout" default:"300s" env:"FOLIO_FETCH_TIMEOUT"`

	TypesetCommand  string `help:"Typesetter binary (empty disables PDF output)" default:"pandoc" env:"FOLIO_TYPESET_COMMAND"`
	TypesetEngine   string `help:"PDF engine handed to the typesetter" default:"xelatex" env:"FOLIO_TYPESET_ENGINE"`
	TypesetTemplate string `help:"LaTeX template path" env:"FOLIO_TYPESET_TEMPLATE" type:"path"`

	APIKey         string   `help:"Require this API key on every request" env:"FOLIO_API_KEY"`
	RateLimit      int      `help:"Requests per minute per client (0 disables)" env:"FOLIO_RATE_LIMIT"`
	RateLimitBurst int      `help:"Rate limit burst size" default:"10"`
	AllowedOrigins []string `help:"CORS allowed origins (empty allows all)"`
	TLSCert        string   `help:"TLS certificate file" type:"path"`
	TLSKey         string   `help:"TLS private key file" type:"path"`
}

func (c *ServeAPICmd) Run() error {
	cfg := api.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	if c.WorkingDir != "" {
		cfg.WorkingDir = c.WorkingDir
	}
	if c.OutputDir != "" {
		cfg.OutputDir = c.OutputDir
	}
	if c.Ledger != "" {
		cfg.LedgerPath = c.Ledger
	}
	if c.CatalogURL != "" {
		cfg.CatalogURL = c.CatalogURL
	}
	cfg.CatalogTTL = c.CatalogTTL
	cfg.FetchTimeout = c.FetchTimeout
	cfg.TypesetCommand = c.TypesetCommand
	cfg.TypesetEngine = c.TypesetEngine
	cfg.TypesetTemplate = c.TypesetTemplate
	cfg.RateLimitRequests = c.RateLimit
	cfg.RateLimitBurst = c.RateLimitBurst
	cfg.AllowedOrigins = c.AllowedOrigins
	cfg.Auth = api.AuthConfig{Enabled: c.APIKey != "", APIKey: c.APIKey}
	cfg.TLS = api.TLSConfig{
		Enabled:  c.TLSCert != "" && c.TLSKey != "",
		CertFile: c.TLSCert,
		KeyFile:  c.TLSKey,
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	return server.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("folio version %s\n", version)
	return nil
}

// Helper functions

// defaultBaseDir is where CLI runs keep their working state when no
// directories are given.
func defaultBaseDir() string {
	return filepath.Join(os.TempDir(), "folio")
}

// parseResourceSpec parses a "lang:type:code" resource flag.
func parseResourceSpec(spec string) (model.ResourceRequest, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return model.ResourceRequest{}, fmt.Errorf("invalid resource %q (want lang:type:code)", spec)
	}
	return model.ResourceRequest{Lang: parts[0], Type: parts[1], Code: parts[2]}, nil
}

func newCatalog(url string) *catalog.Client {
	cfg := catalog.DefaultConfig()
	if url != "" {
		cfg.URL = url
	}
	return catalog.New(cfg)
}

func openLedger(path string) (*ledger.Store, error) {
	if path == "" {
		path = filepath.Join(defaultBaseDir(), "runs.db")
	}
	return ledger.Open(path)
}

// printProgress writes pipeline stage transitions to the terminal.
func printProgress(stage, resource string, percent int) {
	if resource != "" {
		fmt.Printf("  [%3d%%] %-10s %s\n", percent, stage, resource)
		return
	}
	fmt.Printf("  [%3d%%] %s\n", percent, stage)
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseLogFormat(s string) logging.Format {
	if s == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("folio"),
		kong.Description("CedarPress - Bible translation helps document generator"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(parseLogLevel(CLI.LogLevel), parseLogFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
