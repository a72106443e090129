package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/deletion"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/search"
	"github.com/urfave/cli/v2"
)

// systemOptions are passed to every ragline.Open.
var systemOptions []ragline.Option

func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data"); dir != "" {
		cfg.Storage.Path = dir
	}
	return cfg, nil
}

func openSystem(c *cli.Context) (*ragline.System, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	sys, err := ragline.Open(c.Context, cfg, systemOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to open ragline: %w", err)
	}
	return sys, nil
}

func callerGroups(c *cli.Context) ([]string, error) {
	groups := deletion.ParseGroups(c.String("groups"))
	if len(groups) == 0 {
		return nil, fmt.Errorf("--groups is required")
	}
	return groups, nil
}

func initCommand(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := config.Save(path, config.Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	inbox := c.String("inbox")
	if inbox == "" {
		inbox = sys.Config().Watch.Inbox
	}
	if c.Bool("no-watch") {
		inbox = ""
	}
	return sys.Serve(ctx, inbox)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()
	if err := sys.Pipeline().Subscribe(ctx, sys.Bus()); err != nil {
		return err
	}

	group := c.String("group")
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		filename := filepath.Base(path)
		result, err := sys.Ingest(ctx, group, filename, data)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		pid := ingestion.ProcessingIDOf(result)
		if !c.Bool("no-wait") {
			if err := sys.Settle(ctx, result); err != nil {
				return fmt.Errorf("processing %s: %w", path, err)
			}
		}
		fmt.Fprintf(c.App.Writer, "%s/%s %s\n", group, filename, pid)
	}
	return nil
}

func queryText(c *cli.Context) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("a query is required")
	}
	return text, nil
}

func retrieveCommand(c *cli.Context) error {
	text, err := queryText(c)
	if err != nil {
		return err
	}
	g, err := core.ParseGranularity(c.String("granularity"))
	if err != nil {
		return err
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	q := search.NewQuery(text, c.String("group"))
	q.Granularity = g
	q.Tolerance = sys.Config().Retrieval.Tolerance
	if c.IsSet("tolerance") {
		q.Tolerance = c.Float64("tolerance")
	}
	q.MaxHits = c.Int("max-hits")

	matches, err := sys.Retrieve(c.Context, q)
	if err != nil {
		return err
	}
	printMatches(c, matches)
	return nil
}

func printMatches(c *cli.Context, matches []search.Match) {
	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(matches))
	for i, m := range matches {
		marker := ""
		if m.Verbatim {
			marker = " *"
		}
		fmt.Fprintf(c.App.Writer, "%d: %s [%0.3f]%s\n%s\n\n", i, m.Chunk.Filename, m.Score, marker, m.Chunk.Text)
	}
}

func askCommand(c *cli.Context) error {
	text, err := queryText(c)
	if err != nil {
		return err
	}
	g, err := core.ParseGranularity(c.String("granularity"))
	if err != nil {
		return err
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	answer, err := sys.Ask(c.Context, chat.Request{
		SessionID:   c.String("session"),
		Query:       text,
		Group:       c.String("group"),
		Granularity: g,
	})
	if err != nil {
		return err
	}
	if answer.StandaloneQuery != text {
		fmt.Fprintf(c.App.ErrWriter, "Searched for: %s\n", answer.StandaloneQuery)
	}
	fmt.Fprintln(c.App.Writer, answer.Text)
	return nil
}

func documentsCommand(c *cli.Context) error {
	groups, err := callerGroups(c)
	if err != nil {
		return err
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	docs, err := sys.Deletion().List(c.Context, groups)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%.1f KB\t%s\n", d.Group, d.Filename, d.SizeKB, d.ProcessingID)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	groups, err := callerGroups(c)
	if err != nil {
		return err
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	id, err := sys.Deletion().Delete(c.Context, groups, c.String("group"), c.Args().First())
	if err != nil {
		return err
	}
	return waitExecution(c, sys, id)
}

func waitExecution(c *cli.Context, sys *ragline.System, id string) error {
	exec, err := sys.Engine().Wait(c.Context, id)
	if err != nil {
		return err
	}
	if err := printJSON(c, exec); err != nil {
		return err
	}
	if exec.Status != core.StatusSucceeded {
		return fmt.Errorf("execution %s %s", id, exec.Status)
	}
	return nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func executionCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("an execution id is required")
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	exec, err := sys.Engine().Describe(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(c, exec)
}

func resumeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("an execution id is required")
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()
	if err := sys.Pipeline().Subscribe(c.Context, sys.Bus()); err != nil {
		return err
	}

	id := c.Args().First()
	if err := sys.Engine().Resume(c.Context, id); err != nil {
		return err
	}
	return waitExecution(c, sys, id)
}

func promptGetCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("a prompt name is required")
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	text, err := sys.Chat().Prompts().Get(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, text)
	return nil
}

func promptSetCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a prompt name is required")
	}
	name := c.Args().First()
	text := strings.Join(c.Args().Tail(), " ")
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text = string(data)
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()
	return sys.Chat().Prompts().Set(c.Context, name, text)
}

func reembedGranularities(value string) ([]core.Granularity, error) {
	if strings.EqualFold(value, "all") {
		return []core.Granularity{core.GranularitySmall, core.GranularityLarge}, nil
	}
	g, err := core.ParseGranularity(value)
	if err != nil {
		return nil, err
	}
	return []core.Granularity{g}, nil
}

func reembedCommand(c *cli.Context) error {
	granularities, err := reembedGranularities(c.String("granularity"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r := &cfg.Reembed
	if c.IsSet("batch-size") {
		r.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("report-interval") {
		r.ReportInterval = c.Int("report-interval")
	}
	if c.IsSet("max-retries") {
		r.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		r.RetryDelay = c.Duration("retry-delay")
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if r.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if r.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	sys, err := ragline.Open(ctx, cfg, systemOptions...)
	if err != nil {
		return fmt.Errorf("failed to open ragline: %w", err)
	}
	defer sys.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	reembedder := sys.NewReembedder(c.App.ErrWriter)
	for _, g := range granularities {
		n, err := reembedder.Run(ctx, g)
		if err != nil {
			return fmt.Errorf("reembedding %s failed: %w", g, err)
		}
		fmt.Fprintf(c.App.Writer, "%s: %d rows reembedded\n", g, n)
	}
	return nil
}
