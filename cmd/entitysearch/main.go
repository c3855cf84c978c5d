package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prismet/entitysearch/internal/config"
	"github.com/prismet/entitysearch/internal/index"
	"github.com/prismet/entitysearch/internal/search"
	"github.com/prismet/entitysearch/internal/storage"
	"github.com/prismet/entitysearch/pkg/model"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "entitysearch",
		Usage:   "index entities and run substring searches with faceted counts",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "database path (overrides config)",
				EnvVars: []string{"ENTITYSEARCH_DB_PATH"},
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			suggestCommand(),
			sizeCommand(),
			clearCommand(),
			infoCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, opens the backend and wires the service. The
// returned cleanup closes everything.
func setup(c *cli.Context) (*search.Service, *zap.Logger, config.Config, func(), error) {
	var cfg config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, nil, cfg, nil, err
		}
	} else {
		cfg = config.Default()
	}
	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, cfg, nil, err
	}

	backend, err := storage.NewSQLiteBackend(cfg.Database.Path)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, cfg, nil, err
	}

	svc := search.NewService(backend, serviceConfig(cfg), logger)

	cleanup := func() {
		_ = backend.Close()
		_ = logger.Sync()
	}
	return svc, logger, cfg, cleanup, nil
}

// serviceConfig maps the loaded configuration onto the search service.
func serviceConfig(cfg config.Config) search.Config {
	return search.Config{
		SearchableFields:    cfg.Search.SearchableFields,
		HighlightStartTag:   cfg.Search.HighlightStartTag,
		HighlightEndTag:     cfg.Search.HighlightEndTag,
		ClearBatchSize:      cfg.Search.ClearBatchSize,
		SuggestionCacheSize: cfg.Search.SuggestionCacheSize,
		SuggestionCacheTTL:  time.Duration(cfg.Search.SuggestionCacheTTLSec) * time.Second,
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	// stdout carries command output; logs go to stderr
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// entitySpec is the JSON shape the index command reads: one source entity
// with its field values.
type entitySpec struct {
	Class       string           `json:"class"`
	Type        string           `json:"type,omitempty"`
	ID          any              `json:"id"`
	Fields      map[string]any   `json:"fields"`
	MultiFields map[string][]any `json:"multi_fields,omitempty"`
}

func (e *entitySpec) EntityClass() string { return e.Class }
func (e *entitySpec) EntityID() any       { return e.ID }

func (e *entitySpec) IndexEntity(doc model.Document) error {
	if e.Type != "" {
		doc.SetEntityType(e.Type)
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := doc.AddField(name, e.Fields[name]); err != nil {
			return err
		}
	}
	multiNames := make([]string, 0, len(e.MultiFields))
	for name := range e.MultiFields {
		multiNames = append(multiNames, name)
	}
	sort.Strings(multiNames)
	for _, name := range multiNames {
		for _, value := range e.MultiFields[name] {
			if err := doc.AddMultiValueField(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "index entities from a JSON file",
		ArgsUsage: "<entities.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one entities file")
			}
			svc, _, cfg, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			var specs []*entitySpec
			if err := json.Unmarshal(data, &specs); err != nil {
				return fmt.Errorf("failed to parse entities file: %w", err)
			}
			entities := make([]index.Entity, len(specs))
			for i, spec := range specs {
				entities[i] = spec
			}

			idx := index.New(svc, nil)
			stats, err := idx.IndexAll(c.Context, entities, &index.Config{
				Workers:   cfg.Indexer.Workers,
				BatchSize: cfg.Indexer.BatchSize,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Indexed: %d\n", stats.EntitiesIndexed)
			fmt.Printf("Failed:  %d\n", stats.EntitiesFailed)
			fmt.Printf("Took:    %s\n", stats.Duration)
			for _, msg := range stats.ErrorMessages {
				fmt.Printf("  error: %s\n", msg)
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search the index",
		ArgsUsage: "<term>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "facet",
				Usage: "facet filter as field=value, repeatable",
			},
			&cli.StringSliceFlag{
				Name:  "use-facet",
				Usage: "facet aggregates to compute (default: all)",
			},
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: 10},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one search term")
			}
			svc, _, _, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()

			query := model.NewQuery(c.Args().First())
			for _, raw := range c.StringSlice("facet") {
				field, value, ok := strings.Cut(raw, "=")
				if !ok {
					return fmt.Errorf("invalid facet filter %q, expected field=value", raw)
				}
				query.WithFacet(field, value)
			}
			if c.IsSet("use-facet") {
				query.WithUsedFacets(c.StringSlice("use-facet")...)
			}

			result, err := svc.Search(c.Context, query)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Println("the active backend does not support search")
				return nil
			}

			page, err := result.Paginate(c.Context, c.Int("page"), c.Int("page-size"))
			if err != nil {
				return err
			}

			fmt.Printf("%d results (page %d/%d)\n", page.TotalItems, page.Page, page.TotalPages())
			for _, doc := range page.Items {
				id, _ := doc.EntityID()
				fmt.Printf("- [%s] %v", doc.EntityType(), id)
				if title := doc.FieldValue(model.FieldTitle); title != nil {
					fmt.Printf("  %v", title)
				}
				fmt.Println()
				if excerpt, ok := result.Excerpt(doc); ok {
					fmt.Printf("  %s\n", excerpt)
				}
			}

			if facets := result.Facets(); facets != nil && facets.Len() > 0 {
				fmt.Println("facets:")
				for _, field := range facets.FieldNames() {
					fmt.Printf("  %s:\n", field)
					for _, facet := range facets.Facets(field) {
						fmt.Printf("    %v (%d)\n", facet.DisplayValue, facet.Count)
					}
				}
			}
			return nil
		},
	}
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "autocomplete a partial search term",
		ArgsUsage: "<term>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Value: 10, Usage: "maximum suggestions"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one term")
			}
			svc, _, _, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()

			suggestions, err := svc.Autocomplete(c.Context, c.Args().First(), c.Int("max"))
			if err != nil {
				return err
			}
			for _, s := range suggestions {
				fmt.Println(s)
			}
			return nil
		},
	}
}

func sizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "size",
		Usage: "print the number of indexed documents",
		Action: func(c *cli.Context) error {
			svc, _, _, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()

			size, err := svc.IndexSize(c.Context)
			if err != nil {
				return err
			}
			fmt.Println(size)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "delete all indexed documents",
		Action: func(c *cli.Context) error {
			svc, logger, _, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.ClearIndex(c.Context); err != nil {
				return err
			}
			logger.Info("index cleared")
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "print build information",
		Action: func(c *cli.Context) error {
			fmt.Printf("entitysearch %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", storage.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
			return nil
		},
	}
}
