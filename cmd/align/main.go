// Command align runs a full trait-alignment batch: it loads the
// vocabulary, property catalog, and source items, streams the items
// through the matching pipeline, and writes the mapping set, edge
// templates, and status log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/microbetraits/traitalign/engine/compose"
	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/graph"
	"github.com/microbetraits/traitalign/engine/match"
	"github.com/microbetraits/traitalign/engine/pipeline"
	"github.com/microbetraits/traitalign/engine/semantic"
	"github.com/microbetraits/traitalign/engine/sssom"
	"github.com/microbetraits/traitalign/engine/termindex"
	"github.com/microbetraits/traitalign/pkg/metrics"
	"github.com/microbetraits/traitalign/pkg/ollama"
)

var met = metrics.New()

func main() {
	var (
		vocabPath   = flag.String("vocab", "vocabulary.tsv", "vocabulary TSV")
		catalogPath = flag.String("catalog", "", "property catalog TSV (enables composed-trait resolution)")
		itemsPath   = flag.String("items", "items.tsv", "source items TSV")
		metaPath    = flag.String("meta", "", "mapping set metadata YAML")
		outPath     = flag.String("out", "mappings.sssom.tsv", "mapping set output")
		edgesPath   = flag.String("edges", "edge_templates.tsv", "edge template output")
		statusPath  = flag.String("status", "status.tsv", "per-item status log output")

		useEmbed   = flag.Bool("embed", false, "enable the embedding nearest-neighbor strategy")
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		model      = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "traitalign", "Qdrant collection name")

		fuzzyThreshold = flag.Int("fuzzy-threshold", 85, "minimum fuzzy similarity ratio (0-100)")
		fuzzyTopK      = flag.Int("fuzzy-top-k", 3, "fuzzy candidates kept per item")
		embedTopN      = flag.Int("embed-top-n", 5, "embedding neighbors retrieved per item")
		genericRefs    = flag.String("generic-refs", "", "comma-separated generic references excluded from the primary shared-reference pass")
		noFallback     = flag.Bool("no-generic-fallback", false, "disable the low-confidence generic-reference fallback")

		natsURL     = flag.String("nats", "", "NATS URL for status events (empty disables)")
		neo4jURL    = flag.String("neo4j", "", "Neo4j bolt URL for graph sync (empty disables)")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "", "Neo4j password")
		metricsPort = flag.Int("metrics-port", 9094, "metrics port (0 disables)")
	)
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *metricsPort > 0 {
		met.ServeAsync(*metricsPort)
	}

	meta := sssom.Meta{MappingSetID: "urn:traitalign:local-run", Tool: "traitalign"}
	if *metaPath != "" {
		m, err := sssom.LoadMeta(*metaPath)
		if err != nil {
			fatal(log, "load meta", err)
		}
		meta = m
	}

	terms, err := loadTerms(*vocabPath, log)
	if err != nil {
		fatal(log, "load vocabulary", err)
	}
	index := termindex.New(terms)
	log.Info("vocabulary loaded", "terms", index.Len())

	opts := match.DefaultOptions()
	opts.FuzzyThreshold = *fuzzyThreshold
	opts.FuzzyTopK = *fuzzyTopK
	opts.EmbedTopN = *embedTopN
	opts.GenericFallback = !*noFallback
	for _, ref := range strings.Split(*genericRefs, ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			opts.GenericRefs = append(opts.GenericRefs, ref)
		}
	}
	gen := match.NewGenerator(index, opts, log)

	if *useEmbed {
		store, err := semantic.New(*qdrantAddr, *collection)
		if err != nil {
			fatal(log, "qdrant connect", err)
		}
		defer store.Close()
		embedder := ollama.New(*ollamaURL, *model, ollama.DefaultOptions())
		embedOpts := match.DefaultEmbedOpts()
		embedOpts.TopN = *embedTopN
		gen.UseEmbedding(match.NewEmbedStrategy(embedder, store, embedOpts, log))
		log.Info("embedding strategy enabled", "model", *model, "collection", *collection)
	}

	var composer *compose.Resolver
	if *catalogPath != "" {
		table, err := loadCatalog(*catalogPath, log)
		if err != nil {
			fatal(log, "load property catalog", err)
		}
		composer = compose.NewResolver(gen, index, table, log)
		log.Info("property catalog loaded", "categories", table.Len())
	}

	items, err := loadItems(*itemsPath, log)
	if err != nil {
		fatal(log, "load source items", err)
	}
	log.Info("source items loaded", "items", len(items))

	var events pipeline.EventSink
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			fatal(log, "nats connect", err)
		}
		defer nc.Close()
		events = pipeline.NewNATSEvents(nc, log)
	}

	res, err := pipeline.Run(ctx, pipeline.Deps{
		Index:     index,
		Generator: gen,
		Composer:  composer,
		Logger:    log,
		Events:    events,
		Metrics:   met,
	}, items)
	if err != nil {
		fatal(log, "run", err)
	}

	if err := writeFile(*outPath, func(f *os.File) error {
		return sssom.WriteMappings(f, meta, res.Mappings)
	}); err != nil {
		fatal(log, "write mappings", err)
	}
	if err := writeFile(*edgesPath, func(f *os.File) error {
		return sssom.WriteEdgeTemplates(f, res.Edges)
	}); err != nil {
		fatal(log, "write edge templates", err)
	}
	if err := writeFile(*statusPath, func(f *os.File) error {
		return sssom.WriteStatusLog(f, res.Statuses)
	}); err != nil {
		fatal(log, "write status log", err)
	}

	if *neo4jURL != "" {
		gs, err := graph.Connect(*neo4jURL, *neo4jUser, *neo4jPass)
		if err != nil {
			fatal(log, "neo4j connect", err)
		}
		defer gs.Close(ctx)
		if err := gs.SaveAll(ctx, res.Mappings, res.Edges); err != nil {
			// Files are already on disk; the graph sync is best-effort.
			log.Error("graph sync incomplete", "error", err)
		} else {
			log.Info("graph sync complete", "mappings", len(res.Mappings), "edges", len(res.Edges))
		}
	}

	log.Info("alignment written",
		"mappings", *outPath,
		"edge_templates", *edgesPath,
		"status_log", *statusPath,
	)
}

func loadTerms(path string, log *slog.Logger) ([]domain.Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return termindex.LoadTSV(f, termindex.DefaultColumns(), log)
}

func loadCatalog(path string, log *slog.Logger) (*compose.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := compose.LoadCatalogTSV(f, compose.DefaultCatalogColumns(), log)
	if err != nil {
		return nil, err
	}
	return compose.NewTable(rows, log), nil
}

func loadItems(path string, log *slog.Logger) ([]domain.SourceItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pipeline.LoadSourceTSV(f, pipeline.DefaultSourceColumns(), log)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(fmt.Sprintf("%s failed", msg), "error", err)
	os.Exit(1)
}
