// Command index embeds the vocabulary into Qdrant so the alignment
// pipeline can run its nearest-neighbor strategy. Terms embed in
// parallel with a circuit breaker around the embedding service; a
// partial failure uploads whatever succeeded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/microbetraits/traitalign/engine/domain"
	"github.com/microbetraits/traitalign/engine/semantic"
	"github.com/microbetraits/traitalign/engine/termindex"
	"github.com/microbetraits/traitalign/pkg/fn"
	"github.com/microbetraits/traitalign/pkg/ollama"
	"github.com/microbetraits/traitalign/pkg/resilience"
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		vocabPath   = flag.String("vocab", "vocabulary.tsv", "vocabulary TSV")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		model       = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "traitalign", "Qdrant collection name")
		dims        = flag.Int("dims", vectorDims, "embedding dimensions")
		workers     = flag.Int("workers", 4, "parallel embedding workers")
		withParents = flag.Bool("with-parents", false, "append parent labels to the embedded text")
		batchSize   = flag.Int("batch", 100, "vectors per upsert")
	)
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f, err := os.Open(*vocabPath)
	if err != nil {
		fatal(log, "open vocabulary", err)
	}
	terms, err := termindex.LoadTSV(f, termindex.DefaultColumns(), log)
	f.Close()
	if err != nil {
		fatal(log, "load vocabulary", err)
	}
	index := termindex.New(terms)
	log.Info("vocabulary loaded", "terms", len(terms))

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		fatal(log, "qdrant connect", err)
	}
	defer store.Close()
	if err := store.EnsureCollection(ctx, *dims); err != nil {
		fatal(log, "ensure collection", err)
	}

	embedder := ollama.New(*ollamaURL, *model, ollama.DefaultOptions())
	breaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)

	results := fn.ParMapResult(terms, *workers, func(t domain.Term) fn.Result[semantic.TermVector] {
		text := embedText(index, t, *withParents)
		return resilience.CallResult(breaker, ctx, func(ctx context.Context) fn.Result[semantic.TermVector] {
			vec, err := embedder.Embed(ctx, text)
			if err != nil {
				return fn.Errf[semantic.TermVector]("embed %s: %w", t.ID, err)
			}
			return fn.Ok(semantic.TermVector{TermID: t.ID, Label: t.Label, Embedding: vec})
		})
	})

	vectors, errs := fn.Partition(results)
	for _, err := range errs {
		log.Warn("index: term skipped", "error", err)
	}
	log.Info("embedding complete", "embedded", len(vectors), "failed", len(errs))

	for start := 0; start < len(vectors); start += *batchSize {
		end := min(start+*batchSize, len(vectors))
		if err := store.Upsert(ctx, vectors[start:end]); err != nil {
			fatal(log, "upsert batch", err)
		}
	}
	log.Info("vocabulary indexed", "collection", *collection, "vectors", len(vectors))

	if len(errs) > 0 {
		os.Exit(2)
	}
}

// embedText is the string a term embeds under. Parent labels add
// hierarchy context for vocabularies whose leaf labels are terse.
func embedText(index *termindex.Index, t domain.Term, withParents bool) string {
	parts := append([]string{t.Label}, t.Synonyms...)
	if withParents {
		parts = append(parts, index.ParentLabels(t)...)
	}
	return strings.Join(parts, "; ")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(fmt.Sprintf("%s failed", msg), "error", err)
	os.Exit(1)
}
