// Command watch tails the alignment status event stream and prints one
// line per item plus the run summary. Useful alongside a long batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"

	"github.com/microbetraits/traitalign/engine/pipeline"
	"github.com/microbetraits/traitalign/engine/sssom"
	"github.com/microbetraits/traitalign/pkg/natsutil"
)

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS URL")
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	statusSub, err := natsutil.Subscribe(nc, pipeline.SubjectItemStatus,
		func(_ context.Context, s sssom.ItemStatus) {
			if s.Detail != "" {
				fmt.Printf("%s\t%s\t%s\n", s.SourceKey, s.Outcome, s.Detail)
				return
			}
			fmt.Printf("%s\t%s\n", s.SourceKey, s.Outcome)
		})
	if err != nil {
		log.Error("subscribe failed", "subject", pipeline.SubjectItemStatus, "error", err)
		os.Exit(1)
	}
	defer statusSub.Unsubscribe()

	summarySub, err := natsutil.Subscribe(nc, pipeline.SubjectRunSummary,
		func(_ context.Context, s pipeline.Summary) {
			log.Info("run summary",
				"items", s.Items,
				"mapped", s.Mapped,
				"resolved", s.Resolved,
				"blocked", s.Blocked,
				"no_match", s.NoMatch,
				"skipped", s.Skipped,
				"mappings", s.Mappings,
				"edges", s.Edges,
				"duration_ms", s.DurationMS,
			)
		})
	if err != nil {
		log.Error("subscribe failed", "subject", pipeline.SubjectRunSummary, "error", err)
		os.Exit(1)
	}
	defer summarySub.Unsubscribe()

	log.Info("watching", "nats", *natsURL)
	<-ctx.Done()
}
