package scraper

import (
	"context"
	"database/sql"
	"log/slog"

	"punchpass-backend/lib/scrapers/punchpass"
	"punchpass-backend/lib/timezone"
	"punchpass-backend/services/punchpass/db"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/punchpass/scraper")

// Scrape pulls today's schedule off the site and upserts it into the
// events table. Rows that already exist keep their first-seen title
// and url, everything else is refreshed.
func Scrape(ctx context.Context, out *sql.DB, client *punchpass.Client) error {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	events, err := client.FetchTodaySchedule(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch schedule")
		return err
	}

	tx, err := out.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create transaction")
		return err
	}
	defer tx.Rollback()
	txqry := db.New(out).WithTx(tx)

	for _, ev := range events {
		err := txqry.UpsertEvent(ctx, db.EventParams(ev))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert event")
			return err
		}
	}
	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit scrape")
		return err
	}

	span.SetAttributes(attribute.Int("event_count", len(events)))
	slog.InfoContext(ctx, "refreshed schedule", "events", len(events))
	return nil
}

// StartDaemon re-runs Scrape on the given cron spec until ctx is
// cancelled. An empty spec means hourly on the hour.
func StartDaemon(ctx context.Context, out *sql.DB, client *punchpass.Client, spec string) error {
	if spec == "" {
		spec = "0 * * * *"
	}

	cronner := cron.New(cron.WithLocation(timezone.Location))
	_, err := cronner.AddFunc(spec, func() {
		err := Scrape(ctx, out, client)
		if err != nil {
			slog.ErrorContext(ctx, "scheduled scrape failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	cronner.Start()

	go func() {
		<-ctx.Done()
		cronner.Stop()
	}()
	return nil
}
