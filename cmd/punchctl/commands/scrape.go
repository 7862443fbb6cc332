package commands

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"punchpass-backend/lib/configutil"
	"punchpass-backend/lib/restyutil"
	"punchpass-backend/lib/scrapers/punchpass"
	"punchpass-backend/lib/serviceutil"
	"punchpass-backend/lib/sqliteutil"
	"punchpass-backend/lib/timezone"
	"punchpass-backend/services/punchpass/db"
	"punchpass-backend/services/punchpass/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// the company to switch into admin view for after signing in
	CompanyId int64 `json:"company_id"`
}

var scrapeDb *string

func init() {
	scrapeDb = scrapeCmd.Flags().String("db", "results.db", "The database to write scrape results to.")
	rootCmd.AddCommand(scrapeCmd)
}

func createClient(ctx context.Context) *punchpass.Client {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	client, err := punchpass.NewClient(ctx, punchpass.ClientOptions{
		BaseUrl:          cfg.BaseUrl,
		Email:            cfg.Email,
		Password:         cfg.Password,
		CompanyId:        cfg.CompanyId,
		InstrumentOutput: restyutil.NewFilesystemOutput(".dev/resty/punchpass"),
	})
	if err != nil {
		serviceutil.Fatal("initialize site client", err)
	}
	return client
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--db <path/to/output.db>]",
	Short: "Scrapes today's schedule and writes it to a database.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		out, err := sqliteutil.OpenDB(db.Schema, *scrapeDb)
		if err != nil {
			serviceutil.Fatal("open db", err)
		}
		defer out.Close()

		t1 := time.Now()
		err = scraper.Scrape(cmd.Context(), out, client)
		if err != nil {
			serviceutil.Fatal("scrape schedule", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		today := timezone.Now().Format("2006-01-02")
		rows, err := db.New(out).GetEventsForDay(
			cmd.Context(),
			sql.NullString{String: today, Valid: true},
		)
		if err != nil {
			serviceutil.Fatal("read back events", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Title", "Status", "Instructor", "Location", "Start", "End"})

		for _, row := range rows {
			t.AppendRow(table.Row{
				row.EventID,
				row.Title,
				row.Status,
				row.Instructor,
				row.Location,
				row.StartDatetime.String,
				row.EndDatetime.String,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
