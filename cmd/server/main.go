package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"strings"
	"time"

	"punchpass-backend/lib/configutil"
	"punchpass-backend/lib/restyutil"
	"punchpass-backend/lib/scrapers/punchpass"
	"punchpass-backend/lib/serviceutil"
	"punchpass-backend/lib/sqliteutil"
	"punchpass-backend/services/punchpass/db"
	"punchpass-backend/services/punchpass/scraper"
	"punchpass-backend/services/punchpass/server"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type SiteConfig struct {
	BaseUrl  string `json:"base_url"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// the company to switch into admin view for after signing in
	CompanyId int64 `json:"company_id"`
}

type ScheduleConfig struct {
	// cron spec for the background scrape, empty means hourly
	Cron string `json:"cron"`
	// class titles hidden from api consumers
	ExcludeTitles []string `json:"exclude_titles"`
}

type CheckInConfig struct {
	// walk the whole check-in flow but skip the final click
	DryRun         bool   `json:"dry_run"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	ChromePath     string `json:"chrome_path"`
}

type Config struct {
	Port int `json:"port"`
	// sqlite file path or a libsql:// url
	Database string `json:"database"`
	Site     SiteConfig     `json:"site"`
	Schedule ScheduleConfig `json:"schedule"`
	CheckIn  CheckInConfig  `json:"check_in"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	initialScrape := flag.Bool("scrape", false, "Trigger scraping immediately on run.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	var database *sql.DB
	if strings.HasPrefix(cfg.Database, "libsql://") {
		database, err = sqliteutil.OpenLibsql(db.Schema, cfg.Database)
	} else {
		database, err = sqliteutil.OpenDB(db.Schema, cfg.Database)
	}
	if err != nil {
		serviceutil.Fatal("open database", err)
	}

	var instrumentOutput restyutil.InstrumentOutput
	if *verbose {
		instrumentOutput = restyutil.NewFilesystemOutput(".dev/resty/punchpass")
	}
	client, err := punchpass.NewClient(ctx, punchpass.ClientOptions{
		BaseUrl:          cfg.Site.BaseUrl,
		Email:            cfg.Site.Email,
		Password:         cfg.Site.Password,
		CompanyId:        cfg.Site.CompanyId,
		InstrumentOutput: instrumentOutput,
	})
	if err != nil {
		serviceutil.Fatal("initialize site client", err)
	}

	if *initialScrape {
		go func() {
			err := scraper.Scrape(ctx, database, client)
			if err != nil {
				slog.ErrorContext(ctx, "initial scrape failed", "err", err)
			}
		}()
	}
	err = scraper.StartDaemon(ctx, database, client, cfg.Schedule.Cron)
	if err != nil {
		serviceutil.Fatal("start scrape daemon", err)
	}

	svc := server.NewService(
		database,
		client,
		server.ChromeBrowser{ExecPath: cfg.CheckIn.ChromePath},
		server.Options{
			DryRun:         cfg.CheckIn.DryRun,
			CheckInTimeout: time.Duration(cfg.CheckIn.TimeoutSeconds) * time.Second,
			ExcludeTitles:  cfg.Schedule.ExcludeTitles,
		},
	)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	svc.RegisterRoutes(router)

	go serviceutil.StartHttpServer(cfg.Port, router)
	<-ctx.Done()
}
