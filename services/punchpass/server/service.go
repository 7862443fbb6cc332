package server

import (
	"database/sql"
	"time"

	"punchpass-backend/lib/scrapers/punchpass"
	"punchpass-backend/services/punchpass/db"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/punchpass/server")

const (
	lookupCacheSize = 256
	lookupCacheTTL  = time.Minute * 10

	defaultCheckInTimeout = time.Second * 90
)

type Options struct {
	// walk the whole check-in flow but skip the final click, so
	// nothing gets recorded on the site
	DryRun bool
	// upper bound on a single browser check-in attempt
	CheckInTimeout time.Duration
	// class titles hidden from api consumers
	ExcludeTitles []string
}

// Service is the public api over the scraped schedule, the customer
// roster and browser-automated check-ins.
type Service struct {
	db      *sql.DB
	qry     *db.Queries
	client  *punchpass.Client
	browser Browser
	tasks   *taskRegistry
	lookup  *expirable.LRU[string, punchpass.User]
	options Options
}

func NewService(database *sql.DB, client *punchpass.Client, browser Browser, options Options) Service {
	if options.CheckInTimeout == 0 {
		options.CheckInTimeout = defaultCheckInTimeout
	}
	return Service{
		db:      database,
		qry:     db.New(database),
		client:  client,
		browser: browser,
		tasks:   newTaskRegistry(),
		lookup:  expirable.NewLRU[string, punchpass.User](lookupCacheSize, nil, lookupCacheTTL),
		options: options,
	}
}

func (s Service) RegisterRoutes(r chi.Router) {
	r.Route("/schedule", func(r chi.Router) {
		r.Get("/", s.GetSchedule)
		r.Get("/{eventId}", s.GetEvent)
		r.Post("/{eventId}/check_in", s.CheckIn)
		r.Post("/check_in/bulk", s.BulkCheckIn)
		r.Get("/check_in/status/{checkInId}", s.CheckInStatus)
	})
	r.Post("/users/", s.CreateUser)
}
