package punchpass

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"punchpass-backend/lib/htmlutil"
	"punchpass-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// the instructor line reads "with <name>" or "with <name> ⋅ <location>"
var instructorRegex = regexp.MustCompile(`with\s+(.+?)(?:\s*⋅\s*(.+))?$`)

// each event costs one extra detail-page fetch for its time bounds,
// which dominates the scrape, so those run fanned out
const detailFetchConcurrency = 4

// FetchTodaySchedule pulls the day's schedule off the hub page.
// A malformed item or an unparseable time never aborts the batch,
// the affected item or field is skipped and the rest comes back.
func (c *Client) FetchTodaySchedule(ctx context.Context) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "client:FetchTodaySchedule")
	defer span.End()

	err := c.EnsureSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no authenticated session")
		return nil, err
	}

	res, err := c.GetPage(ctx, "/hub")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch schedule page")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse schedule html")
		return nil, err
	}

	events := c.ParseScheduleDocument(ctx, doc)
	span.SetAttributes(attribute.Int("item_count", len(events)))

	sem := make(chan struct{}, detailFetchConcurrency)
	wg := sync.WaitGroup{}
	for i := range events {
		wg.Add(1)
		sem <- struct{}{}
		go func(ev *Event) {
			defer wg.Done()
			defer func() { <-sem }()
			ev.Start, ev.End = c.fetchEventTimes(ctx, ev.Url)
		}(&events[i])
	}
	wg.Wait()

	return events, nil
}

// ParseScheduleDocument decodes the hub page's day container into
// events, in DOM order, without their time bounds.
func (c *Client) ParseScheduleDocument(ctx context.Context, doc *goquery.Document) []Event {
	var events []Event
	doc.Find("div.instances-for-day").First().
		Find("div.instance div.grid-x.grid-padding-x div.cell.auto div.instance__content").
		Each(func(_ int, sel *goquery.Selection) {
			ev, err := c.parseScheduleItem(sel)
			if err != nil {
				slog.WarnContext(ctx, "skipping malformed schedule item", "err", err)
				return
			}
			events = append(events, ev)
		})
	return events
}

func (c *Client) parseScheduleItem(sel *goquery.Selection) (Event, error) {
	anchor := sel.Find("div.cell.auto.small-order-2.medium-auto.medium-order-2 strong a.with-icon").First()
	href, ok := anchor.Attr("href")
	if !ok {
		return Event{}, fmt.Errorf("schedule item has no detail link")
	}
	hrefUrl, err := url.Parse(href)
	if err != nil {
		return Event{}, fmt.Errorf("bad detail link %q: %w", href, err)
	}
	link := c.BaseUrl.ResolveReference(hrefUrl)

	segments := strings.Split(strings.TrimRight(link.Path, "/"), "/")
	id, err := strconv.ParseInt(segments[len(segments)-1], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("detail link %q has no numeric id: %w", href, err)
	}

	status := StatusConfirmed
	marker := sel.Find("div.cell.small-12.small-order-4.medium-shrink.medium-order-3 span").First()
	if marker.AttrOr("class", "") == "instance-status-icon cancelled" {
		status = StatusCancelled
	}

	title := htmlutil.CleanText(anchor.Text())
	instructorText := htmlutil.CleanText(
		sel.Find("div.cell.auto.small-order-2.medium-auto.medium-order-2 span.instance-instructor").Text(),
	)
	instructor, location := splitInstructor(instructorText)

	return Event{
		Id:         id,
		Status:     status,
		Url:        link.String(),
		Title:      title,
		Location:   location,
		Instructor: instructor,
		Timestamp:  timezone.Now(),
	}, nil
}

func splitInstructor(text string) (instructor, location string) {
	m := instructorRegex.FindStringSubmatch(text)
	if len(m) == 0 {
		return "", ""
	}
	return m[1], m[2]
}

// fetchEventTimes reads the detail page's subtitle line once and
// derives both bounds from it. Either bound may come back nil on a
// parse failure, which is logged and tolerated.
func (c *Client) fetchEventTimes(ctx context.Context, eventUrl string) (start, end *StructuredTime) {
	res, err := c.GetPage(ctx, eventUrl)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch event detail page", "url", eventUrl, "err", err)
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse event detail html", "url", eventUrl, "err", err)
		return nil, nil
	}

	subtitle := htmlutil.CleanText(doc.Find("div.cell.auto h1 small").First().Text())
	if subtitle == "" {
		slog.WarnContext(ctx, "event detail page has no subtitle line", "url", eventUrl)
		return nil, nil
	}

	st, err := NormalizeTime(rewriteStartSubtitle(subtitle), DefaultTimezone)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse start time", "subtitle", subtitle, "err", err)
	} else {
		start = &st
	}
	et, err := NormalizeTime(rewriteEndSubtitle(subtitle), DefaultTimezone)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse end time", "subtitle", subtitle, "err", err)
	} else {
		end = &et
	}
	return start, end
}
