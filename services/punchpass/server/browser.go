package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"punchpass-backend/lib/scrapers/punchpass"

	"github.com/antzucaro/matchr"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type ConfirmRequest struct {
	EventUrl     string
	AttendeeName string
	Cookies      []punchpass.BrowserCookie
	DryRun       bool
}

// Browser performs the attendance confirmation leg. The site only
// exposes attendance through its javascript-heavy admin pages, so a
// real implementation drives an actual browser.
type Browser interface {
	ConfirmAttendance(ctx context.Context, req ConfirmRequest) error
}

// none of these affect the check-in flow and they dominate page weight
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.woff", "*.woff2", "*.ttf", "*.css", "*.mp4",
}

// ChromeBrowser drives a headless chrome over the devtools protocol.
type ChromeBrowser struct {
	// path to the chrome binary, empty means chromedp's lookup order
	ExecPath string
}

func (b ChromeBrowser) ConfirmAttendance(ctx context.Context, req ConfirmRequest) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	searchBox := `input[placeholder="Search"]`
	entry := fmt.Sprintf(`//*[@title=%q]`, req.AttendeeName)

	actions := []chromedp.Action{
		network.Enable(),
		network.SetBlockedURLS(blockedResourcePatterns),
		setSessionCookies(req.Cookies),
		chromedp.Navigate(req.EventUrl + "/attendances/new"),
		chromedp.WaitVisible(searchBox, chromedp.ByQuery),
		chromedp.SendKeys(searchBox, req.AttendeeName, chromedp.ByQuery),
		chromedp.WaitVisible(entry, chromedp.BySearch),
	}
	if req.DryRun {
		return chromedp.Run(browserCtx, actions...)
	}

	var pageText string
	actions = append(actions,
		chromedp.Click(entry, chromedp.BySearch),
		chromedp.Sleep(time.Second),
		chromedp.Text("body", &pageText, chromedp.ByQuery),
	)
	err := chromedp.Run(browserCtx, actions...)
	if err != nil {
		return err
	}
	if !nameAppears(pageText, req.AttendeeName) {
		return fmt.Errorf("attendee %q not visible after check-in click", req.AttendeeName)
	}
	return nil
}

func setSessionCookies(cookies []punchpass.BrowserCookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			target, err := url.Parse(cookie.Url)
			if err != nil {
				return err
			}
			err = network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(target.Hostname()).
				WithPath("/").
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// nameAppears scans rendered page text for the attendee name. The
// attendance list re-renders the clicked name with extra badges around
// it, so on top of plain containment each word window of the right
// width is matched with a small edit distance allowance.
func nameAppears(pageText, name string) bool {
	want := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if want == "" {
		return false
	}
	width := len(strings.Fields(want))

	for _, line := range strings.Split(pageText, "\n") {
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 {
			continue
		}
		if strings.Contains(strings.Join(fields, " "), want) {
			return true
		}
		for i := 0; i+width <= len(fields); i++ {
			window := strings.Join(fields[i:i+width], " ")
			if matchr.DamerauLevenshtein(window, want) <= 2 {
				return true
			}
		}
	}
	return false
}
