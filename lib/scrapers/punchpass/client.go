package punchpass

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"punchpass-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/punchpass")

var ErrLoginFailed = fmt.Errorf("failed to login to the punchpass account")

// the three cookies that carry the authenticated admin session.
// everything else the site sets is noise.
var sessionCookieNames = []string{
	"force_login_key",
	"remember_account_token",
	"_punchpass52_session",
}

type ClientOptions struct {
	BaseUrl  string
	Email    string
	Password string
	// the company to switch into admin view for after signing in
	CompanyId int64
	// optional dump target for raw http exchanges at debug level
	InstrumentOutput restyutil.InstrumentOutput
}

// Client owns the one authenticated session against the site. It is
// safe for concurrent readers; login is serialized behind a mutex.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts ClientOptions

	mu      sync.Mutex
	cookies map[string]string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, opts.InstrumentOutput)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
	}, nil
}

// EnsureSession logs in on first use and is a no-op while the cached
// session cookies are present. Subsequent calls reuse the cookies
// without re-authenticating.
func (c *Client) EnsureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cookies) > 0 {
		return nil
	}
	return c.login(ctx)
}

// Invalidate drops the cached session so the next EnsureSession
// re-authenticates. Call it when the site starts answering with
// sign-in redirects.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cookies = nil
	jar, err := cookiejar.New(nil)
	if err == nil {
		c.Http.SetCookieJar(jar)
	}
}

func (c *Client) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/account/sign_in")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch sign in page")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse sign in page html")
		return err
	}

	authenticityToken := doc.Find("form.simple_form.account input").First().AttrOr("value", "")
	if authenticityToken == "" {
		span.SetStatus(codes.Error, "failed to find authenticity token")
		return fmt.Errorf("%w: could not find authenticity token", ErrLoginFailed)
	}

	_, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"authenticity_token": authenticityToken,
			"account[email]":     c.opts.Email,
			"account[password]":  c.opts.Password,
		}).
		Post("/account/sign_in")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}

	// switching into the administrative context is what mints the
	// admin session cookie
	_, err = c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/account/companies/%d/switch_to_admin_view", c.opts.CompanyId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to switch to admin view")
		return err
	}

	captured := map[string]string{}
	for _, cookie := range c.Http.GetClient().Jar.Cookies(c.BaseUrl) {
		for _, name := range sessionCookieNames {
			if cookie.Name == name {
				captured[name] = cookie.Value
			}
		}
	}
	if len(captured) == 0 {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	c.cookies = captured
	return nil
}

// ExportCookies hands the cached session to the browser automation
// leg. Returns nil when there is no session yet.
func (c *Client) ExportCookies(targetUrl string) []BrowserCookie {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []BrowserCookie
	for _, name := range sessionCookieNames {
		value, ok := c.cookies[name]
		if !ok {
			continue
		}
		out = append(out, BrowserCookie{
			Name:  name,
			Value: value,
			Url:   targetUrl,
		})
	}
	return out
}

// GetPage fetches a path (or absolute url) under the authenticated
// session. Responses with error status codes are returned as errors.
func (c *Client) GetPage(ctx context.Context, path string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch %q: status %d", path, res.StatusCode())
	}
	return res, nil
}
