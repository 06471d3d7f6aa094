// Package session logs in to a Spydus catalogue and fetches pages with the
// resulting cookies.
package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/lepinkainen/librarylookup/internal/catalog"
	"github.com/lepinkainen/librarylookup/internal/errors"
	"github.com/lepinkainen/librarylookup/internal/metrics"
	"github.com/lepinkainen/librarylookup/internal/ratelimit"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "librarylookup/1.0 (+https://github.com/lepinkainen/librarylookup)"
	maxErrorBody     = 512

	loginFormSelector = "form#frmLogin"
	cardNumberField   = "BRWLID"
	passwordField     = "BRWLPWD"
)

// Credentials are the library card number and PIN/password.
type Credentials struct {
	CardNumber string
	Password   string
}

// Validate reports ErrMissingCredentials when either value is empty.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.CardNumber) == "" || c.Password == "" {
		return errors.ErrMissingCredentials
	}
	return nil
}

// Options configures the HTTP side of a session.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Metrics           *metrics.Metrics
	// HTTPClient replaces the underlying client, e.g. an httptest server's.
	HTTPClient *http.Client
}

// Client is a logged-in catalogue session. It is not modified after Login
// returns and can be shared between goroutines.
type Client struct {
	base    *url.URL
	http    *resty.Client
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
}

// Login opens the catalogue home page, submits its login form and returns
// the authenticated session.
func Login(ctx context.Context, opts Options, creds Credentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("Opening catalogue", "url", c.base.String())
	home, homeURL, err := c.get(ctx, c.base.String())
	if err != nil {
		return nil, fmt.Errorf("opening catalogue: %w", err)
	}
	action, fields, err := loginForm(home, homeURL)
	if err != nil {
		return nil, err
	}
	fields[cardNumberField] = creds.CardNumber
	fields[passwordField] = creds.Password

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := c.http.R().SetContext(ctx).SetFormData(fields).Post(action)
	if err := c.check(ctx, "login", action, res, err, start); err != nil {
		return nil, fmt.Errorf("submitting login form: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, &errors.ParseError{URL: action, Reason: "invalid HTML after login", Err: err}
	}
	if doc.Find(loginFormSelector).Length() > 0 {
		return nil, errors.ErrLoginFailed
	}

	slog.Info("Logged in to catalogue", "base_url", c.base.String())
	return c, nil
}

func newClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalogue base URL %q", opts.BaseURL)
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	rc.SetCookieJar(jar)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	rc.SetTimeout(timeout)
	rc.SetHeader("User-Agent", userAgent)
	rc.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &Client{
		base:    base,
		http:    rc,
		limiter: ratelimit.New("catalogue", opts.RequestsPerSecond),
		metrics: opts.Metrics,
	}, nil
}

// loginForm returns the absolute form action and its prefilled fields.
func loginForm(doc *goquery.Document, pageURL *url.URL) (string, map[string]string, error) {
	form := doc.Find(loginFormSelector).First()
	if form.Length() == 0 {
		return "", nil, errors.NewParseError(pageURL.String(), "catalogue home page has no login form")
	}

	action := pageURL
	if href := strings.TrimSpace(form.AttrOr("action", "")); href != "" {
		ref, err := url.Parse(href)
		if err != nil {
			return "", nil, &errors.ParseError{URL: pageURL.String(), Reason: "invalid login form action", Err: err}
		}
		action = pageURL.ResolveReference(ref)
	}

	fields := map[string]string{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "submit", "button", "image", "reset":
			return
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); !checked {
				return
			}
		}
		name, _ := input.Attr("name")
		fields[name] = input.AttrOr("value", "")
	})
	return action.String(), fields, nil
}

// Resolve makes a catalogue link absolute against the base URL.
func (c *Client) Resolve(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

// BaseURL returns the catalogue's base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// FetchPage returns the HTML at rawURL, which may be relative to the base
// URL. Network failures come back as *errors.TransportError and non-2xx
// responses as *errors.HTTPStatusError. FetchPage does not retry.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (string, error) {
	abs, err := c.Resolve(rawURL)
	if err != nil {
		return "", &errors.ParseError{URL: rawURL, Reason: "invalid page URL", Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	res, err := c.http.R().SetContext(ctx).Get(abs)
	if err := c.check(ctx, "page", abs, res, err, start); err != nil {
		return "", err
	}
	return res.String(), nil
}

func (c *Client) get(ctx context.Context, abs string) (*goquery.Document, *url.URL, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	res, err := c.http.R().SetContext(ctx).Get(abs)
	if err := c.check(ctx, "page", abs, res, err, start); err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, nil, &errors.ParseError{URL: abs, Reason: "invalid HTML", Err: err}
	}
	final, _ := url.Parse(abs)
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL
	}
	return doc, final, nil
}

// check classifies the outcome of a request and records it.
func (c *Client) check(ctx context.Context, kind, u string, res *resty.Response, err error, start time.Time) error {
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(kind, "transport_error", elapsed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.NewTransportError(u, err)
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		c.metrics.ObserveRequest(kind, fmt.Sprintf("%dxx", res.StatusCode()/100), elapsed)
		body := res.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return errors.NewHTTPStatusError(u, res.StatusCode(), strings.TrimSpace(body))
	}
	c.metrics.ObserveRequest(kind, "ok", elapsed)
	return nil
}

// DefaultList finds the user's "Default" saved list by following the
// Dashboard and "View all saved lists" links from the home page.
func (c *Client) DefaultList(ctx context.Context) (catalog.DefaultList, error) {
	page := c.base.String()
	for _, link := range []string{"Dashboard", "View all saved lists"} {
		doc, final, err := c.get(ctx, page)
		if err != nil {
			return catalog.DefaultList{}, fmt.Errorf("finding %q link: %w", link, err)
		}
		href, ok := catalog.FindLinkByText(doc.Selection, link)
		if !ok {
			return catalog.DefaultList{}, errors.NewParseError(final.String(), fmt.Sprintf("no %q link", link))
		}
		next, err := resolveAgainst(final, href)
		if err != nil {
			return catalog.DefaultList{}, &errors.ParseError{URL: final.String(), Reason: "invalid link " + href, Err: err}
		}
		page = next
	}

	doc, final, err := c.get(ctx, page)
	if err != nil {
		return catalog.DefaultList{}, fmt.Errorf("opening saved lists: %w", err)
	}
	list, err := catalog.ParseSavedLists(doc, final.String())
	if err != nil {
		return catalog.DefaultList{}, err
	}
	list.URL, err = resolveAgainst(final, list.URL)
	if err != nil {
		return catalog.DefaultList{}, &errors.ParseError{URL: final.String(), Reason: "invalid saved list link", Err: err}
	}

	slog.Info("Found default saved list", "url", list.URL, "titles", list.Count)
	return list, nil
}

func resolveAgainst(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
