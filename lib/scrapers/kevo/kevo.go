package kevo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseUrl = "https://www.mykevo.com"

	loginPath    = "/login"
	signinPath   = "/signin"
	locksPath    = "/user/remote_locks"
	commandsPath = "/user/remote_locks/command"
)

var (
	// invalid credentials or the portal refused the login form
	ErrLoginFailed = errors.New("failed to login to your mykevo.com account")
	// the portal rejected an established session twice in a row
	ErrSessionExpired = errors.New("session rejected by mykevo.com")
	// an expected page or response structure was absent, which usually
	// means the vendor changed their markup
	ErrScrape = errors.New("unexpected mykevo.com page structure")
	// a lock/unlock command came back with a non-success status
	ErrCommandRejected = errors.New("lock command rejected by mykevo.com")
)

// Client holds one authenticated mykevo.com session. Authentication
// happens lazily on first use and the resulting cookie session is
// reused until the portal rejects it, at which point the next operation
// logs in again.
//
// A Client must not be shared across concurrent goroutines without
// external synchronization.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	username string
	password string

	authenticated bool
}

type ClientOptions struct {
	// defaults to https://www.mykevo.com when empty
	BaseUrl  string
	Username string
	Password string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = defaultBaseUrl
	}
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

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	instrumentClient(client)

	c := &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
	}
	return c, nil
}

// Close releases any idle connections held by the underlying HTTP
// client. The server-side session is left to expire on its own.
func (c *Client) Close() {
	c.Http.GetClient().CloseIdleConnections()
}

func isLoginPage(doc *goquery.Document) bool {
	return len(doc.Find(`input[name="user[username]"]`).Nodes) > 0
}

// Login performs the full signin flow: fetch the login page, scrape the
// authenticity token out of its form, then POST the credential form.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return err
	}

	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		span.SetStatus(codes.Error, "failed to find auth token")
		return fmt.Errorf("%w: could not find auth token on signin page", ErrScrape)
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user[username]":     c.username,
			"user[password]":     c.password,
			"authenticity_token": token,
		}).
		Post(signinPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse post-login html")
		return err
	}

	if isLoginPage(doc) {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	c.authenticated = true
	return nil
}

// EnsureSession returns once a live session exists, logging in when
// none does. At most one live session exists per Client.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.authenticated {
		return nil
	}
	return c.Login(ctx)
}

// Invalidate drops the current session so that the next operation
// re-authenticates.
func (c *Client) Invalidate() {
	c.authenticated = false
}

// the portal answers a rejected session by bouncing the request back to
// the login page rather than with a clean status code. a bare 401/403
// is also honored in case that ever changes.
func sessionRejected(res *resty.Response) bool {
	if res.StatusCode() == 401 || res.StatusCode() == 403 {
		return true
	}
	finalUrl := res.RawResponse.Request.URL
	return strings.HasPrefix(finalUrl.Path, loginPath) ||
		strings.HasPrefix(finalUrl.Path, signinPath)
}

// do runs op under a valid session. When the portal rejects the
// session mid-flight the client re-authenticates once and retries op; a
// second rejection surfaces ErrSessionExpired.
func (c *Client) do(ctx context.Context, op func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	res, err := op(ctx)
	if err != nil {
		return nil, err
	}
	if !sessionRejected(res) {
		return res, nil
	}

	c.Invalidate()
	err = c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	res, err = op(ctx)
	if err != nil {
		return nil, err
	}
	if sessionRejected(res) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, res.Request.URL)
	}
	return res, nil
}

// WithSession hands a shared client to fn. The first operation inside
// fn logs in and every later one reuses that session, so any number of
// lock operations cost a single authentication. Idle connections are
// released on all exit paths, including error exits.
func WithSession(ctx context.Context, username, password string, fn func(ctx context.Context, c *Client) error) error {
	return withSession(ctx, ClientOptions{Username: username, Password: password}, fn)
}

func withSession(ctx context.Context, opts ClientOptions, fn func(ctx context.Context, c *Client) error) error {
	c, err := NewClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}
