package meta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/oauth2"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultGraphBaseURL  = "https://graph.facebook.com"
	DefaultDialogBaseURL = "https://www.facebook.com"
	DefaultGraphVersion  = "v23.0"

	// upper bound on result pages followed through paging.next
	maxPagingRequests = 20
)

// ErrPagingLimit is returned when a listing still has a next cursor after maxPagingRequests pages.
var ErrPagingLimit = errors.New("graph api paging limit reached")

// DefaultScopes are the permissions requested on the consent screen.
var DefaultScopes = []string{
	"leads_retrieval",
	"pages_manage_ads",
	"pages_read_engagement",
	"pages_show_list",
	"pages_manage_metadata",
}

// Config describes where the Graph API and the consent dialog live.
type Config struct {
	GraphBaseURL  string
	DialogBaseURL string
	GraphVersion  string
	RedirectURI   string
	Scopes        []string
}

// AppCredentials identify the Meta application making the calls.
type AppCredentials struct {
	AppID     string
	AppSecret string
}

// Token is a user access token returned by the token endpoint.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// Page is one page the user manages, with its page-scoped access token.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Category    string `json:"category,omitempty"`
}

// Form is a lead generation form attached to a page.
type Form struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status,omitempty"`
	Locale      string `json:"locale,omitempty"`
	CreatedTime string `json:"created_time,omitempty"`
	LeadsCount  int    `json:"leads_count,omitempty"`
}

// Client talks to the Graph API.
type Client struct {
	config    Config
	http      *httpclient.Client
	logger    ectologger.Logger
	maxPaging int
}

func NewClient(config Config, client *httpclient.Client, logger ectologger.Logger) *Client {
	if config.GraphBaseURL == "" {
		config.GraphBaseURL = DefaultGraphBaseURL
	}
	if config.DialogBaseURL == "" {
		config.DialogBaseURL = DefaultDialogBaseURL
	}
	if config.GraphVersion == "" {
		config.GraphVersion = DefaultGraphVersion
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	config.GraphBaseURL = strings.TrimRight(config.GraphBaseURL, "/")
	config.DialogBaseURL = strings.TrimRight(config.DialogBaseURL, "/")

	return &Client{config: config, http: client, logger: logger, maxPaging: maxPagingRequests}
}

func (c *Client) graphURL(path string, query url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", c.config.GraphBaseURL, c.config.GraphVersion, strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) oauthConfig(app AppCredentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.AppID,
		ClientSecret: app.AppSecret,
		RedirectURL:  c.config.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("%s/%s/dialog/oauth", c.config.DialogBaseURL, c.config.GraphVersion),
			TokenURL:  c.graphURL("oauth/access_token", nil),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the consent dialog URL for the app carrying state.
func (c *Client) AuthCodeURL(app AppCredentials, state string) string {
	// the dialog expects a comma separated scope list
	return c.oauthConfig(app).AuthCodeURL(state, oauth2.SetAuthURLParam("scope", strings.Join(c.config.Scopes, ",")))
}

// ExchangeCode trades an authorization code for a short-lived user token.
func (c *Client) ExchangeCode(ctx context.Context, app AppCredentials, code string) (*Token, error) {
	ctx, span := tracing.StartSpan(ctx, "MetaClient.ExchangeCode")
	defer span.End()

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http.HTTPClient())
	token, err := c.oauthConfig(app).Exchange(ctx, code)
	metrics.GraphRequestDuration.WithLabelValues("exchange_code").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GraphRequestsTotal.WithLabelValues("exchange_code", "error").Inc()
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			graphErr := parseGraphError(retrieveErr.Response.StatusCode, retrieveErr.Body)
			return nil, fmt.Errorf("exchange code: %w", graphErr)
		}
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	metrics.GraphRequestsTotal.WithLabelValues("exchange_code", strconv.Itoa(http.StatusOK)).Inc()

	if token.AccessToken == "" {
		return nil, errors.New("exchange code: empty access token")
	}

	var expiresIn time.Duration
	if !token.Expiry.IsZero() {
		expiresIn = time.Until(token.Expiry).Round(time.Second)
	}
	return &Token{AccessToken: token.AccessToken, TokenType: token.TokenType, ExpiresIn: expiresIn}, nil
}

// ExchangeLongLived upgrades a short-lived user token with the fb_exchange_token grant.
func (c *Client) ExchangeLongLived(ctx context.Context, app AppCredentials, shortLived string) (*Token, error) {
	ctx, span := tracing.StartSpan(ctx, "MetaClient.ExchangeLongLived")
	defer span.End()

	query := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {app.AppID},
		"client_secret":     {app.AppSecret},
		"fb_exchange_token": {shortLived},
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.getJSON(ctx, "exchange_long_lived", c.graphURL("oauth/access_token", query), &body); err != nil {
		return nil, fmt.Errorf("exchange long-lived token: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("exchange long-lived token: empty access token")
	}

	return &Token{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
		ExpiresIn:   time.Duration(body.ExpiresIn) * time.Second,
	}, nil
}

// ListPages returns every page the user manages, in the order the API lists them.
func (c *Client) ListPages(ctx context.Context, userToken string) ([]Page, error) {
	ctx, span := tracing.StartSpan(ctx, "MetaClient.ListPages")
	defer span.End()

	next := c.graphURL("me/accounts", url.Values{
		"fields":       {"id,name,access_token,category"},
		"access_token": {userToken},
	})

	pages, err := listAll[Page](ctx, c, "list_pages", next)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	c.logger.WithContext(ctx).WithField("page_count", len(pages)).Debugf("Listed %d managed pages", len(pages))
	return pages, nil
}

// SubscribeWebhook subscribes the app to the page's leadgen webhook field and
// returns the success flag the API reports.
func (c *Client) SubscribeWebhook(ctx context.Context, pageID, pageToken string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "MetaClient.SubscribeWebhook")
	defer span.End()

	target := c.graphURL(url.PathEscape(pageID)+"/subscribed_apps", url.Values{"access_token": {pageToken}})
	resp, err := c.http.PostForm(ctx, "subscribe_webhook", target, url.Values{"subscribed_fields": {"leadgen"}})
	if err != nil {
		return false, fmt.Errorf("subscribe page %s: %w", pageID, err)
	}
	if !resp.IsSuccess() {
		return false, fmt.Errorf("subscribe page %s: %w", pageID, parseGraphError(resp.StatusCode, resp.Body))
	}

	var body struct {
		Success bool `json:"success"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return false, fmt.Errorf("subscribe page %s: %w", pageID, err)
	}
	return body.Success, nil
}

// ListForms returns every lead generation form of a page, following paging.
func (c *Client) ListForms(ctx context.Context, pageID, pageToken string) ([]Form, error) {
	ctx, span := tracing.StartSpan(ctx, "MetaClient.ListForms")
	defer span.End()

	target := c.graphURL(url.PathEscape(pageID)+"/leadgen_forms", url.Values{
		"fields":       {"id,name,status,locale,created_time,leads_count"},
		"access_token": {pageToken},
	})

	forms, err := listAll[Form](ctx, c, "list_forms", target)
	if err != nil {
		return nil, fmt.Errorf("list forms for page %s: %w", pageID, err)
	}
	return forms, nil
}

// listAll follows paging.next from first and concatenates every data page in order.
func listAll[T any](ctx context.Context, c *Client, operation, first string) ([]T, error) {
	items := []T{}
	next := first
	for i := 0; next != ""; i++ {
		if i == c.maxPaging {
			c.logger.WithContext(ctx).WithFields(map[string]any{
				"operation":  operation,
				"item_count": len(items),
			}).Warnf("Stopped following paging after %d requests", c.maxPaging)
			return nil, fmt.Errorf("%w: %s after %d requests", ErrPagingLimit, operation, c.maxPaging)
		}

		var body struct {
			Data   []T `json:"data"`
			Paging struct {
				Next string `json:"next"`
			} `json:"paging"`
		}
		if err := c.getJSON(ctx, operation, next, &body); err != nil {
			return nil, err
		}
		items = append(items, body.Data...)
		next = body.Paging.Next
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, operation, target string, v any) error {
	resp, err := c.http.Get(ctx, operation, target)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return parseGraphError(resp.StatusCode, resp.Body)
	}
	return resp.DecodeJSON(v)
}
