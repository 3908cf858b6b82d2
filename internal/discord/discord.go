// Package discord is the OAuth2 identity provider used to link a ckey with a discord account.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/domain"
	"go.uber.org/ratelimit"
	"golang.org/x/oauth2"
)

var (
	ErrRequestCreate  = errors.New("failed to create discord request")
	ErrRequestPerform = errors.New("failed to perform discord request")
	ErrRequestDecode  = errors.New("failed to decode discord response")
	ErrEmptyToken     = errors.New("discord returned an empty access token")
	ErrUnexpected     = errors.New("unexpected discord response status")
)

const maxBodySize = 1 << 20

// Scopes requested from discord. identify is enough to read the account id.
var Scopes = []string{"identify"} //nolint:gochecknoglobals

type Client struct {
	oauth   *oauth2.Config
	apiURL  string
	http    *http.Client
	limiter ratelimit.Limiter
}

// New creates a client for the discord API rooted at conf.APIURL. Outbound requests are paced to
// conf.RequestsPerSecond.
func New(conf config.Discord, httpClient *http.Client) *Client {
	apiURL := strings.TrimSuffix(conf.APIURL, "/")

	perSecond := conf.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiURL + "/oauth2/authorize",
				TokenURL:  apiURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL:  apiURL,
		http:    httpClient,
		limiter: ratelimit.New(perSecond),
	}
}

// AuthURL returns the consent page url carrying state as the OAuth2 state parameter.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	c.limiter.Take()

	token, errExchange := c.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.http), code)
	if errExchange != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(errExchange, &retrieveErr) && retrieveErr.Response != nil {
			if err := statusErr(retrieveErr.Response, retrieveErr.Body); err != nil {
				return nil, errors.Join(errExchange, err)
			}

			// Discord answers invalid or reused codes with 400 invalid_grant.
			if retrieveErr.Response.StatusCode == http.StatusBadRequest {
				return nil, errors.Join(errExchange, domain.ErrUnauthorized)
			}
		}

		return nil, errors.Join(errExchange, ErrRequestPerform)
	}

	if token.AccessToken == "" {
		return nil, ErrEmptyToken
	}

	return token, nil
}

// User fetches the account owning accessToken.
func (c *Client) User(ctx context.Context, accessToken string) (*discordgo.User, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/users/@me", nil)
	if errReq != nil {
		return nil, errors.Join(errReq, ErrRequestCreate)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	c.limiter.Take()

	resp, errResp := c.http.Do(req)
	if errResp != nil {
		return nil, errors.Join(errResp, ErrRequestPerform)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, errBody := readBody(resp)
	if errBody != nil {
		return nil, errBody
	}

	if err := statusErr(resp, body); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpected, resp.StatusCode)
	}

	var user discordgo.User
	if errJSON := json.Unmarshal(body, &user); errJSON != nil {
		return nil, errors.Join(errJSON, ErrRequestDecode)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrRequestDecode)
	}

	return &user, nil
}

// Identify completes the authorization code flow and returns the authorizing account.
func (c *Client) Identify(ctx context.Context, code string) (*discordgo.User, error) {
	token, errToken := c.Exchange(ctx, code)
	if errToken != nil {
		return nil, errToken
	}

	return c.User(ctx, token.AccessToken)
}

type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

// statusErr maps 401 onto domain.ErrUnauthorized and 429 onto a domain.RateLimitError. The retry
// delay comes from the json body, falling back to the Retry-After header.
func statusErr(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		var limited rateLimitBody
		if errJSON := json.Unmarshal(body, &limited); errJSON == nil && limited.RetryAfter > 0 {
			return domain.RateLimitError{RetryAfter: time.Duration(limited.RetryAfter * float64(time.Second))}
		}

		if seconds, errParse := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); errParse == nil {
			return domain.RateLimitError{RetryAfter: time.Duration(seconds * float64(time.Second))}
		}

		return domain.RateLimitError{RetryAfter: time.Second}
	default:
		return nil
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if errRead != nil {
		return nil, errors.Join(errRead, ErrRequestDecode)
	}

	return body, nil
}
