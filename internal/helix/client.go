// Package helix talks to the Twitch Helix API: app-token acquisition with
// expiry reuse, login-to-id resolution, and the badge and emote catalog
// fetches, each cached per broadcaster.
package helix

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/you/eaglechat/internal/badges"
	"github.com/you/eaglechat/internal/emotes"
)

var (
	baseURL       = "https://api.twitch.tv/helix"
	oauthTokenURL = "https://id.twitch.tv/oauth2/token"

	badgeGlobalPath  = "/chat/badges/global"
	badgeChannelPath = "/chat/badges"
	emoteGlobalPath  = "/chat/emotes/global"
	emoteChannelPath = "/chat/emotes"
	usersPath        = "/users"
)

// Client is a Helix API client with process-lifetime caches. CacheTTL <= 0
// keeps catalog entries until Invalidate is called; a positive TTL lets
// long-running processes pick up catalog changes.
type Client struct {
	ClientID     string
	ClientSecret string
	HTTP         *http.Client
	CacheTTL     time.Duration

	mu            sync.Mutex
	token         cachedToken
	users         map[string]cacheEntry
	badgeCatalogs map[string]cacheEntry
	emoteSets     map[string]cacheEntry
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

type cacheEntry struct {
	value     any
	expiresAt time.Time // zero means never expires
}

func (e cacheEntry) valid() bool {
	return e.value != nil && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt))
}

// NewClient builds a client from app credentials.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{ClientID: clientID, ClientSecret: clientSecret}
}

// SetClientSecret swaps the app secret (credential file rotation) and drops
// the cached token so the next call authenticates with the new secret.
func (c *Client) SetClientSecret(secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClientSecret = strings.TrimSpace(secret)
	c.token = cachedToken{}
}

// AppToken returns a client-credentials token, reusing the cached one until
// its expiry passes.
func (c *Client) AppToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token.token != "" && time.Now().Before(c.token.expiresAt) {
		token := c.token.token
		c.mu.Unlock()
		return token, nil
	}
	clientID := strings.TrimSpace(c.ClientID)
	clientSecret := strings.TrimSpace(c.ClientSecret)
	c.mu.Unlock()

	if clientID == "" || clientSecret == "" {
		return "", errors.New("helix: client credentials are required")
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request token")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, "decode token")
	}

	token := strings.TrimSpace(parsed.AccessToken)
	if token == "" {
		return "", errors.New("helix: empty access_token")
	}

	expiresIn := time.Duration(parsed.ExpiresIn) * time.Second
	if parsed.ExpiresIn <= 0 {
		expiresIn = time.Hour
	}

	c.mu.Lock()
	c.token = cachedToken{token: token, expiresAt: time.Now().Add(expiresIn)}
	c.mu.Unlock()

	return token, nil
}

// UserID resolves a Twitch login to its broadcaster id, cached per login.
func (c *Client) UserID(ctx context.Context, login string) (string, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return "", errors.New("helix: login is required")
	}

	c.mu.Lock()
	if entry, ok := c.users[login]; ok && entry.valid() {
		id, _ := entry.value.(string)
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	endpoint := baseURL + usersPath + "?login=" + url.QueryEscape(login)
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return "", errors.Wrapf(err, "lookup user %s", login)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].ID == "" {
		return "", errors.Errorf("helix: user %s not found", login)
	}

	id := parsed.Data[0].ID
	c.mu.Lock()
	if c.users == nil {
		c.users = map[string]cacheEntry{}
	}
	c.users[login] = cacheEntry{value: id, expiresAt: c.cacheExpiry()}
	c.mu.Unlock()
	return id, nil
}

// GlobalBadges fetches the global badge sets.
func (c *Client) GlobalBadges(ctx context.Context) ([]badges.Set, error) {
	return c.fetchBadgeSets(ctx, baseURL+badgeGlobalPath)
}

// ChannelBadges fetches a broadcaster's channel badge sets.
func (c *Client) ChannelBadges(ctx context.Context, broadcasterID string) ([]badges.Set, error) {
	return c.fetchBadgeSets(ctx, baseURL+badgeChannelPath+"?broadcaster_id="+url.QueryEscape(broadcasterID))
}

// BadgeCatalog fetches and merges the global and channel badge catalogs for
// a broadcaster, cached per broadcaster. A failed half yields an empty map
// for that half rather than failing the whole catalog.
func (c *Client) BadgeCatalog(ctx context.Context, broadcasterID string) (badges.Catalog, error) {
	key := "badges:" + broadcasterID
	c.mu.Lock()
	if entry, ok := c.badgeCatalogs[key]; ok && entry.valid() {
		catalog, _ := entry.value.(badges.Catalog)
		c.mu.Unlock()
		return catalog, nil
	}
	c.mu.Unlock()

	catalog := badges.Catalog{
		Global:  map[string]badges.Set{},
		Channel: map[string]badges.Set{},
	}

	if global, err := c.GlobalBadges(ctx); err != nil {
		log.Printf("helix: fetch global badges: %v", err)
	} else {
		catalog.Global = badges.MapSets(global)
	}
	if channel, err := c.ChannelBadges(ctx, broadcasterID); err != nil {
		log.Printf("helix: fetch badges for %s: %v", broadcasterID, err)
	} else {
		catalog.Channel = badges.MapSets(channel)
	}

	c.mu.Lock()
	if c.badgeCatalogs == nil {
		c.badgeCatalogs = map[string]cacheEntry{}
	}
	c.badgeCatalogs[key] = cacheEntry{value: catalog, expiresAt: c.cacheExpiry()}
	c.mu.Unlock()
	return catalog, nil
}

// GlobalEmotes fetches the platform-global emote list, cached.
func (c *Client) GlobalEmotes(ctx context.Context) ([]emotes.PlatformEmote, error) {
	return c.fetchEmotes(ctx, "global", baseURL+emoteGlobalPath)
}

// ChannelEmotes fetches a broadcaster's channel emote list, cached.
func (c *Client) ChannelEmotes(ctx context.Context, broadcasterID string) ([]emotes.PlatformEmote, error) {
	return c.fetchEmotes(ctx, broadcasterID, baseURL+emoteChannelPath+"?broadcaster_id="+url.QueryEscape(broadcasterID))
}

// Invalidate drops the cached catalogs for a broadcaster (and the shared
// global entries) so the next fetch goes back to the API.
func (c *Client) Invalidate(broadcasterID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.badgeCatalogs, "badges:"+broadcasterID)
	delete(c.emoteSets, "global")
	delete(c.emoteSets, broadcasterID)
}

func (c *Client) fetchBadgeSets(ctx context.Context, endpoint string) ([]badges.Set, error) {
	var parsed struct {
		Data []badges.Set `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	return parsed.Data, nil
}

func (c *Client) fetchEmotes(ctx context.Context, key, endpoint string) ([]emotes.PlatformEmote, error) {
	c.mu.Lock()
	if entry, ok := c.emoteSets[key]; ok && entry.valid() {
		list, _ := entry.value.([]emotes.PlatformEmote)
		c.mu.Unlock()
		return list, nil
	}
	c.mu.Unlock()

	var parsed struct {
		Data []emotes.PlatformEmote `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.emoteSets == nil {
		c.emoteSets = map[string]cacheEntry{}
	}
	c.emoteSets[key] = cacheEntry{value: parsed.Data, expiresAt: c.cacheExpiry()}
	c.mu.Unlock()
	return parsed.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	token, err := c.AppToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", strings.TrimSpace(c.ClientID))

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) cacheExpiry() time.Time {
	if c.CacheTTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.CacheTTL)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
