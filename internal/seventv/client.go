// Package seventv talks to the 7TV REST API for the third-party emote sets
// layered on top of the platform emotes.
package seventv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/you/eaglechat/internal/emotes"
)

var baseURL = "https://7tv.io/v3"

// Client fetches 7TV emote sets. The zero value is usable.
type Client struct {
	HTTP *http.Client
}

// GlobalEmotes fetches the 7TV global emote set.
func (c *Client) GlobalEmotes(ctx context.Context) ([]emotes.ThirdPartyEmote, error) {
	raw, err := c.getJSON(ctx, baseURL+"/emote-sets/global")
	if err != nil {
		return nil, errors.Wrap(err, "fetch global emote set")
	}
	return normalize(raw)
}

// ChannelEmotes fetches the 7TV emote set connected to a Twitch user id.
// A user without a 7TV account or active set yields an empty list.
func (c *Client) ChannelEmotes(ctx context.Context, twitchUserID string) ([]emotes.ThirdPartyEmote, error) {
	raw, err := c.getJSON(ctx, baseURL+"/users/twitch/"+twitchUserID)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "fetch emote set for %s", twitchUserID)
	}

	var conn struct {
		EmoteSet json.RawMessage `json:"emote_set"`
	}
	if err := json.Unmarshal(raw, &conn); err != nil {
		return nil, errors.Wrap(err, "decode user connection")
	}
	if len(conn.EmoteSet) == 0 || string(conn.EmoteSet) == "null" {
		return nil, nil
	}
	return normalize(conn.EmoteSet)
}

var errNotFound = errors.New("seventv: not found")

// normalize accepts the shapes the API returns emote lists in: a bare
// array, an {"emotes": [...]} set object, a {"data": [...]} wrapper (the
// global emote-set endpoint), and a set object nested one level deeper
// under "emote_set".
func normalize(raw json.RawMessage) ([]emotes.ThirdPartyEmote, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []emotes.ThirdPartyEmote
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, errors.Wrap(err, "decode emote list")
		}
		return list, nil
	}

	var set struct {
		Emotes   []emotes.ThirdPartyEmote `json:"emotes"`
		Data     []emotes.ThirdPartyEmote `json:"data"`
		EmoteSet json.RawMessage          `json:"emote_set"`
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, errors.Wrap(err, "decode emote set")
	}
	if set.Emotes != nil {
		return set.Emotes, nil
	}
	if set.Data != nil {
		return set.Data, nil
	}
	if len(set.EmoteSet) > 0 && string(set.EmoteSet) != "null" {
		return normalize(set.EmoteSet)
	}
	return nil, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	return json.RawMessage(raw), nil
}
