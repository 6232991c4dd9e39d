package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/poll"
	"github.com/streamlens/catchup/cmd/server/internal/slice"
	"github.com/streamlens/catchup/pkg/logger"
)

const clipStrideSeconds = 60

// TwitchConfig configures the Helix API client.
type TwitchConfig struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	AuthURL      string
	ClipWaitSecs int
}

// Twitch extracts catch-up audio from Twitch via the Helix API. The
// in-progress archive VOD behind a live stream is addressable, so the
// window is covered with clips created at fixed strides.
type Twitch struct {
	cfg        TwitchConfig
	httpClient *http.Client

	tokenMu     sync.Mutex // one client is shared by every running task
	token       string
	tokenExpiry time.Time
}

// NewTwitch creates the Twitch platform client.
func NewTwitch(cfg TwitchConfig) *Twitch {
	return &Twitch{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Twitch) Name() string { return "twitch" }

func (t *Twitch) Match(sourceURL string) bool {
	return strings.Contains(strings.ToLower(sourceURL), "twitch.tv")
}

// ResolveSource verifies the channel is live and locates the
// in-progress archive VOD recording the current broadcast.
func (t *Twitch) ResolveSource(ctx context.Context, sourceURL string) (*Source, error) {
	channel := ChannelFromURL(sourceURL)
	if channel == "" {
		return nil, pipeline.NewValidationError("could not extract channel name from " + sourceURL)
	}

	userID, err := t.lookupUserID(ctx, channel)
	if err != nil {
		return nil, err
	}

	stream, err := t.currentLiveStream(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, pipeline.NewNoRecordingError(channel + " is not currently live")
	}

	vod, err := t.findInProgressVOD(ctx, userID, stream.ID)
	if err != nil {
		return nil, err
	}
	if vod == nil {
		return nil, pipeline.NewNoRecordingError("no in-progress recording for " + channel)
	}

	return &Source{
		Platform:    t.Name(),
		Channel:     channel,
		StreamTitle: stream.Title,
		VODID:       vod.ID,
		Duration:    vod.Duration,
		URL:         sourceURL,
		broadcaster: userID,
	}, nil
}

// Extract creates clips at fixed strides over the plan window, waits
// for each to become fetchable, and downloads the ready ones. Clips
// that never become fetchable within the readiness budget are dropped;
// at least one must survive.
func (t *Twitch) Extract(ctx context.Context, src *Source, plan slice.Plan) ([]Segment, error) {
	windowSeconds := plan.WindowSeconds()
	numClips := (windowSeconds + clipStrideSeconds - 1) / clipStrideSeconds

	logger.L().Info("creating clips",
		"channel", src.Channel,
		"vod_id", src.VODID,
		"window_seconds", windowSeconds,
		"clips", numClips,
	)

	segments := make([]Segment, 0, numClips)
	for i := 0; i < numClips; i++ {
		clipStart := plan.StartOffsetSeconds + i*clipStrideSeconds
		clipDuration := clipStrideSeconds
		if remaining := windowSeconds - i*clipStrideSeconds; remaining < clipDuration {
			clipDuration = remaining
		}

		clipID, err := t.createClip(ctx, src.broadcaster, clipStart, clipDuration)
		if err != nil {
			logger.L().Warn("clip creation failed",
				"vod_id", src.VODID,
				"offset", clipStart,
				"error", err,
			)
			continue
		}

		segments = append(segments, Segment{
			Index:              i,
			Locator:            clipID,
			StartOffsetSeconds: clipStart,
			DurationSeconds:    clipDuration,
			Status:             SegmentPending,
		})
	}

	ready := t.downloadReadyClips(ctx, segments)
	if len(ready) == 0 {
		return nil, pipeline.NewExtractionError("no clips became fetchable for "+src.Channel, nil)
	}
	return ready, nil
}

// downloadReadyClips polls each created clip until Twitch finishes
// processing it, then fetches the media. Never-ready clips are dropped.
func (t *Twitch) downloadReadyClips(ctx context.Context, segments []Segment) []Segment {
	interval := 2 * time.Second
	budget := time.Duration(t.cfg.ClipWaitSecs) * time.Second
	maxAttempts := int(budget/interval) + 1

	ready := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		var mediaURL string
		err := poll.Wait(ctx, interval, maxAttempts, func(ctx context.Context) (bool, error) {
			u, err := t.clipURL(ctx, seg.Locator)
			if err != nil {
				return false, err
			}
			mediaURL = u
			return u != "", nil
		})
		if err != nil {
			logger.L().Warn("clip never became ready", "clip_id", seg.Locator, "error", err)
			continue
		}

		audio, err := t.fetchMedia(ctx, mediaURL)
		if err != nil {
			logger.L().Warn("clip download failed", "clip_id", seg.Locator, "error", err)
			continue
		}

		seg.Status = SegmentReady
		seg.Audio = audio
		ready = append(ready, seg)
	}
	return ready
}

type twitchStream struct {
	ID    string
	Title string
}

type twitchVOD struct {
	ID       string
	Duration string
}

func (t *Twitch) lookupUserID(ctx context.Context, channel string) (string, error) {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.apiGet(ctx, "/users?login="+url.QueryEscape(channel), &resp); err != nil {
		return "", pipeline.NewSourceUnavailableError(channel, err)
	}
	if len(resp.Data) == 0 {
		return "", pipeline.NewSourceUnavailableError(channel, nil)
	}
	return resp.Data[0].ID, nil
}

func (t *Twitch) currentLiveStream(ctx context.Context, userID string) (*twitchStream, error) {
	var resp struct {
		Data []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := t.apiGet(ctx, "/streams?user_id="+url.QueryEscape(userID), &resp); err != nil {
		return nil, pipeline.NewSourceUnavailableError(userID, err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &twitchStream{ID: resp.Data[0].ID, Title: resp.Data[0].Title}, nil
}

// findInProgressVOD scans recent archives for the one recording the
// given live stream.
func (t *Twitch) findInProgressVOD(ctx context.Context, userID, streamID string) (*twitchVOD, error) {
	var resp struct {
		Data []struct {
			ID       string `json:"id"`
			StreamID string `json:"stream_id"`
			Duration string `json:"duration"`
		} `json:"data"`
	}
	path := "/videos?user_id=" + url.QueryEscape(userID) + "&type=archive&first=5"
	if err := t.apiGet(ctx, path, &resp); err != nil {
		return nil, pipeline.NewSourceUnavailableError(userID, err)
	}
	for _, v := range resp.Data {
		if v.StreamID == streamID {
			return &twitchVOD{ID: v.ID, Duration: v.Duration}, nil
		}
	}
	return nil, nil
}

func (t *Twitch) createClip(ctx context.Context, broadcasterID string, vodOffset, duration int) (string, error) {
	body := map[string]any{
		"broadcaster_id": broadcasterID,
		"has_delay":      false,
		"duration":       duration,
		"vod_offset":     vodOffset,
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIBaseURL+"/clips", strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	if err := t.authorize(ctx, req); err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return "", fmt.Errorf("clip creation returned HTTP %d: %s", httpResp.StatusCode, string(b))
	}

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("clip creation returned no clip id")
	}
	return resp.Data[0].ID, nil
}

// clipURL returns the clip media URL, or empty while Twitch is still
// processing the clip.
func (t *Twitch) clipURL(ctx context.Context, clipID string) (string, error) {
	var resp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := t.apiGet(ctx, "/clips?id="+url.QueryEscape(clipID), &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].URL, nil
}

func (t *Twitch) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media fetch returned empty body")
	}
	return data, nil
}

func (t *Twitch) apiGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	if err := t.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("helix %s returned HTTP %d: %s", path, resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// authorize attaches app credentials, refreshing the access token when
// it is missing or about to expire.
func (t *Twitch) authorize(ctx context.Context, req *http.Request) error {
	token, err := t.currentToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", t.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// currentToken returns a valid access token. The refresh runs under the
// lock so concurrent tasks single-flight it instead of racing.
func (t *Twitch) currentToken(ctx context.Context) (string, error) {
	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()

	if t.token != "" && time.Now().Before(t.tokenExpiry) {
		return t.token, nil
	}
	if err := t.refreshToken(ctx); err != nil {
		return "", err
	}
	return t.token, nil
}

// refreshToken fetches a client_credentials token. Caller holds tokenMu.
func (t *Twitch) refreshToken(ctx context.Context) error {
	form := url.Values{
		"client_id":     {t.cfg.ClientID},
		"client_secret": {t.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if body.AccessToken == "" {
		return fmt.Errorf("token response missing access_token")
	}

	t.token = body.AccessToken
	t.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn-60) * time.Second)
	return nil
}
