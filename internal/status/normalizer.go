package status

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/infra"
)

// Relocator copies a remote media URL into durable storage and returns the
// stable URL. Implementations must treat failures as soft: the normalizer
// substitutes the original URL whenever relocation errors.
type Relocator interface {
	Relocate(ctx context.Context, remoteURL, collection string) (string, error)
}

// normalizeFunc maps one job type's raw status payload to the uniform result.
// Each is a pure function; relocation happens afterwards in Normalize.
type normalizeFunc func(raw []byte) domain.NormalizedResult

// Normalizer turns per-job-type upstream status payloads into the uniform
// processing/completed/failed contract. The upstream schema differs per job
// type and has drifted over time, so every type carries its own fallback
// chain for locating media URLs; the chains are intentionally not unified.
type Normalizer struct {
	relocator Relocator
	logger    infra.Logger
	byType    map[domain.JobType]normalizeFunc
}

// NewNormalizer builds the registry of per-type mappings. relocator may be
// nil, in which case completed results keep their upstream URLs.
func NewNormalizer(relocator Relocator, logger infra.Logger) *Normalizer {
	n := &Normalizer{relocator: relocator, logger: logger}
	n.byType = map[domain.JobType]normalizeFunc{
		domain.JobTypeImage: normalizeImage,
		domain.JobTypeCover: normalizeCover,
		domain.JobTypeMusic: normalizeMusic,
		domain.JobTypeVideo: normalizeVideo,
	}
	return n
}

// Normalize maps a raw upstream payload for the given job type. Unknown job
// types are a programmer error and fail fast. On completed results every
// media URL is individually relocated; a relocation failure falls back to
// the original remote URL so a storage hiccup never blocks the job.
func (n *Normalizer) Normalize(ctx context.Context, jobType domain.JobType, raw []byte) (domain.NormalizedResult, error) {
	fn, ok := n.byType[jobType]
	if !ok {
		return domain.NormalizedResult{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedJobType, jobType)
	}
	result := fn(raw)
	if result.Status != domain.JobStatusCompleted {
		return result, nil
	}
	collection := collectionFor(jobType)
	if result.MediaURL != "" {
		result.MediaURL = n.relocate(ctx, result.MediaURL, collection)
	}
	for i, u := range result.MediaURLs {
		result.MediaURLs[i] = n.relocate(ctx, u, collection)
	}
	return result, nil
}

func (n *Normalizer) relocate(ctx context.Context, remoteURL, collection string) string {
	if n.relocator == nil {
		return remoteURL
	}
	stable, err := n.relocator.Relocate(ctx, remoteURL, collection)
	if err != nil || strings.TrimSpace(stable) == "" {
		n.logger.Warn().Err(err).Str("url", remoteURL).Msg("status: relocation failed, keeping remote url")
		return remoteURL
	}
	return stable
}

func collectionFor(jobType domain.JobType) string {
	switch jobType {
	case domain.JobTypeImage:
		return "images"
	case domain.JobTypeCover:
		return "covers"
	case domain.JobTypeMusic:
		return "music"
	case domain.JobTypeVideo:
		return "videos"
	}
	return "media"
}

// statusEnvelope is the shared outer shape; Data is decoded per job type.
type statusEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type imageData struct {
	SuccessFlag  *int            `json:"successFlag"`
	ResultJSON   string          `json:"resultJson"`
	Response     *urlResponse    `json:"response"`
	ResultURLs   []string        `json:"resultUrls"`
	Progress     json.RawMessage `json:"progress"`
	ErrorMessage string          `json:"errorMessage"`
	FailMsg      string          `json:"failMsg"`
}

type coverData struct {
	Status       string          `json:"status"`
	Response     *urlResponse    `json:"response"`
	ResultJSON   string          `json:"resultJson"`
	ResultURLs   []string        `json:"resultUrls"`
	Progress     json.RawMessage `json:"progress"`
	ErrorMessage string          `json:"errorMessage"`
	FailMsg      string          `json:"failMsg"`
}

type musicData struct {
	Status   string `json:"status"`
	Response *struct {
		SunoData []struct {
			AudioURL string `json:"audioUrl"`
		} `json:"sunoData"`
		Data []struct {
			AudioURL string `json:"audio_url"`
		} `json:"data"`
	} `json:"response"`
	ErrorMessage string `json:"errorMessage"`
	Msg          string `json:"msg"`
}

type videoData struct {
	State     string `json:"state"`
	VideoInfo *struct {
		VideoURL string `json:"videoUrl"`
	} `json:"videoInfo"`
	ResultJSON   string          `json:"resultJson"`
	Response     *urlResponse    `json:"response"`
	Progress     json.RawMessage `json:"progress"`
	FailMsg      string          `json:"failMsg"`
	ErrorMessage string          `json:"errorMessage"`
}

type urlResponse struct {
	ResultURLs []string `json:"resultUrls"`
}

// normalizeImage handles the numeric successFlag schema: 1 means success,
// 2 and 3 mean failure, anything else is still processing.
func normalizeImage(raw []byte) domain.NormalizedResult {
	env, data := decodeEnvelope[imageData](raw)
	if data == nil || data.SuccessFlag == nil {
		return domain.NormalizedResult{Status: domain.JobStatusProcessing, Progress: progressString(dataProgress(data))}
	}
	switch *data.SuccessFlag {
	case 1:
		urls := firstNonEmpty(
			decodeResultJSON(data.ResultJSON),
			responseURLs(data.Response),
			cleanURLs(data.ResultURLs),
		)
		if len(urls) == 0 {
			return domain.NormalizedResult{Status: domain.JobStatusProcessing}
		}
		return domain.NormalizedResult{Status: domain.JobStatusCompleted, MediaURLs: urls}
	case 2, 3:
		return domain.NormalizedResult{
			Status:       domain.JobStatusFailed,
			ErrorMessage: firstMessage(data.ErrorMessage, data.FailMsg, env.Msg),
		}
	}
	return domain.NormalizedResult{Status: domain.JobStatusProcessing, Progress: progressString(data.Progress)}
}

// normalizeCover handles the token-status schema used by the cover endpoint.
// Its URL fallback order differs from the image chain; the divergence matches
// the upstream and is preserved on purpose.
func normalizeCover(raw []byte) domain.NormalizedResult {
	env, data := decodeEnvelope[coverData](raw)
	if data == nil {
		return domain.NormalizedResult{Status: domain.JobStatusProcessing}
	}
	switch strings.ToUpper(strings.TrimSpace(data.Status)) {
	case "SUCCESS":
		urls := firstNonEmpty(
			responseURLs(data.Response),
			decodeResultJSON(data.ResultJSON),
			cleanURLs(data.ResultURLs),
		)
		if len(urls) == 0 {
			return domain.NormalizedResult{Status: domain.JobStatusProcessing}
		}
		return domain.NormalizedResult{Status: domain.JobStatusCompleted, MediaURLs: urls}
	case "CREATE_TASK_FAILED", "GENERATE_FAILED":
		return domain.NormalizedResult{
			Status:       domain.JobStatusFailed,
			ErrorMessage: firstMessage(data.ErrorMessage, data.FailMsg, env.Msg),
		}
	}
	return domain.NormalizedResult{Status: domain.JobStatusProcessing, Progress: progressString(data.Progress)}
}

// normalizeMusic handles the token-status schema of the music endpoint, where
// a single task can yield several audio tracks.
func normalizeMusic(raw []byte) domain.NormalizedResult {
	env, data := decodeEnvelope[musicData](raw)
	if data == nil {
		return domain.NormalizedResult{Status: domain.JobStatusProcessing}
	}
	switch strings.ToUpper(strings.TrimSpace(data.Status)) {
	case "SUCCESS", "FIRST_SUCCESS":
		var urls []string
		if data.Response != nil {
			for _, track := range data.Response.SunoData {
				if u := strings.TrimSpace(track.AudioURL); u != "" {
					urls = append(urls, u)
				}
			}
			if len(urls) == 0 {
				for _, track := range data.Response.Data {
					if u := strings.TrimSpace(track.AudioURL); u != "" {
						urls = append(urls, u)
					}
				}
			}
		}
		if len(urls) == 0 {
			return domain.NormalizedResult{Status: domain.JobStatusProcessing}
		}
		return domain.NormalizedResult{Status: domain.JobStatusCompleted, MediaURLs: urls}
	case "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED", "SENSITIVE_WORD_ERROR", "CALLBACK_EXCEPTION":
		return domain.NormalizedResult{
			Status:       domain.JobStatusFailed,
			ErrorMessage: firstMessage(data.ErrorMessage, data.Msg, env.Msg),
		}
	}
	return domain.NormalizedResult{Status: domain.JobStatusProcessing}
}

// normalizeVideo handles the state string schema: "success" or "fail",
// everything else still processing. Video tasks produce a single URL.
func normalizeVideo(raw []byte) domain.NormalizedResult {
	env, data := decodeEnvelope[videoData](raw)
	if data == nil {
		return domain.NormalizedResult{Status: domain.JobStatusProcessing}
	}
	switch strings.ToLower(strings.TrimSpace(data.State)) {
	case "success":
		urls := firstNonEmpty(
			videoInfoURL(data),
			decodeResultJSON(data.ResultJSON),
			responseURLs(data.Response),
		)
		if len(urls) == 0 {
			return domain.NormalizedResult{Status: domain.JobStatusProcessing}
		}
		return domain.NormalizedResult{Status: domain.JobStatusCompleted, MediaURL: urls[0]}
	case "fail":
		return domain.NormalizedResult{
			Status:       domain.JobStatusFailed,
			ErrorMessage: firstMessage(data.FailMsg, data.ErrorMessage, env.Msg),
		}
	}
	return domain.NormalizedResult{Status: domain.JobStatusProcessing, Progress: progressString(data.Progress)}
}

// decodeEnvelope unwraps the shared {code, msg, data} wrapper and decodes
// data into the per-type shape. Any decode failure yields a nil data pointer,
// which callers map to processing: a misbehaving upstream reads the same as
// "no data yet".
func decodeEnvelope[T any](raw []byte) (statusEnvelope, *T) {
	var env statusEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return statusEnvelope{}, nil
	}
	if len(env.Data) == 0 {
		return env, nil
	}
	var data T
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return env, nil
	}
	return env, &data
}

// decodeResultJSON parses the embedded JSON string some schemas carry in
// resultJson. Malformed content is treated as "nothing found here" so the
// fallback chain continues.
func decodeResultJSON(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var decoded urlResponse
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil
	}
	return cleanURLs(decoded.ResultURLs)
}

func responseURLs(r *urlResponse) []string {
	if r == nil {
		return nil
	}
	return cleanURLs(r.ResultURLs)
}

func videoInfoURL(d *videoData) []string {
	if d == nil || d.VideoInfo == nil {
		return nil
	}
	if u := strings.TrimSpace(d.VideoInfo.VideoURL); u != "" {
		return []string{u}
	}
	return nil
}

func cleanURLs(urls []string) []string {
	var out []string
	for _, u := range urls {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// firstNonEmpty returns the first candidate list with at least one URL.
func firstNonEmpty(candidates ...[]string) []string {
	for _, c := range candidates {
		if len(c) > 0 {
			return c
		}
	}
	return nil
}

func firstMessage(candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return "generation failed"
}

// progressString renders the best-effort progress marker, which upstream
// returns either as a string ("0.50") or a bare number.
func progressString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
	}
	return ""
}

func dataProgress(d *imageData) json.RawMessage {
	if d == nil {
		return nil
	}
	return d.Progress
}
