package status

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
)

type fakeRelocator struct {
	prefix string
	err    error
	calls  []string
}

func (r *fakeRelocator) Relocate(ctx context.Context, remoteURL, collection string) (string, error) {
	r.calls = append(r.calls, remoteURL)
	if r.err != nil {
		return "", r.err
	}
	return r.prefix + remoteURL, nil
}

func newTestNormalizer(rel Relocator) *Normalizer {
	return NewNormalizer(rel, zerolog.New(io.Discard))
}

func normalize(t *testing.T, n *Normalizer, jobType domain.JobType, raw string) domain.NormalizedResult {
	t.Helper()
	result, err := n.Normalize(context.Background(), jobType, []byte(raw))
	require.NoError(t, err)
	return result
}

func TestNormalizeUnsupportedJobType(t *testing.T) {
	n := newTestNormalizer(nil)
	_, err := n.Normalize(context.Background(), domain.JobType("hologram"), []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrUnsupportedJobType)
}

func TestNormalizeImageSuccessFlagVariants(t *testing.T) {
	n := newTestNormalizer(nil)

	completed := normalize(t, n, domain.JobTypeImage,
		`{"code":200,"data":{"successFlag":1,"response":{"resultUrls":["https://cdn.example.com/a.png"]}}}`)
	assert.Equal(t, domain.JobStatusCompleted, completed.Status)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, completed.MediaURLs)

	for _, flag := range []string{"2", "3"} {
		failed := normalize(t, n, domain.JobTypeImage,
			`{"code":200,"data":{"successFlag":`+flag+`,"errorMessage":"content rejected"}}`)
		assert.Equal(t, domain.JobStatusFailed, failed.Status)
		assert.Equal(t, "content rejected", failed.ErrorMessage)
	}

	processing := normalize(t, n, domain.JobTypeImage,
		`{"code":200,"data":{"successFlag":0,"progress":"0.45"}}`)
	assert.Equal(t, domain.JobStatusProcessing, processing.Status)
	assert.Equal(t, "0.45", processing.Progress)
}

func TestNormalizeImageResultJSONWins(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeImage,
		`{"code":200,"data":{"successFlag":1,`+
			`"resultJson":"{\"resultUrls\":[\"https://cdn.example.com/embedded.png\"]}",`+
			`"response":{"resultUrls":["https://cdn.example.com/nested.png"]}}}`)
	assert.Equal(t, []string{"https://cdn.example.com/embedded.png"}, result.MediaURLs,
		"the embedded resultJson field is first in the image fallback chain")
}

func TestNormalizeImageMalformedResultJSONFallsThrough(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeImage,
		`{"code":200,"data":{"successFlag":1,`+
			`"resultJson":"{not json at all",`+
			`"response":{"resultUrls":["https://cdn.example.com/nested.png"]}}}`)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, []string{"https://cdn.example.com/nested.png"}, result.MediaURLs,
		"malformed embedded JSON must not fail the normalization")
}

func TestNormalizeImageFallbackToTopLevelArray(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeImage,
		`{"code":200,"data":{"successFlag":1,"resultUrls":["https://cdn.example.com/top.png"]}}`)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, []string{"https://cdn.example.com/top.png"}, result.MediaURLs)
}

func TestNormalizeImageSuccessWithoutURLsStaysProcessing(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeImage, `{"code":200,"data":{"successFlag":1}}`)
	assert.Equal(t, domain.JobStatusProcessing, result.Status)
}

func TestNormalizeCoverPrefersNestedResponse(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeCover,
		`{"code":200,"data":{"status":"SUCCESS",`+
			`"response":{"resultUrls":["https://cdn.example.com/nested.png"]},`+
			`"resultJson":"{\"resultUrls\":[\"https://cdn.example.com/embedded.png\"]}"}}`)
	assert.Equal(t, []string{"https://cdn.example.com/nested.png"}, result.MediaURLs,
		"the cover chain tries the nested response before resultJson")
}

func TestNormalizeCoverFailureTokens(t *testing.T) {
	n := newTestNormalizer(nil)
	for _, token := range []string{"CREATE_TASK_FAILED", "GENERATE_FAILED"} {
		result := normalize(t, n, domain.JobTypeCover,
			`{"code":200,"data":{"status":"`+token+`","failMsg":"no quota"}}`)
		assert.Equal(t, domain.JobStatusFailed, result.Status)
		assert.Equal(t, "no quota", result.ErrorMessage)
	}
}

func TestNormalizeMusicCollectsAllTracks(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeMusic,
		`{"code":200,"data":{"status":"SUCCESS","response":{"sunoData":[`+
			`{"audioUrl":"https://cdn.example.com/track1.mp3"},`+
			`{"audioUrl":"https://cdn.example.com/track2.mp3"}]}}}`)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, []string{
		"https://cdn.example.com/track1.mp3",
		"https://cdn.example.com/track2.mp3",
	}, result.MediaURLs)
}

func TestNormalizeMusicLegacyDataFallback(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeMusic,
		`{"code":200,"data":{"status":"FIRST_SUCCESS","response":{"data":[`+
			`{"audio_url":"https://cdn.example.com/legacy.mp3"}]}}}`)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, []string{"https://cdn.example.com/legacy.mp3"}, result.MediaURLs)
}

func TestNormalizeMusicFailureTokens(t *testing.T) {
	n := newTestNormalizer(nil)
	for _, token := range []string{
		"CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED", "SENSITIVE_WORD_ERROR", "CALLBACK_EXCEPTION",
	} {
		result := normalize(t, n, domain.JobTypeMusic,
			`{"code":200,"data":{"status":"`+token+`","errorMessage":"blocked"}}`)
		assert.Equal(t, domain.JobStatusFailed, result.Status, token)
		assert.Equal(t, "blocked", result.ErrorMessage)
	}
}

func TestNormalizeVideoStates(t *testing.T) {
	n := newTestNormalizer(nil)

	completed := normalize(t, n, domain.JobTypeVideo,
		`{"code":200,"data":{"state":"success","videoInfo":{"videoUrl":"https://cdn.example.com/v.mp4"}}}`)
	assert.Equal(t, domain.JobStatusCompleted, completed.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", completed.MediaURL)
	assert.Empty(t, completed.MediaURLs)

	failed := normalize(t, n, domain.JobTypeVideo,
		`{"code":200,"data":{"state":"fail","failMsg":"render error"}}`)
	assert.Equal(t, domain.JobStatusFailed, failed.Status)
	assert.Equal(t, "render error", failed.ErrorMessage)

	queued := normalize(t, n, domain.JobTypeVideo,
		`{"code":200,"data":{"state":"queueing"}}`)
	assert.Equal(t, domain.JobStatusProcessing, queued.Status)
}

func TestNormalizeVideoResultJSONFallback(t *testing.T) {
	n := newTestNormalizer(nil)
	result := normalize(t, n, domain.JobTypeVideo,
		`{"code":200,"data":{"state":"success",`+
			`"resultJson":"{\"resultUrls\":[\"https://cdn.example.com/alt.mp4\"]}"}}`)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, "https://cdn.example.com/alt.mp4", result.MediaURL)
}

// Ambiguous payloads must degrade to processing, never to failed: an upstream
// schema change that drops the expected field looks like "no data yet".
func TestNormalizeConservativeAmbiguity(t *testing.T) {
	n := newTestNormalizer(nil)
	payloads := map[domain.JobType]string{
		domain.JobTypeImage: `{"code":200,"data":{"unexpected":"shape"}}`,
		domain.JobTypeCover: `{"code":200,"data":{"status":"SOMETHING_NEW"}}`,
		domain.JobTypeMusic: `{"code":200,"data":{"status":""}}`,
		domain.JobTypeVideo: `{"code":200,"data":{}}`,
	}
	for jobType, raw := range payloads {
		result := normalize(t, n, jobType, raw)
		assert.Equal(t, domain.JobStatusProcessing, result.Status, string(jobType))
	}

	garbage := normalize(t, n, domain.JobTypeImage, `not even json`)
	assert.Equal(t, domain.JobStatusProcessing, garbage.Status)
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer(nil)
	raw := `{"code":200,"data":{"successFlag":1,"response":{"resultUrls":["https://cdn.example.com/a.png"]}}}`

	first := normalize(t, n, domain.JobTypeImage, raw)
	second := normalize(t, n, domain.JobTypeImage, raw)
	assert.Equal(t, first, second)
}

func TestNormalizeRelocatesCompletedURLs(t *testing.T) {
	rel := &fakeRelocator{prefix: "https://store.example.com/"}
	n := newTestNormalizer(rel)

	result := normalize(t, n, domain.JobTypeImage,
		`{"code":200,"data":{"successFlag":1,"response":{"resultUrls":["https://cdn.example.com/a.png"]}}}`)
	assert.Equal(t, []string{"https://store.example.com/https://cdn.example.com/a.png"}, result.MediaURLs)
	assert.Len(t, rel.calls, 1)
}

func TestNormalizeRelocationFailureKeepsRemoteURL(t *testing.T) {
	rel := &fakeRelocator{err: errors.New("bucket unreachable")}
	n := newTestNormalizer(rel)

	result := normalize(t, n, domain.JobTypeVideo,
		`{"code":200,"data":{"state":"success","videoInfo":{"videoUrl":"https://cdn.example.com/v.mp4"}}}`)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", result.MediaURL,
		"a storage hiccup must never block the job")
}

func TestNormalizeDoesNotRelocateProcessingOrFailed(t *testing.T) {
	rel := &fakeRelocator{prefix: "https://store.example.com/"}
	n := newTestNormalizer(rel)

	normalize(t, n, domain.JobTypeImage, `{"code":200,"data":{"successFlag":0}}`)
	normalize(t, n, domain.JobTypeImage, `{"code":200,"data":{"successFlag":2}}`)
	assert.Empty(t, rel.calls)
}
