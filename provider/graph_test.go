package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

func newTestGraph(t *testing.T, handler http.HandlerFunc, tweak func(cfg *config.EnvConfig)) (*GraphClient, *guard.Breakers) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.EnvConfig{}
	cfg.Facebook.GraphBaseURL = srv.URL
	cfg.Facebook.APIVersion = "v21.0"
	cfg.Facebook.AppSecret = "app-secret"
	cfg.Upload.VideoSimpleThreshold = 20 * 1024 * 1024
	cfg.Upload.VideoChunkSize = 4 * 1024 * 1024
	cfg.Duplication.BatchTimeout = 5 * time.Second
	if tweak != nil {
		tweak(cfg)
	}

	breakers := guard.NewBreakers(guard.BreakerSettings{FailureThreshold: 5, Cooldown: time.Minute}, nil, nil)
	rate := guard.NewRateTracker(guard.RateSettings{RequestsPerSecond: 1000, Burst: 1000, PauseThreshold: 90})
	return NewGraphClient(cfg, breakers, rate, infra.NewNopLogger()), breakers
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func parseAnyForm(t *testing.T, r *http.Request) {
	t.Helper()
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		t.Errorf("parse form: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestUploadImage(t *testing.T) {
	var gotPath, gotProof, gotToken, gotFile string
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		parseAnyForm(t, r)
		gotPath = r.URL.Path
		gotProof = r.FormValue("appsecret_proof")
		gotToken = r.FormValue("access_token")
		f, _, err := r.FormFile("filename")
		require.NoError(t, err)
		raw, _ := io.ReadAll(f)
		gotFile = string(raw)
		writeJSON(w, http.StatusOK, map[string]any{
			"images": map[string]any{"banner.png": map[string]any{"hash": "abc123", "url": "https://x"}},
		})
	}, nil)

	path := writeTempFile(t, "banner.png", []byte("png-bytes"))
	hash, err := g.UploadImage(context.Background(), path, "111", "user-token")
	require.NoError(t, err)

	assert.Equal(t, "abc123", hash)
	assert.Equal(t, "/v21.0/act_111/adimages", gotPath)
	assert.Equal(t, "user-token", gotToken)
	assert.Equal(t, utils.ComputeHMACSHA256("app-secret", "user-token"), gotProof)
	assert.Equal(t, "png-bytes", gotFile)
}

func TestUploadImageUnreadableFile(t *testing.T) {
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, nil)

	_, err := g.UploadImage(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "111", "tok")
	var ioErr *apperr.IOError
	require.ErrorAs(t, err, &ioErr)
}

func TestUploadVideoSimple(t *testing.T) {
	var calls int32
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		parseAnyForm(t, r)
		assert.Empty(t, r.FormValue("upload_phase"))
		_, _, err := r.FormFile("source")
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]any{"id": "vid-1"})
	}, nil)

	var progress []float64
	path := writeTempFile(t, "clip.mp4", []byte("small video"))
	id, err := g.UploadVideo(context.Background(), path, "act_222", "tok", func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.Equal(t, "vid-1", id)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []float64{100}, progress)
}

func TestUploadVideoResumable(t *testing.T) {
	content := []byte("0123456789")
	var mu sync.Mutex
	var phases []string
	var received []byte

	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		parseAnyForm(t, r)
		phase := r.FormValue("upload_phase")
		mu.Lock()
		phases = append(phases, phase)
		mu.Unlock()

		switch phase {
		case "start":
			assert.Equal(t, "10", r.FormValue("file_size"))
			writeJSON(w, http.StatusOK, map[string]any{
				"upload_session_id": "sess-1", "video_id": "vid-9", "start_offset": "0", "end_offset": "4",
			})
		case "transfer":
			assert.Equal(t, "sess-1", r.FormValue("upload_session_id"))
			offset, _ := strconv.Atoi(r.FormValue("start_offset"))
			f, _, err := r.FormFile("video_file_chunk")
			require.NoError(t, err)
			chunk, _ := io.ReadAll(f)
			mu.Lock()
			assert.Equal(t, len(received), offset)
			received = append(received, chunk...)
			next := len(received)
			mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"start_offset": strconv.Itoa(next), "end_offset": strconv.Itoa(next + 4)})
		case "finish":
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			t.Errorf("unexpected phase %q", phase)
		}
	}, func(cfg *config.EnvConfig) {
		cfg.Upload.VideoSimpleThreshold = 5
		cfg.Upload.VideoChunkSize = 4
	})

	var progress []float64
	path := writeTempFile(t, "big.mp4", content)
	id, err := g.UploadVideo(context.Background(), path, "333", "tok", func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, "vid-9", id)
	assert.Equal(t, []string{"start", "transfer", "transfer", "transfer", "finish"}, phases)
	assert.Equal(t, content, received)
	assert.Equal(t, []float64{40, 80, 100}, progress)
}

func TestUploadVideoResumableChunkFailureIsFatal(t *testing.T) {
	var phases []string
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		parseAnyForm(t, r)
		phase := r.FormValue("upload_phase")
		phases = append(phases, phase)
		if phase == "start" {
			writeJSON(w, http.StatusOK, map[string]any{"upload_session_id": "s", "video_id": "v", "start_offset": "0"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"message": "Chunk corrupted", "code": 6001, "error_user_msg": "Upload failed, try again",
		}})
	}, func(cfg *config.EnvConfig) {
		cfg.Upload.VideoSimpleThreshold = 1
		cfg.Upload.VideoChunkSize = 2
	})

	path := writeTempFile(t, "big.mp4", []byte("abcdef"))
	_, err := g.UploadVideo(context.Background(), path, "333", "tok", nil)

	var remoteErr *apperr.RemoteUploadError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 6001, remoteErr.Payload.Code)
	assert.Equal(t, "Upload failed, try again", apperr.UserMessage(err))
	assert.Equal(t, []string{"start", "transfer"}, phases, "no finish and no further chunks after a failed transfer")
}

func TestGraphErrorPayload(t *testing.T) {
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"message":          "(#100) Invalid parameter",
			"type":             "OAuthException",
			"code":             100,
			"error_subcode":    1487390,
			"error_user_title": "Invalid image",
			"error_user_msg":   "The image is too small.",
			"fbtrace_id":       "trace-1",
		}})
	}, nil)

	path := writeTempFile(t, "tiny.png", []byte("x"))
	_, err := g.UploadImage(context.Background(), path, "1", "tok")

	var remoteErr *apperr.RemoteUploadError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadRequest, remoteErr.StatusCode)
	assert.Equal(t, 100, remoteErr.Payload.Code)
	assert.Equal(t, 1487390, remoteErr.Payload.ErrorSubcode)
	assert.Equal(t, "trace-1", remoteErr.Payload.FBTraceID)
	assert.Equal(t, "The image is too small.", apperr.UserMessage(err))
}

func TestGraphBreakerFailsFast(t *testing.T) {
	var calls int32
	g, breakers := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	for i := 0; i < 5; i++ {
		err := g.Rename(context.Background(), "obj", "name", "1", "tok")
		var remoteErr *apperr.RemoteUploadError
		require.ErrorAs(t, err, &remoteErr)
	}
	assert.Equal(t, guard.StateOpen, breakers.Get(guard.FacebookAPI).State())

	err := g.Rename(context.Background(), "obj", "name", "1", "tok")
	var openErr *apperr.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestGraphUsageHeadersPauseAccount(t *testing.T) {
	var calls int32
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set(guard.HeaderAdAccountUsage, `{"acc_id_util_pct":99,"reset_time_duration":300}`)
		writeJSON(w, http.StatusOK, map[string]any{"id": "c1", "name": "Campaign"})
	}, nil)

	_, err := g.GetObject(context.Background(), "c1", "id,name", "act_5", "tok")
	require.NoError(t, err)

	_, err = g.GetObject(context.Background(), "c1", "id,name", "act_5", "tok")
	var rateErr *apperr.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListAdSetAdsFollowsPaging(t *testing.T) {
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/as1/ads", r.URL.Path)
		assert.Equal(t, "id,name", r.URL.Query().Get("fields"))
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"data":   []map[string]any{{"id": "a1", "name": "Ad 1"}, {"id": "a2", "name": "Ad 2"}},
				"paging": map[string]any{"cursors": map[string]any{"after": "cur"}, "next": "https://next"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "a3", "name": "Ad 3"}}})
	}, nil)

	ads, err := g.ListAdSetAds(context.Background(), "as1", "1", "tok")
	require.NoError(t, err)
	assert.Equal(t, []EntityRef{{"a1", "Ad 1"}, {"a2", "Ad 2"}, {"a3", "Ad 3"}}, ads)
}

func TestCopyAdSet(t *testing.T) {
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v21.0/as1/copies", r.URL.Path)
		assert.Equal(t, "true", r.PostForm.Get("deep_copy"))
		assert.Equal(t, "PAUSED", r.PostForm.Get("status_option"))
		assert.Equal(t, "camp-2", r.PostForm.Get("campaign_id"))
		writeJSON(w, http.StatusOK, map[string]any{"copied_adset_id": "as-new", "ad_object_ids": []any{}})
	}, nil)

	id, err := g.CopyAdSet(context.Background(), "as1", "camp-2", "1", "tok", CopyOptions{DeepCopy: true, StatusOption: "PAUSED"})
	require.NoError(t, err)
	assert.Equal(t, "as-new", id)
}

func TestSubmitAsyncBatch(t *testing.T) {
	var gotOps []batch.Operation
	var gotName string
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v21.0/act_7/async_batch_requests", r.URL.Path)
		gotName = r.PostForm.Get("name")
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("adbatch")), &gotOps))
		writeJSON(w, http.StatusOK, map[string]any{"id": "batch-1"})
	}, nil)

	ops := []batch.Operation{
		batch.BuildOperation("POST", "ad1/copies", map[string]string{"adset_id": "n1"}),
		batch.BuildOperation("POST", "ad2/copies", map[string]string{"adset_id": "n1"}),
	}
	resp, err := g.SubmitAsyncBatch(context.Background(), "7", "tok", "dup", ops)
	require.NoError(t, err)

	id, ok := batch.ExtractTrackingID(resp)
	require.True(t, ok)
	assert.Equal(t, "batch-1", id)
	assert.Equal(t, "dup", gotName)
	assert.Equal(t, ops, gotOps)
}

func TestSubmitAsyncBatchRejectsOversizedBatch(t *testing.T) {
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, nil)

	ops := make([]batch.Operation, batch.MaxOperationsPerBatch+1)
	_, err := g.SubmitAsyncBatch(context.Background(), "7", "tok", "dup", ops)
	assert.Error(t, err)
}

func TestAsyncBatchStatusAndResults(t *testing.T) {
	g, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v21.0/batch-1":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "batch-1", "is_completed": true, "total_count": 2, "success_count": 1, "error_count": 1,
			})
		case "/v21.0/batch-1/requests":
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": "r1", "name": "adset_s1", "status": "SUCCESS", "result": `{"copied_adset_id":"n1"}`},
				{"id": "r2", "name": "adset_s2", "status": "ERROR", "error": map[string]any{"message": "bad"}},
			}})
		default:
			http.NotFound(w, r)
		}
	}, nil)

	status, err := g.GetAsyncBatchStatus(context.Background(), "batch-1", "tok")
	require.NoError(t, err)
	assert.True(t, status.IsCompleted)
	assert.Equal(t, 2, status.TotalCount)
	assert.Equal(t, 1, status.ErrorCount)

	results, err := g.GetAsyncBatchResults(context.Background(), "batch-1", "tok")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "adset_s1", results[0].Name)
	id, ok := batch.CopiedObjectID(results[0].Result)
	require.True(t, ok)
	assert.Equal(t, "n1", id)
	assert.Equal(t, "bad", results[1].Error["message"])
}

func TestAccountPath(t *testing.T) {
	assert.Equal(t, "act_1", AccountPath("1"))
	assert.Equal(t, "act_1", AccountPath("act_1"))
}
