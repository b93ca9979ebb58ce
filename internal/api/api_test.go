package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satindergrewal/codystudio/internal/audio"
	"github.com/satindergrewal/codystudio/internal/studio"
	"github.com/satindergrewal/codystudio/internal/task"
)

type fakePlayer struct {
	mu      sync.Mutex
	loaded  []audio.TrackInfo
	stopped int
}

func (p *fakePlayer) Load(t audio.TrackInfo) {
	p.mu.Lock()
	p.loaded = append(p.loaded, t)
	p.mu.Unlock()
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
}

func (p *fakePlayer) Status() (audio.TrackInfo, time.Duration, time.Duration) {
	return audio.TrackInfo{}, 0, 0
}

func decodeSquare(ctx context.Context, path string) (*audio.Buffer, error) {
	samples := make([]float32, 400)
	for i := range samples {
		samples[i] = 0.5
		if i%2 == 1 {
			samples[i] = -0.5
		}
	}
	return &audio.Buffer{SampleRate: 400, Channels: 1, Samples: samples}, nil
}

func newTestServer(t *testing.T, premium bool, tweaks ...func(*studio.Options)) (*httptest.Server, *fakePlayer) {
	t.Helper()
	log := zap.NewNop().Sugar()
	opts := studio.Options{
		UploadDir:  t.TempDir(),
		Buckets:    4,
		Steps:      2,
		UploadStep: time.Millisecond,
		MasterStep: time.Millisecond,
		StemsStep:  time.Millisecond,
		Premium:    premium,
	}
	for _, fn := range tweaks {
		fn(&opts)
	}
	svc, err := studio.NewService(context.Background(), log, opts, decodeSquare, nil)
	require.NoError(t, err)

	player := &fakePlayer{}
	srv := httptest.NewServer(NewServer(log, svc, player, Options{MaxUploadBytes: 1 << 20}).Handler())
	t.Cleanup(srv.Close)
	return srv, player
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func uploadFile(t *testing.T, url, name, content string) (int, map[string]string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	fw.Write([]byte(content))
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func waitJob(t *testing.T, base, id string) task.Snapshot {
	t.Helper()
	var snap task.Snapshot
	require.Eventually(t, func() bool {
		snap = task.Snapshot{}
		doJSON(t, http.MethodGet, base+"/api/jobs/"+id, nil, &snap)
		return snap.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func uploadReady(t *testing.T, base string) string {
	t.Helper()
	code, out := uploadFile(t, base+"/api/tracks", "demo.wav", "RIFF")
	require.Equal(t, http.StatusAccepted, code)
	snap := waitJob(t, base, out["job_id"])
	require.Equal(t, task.StateSucceeded, snap.State)
	return out["track_id"]
}

func TestUploadAndWaveform(t *testing.T) {
	srv, _ := newTestServer(t, true)
	id := uploadReady(t, srv.URL)

	var wf struct {
		TrackID string    `json:"track_id"`
		Buckets int       `json:"buckets"`
		Peaks   []float32 `json:"peaks"`
		Path    string    `json:"path"`
	}
	code := doJSON(t, http.MethodGet, srv.URL+"/api/tracks/"+id+"/waveform", nil, &wf)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, wf.TrackID)
	assert.Equal(t, 4, wf.Buckets)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, wf.Peaks)
	assert.Equal(t, "M 0 50 L 0 30 L 0 70 L 1 30 L 1 70 L 2 30 L 2 70 L 3 30 L 3 70 L 100 50 Z", wf.Path)

	resp, err := http.Get(srv.URL + "/api/tracks/" + id + "/waveform?format=svg&closed=false")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	var svg bytes.Buffer
	svg.ReadFrom(resp.Body)
	assert.True(t, strings.HasPrefix(svg.String(), "<svg"))
	assert.Contains(t, svg.String(), `fill="none"`)

	var tracks []studio.Track
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/tracks", nil, &tracks))
	assert.Len(t, tracks, 1)
}

func TestUploadRequiresFile(t *testing.T) {
	srv, _ := newTestServer(t, true)
	resp, err := http.Post(srv.URL+"/api/tracks", "text/plain", strings.NewReader("nope"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsNonUploadView(t *testing.T) {
	srv, _ := newTestServer(t, true)
	code, _ := uploadFile(t, srv.URL+"/api/tracks?view=home", "a.wav", "x")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = uploadFile(t, srv.URL+"/api/tracks?view=bogus", "a.wav", "x")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPremiumGate(t *testing.T) {
	srv, _ := newTestServer(t, false)
	code, _ := uploadFile(t, srv.URL+"/api/tracks", "a.wav", "x")
	assert.Equal(t, http.StatusPaymentRequired, code)

	var view map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/views/aiStems", nil, &view))
	assert.Equal(t, true, view["locked"])
	assert.Equal(t, "AI Stems", view["title"])
}

func TestMasterFlow(t *testing.T) {
	srv, _ := newTestServer(t, true)
	id := uploadReady(t, srv.URL)

	var out map[string]string
	code := doJSON(t, http.MethodPost, srv.URL+"/api/tracks/"+id+"/master", map[string]string{"preset": "deep-impact"}, &out)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, task.StateSucceeded, waitJob(t, srv.URL, out["job_id"]).State)

	var view struct {
		State studio.MasteringState `json:"state"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/views/aiMastering", nil, &view))
	require.Len(t, view.State.Current, 1)
	assert.Equal(t, "mastered_demo.wav", view.State.Current[0].Name)
	assert.Equal(t, "Deep Impact", view.State.Current[0].Preset)
}

func TestMasterErrors(t *testing.T) {
	srv, _ := newTestServer(t, true)
	id := uploadReady(t, srv.URL)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/tracks/"+id+"/master", map[string]string{}, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, srv.URL+"/api/tracks/"+id+"/master", map[string]string{"preset": "x"}, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, srv.URL+"/api/tracks/missing/master", map[string]string{"preset": "deep-impact"}, nil))
}

func TestMasterWhileMasteringConflicts(t *testing.T) {
	srv, _ := newTestServer(t, true, func(o *studio.Options) { o.MasterStep = time.Hour })
	id := uploadReady(t, srv.URL)
	url := srv.URL + "/api/tracks/" + id + "/master"

	var out map[string]string
	require.Equal(t, http.StatusAccepted, doJSON(t, http.MethodPost, url, map[string]string{"preset": "deep-impact"}, &out))
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, url, map[string]string{"preset": "silky-smooth"}, nil))

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+out["job_id"], nil, nil))
	assert.Equal(t, task.StateCanceled, waitJob(t, srv.URL, out["job_id"]).State)
	assert.Equal(t, http.StatusAccepted, doJSON(t, http.MethodPost, url, map[string]string{"preset": "silky-smooth"}, &out))
	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+out["job_id"], nil, nil))
}

func TestStemsFlow(t *testing.T) {
	srv, _ := newTestServer(t, true)
	id := uploadReady(t, srv.URL)

	var out map[string]string
	code := doJSON(t, http.MethodPost, srv.URL+"/api/tracks/"+id+"/stems", map[string]any{"tab": "stem-splitter"}, &out)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, task.StateSucceeded, waitJob(t, srv.URL, out["job_id"]).State)

	var view struct {
		State studio.StemsState `json:"state"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/views/aiStems", nil, &view))
	require.Len(t, view.State.Processed, 1)
	assert.Len(t, view.State.Processed[0].Stems, 4)

	code = doJSON(t, http.MethodPost, srv.URL+"/api/tracks/"+id+"/stems", map[string]any{
		"main_vocals": false, "backing_vocals": false, "instrumental": false,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPreviewAndDelete(t *testing.T) {
	srv, player := newTestServer(t, true)
	id := uploadReady(t, srv.URL)

	assert.Equal(t, http.StatusAccepted, doJSON(t, http.MethodPost, srv.URL+"/api/tracks/"+id+"/preview", nil, nil))
	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/preview", nil, nil))

	player.mu.Lock()
	require.Len(t, player.loaded, 1)
	assert.Equal(t, id, player.loaded[0].ID)
	assert.Equal(t, 1, player.stopped)
	player.mu.Unlock()

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/tracks/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/tracks/"+id, nil, nil))
}

func TestPresetsAndStatus(t *testing.T) {
	srv, _ := newTestServer(t, true)

	var presets []studio.Preset
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/presets", nil, &presets))
	assert.Len(t, presets, 6)

	var status map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/status", nil, &status))
	assert.Equal(t, true, status["premium"])
}

func TestUnknownJobAndView(t *testing.T) {
	srv, _ := newTestServer(t, true)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/jobs/nope", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/nope", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/views/nope", nil, nil))
}
