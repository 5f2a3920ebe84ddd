package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/logging/logtest"
	"github.com/yolostream/yolostream/postprocess"
	"github.com/yolostream/yolostream/source"
	"github.com/yolostream/yolostream/storage"
	"gocv.io/x/gocv"
	"go.viam.com/test"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeDetector struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDetector) Detect(img gocv.Mat, threshold float32) ([]postprocess.DetectResult, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	return []postprocess.DetectResult{
		{Class: 0, Probability: 0.9, Box: postprocess.BoxRect{Left: 4, Top: 20, Right: 30, Bottom: 40}},
	}, nil
}

func (f *fakeDetector) count() int {

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// frameSource yields n frames, or frames forever when n is negative
type frameSource struct {
	n       int
	read    int
	delay   time.Duration
	once    sync.Once
	release func()
}

func (f *frameSource) Next() (gocv.Mat, error) {

	if f.n >= 0 && f.read >= f.n {
		return gocv.Mat{}, yolostream.ErrEndOfStream
	}

	f.read++
	time.Sleep(f.delay)

	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 60, 90, 0), 48, 64, gocv.MatTypeCV8UC3), nil
}

func (f *frameSource) Close() error {

	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
	})

	return nil
}

// claimedCamera opens an endless source holding a claim on device 0 for as
// long as it is open
func claimedCamera(claims *source.Claims) source.Opener {
	return func() (source.FrameSource, error) {

		if !claims.Acquire(0) {
			return nil, errors.Wrap(yolostream.ErrSourceUnavailable, "camera 0 is in use")
		}

		return &frameSource{n: -1, delay: 5 * time.Millisecond,
			release: func() { claims.Release(0) }}, nil
	}
}

type fixture struct {
	srv     *Server
	det     *fakeDetector
	claims  *source.Claims
	uploads string
	results string
}

func newFixture(t *testing.T) *fixture {

	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	results := filepath.Join(root, "results")

	store, err := storage.New(uploads, results)
	test.That(t, err, test.ShouldBeNil)

	det := &fakeDetector{}
	claims := source.NewClaims()

	srv, err := New(Config{
		StreamDetector: det,
		UploadDetector: det,
		Labels:         yolostream.COCOLabels,
		Store:          store,
		Camera:         claimedCamera(claims),
		OpenVideo: func(path string) source.Opener {
			return func() (source.FrameSource, error) {
				if _, err := os.Stat(path); err != nil {
					return nil, errors.Wrap(yolostream.ErrSourceUnavailable, err.Error())
				}
				return &frameSource{n: 3}, nil
			}
		},
		Logger: logtest.NewTestLogger(t),
	})
	test.That(t, err, test.ShouldBeNil)

	return &fixture{srv: srv, det: det, claims: claims, uploads: uploads, results: results}
}

// upload builds a multipart request with a single file field
func upload(t *testing.T, path, field, filename string, data []byte) *http.Request {

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		test.That(t, err, test.ShouldBeNil)
		_, err = fw.Write(data)
		test.That(t, err, test.ShouldBeNil)
	}

	test.That(t, mw.Close(), test.ShouldBeNil)

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

func pngBytes(t *testing.T) []byte {

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))

	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img), test.ShouldBeNil)

	return buf.Bytes()
}

func dirEntries(t *testing.T, dir string) int {

	entries, err := os.ReadDir(dir)
	test.That(t, err, test.ShouldBeNil)

	return len(entries)
}

func TestIndex(t *testing.T) {

	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Body.String(), test.ShouldContainSubstring, "Start Webcam Feed")
	test.That(t, rec.Body.String(), test.ShouldNotContainSubstring, "detection result")
	test.That(t, rec.Header().Get("X-Request-Id"), test.ShouldNotBeEmpty)
}

func TestDetectImageMissingFile(t *testing.T) {

	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"no field", func(t *testing.T) *http.Request {
			return upload(t, "/detect_image", "", "", nil)
		}},
		{"empty filename", func(t *testing.T) *http.Request {
			return upload(t, "/detect_image", "image", "", pngBytes(t))
		}},
		{"empty file", func(t *testing.T) *http.Request {
			return upload(t, "/detect_image", "image", "cat.png", nil)
		}},
		{"not multipart", func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/detect_image", strings.NewReader("x"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			f := newFixture(t)
			rec := httptest.NewRecorder()

			f.srv.Handler().ServeHTTP(rec, tt.req(t))

			test.That(t, rec.Code, test.ShouldEqual, http.StatusSeeOther)
			test.That(t, rec.Header().Get("Location"), test.ShouldEqual, "/")
			test.That(t, f.det.count(), test.ShouldEqual, 0)
			test.That(t, dirEntries(t, f.results), test.ShouldEqual, 0)
			test.That(t, dirEntries(t, f.uploads), test.ShouldEqual, 0)
		})
	}
}

func TestDetectImage(t *testing.T) {

	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, upload(t, "/detect_image", "image", "cat.png", pngBytes(t)))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Body.String(), test.ShouldContainSubstring, `src="data:image/png;base64,`)
	test.That(t, f.det.count(), test.ShouldEqual, 1)

	_, err := os.Stat(filepath.Join(f.uploads, "cat.png"))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(f.results, "cat.png"))
	test.That(t, err, test.ShouldBeNil)
}

func TestDetectImageUndecodable(t *testing.T) {

	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, upload(t, "/detect_image", "image", "junk.png", []byte("not an image")))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, f.det.count(), test.ShouldEqual, 0)
	test.That(t, dirEntries(t, f.results), test.ShouldEqual, 0)
}

func TestDetectImageTooLarge(t *testing.T) {

	f := newFixture(t)
	f.srv.cfg.MaxUpload = 64
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, upload(t, "/detect_image", "image", "cat.png", pngBytes(t)))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusRequestEntityTooLarge)
	test.That(t, f.det.count(), test.ShouldEqual, 0)
}

func TestDetectVideo(t *testing.T) {

	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, upload(t, "/detect_video", "video", "clip.mp4", []byte("fake video bytes")))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Header().Get("Content-Type"), test.ShouldEqual, "multipart/x-mixed-replace; boundary=frame")
	test.That(t, strings.Count(rec.Body.String(), "--frame\r\n"), test.ShouldEqual, 3)
	test.That(t, f.det.count(), test.ShouldEqual, 3)

	data, err := os.ReadFile(filepath.Join(f.uploads, "clip.mp4"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "fake video bytes")
}

func TestDetectVideoMissingFile(t *testing.T) {

	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, upload(t, "/detect_video", "image", "cat.png", pngBytes(t)))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusSeeOther)
	test.That(t, dirEntries(t, f.uploads), test.ShouldEqual, 0)
}

func TestVideoFeedUnavailable(t *testing.T) {

	f := newFixture(t)
	test.That(t, f.claims.Acquire(0), test.ShouldBeTrue)

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video_feed", nil))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusServiceUnavailable)
	test.That(t, rec.Body.String(), test.ShouldContainSubstring, "camera 0 is in use")
	test.That(t, rec.Body.String(), test.ShouldNotContainSubstring, "--frame")
	test.That(t, f.det.count(), test.ShouldEqual, 0)
}

func TestVideoFeedContention(t *testing.T) {

	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	first, err := http.Get(ts.URL + "/video_feed")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.StatusCode, test.ShouldEqual, http.StatusOK)

	// wait for the first part so the camera is certainly held
	line, err := bufio.NewReader(first.Body).ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "--frame\r\n")

	second, err := http.Get(ts.URL + "/video_feed")
	test.That(t, err, test.ShouldBeNil)
	body, err := io.ReadAll(second.Body)
	second.Body.Close()
	test.That(t, err, test.ShouldBeNil)

	test.That(t, second.StatusCode, test.ShouldEqual, http.StatusServiceUnavailable)
	test.That(t, string(body), test.ShouldNotContainSubstring, "--frame")

	// disconnecting the first client releases the camera
	first.Body.Close()

	deadline := time.Now().Add(5 * time.Second)

	for f.claims.Held(0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	test.That(t, f.claims.Held(0), test.ShouldBeFalse)
}

func TestHealth(t *testing.T) {

	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	var got struct {
		Status  string `json:"status"`
		Classes int    `json:"classes"`
	}

	test.That(t, json.Unmarshal(rec.Body.Bytes(), &got), test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, "ok")
	test.That(t, got.Classes, test.ShouldEqual, 83)
}

func TestStatusCode(t *testing.T) {

	tests := []struct {
		err  error
		want int
	}{
		{errors.Wrap(yolostream.ErrSourceUnavailable, "camera"), http.StatusServiceUnavailable},
		{errors.Wrap(yolostream.ErrDecode, "junk.png"), http.StatusBadRequest},
		{errors.Wrap(storage.ErrInvalidFilename, ".."), http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		test.That(t, statusCode(tt.err), test.ShouldEqual, tt.want)
	}
}

func TestNewRequiresDetectors(t *testing.T) {

	_, err := New(Config{})
	test.That(t, err, test.ShouldNotBeNil)
}
