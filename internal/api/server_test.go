package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenbridge/internal/backend/backendtest"
	"screenbridge/internal/capture"
	"screenbridge/internal/display"
	"screenbridge/internal/input"
	"screenbridge/internal/liveness"
	"screenbridge/internal/protocol"
	"screenbridge/internal/window"
)

// fakeDesktop answers tool invocations the way a small X11 desktop would
type fakeDesktop struct {
	mu     sync.Mutex
	width  int
	height int
}

func (d *fakeDesktop) handle(c backendtest.Call) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch c.Name {
	case "scrot", "grim", "gnome-screenshot":
		img := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(c.Args[len(c.Args)-1], buf.Bytes(), 0o600)
	case "wmctrl":
		if c.Args[0] == "-l" {
			return []byte("0x04000007  0 1234   myhost Terminal - bash\n"), nil
		}
	case "xdotool":
		if c.Args[0] == "getmouselocation" {
			return []byte("x:12 y:34 screen:0 window:1\n"), nil
		}
	}
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *backendtest.Recorder) {
	t.Helper()
	desktop := &fakeDesktop{width: 100, height: 100}
	rec := &backendtest.Recorder{Handler: desktop.handle}
	deps := Deps{
		Capturer: capture.New(rec, capture.Options{Session: display.SessionX11, TempDir: t.TempDir()}),
		Input:    input.NewInjector(rec, nil, nil),
		Windows:  window.NewManager(rec, nil),
	}
	s := NewServer(deps, Options{Capabilities: Capabilities{Session: "x11", CaptureStrategy: "x11-scrot"}})
	return s, rec
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, map[string]any{"status": "ok", "service": "screencontrol-gui-bridge"}, decodeJSON(t, w))
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nonexistent"},
		{http.MethodPost, "/nonexistent"},
		{http.MethodPost, "/health"},
		{http.MethodGet, "/click"},
		{http.MethodDelete, "/screenshot"},
	} {
		w := do(t, s.Handler(), tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestOptionsOnAnyPath(t *testing.T) {
	s, rec := newTestServer(t)
	for _, path := range []string{"/click", "/anything/at/all", "/"} {
		w := do(t, s.Handler(), http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Empty(t, w.Body.String())
	}
	assert.Empty(t, rec.Calls())
}

func TestClickEmptyBodyDefaults(t *testing.T) {
	s, rec := newTestServer(t)
	w := do(t, s.Handler(), http.MethodPost, "/click", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, []string{"xdotool mousemove 0 0", "xdotool click 1"}, rec.Lines())
}

func TestClickBodyVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"empty object", `{}`, []string{"xdotool mousemove 0 0", "xdotool click 1"}},
		{"right", `{"x":10,"y":20,"button":"right"}`, []string{"xdotool mousemove 10 20", "xdotool click 3"}},
		{"unknown button", `{"x":1,"y":2,"button":"side"}`, []string{"xdotool mousemove 1 2", "xdotool click 1"}},
		{"numeric strings", `{"x":"15","y":"25.7","button":"middle"}`, []string{"xdotool mousemove 15 25", "xdotool click 2"}},
		{"malformed numbers", `{"x":"abc","y":[1],"button":null}`, []string{"xdotool mousemove 0 0", "xdotool click 1"}},
		{"floats", `{"x":3.9,"y":-2.5}`, []string{"xdotool mousemove 3 -2", "xdotool click 1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, rec := newTestServer(t)
			w := do(t, s.Handler(), http.MethodPost, "/click", tc.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tc.want, rec.Lines())
		})
	}
}

func TestMalformedJSONIsServerError(t *testing.T) {
	s, rec := newTestServer(t)
	w := do(t, s.Handler(), http.MethodPost, "/mouse/move", `{"x":`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeJSON(t, w)["error"], "malformed request body")
	assert.Empty(t, rec.Calls())
}

func TestNonObjectBodyIsServerError(t *testing.T) {
	for _, body := range []string{"null", "[]", "3", `"x"`} {
		s, rec := newTestServer(t)
		w := do(t, s.Handler(), http.MethodPost, "/click", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code, body)
		assert.Contains(t, decodeJSON(t, w)["error"], "malformed request body")
		assert.Empty(t, rec.Calls(), body)
	}
}

func TestBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t)
	s.maxBody = 16
	w := do(t, s.Handler(), http.MethodPost, "/keyboard/type", `{"text":"this body is longer than sixteen bytes"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPostRoutesDispatch(t *testing.T) {
	cases := []struct {
		path string
		body string
		want []string
	}{
		{"/double_click", `{"x":5,"y":6}`, []string{"xdotool mousemove 5 6", "xdotool click --repeat 2 1"}},
		{"/mouse/move", `{"x":7,"y":8}`, []string{"xdotool mousemove 7 8"}},
		{"/mouse/scroll", `{}`, []string{"xdotool click --repeat 3 5"}},
		{"/mouse/scroll", `{"direction":"up","amount":2}`, []string{"xdotool click --repeat 2 4"}},
		{"/mouse/drag", `{"startX":1,"startY":2,"endX":3,"endY":4}`, []string{
			"xdotool mousemove 1 2",
			"xdotool mousedown 1",
			"xdotool mousemove 3 4",
			"xdotool mouseup 1",
		}},
		{"/keyboard/type", `{"text":"hello world"}`, []string{"xdotool type --clearmodifiers hello world"}},
		{"/keyboard/key", `{"key":"Enter"}`, []string{"xdotool key Return"}},
		{"/keyboard/key", `{"key":"ctrl+c"}`, []string{"xdotool key ctrl+c"}},
		{"/ui/focus", `{"windowId":"0x04000007"}`, []string{"wmctrl -i -a 0x04000007"}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			s, rec := newTestServer(t)
			w := do(t, s.Handler(), http.MethodPost, tc.path, tc.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, `{"success":true}`, w.Body.String())
			assert.Equal(t, tc.want, rec.Lines())
		})
	}
}

func TestBackendFailureReportsUnsuccessful(t *testing.T) {
	s, rec := newTestServer(t)
	rec.Handler = backendtest.Fail("xdotool")

	w := do(t, s.Handler(), http.MethodPost, "/keyboard/key", `{"key":"tab"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false}`, w.Body.String())
}

func TestMissingToolReportsUnsuccessful(t *testing.T) {
	s, rec := newTestServer(t)
	rec.Missing = map[string]bool{"wmctrl": true}

	w := do(t, s.Handler(), http.MethodPost, "/ui/focus", `{"windowId":"0x1"}`)
	assert.JSONEq(t, `{"success":false}`, w.Body.String())

	w = do(t, s.Handler(), http.MethodGet, "/ui/windows", "")
	assert.JSONEq(t, `{"success":true,"windows":[]}`, w.Body.String())
}

func TestMousePosition(t *testing.T) {
	s, rec := newTestServer(t)
	w := do(t, s.Handler(), http.MethodGet, "/mouse/position", "")
	assert.JSONEq(t, `{"success":true,"x":12,"y":34}`, w.Body.String())

	rec.Handler = backendtest.Fail("xdotool")
	w = do(t, s.Handler(), http.MethodGet, "/mouse/position", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"x":0,"y":0}`, w.Body.String())
}

func TestListWindows(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), http.MethodGet, "/ui/windows", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"windows":[
		{"id":"0x04000007","desktop":"0","pid":"1234","machine":"myhost","title":"Terminal - bash"}
	]}`, w.Body.String())
}

func TestScreenshotBase64(t *testing.T) {
	s, rec := newTestServer(t)
	w := do(t, s.Handler(), http.MethodGet, "/screenshot?format=png&return_base64=TRUE", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "png", body["format"])

	data, err := base64.StdEncoding.DecodeString(body["data"].(string))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, "scrot", rec.Calls()[0].Name)
}

func TestScreenshotBase64JPEG(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), http.MethodGet, "/screenshot?format=jpeg&return_base64=true", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "jpeg", body["format"])

	data, err := base64.StdEncoding.DecodeString(body["data"].(string))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestScreenshotRawJPEGDefault(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s.Handler(), http.MethodGet, "/screenshot?format=&return_base64=yes", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, color.YCbCrModel, cfg.ColorModel)
	assert.Equal(t, 100, cfg.Width)
}

func TestScreenshotRejectsBadParams(t *testing.T) {
	s, rec := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/screenshot?quality=high", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeJSON(t, w)["error"], "invalid quality")

	w = do(t, s.Handler(), http.MethodGet, "/screenshot?format=bmp", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeJSON(t, w)["error"], "unsupported")

	assert.Empty(t, rec.Calls())
}

func TestScreenshotCaptureFailure(t *testing.T) {
	s, rec := newTestServer(t)
	rec.Handler = backendtest.Fail("scrot")

	w := do(t, s.Handler(), http.MethodGet, "/screenshot", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, decodeJSON(t, w)["error"])
}

func TestClientDisconnectDoesNotAbortDrag(t *testing.T) {
	s, rec := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/mouse/drag", strings.NewReader(`{"startX":1,"startY":2,"endX":3,"endY":4}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, []string{
		"xdotool mousemove 1 2",
		"xdotool mousedown 1",
		"xdotool mousemove 3 4",
		"xdotool mouseup 1",
	}, rec.Lines())
}

// blockingController holds MoveMouse until release is closed
type blockingController struct {
	input.Controller
	entered chan struct{}
	release chan struct{}
}

func (b blockingController) MoveMouse(context.Context, int, int) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestRequestsAreNotSerialized(t *testing.T) {
	ctl := blockingController{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewServer(Deps{Input: ctl}, Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	moved := make(chan error, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/mouse/move", "application/json", strings.NewReader(`{}`))
		if err == nil {
			resp.Body.Close()
		}
		moved <- err
	}()

	select {
	case <-ctl.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("move request never reached the controller")
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	close(ctl.release)
	require.NoError(t, <-moved)
}

type panicController struct{ input.Controller }

func (panicController) MoveMouse(context.Context, int, int) error { panic("boom") }

func TestRecoverMiddleware(t *testing.T) {
	s := NewServer(Deps{Input: panicController{}}, Options{})
	w := do(t, s.Handler(), http.MethodPost, "/mouse/move", `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

// fakeStatus is a StatusSource driven by the test
type fakeStatus struct {
	mu      sync.Mutex
	current liveness.Status
	subs    []chan liveness.Status
}

func (f *fakeStatus) Status() liveness.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeStatus) Subscribe() (<-chan liveness.Status, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan liveness.Status, 1)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeStatus) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeStatus) publish(st liveness.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = st
	for _, ch := range f.subs {
		ch <- st
	}
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeStatus{current: liveness.Status{State: liveness.StateDisconnected, Reason: liveness.ReasonNotRunning}}
	s := NewServer(Deps{Liveness: src}, Options{Capabilities: Capabilities{Session: "wayland", CaptureStrategy: "wayland-grim"}})

	w := do(t, s.Handler(), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Capabilities
		Service string                 `json:"service"`
		Control protocol.StatusPayload `json:"control"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "wayland", body.Session)
	assert.Equal(t, "wayland-grim", body.CaptureStrategy)
	assert.True(t, body.Degraded)
	assert.Equal(t, ServiceName, body.Service)
	assert.False(t, body.Control.Connected)
	assert.Equal(t, "disconnected", body.Control.State)
	assert.Equal(t, "Status: Service not running", body.Control.Label)
}

func readStatus(t *testing.T, conn *websocket.Conn) protocol.StatusPayload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type    protocol.MessageType   `json:"type"`
		Payload protocol.StatusPayload `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, protocol.TypeStatus, msg.Type)
	return msg.Payload
}

func TestStatusStream(t *testing.T) {
	src := &fakeStatus{}
	s := NewServer(Deps{Liveness: src}, Options{})
	require.NoError(t, s.Listen(0))

	errc := make(chan error, 1)
	go func() { errc <- s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
		assert.NoError(t, <-errc)
	})

	require.Eventually(t, func() bool { return src.subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/status/stream", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readStatus(t, conn)
	assert.Equal(t, "unknown", first.State)
	assert.Equal(t, "Status: Checking...", first.Label)

	require.Eventually(t, func() bool { return s.hub.clientCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	src.publish(liveness.Status{State: liveness.StateConnected, CheckedAt: time.Now()})

	next := readStatus(t, conn)
	assert.True(t, next.Connected)
	assert.Equal(t, "Status: Connected", next.Label)

	require.NoError(t, conn.WriteJSON(protocol.Message{Type: protocol.TypePing}))
	again := readStatus(t, conn)
	assert.Equal(t, "connected", again.State)
}

func TestListenIsLoopbackOnly(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Listen(0))
	t.Cleanup(func() { s.Stop(context.Background()) })

	assert.Contains(t, s.Addr().String(), "127.0.0.1:")
}

func TestPingRepliesOnlyToSender(t *testing.T) {
	src := &fakeStatus{current: liveness.Status{State: liveness.StateConnected}}
	s := NewServer(Deps{Liveness: src}, Options{})
	require.NoError(t, s.Listen(0))

	errc := make(chan error, 1)
	go func() { errc <- s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
		assert.NoError(t, <-errc)
	})
	require.Eventually(t, func() bool { return src.subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	url := "ws://" + s.Addr().String() + "/status/stream"
	sender, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer sender.Close()
	other, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer other.Close()

	readStatus(t, sender)
	readStatus(t, other)
	require.Eventually(t, func() bool { return s.hub.clientCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteJSON(protocol.Message{Type: protocol.TypePing}))
	assert.True(t, readStatus(t, sender).Connected)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = other.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}
