package server

import (
	"bytes"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/goklt/internal/config"
	"github.com/MeKo-Tech/goklt/internal/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 96
	testHeight = 80
	testVX     = 1.0
	testVY     = 0.5
)

// newTestServer returns a server with a small track budget and a private registry.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Manager.MaxFeatures = 30
	s, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		Track:       cfg.ToTrackConfig(),
		Detector:    cfg.Detector,
		Pyramid:     cfg.ToPyramidBuilder(),
		Precision:   3,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// encodeFrame renders frame i of a sequence moving by (testVX, testVY) per frame as PNG.
func encodeFrame(t *testing.T, i int) []byte {
	t.Helper()
	img := testutil.Shifted(testWidth, testHeight, float64(i)*testVX, float64(i)*testVY)
	defer img.Release()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img.ToGray()))
	return buf.Bytes()
}

// newTrackRequest builds a multipart /track request carrying the given frames.
func newTrackRequest(t *testing.T, target string, frames ...[]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for i, data := range frames {
		part, err := writer.CreateFormFile(framesField, "frame_"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
