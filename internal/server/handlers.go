package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MeKo-Tech/goklt/internal/common"
	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/MeKo-Tech/goklt/internal/report"
	"github.com/MeKo-Tech/goklt/internal/track"
	"github.com/MeKo-Tech/goklt/internal/version"
)

const (
	formatJSON = "json"

	// framesField is the multipart field holding the uploaded frames.
	framesField = "frames"
)

var contentTypes = map[string]string{
	formatJSON: "application/json",
	"text":     "text/plain; charset=utf-8",
	"csv":      "text/csv",
	"yaml":     "application/yaml",
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	build := version.Get()
	response := HealthResponse{
		Status:  "healthy",
		Version: build.Version,
		Build:   build,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health response", "error", err)
	}
}

// trackHandler tracks an uploaded sequence. Frames are sent as repeated
// multipart "frames" fields and processed in upload order by a fresh
// track manager.
func (s *Server) trackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	contentType, ok := contentTypes[format]
	if !ok {
		s.writeErrorResponse(w, "Unsupported output format: "+format, http.StatusBadRequest)
		return
	}

	maxBytes := s.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, fmt.Sprintf("Upload exceeds %d MB", s.maxUploadMB), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[framesField]
	if len(files) == 0 {
		s.writeErrorResponse(w, "No frames provided", http.StatusBadRequest)
		return
	}

	manager, err := s.newManager()
	if err != nil {
		s.writeErrorResponse(w, "Failed to create track manager: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer manager.Close()

	seq := &report.Sequence{}
	for i, fh := range files {
		s.metrics.uploadSizeBytes.Observe(float64(fh.Size))
		frame, err := s.trackUpload(manager, i, fh)
		if err != nil {
			s.metrics.framesTotal.WithLabelValues("http", "error").Inc()
			s.writeErrorResponse(w, err.Error(), trackErrorStatus(err))
			return
		}
		s.metrics.framesTotal.WithLabelValues("http", "success").Inc()
		seq.Add(frame)
	}

	s.logger.Info("sequence tracked",
		"frames", seq.Summary.Frames,
		"spawned", seq.Summary.TotalSpawned,
		"dropped", seq.Summary.TotalDropped,
		"active", seq.Summary.FinalActive)

	w.Header().Set("Content-Type", contentType)
	if format == formatJSON {
		if err := json.NewEncoder(w).Encode(TrackResponse{Success: true, Report: seq}); err != nil {
			s.logger.Error("Failed to encode track response", "error", err)
		}
		return
	}
	if err := report.Write(w, seq, format, s.precision); err != nil {
		s.logger.Error("Failed to write track response", "error", err)
	}
}

func (s *Server) trackUpload(m *track.Manager, index int, fh *multipart.FileHeader) (report.Frame, error) {
	f, err := fh.Open()
	if err != nil {
		return report.Frame{}, fmt.Errorf("failed to open frame %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return s.trackFrame(m, index, fh.Filename, f)
}

// trackFrame decodes one encoded frame and advances m by it.
func (s *Server) trackFrame(m *track.Manager, index int, name string, r io.Reader) (report.Frame, error) {
	img, err := gray.Decode(r, s.load)
	if err != nil {
		return report.Frame{}, fmt.Errorf("failed to decode frame %s: %w", name, err)
	}
	defer img.Release()

	timer := common.NewTimer()
	pyr, err := s.builder.Build(img)
	if err != nil {
		return report.Frame{}, fmt.Errorf("failed to build pyramid for %s: %w", name, err)
	}
	defer pyr.Release()

	if err := m.Process(pyr); err != nil {
		return report.Frame{}, fmt.Errorf("failed to track frame %s: %w", name, err)
	}
	return report.Capture(m, index, name, img.Width, img.Height, timer.Stop()), nil
}

// trackErrorStatus maps undecodable frames to 400 and frames that decode
// but cannot be tracked to 422.
func trackErrorStatus(err error) int {
	var ie *gray.ImageError
	if errors.As(err, &ie) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message}); err != nil {
		s.logger.Error("Failed to write error response", "error", err)
	}
}
