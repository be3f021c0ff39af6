// Package report renders per-frame tracking results as text, JSON, CSV or YAML.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/goklt/internal/common"
	"github.com/MeKo-Tech/goklt/internal/track"
	"gopkg.in/yaml.v3"
)

// Track statuses used in text and CSV output.
const (
	StatusActive  = "active"
	StatusSpawned = "spawned"
)

// Frame is the state of the track set after processing one frame.
type Frame struct {
	Index    int                  `json:"index" yaml:"index"`
	File     string               `json:"file" yaml:"file"`
	Width    int                  `json:"width" yaml:"width"`
	Height   int                  `json:"height" yaml:"height"`
	Duration time.Duration        `json:"duration_ns" yaml:"duration"`
	Active   []track.Track        `json:"active" yaml:"active"`
	Spawned  []track.Track        `json:"spawned" yaml:"spawned"`
	Dropped  []track.DroppedTrack `json:"dropped" yaml:"dropped"`
}

// Capture records the state of m after it processed one frame.
func Capture(m *track.Manager, index int, file string, width, height int, d time.Duration) Frame {
	return Frame{
		Index:    index,
		File:     file,
		Width:    width,
		Height:   height,
		Duration: d,
		Active:   m.Active(),
		Spawned:  m.Spawned(),
		Dropped:  m.Dropped(),
	}
}

// Summary aggregates a whole sequence.
type Summary struct {
	Frames       int                  `json:"frames" yaml:"frames"`
	TotalSpawned int                  `json:"total_spawned" yaml:"total_spawned"`
	TotalDropped int                  `json:"total_dropped" yaml:"total_dropped"`
	DropReasons  map[string]int       `json:"drop_reasons" yaml:"drop_reasons"`
	FinalActive  int                  `json:"final_active" yaml:"final_active"`
	Timing       common.DurationStats `json:"timing" yaml:"timing"`
}

// Sequence is the full result of tracking a list of frames.
type Sequence struct {
	Frames  []Frame `json:"frames" yaml:"frames"`
	Summary Summary `json:"summary" yaml:"summary"`
}

// Add appends a frame and updates the summary.
func (s *Sequence) Add(f Frame) {
	s.Frames = append(s.Frames, f)
	s.Summary.Frames++
	s.Summary.TotalSpawned += len(f.Spawned)
	s.Summary.TotalDropped += len(f.Dropped)
	s.Summary.FinalActive = len(f.Active)
	s.Summary.Timing.Add(f.Duration)
	if len(f.Dropped) > 0 && s.Summary.DropReasons == nil {
		s.Summary.DropReasons = make(map[string]int)
	}
	for _, d := range f.Dropped {
		s.Summary.DropReasons[d.Reason]++
	}
}

// Format renders the sequence. Precision is the number of decimals of
// positions in text and CSV output.
func Format(seq *Sequence, format string, precision int) (string, error) {
	switch format {
	case "json":
		return formatJSON(seq)
	case "yaml":
		return formatYAML(seq)
	case "csv":
		return formatCSV(seq, precision)
	case "", "text":
		return formatText(seq, precision), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// Write renders the sequence to w.
func Write(w io.Writer, seq *Sequence, format string, precision int) error {
	out, err := Format(seq, format, precision)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func formatJSON(seq *Sequence) (string, error) {
	bts, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

func formatYAML(seq *Sequence) (string, error) {
	bts, err := yaml.Marshal(seq)
	return string(bts), err
}

func spawnedIDs(f Frame) map[int64]bool {
	ids := make(map[int64]bool, len(f.Spawned))
	for _, t := range f.Spawned {
		ids[t.ID] = true
	}
	return ids
}

func formatCSV(seq *Sequence, precision int) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"frame", "file", "id", "x", "y", "status"}); err != nil {
		return "", err
	}

	num := func(v float64) string { return strconv.FormatFloat(v, 'f', precision, 64) }
	for _, f := range seq.Frames {
		isNew := spawnedIDs(f)
		frame := strconv.Itoa(f.Index)
		for _, t := range f.Active {
			status := StatusActive
			if isNew[t.ID] {
				status = StatusSpawned
			}
			row := []string{frame, f.File, strconv.FormatInt(t.ID, 10), num(t.X), num(t.Y), status}
			if err := writer.Write(row); err != nil {
				return "", err
			}
		}
		for _, d := range f.Dropped {
			row := []string{frame, f.File, strconv.FormatInt(d.ID, 10), num(d.X), num(d.Y), d.Reason}
			if err := writer.Write(row); err != nil {
				return "", err
			}
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(seq *Sequence, precision int) string {
	var output strings.Builder
	for i, f := range seq.Frames {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# frame %d %s (%dx%d) active=%d spawned=%d dropped=%d time=%v\n",
			f.Index, f.File, f.Width, f.Height, len(f.Active), len(f.Spawned), len(f.Dropped), f.Duration.Round(time.Microsecond))
		isNew := spawnedIDs(f)
		for _, t := range f.Active {
			status := StatusActive
			if isNew[t.ID] {
				status = StatusSpawned
			}
			fmt.Fprintf(&output, "%6d %10.*f %10.*f %s\n", t.ID, precision, t.X, precision, t.Y, status)
		}
		for _, d := range f.Dropped {
			fmt.Fprintf(&output, "%6d %10.*f %10.*f %s\n", d.ID, precision, d.X, precision, d.Y, d.Reason)
		}
	}

	s := seq.Summary
	fmt.Fprintf(&output, "\n# summary frames=%d spawned=%d dropped=%d active=%d mean_time=%v\n",
		s.Frames, s.TotalSpawned, s.TotalDropped, s.FinalActive, s.Timing.Mean().Round(time.Microsecond))
	return output.String()
}
