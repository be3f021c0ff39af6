package support

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/goklt/internal/report"
	"github.com/MeKo-Tech/goklt/internal/testutil"
	"github.com/cucumber/godog"
)

// motionTolerance is the largest accepted deviation from the generated
// motion, in pixels per frame.
const motionTolerance = 0.25

// aSequenceOfFrames renders n translated frames into the frames directory.
func (testCtx *TestContext) aSequenceOfFrames(n int, vx, vy float64) error {
	return testCtx.aSequenceOfSizedFrames(n, 96, 80, vx, vy)
}

func (testCtx *TestContext) aSequenceOfSizedFrames(n, width, height int, vx, vy float64) error {
	dir := testCtx.TempPath("frames")
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create frames directory: %w", err)
	}

	testCtx.FramesDir = dir
	testCtx.MotionX, testCtx.MotionY = vx, vy
	testCtx.Frames = testCtx.Frames[:0]
	for i := range n {
		img := testutil.Shifted(width, height, vx*float64(i), vy*float64(i))
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		err := img.Save(path)
		img.Release()
		if err != nil {
			return fmt.Errorf("failed to save frame %d: %w", i, err)
		}
		testCtx.Frames = append(testCtx.Frames, path)
	}
	return nil
}

// aFileThatIsNotAnImage writes a text file named name into the temp directory.
func (testCtx *TestContext) aFileThatIsNotAnImage(name string) error {
	return os.WriteFile(testCtx.TempPath(name), []byte("not an image"), 0o600)
}

func (testCtx *TestContext) parseReport() (*report.Sequence, error) {
	var seq report.Sequence
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &seq); err != nil {
		return nil, fmt.Errorf("output is not a JSON tracking report: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return &seq, nil
}

// theReportShouldHaveFrames verifies the number of reported frames.
func (testCtx *TestContext) theReportShouldHaveFrames(n int) error {
	seq, err := testCtx.parseReport()
	if err != nil {
		return err
	}
	if len(seq.Frames) != n || seq.Summary.Frames != n {
		return fmt.Errorf("expected %d frames, report has %d (summary %d)", n, len(seq.Frames), seq.Summary.Frames)
	}
	return nil
}

// everyFrameShouldHaveAtMostActiveTracks verifies the track budget.
func (testCtx *TestContext) everyFrameShouldHaveAtMostActiveTracks(n int) error {
	seq, err := testCtx.parseReport()
	if err != nil {
		return err
	}
	for _, f := range seq.Frames {
		if len(f.Active) > n {
			return fmt.Errorf("frame %d has %d active tracks, budget is %d", f.Index, len(f.Active), n)
		}
	}
	return nil
}

// theFirstFrameShouldSpawnTracks verifies features were detected.
func (testCtx *TestContext) theFirstFrameShouldSpawnTracks() error {
	seq, err := testCtx.parseReport()
	if err != nil {
		return err
	}
	if len(seq.Frames) == 0 || len(seq.Frames[0].Spawned) == 0 {
		return fmt.Errorf("no tracks spawned on the first frame")
	}
	return nil
}

// survivingTracksShouldFollowTheMotion checks every track alive in both the
// first and last frame moved with the generated sequence.
func (testCtx *TestContext) survivingTracksShouldFollowTheMotion() error {
	seq, err := testCtx.parseReport()
	if err != nil {
		return err
	}
	if len(seq.Frames) < 2 {
		return fmt.Errorf("need at least two frames, got %d", len(seq.Frames))
	}

	first := seq.Frames[0]
	last := seq.Frames[len(seq.Frames)-1]
	steps := float64(last.Index - first.Index)

	start := make(map[int64][2]float64, len(first.Active))
	for _, t := range first.Active {
		start[t.ID] = [2]float64{t.X, t.Y}
	}

	survivors := 0
	for _, t := range last.Active {
		p, ok := start[t.ID]
		if !ok {
			continue
		}
		survivors++
		vx := (t.X - p[0]) / steps
		vy := (t.Y - p[1]) / steps
		if math.Abs(vx-testCtx.MotionX) > motionTolerance || math.Abs(vy-testCtx.MotionY) > motionTolerance {
			return fmt.Errorf("track %d moved %.3f, %.3f per frame, expected %.3f, %.3f",
				t.ID, vx, vy, testCtx.MotionX, testCtx.MotionY)
		}
	}
	if survivors == 0 {
		return fmt.Errorf("no track survived from frame %d to frame %d", first.Index, last.Index)
	}
	return nil
}

// noTrackShouldBeDropped verifies a static sequence loses no tracks.
func (testCtx *TestContext) noTrackShouldBeDropped() error {
	seq, err := testCtx.parseReport()
	if err != nil {
		return err
	}
	if seq.Summary.TotalDropped != 0 {
		return fmt.Errorf("expected no dropped tracks, got %d: %v", seq.Summary.TotalDropped, seq.Summary.DropReasons)
	}
	return nil
}

// RegisterTrackSteps registers frame generation and report steps.
func (testCtx *TestContext) RegisterTrackSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a sequence of (\d+) frames moving by ([-0-9.]+), ([-0-9.]+) pixels per frame$`, testCtx.aSequenceOfFrames)
	sc.Step(`^a sequence of (\d+) frames of (\d+)x(\d+) pixels moving by ([-0-9.]+), ([-0-9.]+) pixels per frame$`,
		testCtx.aSequenceOfSizedFrames)
	sc.Step(`^a file "([^"]*)" that is not an image$`, testCtx.aFileThatIsNotAnImage)
	sc.Step(`^the report should have (\d+) frames$`, testCtx.theReportShouldHaveFrames)
	sc.Step(`^every frame should have at most (\d+) active tracks$`, testCtx.everyFrameShouldHaveAtMostActiveTracks)
	sc.Step(`^the first frame should spawn tracks$`, testCtx.theFirstFrameShouldSpawnTracks)
	sc.Step(`^surviving tracks should follow the motion$`, testCtx.survivingTracksShouldFollowTheMotion)
	sc.Step(`^no track should be dropped$`, testCtx.noTrackShouldBeDropped)
}
