package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigResolved(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, BackendAuto, cfg.Backend)
	if GoodFeaturesLinked() {
		assert.Equal(t, BackendGoodFeatures, cfg.Resolved())
	} else {
		assert.Equal(t, BackendShiTomasi, cfg.Resolved())
	}

	cfg.Backend = ""
	assert.Equal(t, DefaultConfig().Resolved(), cfg.Resolved())

	cfg.Backend = BackendShiTomasi
	assert.Equal(t, BackendShiTomasi, cfg.Resolved())
}

func TestConfigNew(t *testing.T) {
	t.Run("shi tomasi", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendShiTomasi
		d, err := cfg.New()
		require.NoError(t, err)
		assert.Equal(t, cfg.ShiTomasi, d)
	})

	t.Run("good features", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendGoodFeatures
		d, err := cfg.New()
		if !GoodFeaturesLinked() {
			assert.ErrorIs(t, err, ErrNoBackend)
			return
		}
		require.NoError(t, err)
		assert.Equal(t, cfg.GoodFeatures, d)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = "harris"
		_, err := cfg.New()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid detector backend: harris")
	})

	t.Run("settings of the resolved backend are checked", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendShiTomasi
		cfg.ShiTomasi.Radius = 0
		_, err := cfg.New()
		assert.ErrorContains(t, err, "invalid detector radius")

		// The unused backend is not validated.
		cfg = DefaultConfig()
		cfg.Backend = BackendShiTomasi
		cfg.GoodFeatures.QualityLevel = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestGoodFeaturesValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GoodFeatures)
		wantErr string
	}{
		{name: "defaults"},
		{name: "zero quality", mutate: func(d *GoodFeatures) { d.QualityLevel = 0 }, wantErr: "quality level"},
		{name: "quality above one", mutate: func(d *GoodFeatures) { d.QualityLevel = 1.5 }, wantErr: "quality level"},
		{name: "negative distance", mutate: func(d *GoodFeatures) { d.MinDistance = -1 }, wantErr: "min distance"},
		{name: "negative exclude", mutate: func(d *GoodFeatures) { d.ExcludeRadius = -1 }, wantErr: "exclude radius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DefaultGoodFeatures()
			if tt.mutate != nil {
				tt.mutate(&d)
			}
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGoodFeaturesExclusion(t *testing.T) {
	d := DefaultGoodFeatures()
	d.ExcludeRadius = 4
	exclude := []Point{{X: 10, Y: 10}, {X: 50.5, Y: 20}}

	assert.Equal(t, 7, d.request(5, exclude), "every excluded point may hide one corner")
	d.ExcludeRadius = 0
	assert.Equal(t, 5, d.request(5, exclude))
	d.ExcludeRadius = 4

	raw := []Corner{
		{X: 12, Y: 9, Score: 6},  // near (10,10)
		{X: 30, Y: 30, Score: 5}, // kept
		{X: 54, Y: 20, Score: 4}, // 3.5 from (50.5,20)
		{X: 14, Y: 10, Score: 3}, // exactly 4 away: kept
		{X: 60, Y: 60, Score: 2}, // kept
		{X: 70, Y: 70, Score: 1}, // over the limit
	}
	got := d.keep(raw, exclude, 3)
	assert.Equal(t, []Corner{raw[1], raw[3], raw[4]}, got)

	assert.Empty(t, d.keep(raw, exclude, 0))
}

func TestExcludedRadius(t *testing.T) {
	pts := []Point{{X: 5, Y: 5}}
	assert.True(t, excluded(5, 5, pts, 1))
	assert.False(t, excluded(6, 5, pts, 1))
	assert.False(t, excluded(5, 5, pts, 0))
	assert.False(t, excluded(5, 5, nil, 3))
}
