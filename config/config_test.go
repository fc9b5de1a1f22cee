package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"contact-metrics/config"
	"contact-metrics/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONTACT_METRICS_CONFIG", "")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Segmentation.GapThresholdHours)
	assert.Equal(t, "SEM NF", cfg.Segmentation.NoInvoiceMarker)
	assert.Equal(t, "RECLAME AQUI", cfg.Segmentation.ComplaintSiteMarker)
	assert.Equal(t, 0.70, cfg.Capacity.Utilization)
	assert.Equal(t, "07:30", cfg.Capacity.ShiftStart)
	assert.Equal(t, "17:18", cfg.Capacity.ShiftEnd)
	assert.InDelta(t, 5.3833, cfg.Capacity.TargetHandleTime[models.SectorSAC], 0.0001)
	assert.InDelta(t, 5.1333, cfg.Capacity.TargetHandleTime[models.SectorBacklog], 0.0001)
	assert.InDelta(t, 5.3833, cfg.Capacity.TargetHandleTime[models.SectorOther], 0.0001)
	assert.Equal(t, 6, cfg.HandleTime.MinSamples)
	assert.Equal(t, []string{"cancelamento", "cancellation"}, cfg.Recurrence.CancellationKeywords)
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := map[string]struct {
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		"GapThreshold": {
			env: map[string]string{"GAP_THRESHOLD_HOURS": "24"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 24.0, cfg.Segmentation.GapThresholdHours)
			},
		},
		"SectorTargets": {
			env: map[string]string{
				"TARGET_HANDLE_TIME_SAC":   "5.15",
				"TARGET_HANDLE_TIME_OTHER": "7",
			},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 5.15, cfg.Capacity.TargetHandleTime[models.SectorSAC])
				assert.Equal(t, 7.0, cfg.Capacity.TargetHandleTime[models.SectorOther])
			},
		},
		"Keywords": {
			env: map[string]string{"CANCELLATION_KEYWORDS": "cancel, estorno"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, []string{"cancel", "estorno"}, cfg.Recurrence.CancellationKeywords)
			},
		},
		"InvalidUtilizationValue": {
			env:     map[string]string{"UTILIZATION_FACTOR": "high"},
			wantErr: true,
		},
		"UtilizationOutOfRange": {
			env:     map[string]string{"UTILIZATION_FACTOR": "1.5"},
			wantErr: true,
		},
		"InvalidSampleCount": {
			env:     map[string]string{"MIN_HANDLE_TIME_SAMPLES": "six"},
			wantErr: true,
		},
		"ShiftEndBeforeStart": {
			env:     map[string]string{"SHIFT_START": "18:00", "SHIFT_END": "08:00"},
			wantErr: true,
		},
		"MalformedShift": {
			env:     map[string]string{"SHIFT_START": "7h30"},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONTACT_METRICS_CONFIG", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load("")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("CONTACT_METRICS_CONFIG", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
segmentation:
  gap_threshold_hours: 24
capacity:
  utilization: 0.8
  target_handle_time:
    backlog: 4.5
recurrence:
  cancellation_keywords: [desistencia]
  top_n: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 24.0, cfg.Segmentation.GapThresholdHours)
	assert.Equal(t, 0.8, cfg.Capacity.Utilization)
	assert.Equal(t, 4.5, cfg.Capacity.TargetHandleTime[models.SectorBacklog])
	assert.InDelta(t, 5.3833, cfg.Capacity.TargetHandleTime[models.SectorSAC], 0.0001)
	assert.Equal(t, []string{"desistencia"}, cfg.Recurrence.CancellationKeywords)
	assert.Equal(t, 100, cfg.Recurrence.TopN)
	assert.Equal(t, "SEM NF", cfg.Segmentation.NoInvoiceMarker)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Setenv("CONTACT_METRICS_CONFIG", "")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capacity: [1, 2"), 0o600))
	_, err = config.Load(path)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	d, err := config.ParseClock("17:18")
	require.NoError(t, err)
	assert.Equal(t, 17*60+18.0, d.Minutes())

	_, err = config.ParseClock("25:00")
	assert.Error(t, err)
}
