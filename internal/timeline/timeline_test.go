package timeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "timeline.toml"))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.StartHour)
	assert.Equal(t, 23, cfg.EndHour)
	require.NotEmpty(t, cfg.Default.Events)
	assert.Equal(t, "06:30", cfg.Default.Events[0].Time)
	assert.Equal(t, "marker", cfg.Default.Events[0].Type)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.toml")
	content := `
start_hour = 7
end_hour = 22

[default]
events = [
  { time = "07:30", label = "Wake up", type = "marker" },
  { time = "09:00", label = "Work", type = "range-start" },
  { time = "17:00", label = "", type = "range-end" },
]

[[overrides]]
days = ["saturday", "sunday"]
events = [
  { time = "09:00", label = "Sleep in", type = "marker" },
]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.StartHour)
	assert.Equal(t, 22, cfg.EndHour)
	assert.Len(t, cfg.Default.Events, 3)
	require.Len(t, cfg.Overrides, 1)
	assert.Equal(t, []string{"saturday", "sunday"}, cfg.Overrides[0].Days)
}

func TestForDayUsesMatchingOverride(t *testing.T) {
	cfg := Config{
		StartHour: 6,
		EndHour:   23,
		Default: Schedule{
			Events: []Event{{Time: "08:30", Label: "Work", Type: "range-start"}},
		},
		Overrides: []Override{
			{
				Days:   []string{"saturday", "sunday"},
				Events: []Event{{Time: "10:00", Label: "Brunch", Type: "marker"}},
			},
		},
	}

	weekend := cfg.ForDay(time.Saturday)
	require.Len(t, weekend.Events, 1)
	assert.Equal(t, "Brunch", weekend.Events[0].Label)
	assert.Equal(t, 6, weekend.StartHour)
	assert.Equal(t, 23, weekend.EndHour)

	weekday := cfg.ForDay(time.Tuesday)
	require.Len(t, weekday.Events, 1)
	assert.Equal(t, "Work", weekday.Events[0].Label)
}

func TestForDayFirstMatchingOverrideWins(t *testing.T) {
	cfg := Config{
		Default: Schedule{Events: []Event{{Time: "08:00", Label: "Default", Type: "marker"}}},
		Overrides: []Override{
			{Days: []string{"monday"}, Events: []Event{{Time: "09:00", Label: "First", Type: "marker"}}},
			{Days: []string{"monday"}, Events: []Event{{Time: "10:00", Label: "Second", Type: "marker"}}},
		},
	}

	resp := cfg.ForDay(time.Monday)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "First", resp.Events[0].Label)
}

func TestForDayIsCaseInsensitive(t *testing.T) {
	cfg := Config{
		Default: Schedule{Events: []Event{{Time: "08:00", Label: "Default", Type: "marker"}}},
		Overrides: []Override{
			{Days: []string{"Friday"}, Events: []Event{{Time: "16:00", Label: "Early finish", Type: "marker"}}},
		},
	}

	resp := cfg.ForDay(time.Friday)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Early finish", resp.Events[0].Label)
}
