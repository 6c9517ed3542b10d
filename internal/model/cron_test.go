package model_test

import (
	"testing"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		then     bool
	}{
		{"valid_5_fields", "*/15 * * * *", true},
		{"macro_hourly", "@hourly", true},
		{"macro_every", "@every 5m", true},
		{"six_fields", "0 */2 * * * *", false},
		{"invalid_token", "* * 32 * *", false},
		{"empty", "  ", false},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			schedule, err := model.ParseCron(tc.given)
			if !tc.then {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, schedule)
		})
	}
}

func TestParseISODuration(t *testing.T) {
	t.Parallel()
	type then struct {
		d   time.Duration
		err error
	}
	var testCases = []struct {
		scenario string
		given    string
		then     then
	}{
		{"minutes", "PT5M", then{5 * time.Minute, nil}},
		{"day", "P1D", then{24 * time.Hour, nil}},
		{"hours", "PT2H", then{2 * time.Hour, nil}},
		{"mixed", "P1DT2H30M10S", then{26*time.Hour + 30*time.Minute + 10*time.Second, nil}},
		{"fraction", "PT1.5S", then{1500 * time.Millisecond, nil}},
		{"comma fraction", "PT0,25S", then{250 * time.Millisecond, nil}},
		{"ambiguous month", "P2M", then{0, model.ErrISOFormat}},
		{"dangling T", "P2DT", then{0, model.ErrISOFormat}},
		{"empty", "", then{0, model.ErrISOFormat}},
		{"only P", "P", then{0, model.ErrISOFormat}},
		{"garbage", "5m", then{0, model.ErrISOFormat}},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			d, err := model.ParseISODuration(tc.given)
			if tc.then.err != nil {
				require.ErrorIs(t, err, tc.then.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.then.d, d)
		})
	}
}
