package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Run("STATUS Command", func(t *testing.T) {
		cmd, err := ParseCommand("STATUS")
		require.NoError(t, err)
		assert.Equal(t, CmdStatus, cmd.Type)
		assert.Empty(t, cmd.Args)
	})

	t.Run("Lowercase And Whitespace", func(t *testing.T) {
		cmd, err := ParseCommand("  ping \n")
		require.NoError(t, err)
		assert.Equal(t, CmdPing, cmd.Type)
	})

	cases := []struct {
		text string
		typ  string
		key  string
		want string
	}{
		{"THRESHOLD:-70", CmdThreshold, "value", "-70"},
		{"threshold: -45 ", CmdThreshold, "value", "-45"},
		{"SCREEN:Spectrum", CmdScreen, "screen", "spectrum"},
		{"SWIPE:LEFT", CmdSwipe, "direction", "left"},
		{"MENU:SubGHz", CmdMenu, "card", "subghz"},
		{"DETECTIONS:20", CmdDetections, "limit", "20"},
		{"CHIME:Detect", CmdChime, "event", "detect"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			cmd, err := ParseCommand(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.typ, cmd.Type)
			assert.Equal(t, tc.want, cmd.Args[tc.key])
		})
	}

	t.Run("THRESHOLD Without Value", func(t *testing.T) {
		cmd, err := ParseCommand("THRESHOLD")
		require.NoError(t, err)
		_, ok := cmd.Args["value"]
		assert.False(t, ok)
	})

	t.Run("Unknown Command Keeps Type", func(t *testing.T) {
		cmd, err := ParseCommand("REBOOT:now")
		require.NoError(t, err)
		assert.Equal(t, "REBOOT", cmd.Type)
		assert.Empty(t, cmd.Args)
	})
}

func TestResponse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{"threshold": -60})
		var decoded Response
		require.NoError(t, json.Unmarshal([]byte(resp.String()), &decoded))
		assert.True(t, decoded.Success)
		assert.Equal(t, float64(-60), decoded.Data["threshold"])
		assert.Empty(t, decoded.Error)
	})

	t.Run("Error", func(t *testing.T) {
		resp := NewErrorResponse("unknown screen")
		assert.JSONEq(t, `{"success":false,"error":"unknown screen"}`, resp.String())
	})
}
