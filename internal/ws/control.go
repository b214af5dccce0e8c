package ws

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/obiente/translate/livescribe/internal/history"
)

const defaultRecentLimit = 50

// handleControl applies one client JSON message. Invalid or unknown
// messages are logged and dropped.
func (c *connection) handleControl(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn().Err(err).Msg("dropping invalid control message")
		return
	}
	typ, _ := msg["type"].(string)
	c.log.Debug().Str("type", typ).Msg("control message")

	switch typ {
	case "ping":
		c.send(map[string]any{"type": "pong", "ts": msg["ts"]})
	case "change_language":
		c.changeLanguage(msg)
	case "clear_history":
		removed := c.session.ClearHistory(int(asFloat(msg["keep_recent"])))
		c.log.Info().Int("removed", removed).Msg("history cleared")
		c.send(map[string]any{
			"type":    "history_cleared",
			"content": "Transcription history cleared successfully",
		})
	case "export_request":
		c.export(msg)
	case "get_recent_transcriptions":
		limit := defaultRecentLimit
		if v, ok := msg["limit"]; ok {
			limit = int(asFloat(v))
		}
		c.send(map[string]any{
			"type":    "recent_transcriptions",
			"content": c.session.History().Recent(limit),
		})
	case "set_speed":
		speed := asFloat(msg["speed"])
		speed = max(0, min(100, speed))
		c.session.SetSpeed(speed / 100)
	default:
		c.log.Warn().Str("type", typ).Msg("dropping unknown control message")
	}
}

func (c *connection) changeLanguage(msg map[string]any) {
	code, _ := msg["language"].(string)
	if code == "" {
		code = c.srv.deps.Config.DefaultLanguage
	}
	prev := c.session.Language()
	if err := c.session.SwitchLanguage(code); err != nil {
		c.log.Warn().Str("language", code).Strs("supported", c.srv.deps.Registry.Codes()).Msg("change_language rejected")
		c.send(map[string]any{"type": "error", "detail": "unsupported language: " + code})
		return
	}
	// An actual change is announced by the session hook.
	if prev == code {
		c.send(map[string]any{"type": "language_changed", "content": code})
	}
}

func (c *connection) export(msg map[string]any) {
	requested, _ := msg["format"].(string)
	requested = strings.ToLower(strings.TrimSpace(requested))
	format, err := history.ParseFormat(requested)
	if err != nil {
		format, requested = history.FormatJSON, "json"
	}
	data, err := c.session.History().Render(format, true, true)
	if err != nil {
		c.log.Error().Err(err).Msg("export render failed")
		c.send(map[string]any{"type": "error", "detail": "export failed"})
		return
	}
	c.send(map[string]any{
		"type":     "export_data",
		"format":   requested,
		"content":  string(data),
		"filename": fmt.Sprintf("transcription_%s.%s", time.Now().Format("20060102_150405"), format.Extension()),
	})
}
