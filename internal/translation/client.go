// Package translation enriches final transcripts through a
// LibreTranslate-compatible HTTP API.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/obiente/translate/livescribe/internal/language"
)

// Translation is the result for one target language.
type Translation struct {
	Primary          string   `json:"primary"`
	Alternatives     []string `json:"alternatives,omitempty"`
	DetectedLanguage string   `json:"detectedLanguage,omitempty"`
}

type Client struct {
	base string
	http *http.Client
}

func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// SourceCode maps a session language to a translation source code.
// Code-switched or unknown text is left to the server to detect.
func SourceCode(lang string) string {
	switch lang {
	case language.English, language.Hindi:
		return lang
	}
	return "auto"
}

// Translate requests text in every target language, skipping targets equal
// to the source. It calls /translate once per target with the
// LibreTranslate payload (q, source, target, format, alternatives).
func (c *Client) Translate(ctx context.Context, text, source string, targets []string, altLimit int) (map[string]Translation, error) {
	out := make(map[string]Translation, len(targets))
	if c == nil || c.base == "" || len(targets) == 0 || strings.TrimSpace(text) == "" {
		return out, nil
	}
	src := SourceCode(strings.TrimSpace(source))
	for _, tgt := range targets {
		if tgt == src {
			continue
		}
		tr, err := c.translateOne(ctx, text, src, tgt, altLimit)
		if err != nil {
			return nil, err
		}
		out[tgt] = tr
	}
	return out, nil
}

func (c *Client) translateOne(ctx context.Context, text, src, tgt string, altLimit int) (Translation, error) {
	payload := map[string]any{
		"q":      text,
		"source": src,
		"target": tgt,
		"format": "text",
	}
	if altLimit > 0 {
		payload["alternatives"] = altLimit
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return Translation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Translation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Translation{}, fmt.Errorf("translation http %d for target %s", resp.StatusCode, tgt)
	}

	var lr struct {
		TranslatedText   string   `json:"translatedText"`
		Alternatives     []string `json:"alternatives"`
		DetectedLanguage struct {
			Language string `json:"language"`
		} `json:"detectedLanguage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Translation{}, err
	}

	tr := Translation{
		Primary:          strings.TrimSpace(lr.TranslatedText),
		DetectedLanguage: lr.DetectedLanguage.Language,
	}
	for _, a := range lr.Alternatives {
		if s := strings.TrimSpace(a); s != "" {
			tr.Alternatives = append(tr.Alternatives, s)
		}
	}
	return tr, nil
}
