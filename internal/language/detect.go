package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// MinDetectWords is the shortest text worth identifying.
const MinDetectWords = 3

// Detector identifies the dominant language of a transcript. It returns a
// registry-style code, CodeSwitch for mixed scripts, or Unknown.
type Detector interface {
	Detect(text string) string
}

// WhatlangDetector identifies languages with whatlanggo, restricted to the
// languages that can appear in a Hindi/English stream.
type WhatlangDetector struct {
	opts whatlanggo.Options
}

// NewDetector returns the default Detector.
func NewDetector() *WhatlangDetector {
	return &WhatlangDetector{opts: whatlanggo.Options{
		Whitelist: map[whatlanggo.Lang]bool{
			whatlanggo.Eng: true,
			whatlanggo.Hin: true,
			whatlanggo.Urd: true,
			whatlanggo.Pan: true,
			whatlanggo.Ben: true,
		},
	}}
}

func (d *WhatlangDetector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if len(strings.Fields(text)) < MinDetectWords {
		return Unknown
	}
	latin, indic := Scripts(text)
	switch {
	case latin && indic:
		return CodeSwitch
	case indic:
		// Any Indic script in this stream is treated as Hindi.
		return Hindi
	case !latin:
		return Unknown
	}
	info := whatlanggo.DetectWithOptions(text, d.opts)
	return fromWhatlang(info.Lang)
}

// fromWhatlang maps related languages onto the registry codes.
func fromWhatlang(l whatlanggo.Lang) string {
	switch l {
	case whatlanggo.Eng:
		return English
	case whatlanggo.Hin, whatlanggo.Urd, whatlanggo.Pan, whatlanggo.Ben:
		return Hindi
	default:
		return Unknown
	}
}
