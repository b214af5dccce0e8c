package language

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry(t *testing.T) {
	tests := []struct {
		name        string
		constrained bool
		code        string
		wantModel   string
		wantWhisper string
	}{
		{"english standard", false, English, "base.en", "en"},
		{"hindi standard", false, Hindi, "base", "hi"},
		{"code switch auto detects", false, CodeSwitch, "base", ""},
		{"english constrained", true, English, "tiny.en", "en"},
		{"hindi constrained", true, Hindi, "tiny", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewRegistry(tt.constrained).Lookup(tt.code)
			if err != nil {
				t.Fatal(err)
			}
			if l.Model != tt.wantModel || l.WhisperCode != tt.wantWhisper {
				t.Errorf("got %+v", l)
			}
		})
	}
}

func TestRegistryRejectsUnknown(t *testing.T) {
	r := NewRegistry(false)
	if _, err := r.Lookup("fr"); !errors.Is(err, ErrInvalidLanguage) {
		t.Errorf("err = %v", err)
	}
	if r.IsSingle(CodeSwitch) || !r.IsSingle(Hindi) || r.IsSingle("fr") {
		t.Error("IsSingle misclassifies codes")
	}
	if got := r.Codes(); !reflect.DeepEqual(got, []string{"en", "hi", "hi-en"}) {
		t.Errorf("Codes() = %v", got)
	}
}

func TestHasMixedScripts(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello world", false},
		{"नमस्ते दुनिया", false},
		{"hello नमस्ते", true},
		{"ok ਸਤਿ", true},
		{"১২৩ test", true},
		{"", false},
		{"123 456", false},
	}
	for _, tt := range tests {
		if got := HasMixedScripts(tt.text); got != tt.want {
			t.Errorf("HasMixedScripts(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name string
		text string
		want string
	}{
		{"too short", "hello there", Unknown},
		{"devanagari", "मैं आज बाजार जा रहा हूँ", Hindi},
		{"mixed", "मैं आज market जा रहा हूँ", CodeSwitch},
		{"gurmukhi maps to hindi", "ਮੈਂ ਅੱਜ ਬਾਜ਼ਾਰ ਜਾ ਰਿਹਾ ਹਾਂ", Hindi},
		{"digits only", "1 2 3 4", Unknown},
		{"english", "the weather today is really nice and I would like to go for a walk in the park", English},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
