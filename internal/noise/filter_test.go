package noise_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
	"github.com/jonesrussell/north-cloud/categorizer/internal/noise"
	"github.com/jonesrussell/north-cloud/categorizer/internal/normalize"
)

func TestFilter_Check(t *testing.T) {
	t.Parallel()

	f := noise.New(noise.Config{})

	tests := []struct {
		name      string
		raw       string
		wantNoise bool
		reason    string
	}{
		{"empty", "", true, domain.NoiseTooShort},
		{"two chars", "ok", true, domain.NoiseTooShort},
		{"only punctuation", "!!!...", true, domain.NoiseTooShort},
		{"repeated char", "aaaaaaaaaa", true, domain.NoiseLowEntropy},
		{"short repeated char", "aaa", true, domain.NoiseLowEntropy},
		{"long run is most of the text", "buenooooooo", true, domain.NoiseLowEntropy},
		{"stretched word in a sentence", "buenoooooo servicio, rapido y amable", false, ""},
		{"long number in a complaint", "me cobraron 1000000 de comision pesima atencion", false, ""},
		{"alternating mash", "ababababababababab", true, domain.NoiseLowEntropy},
		{"filler", "Sin comentarios", true, domain.NoiseFillerOnly},
		{"filler with numbers", "nada 10", true, domain.NoiseFillerOnly},
		{"numbers only", "10 10 9", true, domain.NoiseFillerOnly},
		{"repeated word", "bien bien bien", true, domain.NoiseFillerOnly},
		{"real complaint", "pésima atención al cliente", false, ""},
		{"short real word", "mal", false, ""},
		{"waiting", "mucha demora", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			isNoise, reason := f.Check(normalize.Text(tt.raw))
			if isNoise != tt.wantNoise {
				t.Fatalf("Check(%q) noise = %v, want %v (reason %q)", tt.raw, isNoise, tt.wantNoise, reason)
			}
			if reason != tt.reason {
				t.Errorf("Check(%q) reason = %q, want %q", tt.raw, reason, tt.reason)
			}
		})
	}
}

func TestFilter_CustomFiller(t *testing.T) {
	t.Parallel()

	f := noise.New(noise.Config{FillerTokens: []string{"lorem ipsum"}})

	if isNoise, _ := f.Check("lorem ipsum"); !isNoise {
		t.Error("expected custom filler phrase to be noise")
	}
	if isNoise, _ := f.Check("sin comentarios"); isNoise {
		t.Error("custom list replaces the default list")
	}
}

func TestFilter_RuleOrder(t *testing.T) {
	t.Parallel()

	// "aa" is both too short and low entropy; the first rule wins.
	_, reason := noise.New(noise.Config{}).Check("aa")
	if reason != domain.NoiseTooShort {
		t.Errorf("reason = %q, want %q", reason, domain.NoiseTooShort)
	}
}
