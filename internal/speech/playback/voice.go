package playback

import (
	"runtime"
	"strings"
)

// DefaultLanguage is spoken when Options.Lang is empty.
const DefaultLanguage = "en-US"

// DefaultQualityVoices are voice names that sound noticeably better than the
// compact defaults on platforms that ship many low-quality voices.
var DefaultQualityVoices = []string{
	"Samantha", "Alex", "Victoria", "Tom", "Karen", "Daniel",
	"Moira", "Tessa", "Aaron", "Nicky", "Fiona", "Serena",
}

// Voice is one voice offered by the synthesizer.
type Voice struct {
	Name    string
	Lang    string // BCP-47 tag
	Default bool
	Local   bool
}

// Environment describes platform traits that influence voice selection and
// utterance defaults.
type Environment struct {
	// LowQualityVoices is set on platforms whose default voices are compact
	// and robotic. Voice selection then prefers QualityVoices and utterances
	// are slower and softer.
	LowQualityVoices bool

	// QualityVoices overrides DefaultQualityVoices when non-empty.
	QualityVoices []string
}

// DetectEnvironment resolves mode ("auto", "true" or "false"). auto enables
// low-quality handling on darwin and ios.
func DetectEnvironment(mode string) Environment {
	switch strings.ToLower(mode) {
	case "true", "yes", "on":
		return Environment{LowQualityVoices: true}
	case "false", "no", "off":
		return Environment{}
	default:
		return Environment{LowQualityVoices: runtime.GOOS == "darwin" || runtime.GOOS == "ios"}
	}
}

// Defaults returns the rate, pitch and volume used when Options leaves them
// zero.
func (e Environment) Defaults() Options {
	if e.LowQualityVoices {
		return Options{Lang: DefaultLanguage, Rate: 0.7, Pitch: 0.9, Volume: 0.9}
	}
	return Options{Lang: DefaultLanguage, Rate: 0.9, Pitch: 1, Volume: 1}
}

func (e Environment) qualityVoices() []string {
	if len(e.QualityVoices) > 0 {
		return e.QualityVoices
	}
	return DefaultQualityVoices
}

// SelectVoice picks the voice for lang. The first rule that yields a voice
// wins:
//
//  1. the preferred voice, if its language matches lang exactly or by prefix
//  2. on low-quality platforms, a quality voice for lang, then any voice for
//     lang whose name does not contain "compact"
//  3. a voice whose tag equals lang
//  4. a voice sharing lang's base language
//  5. the synthesizer's default voice
//  6. the first voice
//
// It returns nil only when voices is empty.
func SelectVoice(voices []Voice, lang, preferred string, env Environment) *Voice {
	if len(voices) == 0 {
		return nil
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	matches := func(v Voice) bool { return sameTag(v.Lang, lang) || sameBase(v.Lang, lang) }

	if preferred != "" {
		if i := indexOf(voices, func(v Voice) bool { return v.Name == preferred && matches(v) }); i >= 0 {
			return pick(voices, i)
		}
	}

	if env.LowQualityVoices {
		for _, name := range env.qualityVoices() {
			if i := indexOf(voices, func(v Voice) bool { return strings.Contains(v.Name, name) && matches(v) }); i >= 0 {
				return pick(voices, i)
			}
		}
		if i := indexOf(voices, func(v Voice) bool {
			return matches(v) && !strings.Contains(strings.ToLower(v.Name), "compact")
		}); i >= 0 {
			return pick(voices, i)
		}
	}

	rules := []func(Voice) bool{
		func(v Voice) bool { return sameTag(v.Lang, lang) },
		func(v Voice) bool { return sameBase(v.Lang, lang) },
		func(v Voice) bool { return v.Default },
	}
	for _, rule := range rules {
		if i := indexOf(voices, rule); i >= 0 {
			return pick(voices, i)
		}
	}
	return pick(voices, 0)
}

// pick returns a copy of voices[i].
func pick(voices []Voice, i int) *Voice {
	v := voices[i]
	return &v
}

func indexOf(voices []Voice, pred func(Voice) bool) int {
	for i, v := range voices {
		if pred(v) {
			return i
		}
	}
	return -1
}

// canonicalTag lowercases tag and turns "en_US" into "en-us".
func canonicalTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(tag, "_", "-"))
}

func sameTag(a, b string) bool {
	return a != "" && canonicalTag(a) == canonicalTag(b)
}

func sameBase(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ab, _, _ := strings.Cut(canonicalTag(a), "-")
	bb, _, _ := strings.Cut(canonicalTag(b), "-")
	return ab == bb
}
