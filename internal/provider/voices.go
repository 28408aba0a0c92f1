package provider

// DefaultPrimaryVoice is used when no voice is requested or the requested
// voice fails validation.
const DefaultPrimaryVoice = "en-US-AriaNeural"

// knownVoices is the allow-list of voice identifiers the streaming provider
// is known to accept. Passing an unknown identifier is a documented cause of
// "no audio received" failures that are not worth retrying, so requests are
// validated against this list up front.
var knownVoices = map[string]struct{}{
	"en-US-AriaNeural":    {},
	"en-US-JennyNeural":   {},
	"en-US-AmberNeural":   {},
	"en-US-GuyNeural":     {},
	"en-IN-PrabhatNeural": {},
	"hi-IN-SwaraNeural":   {},
	"gu-IN-DhwaniNeural":  {},
}

// secondaryVoices is the ordered list of known-good voices to fall through
// when the configured primary voice is itself unavailable.
var secondaryVoices = []string{
	"en-US-JennyNeural",
	"en-US-AmberNeural",
	"en-US-GuyNeural",
}

// ValidVoice reports whether name is on the allow-list.
func ValidVoice(name string) bool {
	_, found := knownVoices[name]

	return found
}

// BestVoice resolves the voice to use for the streaming provider: a valid
// requested voice wins, then the configured primary, then the first valid
// secondary. The final return of DefaultPrimaryVoice is a defensive floor
// for a misconfigured primary with an exhausted secondary list.
func BestVoice(requested, primary string) string {
	if ValidVoice(requested) {
		return requested
	}

	if ValidVoice(primary) {
		return primary
	}

	for _, candidate := range secondaryVoices {
		if ValidVoice(candidate) {
			return candidate
		}
	}

	return DefaultPrimaryVoice
}
