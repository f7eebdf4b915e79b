package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// GeneralTopic is returned when nothing in the query is usable as a label.
const GeneralTopic = "General Query"

const (
	maxTopicWords  = 3
	maxTopicLength = 30
	minWordLength  = 3
	tokenCutset    = ".,!?;:()[]{}\"'-"
)

// Category is a topic label and the keyword substrings that select it.
type Category struct {
	Name     string
	Keywords []string
}

// Categories is ordered by priority: the first match wins.
var Categories = []Category{
	{"engine", []string{"engine", "motor", "combustion", "cylinder", "piston", "valves", "timing"}},
	{"transmission", []string{"transmission", "gearbox", "clutch", "gear", "shift", "automatic", "manual"}},
	{"brakes", []string{"brake", "braking", "pad", "rotor", "disc", "caliper", "abs"}},
	{"suspension", []string{"suspension", "shock", "strut", "spring", "damper", "coil"}},
	{"electrical", []string{"electrical", "battery", "alternator", "starter", "wiring", "fuse", "relay"}},
	{"fuel system", []string{"fuel", "injection", "pump", "filter", "carburetor", "tank"}},
	{"cooling system", []string{"cooling", "radiator", "coolant", "thermostat", "fan", "temperature"}},
	{"exhaust", []string{"exhaust", "muffler", "catalytic", "converter", "emissions", "tailpipe"}},
	{"steering", []string{"steering", "wheel", "rack", "pinion", "power steering", "alignment"}},
	{"tires", []string{"tire", "tyre", "wheel", "rim", "pressure", "tread", "rotation"}},
	{"airbag", []string{"airbag", "safety", "srs", "crash", "sensor"}},
	{"hvac", []string{"air conditioning", "heating", "hvac", "climate", "ac", "heater", "ventilation"}},
}

var stopWords = toSet(
	"how", "what", "when", "where", "why", "who", "which", "can", "could", "would", "should",
	"do", "does", "did", "is", "are", "was", "were", "will", "has", "have", "had",
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
	"by", "from", "up", "about", "into", "through", "during", "before", "after",
	"above", "below", "between", "among", "i", "you", "he", "she", "it", "we", "they",
	"me", "him", "her", "us", "them", "my", "your", "his", "its", "our", "their",
)

// ClassifyTopic derives a short sticky label for a conversation from its first query.
// It never returns an empty string.
func ClassifyTopic(query string) string {
	lower := strings.ToLower(query)

	for _, category := range Categories {
		for _, keyword := range category.Keywords {
			if strings.Contains(lower, keyword) {
				return title(category.Name)
			}
		}
	}

	words := meaningfulWords(lower)
	if len(words) == 0 {
		return GeneralTopic
	}
	if len(words) > maxTopicWords {
		words = words[:maxTopicWords]
	}

	topic := title(strings.Join(words, " "))
	if utf8.RuneCountInString(topic) > maxTopicLength {
		return title(words[0])
	}
	return topic
}

func meaningfulWords(lower string) []string {
	var words []string
	for _, token := range strings.Fields(lower) {
		word := strings.Trim(token, tokenCutset)
		if utf8.RuneCountInString(word) < minWordLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		words = append(words, word)
	}
	return words
}

// title capitalizes the first letter of each word and lower-cases the rest.
// Letters after a hyphen stay lower case ("Anti-lock").
func title(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToTitle(first)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
