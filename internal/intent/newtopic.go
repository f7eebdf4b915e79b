package intent

import "strings"

// newTopicPhrases signal that the user wants to drop the current conversation.
var newTopicPhrases = []string{
	"new topic",
	"new question",
	"different topic",
	"change topic",
	"start over",
	"new conversation",
	"reset",
	"clear history",
	"fresh start",
	"different question",
	"move on",
	"next topic",
}

// IsNewTopicRequest reports whether the query asks to abandon the current topic.
func IsNewTopicRequest(query string) bool {
	if query == "" {
		return false
	}
	lower := strings.ToLower(query)
	for _, phrase := range newTopicPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
