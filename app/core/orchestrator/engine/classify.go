package engine

import (
	"regexp"
	"strings"
)

// Each operation owns an ordered group of trigger patterns over the
// lower-cased message. Groups are tried in order and the first group
// with any matching pattern wins; no group matching means the turn
// carries no task intent and falls through to open conversation.

var addPatterns = compileAll(
	`\b(add|create|make)\s+(?:a\s+|an\s+|another\s+|new\s+)*(?:\w+\s+)?task\b`,
	`\bnew\s+task\b`,
	`\bremind\s+me\s+to\b`,
	`\badd\b.*\bto\s+my\s+(task\s+)?list\b`,
	`\bi\s+need\s+to\s+add\b`,
)

var updatePatterns = compileAll(
	`\b(update|change|edit|modify|rename)\b.*\btask\b`,
	`\btask\s+#?\d+\b.*\b(update|change|edit|modify)\b`,
	`\b(update|change|edit|modify|set)\b.*\b(priority|deadline|due\s*date|title|description)\b`,
	`\b(remove|clear|delete)\b.*\b(deadline|due\s*date)\b`,
	`\b(push|move)\b.*\b(deadline|due\s*date)\b`,
)

var deletePatterns = compileAll(
	`\b(delete|remove|drop)\b.*\btask\b`,
	`\btask\b.*\b(delete|remove)\b`,
	`\bget\s+rid\s+of\b`,
	`\b(delete|remove)\s+#?\d+\b`,
)

var incompletePatterns = compileAll(
	`\b(mark|set)\b.*\b(incomplete|not\s+done|undone|unfinished|pending)\b`,
	`\breopen\b`,
	`\buncheck\b`,
	`\b(is|was)n'?t\s+(done|finished)\b`,
	`\bnot\s+(actually\s+)?(done|finished)\b`,
)

var completePatterns = compileAll(
	`\b(mark|set)\b.*\b(complete|completed|done|finished)\b`,
	`\b(complete|finish)\s+(the\s+|my\s+)?(task\b|#?\d+|.+)`,
	`\btask\s+#?\d+\b.*\b(done|complete|completed|finished)\b`,
	`\bi\s+(just\s+)?(finished|completed|did)\b`,
	`\bcheck\s+off\b`,
	`\bis\s+done\b`,
)

var listPatterns = compileAll(
	`\b(show|list|view|display|see)\b.*\btasks?\b`,
	`\bwhat('s|\s+is)\s+on\s+my\s+(list|plate|agenda)\b`,
	`\bmy\s+tasks\b`,
	`\btask\s+list\b`,
	`\bwhat\s+do\s+i\s+(have\s+to|need\s+to)\s+do\b`,
)

var classifierGroups = []struct {
	op       Operation
	patterns []*regexp.Regexp
}{
	{OpAdd, addPatterns},
	{OpUpdate, updatePatterns},
	{OpDelete, deletePatterns},
	{OpIncomplete, incompletePatterns},
	{OpComplete, completePatterns},
	{OpList, listPatterns},
}

// Classify returns the operation tag for the message, or OpNone.
func Classify(text string) Operation {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return OpNone
	}
	for _, group := range classifierGroups {
		for _, pattern := range group.patterns {
			if pattern.MatchString(normalized) {
				return group.op
			}
		}
	}
	return OpNone
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}
