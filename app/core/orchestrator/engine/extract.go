package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// Extraction holds whatever fields could be pulled out of one message.
// TaskID/TaskTitle identify the target task; Params carries new field
// values. A field appears in Params only when a pattern matched.
type Extraction struct {
	TaskID    int64
	TaskTitle string
	Params    map[string]interface{}
}

var taskIDPatterns = compileAll(
	`\btask\s+#?(\d+)\b`,
	`#(\d+)\b`,
	`\btask\s+number\s+(\d+)\b`,
	`\bid\s+(\d+)\b`,
	`\bnumber\s+(\d+)\b`,
	`\b(?:delete|remove|complete|finish|update|reopen)\s+(?:task\s+)?(\d+)\b`,
	// bare number, the answer a which-task question asks for
	`^#?(\d+)$`,
)

// Priority synonyms, scanned high to low so the stronger reading wins.
var prioritySynonyms = []struct {
	level   string
	pattern *regexp.Regexp
}{
	{"high", regexp.MustCompile(`\b(?:urgent|critical|important|asap|high)\b`)},
	{"medium", regexp.MustCompile(`\b(?:normal|regular|medium)\b`)},
	{"low", regexp.MustCompile(`\b(?:minor|trivial|someday|later|low)\b`)},
}

var dueRemovalPatterns = compileAll(
	`\b(?:remove|clear|delete|drop)\b.*\b(?:deadline|due\s*date)\b`,
	`\bno\s+(?:more\s+)?(?:deadline|due\s*date)\b`,
	`\bwithout\s+(?:a\s+)?(?:deadline|due\s*date)\b`,
)

const weekdayAlt = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`

// Due-date phrase patterns, most explicit first. Each pattern's capture
// groups are concatenated into the phrase handed to the date normalizer.
var duePatterns = compileAll(
	`\b(?:due(?:\s+date)?|deadline)(?:\s+(?:is|on|at|by|to|for))?\s*:?\s*(.+)$`,
	`\bby\s+(tomorrow|today|tonight|(?:next\s+|this\s+)?(?:`+weekdayAlt+`|week|month)|end\s+of\s+(?:day|week|month)|\d[\d\-/:\sapm]*)`,
	`\bon\s+((?:next\s+|this\s+)?(?:`+weekdayAlt+`)(?:\s+at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?)?)`,
	`\b(tomorrow|today|tonight)(\s+at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?)?`,
	`\b(next\s+(?:week|month|year|`+weekdayAlt+`))(\s+at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?)?`,
	`\b(in\s+\d+\s+(?:minutes?|hours?|days?|weeks?|months?))\b`,
	`\b(\d{4}-\d{2}-\d{2}(?:[t ]\d{2}:\d{2}(?::\d{2})?)?)\b`,
)

var descriptionPatterns = compileAll(
	`\bdescription\s*(?:to|is|:)\s*(.+)$`,
	`\bwith\s+description\s+(.+)$`,
	`\bnote\s*:\s*(.+)$`,
)

var newTitlePatterns = compileAll(
	`\b(?:rename|retitle)\s+(?:it\s+|task\s+#?\d+\s+)?to\s+(.+)$`,
	`\b(?:change|update|set)\s+(?:the\s+)?title\s+(?:to|:)\s*(.+)$`,
	`\btitle\s*:\s*(.+)$`,
	`\b(?:called|named|titled)\s+(.+)$`,
	`\bcall\s+it\s+(.+)$`,
)

var (
	renamePairRe   = regexp.MustCompile(`\b(?:update|change|rename)\s+(?:the\s+)?['"]?([^'"]+?)['"]?\s+to\s+['"]?(.+?)['"]?$`)
	theXTaskRe     = regexp.MustCompile(`\bthe\s+['"]?(.+?)['"]?\s+task\b`)
	quotedRe       = regexp.MustCompile(`['"]([^'"]+)['"]`)
	taskColonRe    = regexp.MustCompile(`\btask\s*:\s*(.+)$`)
	verbObjectRe   = regexp.MustCompile(`\b(?:delete|remove|drop|complete|finish|reopen|check\s+off)\s+(?:a\s+|the\s+|my\s+)?(?:task\s+)?(.+)$`)
	remindMeRe     = regexp.MustCompile(`\bremind\s+me\s+to\s+(.+)$`)
	addObjectRe    = regexp.MustCompile(`\b(?:add|create|make)\s+(?:a\s+|an\s+|another\s+|new\s+)*(?:\w+\s+)?task\s+(?:to\s+|for\s+|about\s+)?(.+)$`)
	addToListRe    = regexp.MustCompile(`\badd\s+(.+?)\s+to\s+my\s+(?:task\s+)?list\b`)
	fieldKeywordRe = regexp.MustCompile(`\b(?:priority|deadline|due|description|complete|completed|done|title)\b`)
)

var (
	completeTokenRe   = regexp.MustCompile(`\bcomplete(?:d)?\b`)
	doneTokenRe       = regexp.MustCompile(`\b(?:done|finished|finish)\b`)
	incompleteTokenRe = regexp.MustCompile(`\b(?:incomplete|not\s+(?:actually\s+)?(?:done|finished)|undone|unfinished|pending|reopen|uncheck)\b`)
)

// freeTextCutRe truncates a captured title/description at the start of
// another recognized field so fields in one utterance don't bleed together.
var freeTextCutRe = regexp.MustCompile(`\s+(?:` +
	`(?:with\s+)?(?:urgent|high|medium|low)\s+priority\b|` +
	`(?:with\s+)?priority\b|` +
	`deadline\b|` +
	`due\b|` +
	`description\b|` +
	`tomorrow\b|today\b|tonight\b|` +
	`by\s+(?:tomorrow|today|tonight|next|this|` + weekdayAlt + `|\d)|` +
	`on\s+(?:` + weekdayAlt + `)\b|` +
	`next\s+(?:week|month|year|` + weekdayAlt + `)\b|` +
	`in\s+\d+\s+(?:minutes?|hours?|days?|weeks?|months?)\b|` +
	`at\s+\d|` +
	`and\s+mark\b` +
	`)`)

// dueTailCutRe trims trailing non-date fields off a captured due phrase.
var dueTailCutRe = regexp.MustCompile(`\s+(?:` +
	`(?:with\s+)?(?:urgent|high|medium|low)\s+priority\b|` +
	`(?:with\s+)?priority\b|` +
	`description\b|` +
	`and\b` +
	`).*$`)

// Extract pulls the task identifier and any field values out of one
// message. Matching runs over the lower-cased text; more specific
// patterns are tried before generic ones and only the first match of
// each kind is used.
func Extract(text string) Extraction {
	normalized := strings.ToLower(strings.TrimSpace(text))
	result := Extraction{Params: map[string]interface{}{}}
	if normalized == "" {
		return result
	}

	for _, pattern := range taskIDPatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				result.TaskID = id
				break
			}
		}
	}

	for _, synonym := range prioritySynonyms {
		if synonym.pattern.MatchString(normalized) {
			result.Params["priority"] = synonym.level
			break
		}
	}

	extractCompleted(normalized, result.Params)
	extractDueDate(normalized, result.Params)

	for _, pattern := range descriptionPatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			if desc := cleanFreeText(m[1]); desc != "" {
				result.Params["description"] = desc
			}
			break
		}
	}

	extractTitles(normalized, &result)
	return result
}

func extractCompleted(text string, params map[string]interface{}) {
	// "incomplete" wins only when "complete" itself is absent
	switch {
	case completeTokenRe.MatchString(text):
		params["completed"] = true
	case incompleteTokenRe.MatchString(text):
		params["completed"] = false
	case doneTokenRe.MatchString(text):
		params["completed"] = true
	}
}

func extractDueDate(text string, params map[string]interface{}) {
	for _, pattern := range dueRemovalPatterns {
		if pattern.MatchString(text) {
			params["due_date"] = nil
			return
		}
	}
	for _, pattern := range duePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			phrase := strings.TrimSpace(strings.Join(m[1:], ""))
			phrase = strings.TrimSpace(dueTailCutRe.ReplaceAllString(phrase, ""))
			phrase = strings.Trim(phrase, ".,!?;: ")
			if phrase != "" {
				params["due_date"] = phrase
			}
			return
		}
	}
}

func extractTitles(text string, result *Extraction) {
	for _, pattern := range newTitlePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if title := cleanFreeText(m[1]); title != "" {
				result.Params["title"] = title
			}
			break
		}
	}

	if result.TaskID != 0 {
		return
	}

	if m := theXTaskRe.FindStringSubmatch(text); m != nil {
		if title := cleanFreeText(m[1]); title != "" {
			result.TaskTitle = title
			return
		}
	}

	if _, hasNewTitle := result.Params["title"]; !hasNewTitle && !fieldKeywordRe.MatchString(text) {
		if m := renamePairRe.FindStringSubmatch(text); m != nil {
			oldTitle := cleanFreeText(m[1])
			newTitle := cleanFreeText(m[2])
			if oldTitle != "" && newTitle != "" {
				result.TaskTitle = oldTitle
				result.Params["title"] = newTitle
				return
			}
		}
	}

	if m := quotedRe.FindStringSubmatch(text); m != nil {
		title := cleanFreeText(m[1])
		if title != "" && title != result.Params["title"] {
			result.TaskTitle = title
			return
		}
	}

	for _, pattern := range []*regexp.Regexp{taskColonRe, addToListRe, remindMeRe, addObjectRe, verbObjectRe} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if title := cleanFreeText(m[1]); title != "" {
				result.TaskTitle = title
				return
			}
		}
	}
}

func cleanFreeText(s string) string {
	s = strings.TrimSpace(s)
	if loc := freeTextCutRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.Trim(s, `'".,!?;: `)
	for _, article := range []string{"the ", "a ", "an ", "my "} {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}
	s = strings.TrimSuffix(s, " task")
	s = strings.TrimSuffix(s, " tasks")
	s = strings.TrimSpace(s)
	switch s {
	case "task", "tasks", "it", "that", "this":
		return ""
	}
	return s
}
