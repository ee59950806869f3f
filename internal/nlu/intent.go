package nlu

import (
	"regexp"
	"strings"
)

type titleRule struct {
	pattern *regexp.Regexp
	titles  map[Lang]string
}

var titleRules = []titleRule{
	{regexp.MustCompile(`(?i)\b(?:meet|meeting|rapat|pertemuan)\b`), map[Lang]string{English: "Meeting", Indonesian: "Rapat"}},
	{regexp.MustCompile(`(?i)\b(?:class|kelas)\b`), map[Lang]string{English: "Class", Indonesian: "Kelas"}},
	{regexp.MustCompile(`(?i)\b(?:call|telepon|telpon)\b`), map[Lang]string{English: "Call", Indonesian: "Telepon"}},
	{regexp.MustCompile(`(?i)\bemail\b`), map[Lang]string{English: "Email", Indonesian: "Email"}},
	{regexp.MustCompile(`(?i)\b(?:review|tinjau)\b`), map[Lang]string{English: "Review", Indonesian: "Tinjau"}},
	{regexp.MustCompile(`(?i)\b(?:deploy|rilis)\b`), map[Lang]string{English: "Deploy", Indonesian: "Rilis"}},
}

// InferTitle guesses a short title from well-known activity words. The
// title is given in lang.
func InferTitle(text string, lang Lang) (string, bool) {
	for _, r := range titleRules {
		if r.pattern.MatchString(text) {
			if t, ok := r.titles[lang]; ok {
				return t, true
			}
			return r.titles[English], true
		}
	}
	return "", false
}

// IsConfirmation reports whether text contains an affirmative word in
// either language.
func IsConfirmation(text string) bool {
	return confirmWords.MatchString(text)
}

var (
	statusDone    = regexp.MustCompile(`(?i)\b(?:done|selesai|tuntas|beres)\b`)
	statusPending = regexp.MustCompile(`(?i)\bpending\b`)
)

// StatusHint returns "done" or "pending" when text asks for that status.
func StatusHint(text string) (string, bool) {
	switch {
	case statusDone.MatchString(text):
		return "done", true
	case statusPending.MatchString(text):
		return "pending", true
	}
	return "", false
}

var (
	// Single quotes must stand apart from letters so contractions ("let's")
	// are not read as quoting.
	quotedTitle  = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|(?:^|[^\p{L}\p{N}])'([^']+)'(?:$|[^\p{L}\p{N}])`)
	labeledTitle = regexp.MustCompile(`(?i)\b(?:judul(?:nya)?|title)\b\s*(?:jadi|ke|to|as|=|:)?\s*(.+)$`)
	namedTitle   = regexp.MustCompile(`(?i)\bname\b\s*(?:to|as|=|:)\s*(.+)$`)
	fillerWords  = wordsPattern(append(append([]string{}, lexicons[Indonesian].fillers...), lexicons[English].fillers...))
)

// ExtractNewTitle finds a replacement title: a quoted string, or the text
// after "title", "judul(nya)" or "name to".
func ExtractNewTitle(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := quotedTitle.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if t := strings.TrimSpace(g); t != "" {
				return t, true
			}
		}
	}
	for _, re := range []*regexp.Regexp{labeledTitle, namedTitle} {
		if m := re.FindStringSubmatch(text); m != nil {
			if t := cleanTitle(m[1]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}

func cleanTitle(s string) string {
	s = fillerWords.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " .,!?;:")
}
