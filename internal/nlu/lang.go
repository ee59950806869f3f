// Package nlu extracts task details from English and Indonesian chat
// messages. Every function is pure and total: unparseable input yields a
// false ok result, never an error.
package nlu

import (
	"regexp"
	"strings"
)

type Lang string

const (
	English    Lang = "en"
	Indonesian Lang = "id"
)

// lexicon holds the per-language word lists. Entries are matched as whole
// words or phrases, case-insensitively.
type lexicon struct {
	// hints mark a message as written in this language.
	hints []string
	// confirm are affirmative replies to a proposal.
	confirm []string
	// fillers are dropped from the end of an extracted title.
	fillers []string
	// fallbackTitle names a task when nothing better is known.
	fallbackTitle string
}

var lexicons = map[Lang]lexicon{
	English: {
		confirm:       []string{"yes", "yess", "yep", "yup", "yeah", "ok", "okay", "sure", "alright", "sounds good", "go ahead", "create now", "make it", "do it", "confirm"},
		fillers:       []string{"please", "pls", "thanks"},
		fallbackTitle: "Task",
	},
	Indonesian: {
		// "ok" is left out of the hints: English speakers use it too.
		hints: []string{
			"gw", "gue", "gua", "lu", "lo", "jam", "besok", "pulang", "kampus", "macet",
			"siang", "pagi", "sore", "malam", "senin", "selasa", "rabu", "kamis", "jumat",
			"sabtu", "minggu", "rapat", "kelas", "ya", "iya", "boleh", "oke", "bikin", "bikinin", "buat", "buatin",
			"sekarang", "aja", "dong", "tolong", "hari ini", "pukul", "judul", "tugas",
		},
		// Chat spelling stretches and suffixes words ("yaa", "bikinin"); whole-word
		// matching needs those forms listed.
		confirm: []string{
			"ya", "yaa", "iya", "iyaa", "iyaaa", "iy", "boleh", "oke", "okee", "okey", "ok", "lanjut",
			"buat sekarang", "bikin", "bikinin", "buatin", "buatkan", "gas", "gass", "silakan",
			"jadiin", "yoi", "yoa", "sip", "sipp", "siap", "mantap",
		},
		fillers:       []string{"aja", "saja", "dong", "deh", "ya", "yah", "nya"},
		fallbackTitle: "Tugas",
	},
}

// wordsPattern compiles a case-insensitive whole-word alternation.
func wordsPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	indonesianHints = wordsPattern(lexicons[Indonesian].hints)
	confirmWords    = wordsPattern(append(append([]string{}, lexicons[English].confirm...), lexicons[Indonesian].confirm...))
)

// DetectLang reports Indonesian when the text contains any Indonesian hint
// word, English otherwise.
func DetectLang(text string) Lang {
	if indonesianHints.MatchString(text) {
		return Indonesian
	}
	return English
}

// NormalizeLang maps a caller-supplied language tag ("id", "id-ID",
// "en_US", "indonesian") onto a supported Lang.
func NormalizeLang(tag string) (Lang, bool) {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case t == "":
		return "", false
	case strings.HasPrefix(t, "id"), strings.HasPrefix(t, "in"), strings.HasPrefix(t, "bahasa"):
		return Indonesian, true
	case strings.HasPrefix(t, "en"):
		return English, true
	}
	return "", false
}

// ResolveLang prefers an explicit tag and falls back to detection.
func ResolveLang(tag, text string) Lang {
	if l, ok := NormalizeLang(tag); ok {
		return l
	}
	return DetectLang(text)
}

// FallbackTitle is the generic task name in lang.
func FallbackTitle(lang Lang) string {
	if lx, ok := lexicons[lang]; ok {
		return lx.fallbackTitle
	}
	return lexicons[English].fallbackTitle
}
