package mailparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultTagKeyword introduces the submission directive.
	DefaultTagKeyword = "t30g"
	// DefaultLift is used when the directive names no known lift.
	DefaultLift = "Snatch"

	poundsToKg = 0.453592
)

var liftAliases = map[string]string{
	"squat":        "Squat",
	"sq":           "Squat",
	"bench":        "Bench",
	"bp":           "Bench",
	"deadlift":     "Deadlift",
	"dl":           "Deadlift",
	"snatch":       "Snatch",
	"sn":           "Snatch",
	"clean":        "Clean",
	"c&j":          "Clean",
	"cj":           "Clean",
	"cleanandjerk": "Clean",
	"overhead":     "Overhead",
	"ohp":          "Overhead",
	"press":        "Overhead",
}

// ParsedTag is the weight and lift read from a submission directive.
type ParsedTag struct {
	WeightKg float64 `json:"weight_kg"`
	LiftType string  `json:"lift_type"`
	RawText  string  `json:"raw_text"`
}

// TagParser matches "<keyword> <number>[unit] [lift]" anywhere in a text.
type TagParser struct {
	pattern     *regexp.Regexp
	keyword     string
	defaultLift string
}

// NewTagParser builds a parser for keyword. Empty arguments use the defaults.
func NewTagParser(keyword, defaultLift string) *TagParser {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		keyword = DefaultTagKeyword
	}
	if canonical, ok := liftAliases[strings.ToLower(strings.TrimSpace(defaultLift))]; ok {
		defaultLift = canonical
	} else if strings.TrimSpace(defaultLift) == "" {
		defaultLift = DefaultLift
	}
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) +
		`\s+(\d+(?:\.\d+)?)\s*(kgs?|lbs?|pounds?)?\s*([\w&]+)?`)
	return &TagParser{pattern: pattern, keyword: keyword, defaultLift: defaultLift}
}

// Keyword returns the directive keyword the parser matches.
func (p *TagParser) Keyword() string {
	return p.keyword
}

// Parse returns nil when text has no directive.
func (p *TagParser) Parse(text string) *ParsedTag {
	match := p.pattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	weight, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	unit := strings.ToLower(match[2])
	if strings.HasPrefix(unit, "lb") || strings.HasPrefix(unit, "pound") {
		weight = math.Round(weight*poundsToKg*100) / 100
	}
	lift, ok := liftAliases[strings.ToLower(match[3])]
	if !ok {
		lift = p.defaultLift
	}
	return &ParsedTag{WeightKg: weight, LiftType: lift, RawText: text}
}

var defaultTagParser = NewTagParser(DefaultTagKeyword, DefaultLift)

// ParseTag parses text with the default keyword and lift.
func ParseTag(text string) *ParsedTag {
	return defaultTagParser.Parse(text)
}

// CanonicalLift resolves an alias to its lift name.
func CanonicalLift(value string) (string, bool) {
	lift, ok := liftAliases[strings.ToLower(strings.TrimSpace(value))]
	return lift, ok
}
