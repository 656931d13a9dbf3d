package sentiment

import (
	"html"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

const (
	LABEL_POSITIVE = "positive"
	LABEL_NEGATIVE = "negative"
	LABEL_NEUTRAL  = "neutral"

	POSITIVE_THRESHOLD = 0.20
	NEGATIVE_THRESHOLD = -0.20
)

var (
	analyzer = govader.NewSentimentIntensityAnalyzer()

	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

// ConvertMarkdownToText renders markdown and strips the resulting HTML so
// only the readable text is scored.
func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))

	return strings.Join(strings.Fields(RemoveLinks(plainText)), " ")
}

func AnalyzeWithVADER(text string) (float64, string) {
	plainText := ConvertMarkdownToText(text)

	sentiment := analyzer.PolarityScores(plainText)
	score := sentiment.Compound

	var label string
	if score >= POSITIVE_THRESHOLD {
		label = LABEL_POSITIVE
	} else if score <= NEGATIVE_THRESHOLD {
		label = LABEL_NEGATIVE
	} else {
		label = LABEL_NEUTRAL
	}

	return score, label
}

// RatingMismatch reports a star rating that contradicts the text's
// sentiment: 4 stars or more with negative text, or 2 stars or fewer with
// positive text.
func RatingMismatch(rating float64, label string) bool {
	switch {
	case rating >= 4:
		return label == LABEL_NEGATIVE
	case rating <= 2:
		return label == LABEL_POSITIVE
	default:
		return false
	}
}
