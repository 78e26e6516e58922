package content

import (
	"regexp"
	"strconv"

	"pathquest/internal/domain"
)

var blankMarker = regexp.MustCompile(`\{(\d+)\}`)

// Placeholder is rendered for a blank whose question is missing from the quiz.
const Placeholder = "?"

// Segment is either literal text or a blank referencing a question.
type Segment struct {
	Text       string `json:"text,omitempty"`
	Blank      bool   `json:"blank"`
	QuestionID int    `json:"questionId,omitempty"`
	// Missing is set when the marker points at no question; Text then holds Placeholder.
	Missing bool `json:"missing,omitempty"`
}

// Segments splits a cloze template on its "{n}" markers.
func Segments(quiz domain.ClozeQuiz) []Segment {
	var out []Segment
	last := 0
	for _, loc := range blankMarker.FindAllStringSubmatchIndex(quiz.Text, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: quiz.Text[last:loc[0]]})
		}
		id, err := strconv.Atoi(quiz.Text[loc[2]:loc[3]])
		seg := Segment{Blank: true, QuestionID: id}
		if _, ok := quiz.Question(id); err != nil || !ok {
			seg.Missing = true
			seg.Text = Placeholder
		}
		out = append(out, seg)
		last = loc[1]
	}
	if last < len(quiz.Text) {
		out = append(out, Segment{Text: quiz.Text[last:]})
	}
	return out
}
