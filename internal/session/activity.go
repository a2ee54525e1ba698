package session

import "strings"

// Category is the coarse classification of what the user is studying,
// derived from the client's navigation path.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryFlashcards Category = "flashcards"
	CategoryNotes      Category = "notes"
	CategoryQuiz       Category = "quiz"
)

// ClassifyPath maps a navigation path to a Category. Total over all
// inputs; unrecognized paths classify as general.
func ClassifyPath(path string) Category {
	p := strings.ToLower(strings.TrimSpace(path))
	p = strings.TrimPrefix(p, "/")

	segment := p
	if i := strings.IndexByte(p, '/'); i >= 0 {
		segment = p[:i]
	}
	if i := strings.IndexByte(segment, '?'); i >= 0 {
		segment = segment[:i]
	}

	switch segment {
	case "flashcards", "decks", "review":
		return CategoryFlashcards
	case "notes", "note":
		return CategoryNotes
	case "quiz", "quizzes", "quiz-attempts":
		return CategoryQuiz
	default:
		return CategoryGeneral
	}
}

// QualifiesForTracking reports whether navigating to path should start a
// study session. Dashboard, settings and similar pages do not qualify.
func QualifiesForTracking(path string) bool {
	if ClassifyPath(path) != CategoryGeneral {
		return true
	}

	p := strings.ToLower(strings.TrimSpace(path))
	return strings.HasPrefix(p, "/study")
}
