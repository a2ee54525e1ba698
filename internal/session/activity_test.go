package session

import "testing"

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Category
	}{
		{"/flashcards", CategoryFlashcards},
		{"/flashcards/deck-123", CategoryFlashcards},
		{"/decks/abc/review", CategoryFlashcards},
		{"/review", CategoryFlashcards},
		{"/notes", CategoryNotes},
		{"/notes/42/edit", CategoryNotes},
		{"/note/42", CategoryNotes},
		{"/quiz/7", CategoryQuiz},
		{"/quizzes", CategoryQuiz},
		{"/quiz-attempts/9", CategoryQuiz},
		{"/dashboard", CategoryGeneral},
		{"/settings", CategoryGeneral},
		{"/", CategoryGeneral},
		{"", CategoryGeneral},
		{"not-even-a-path", CategoryGeneral},
		{"/NOTES/UPPER", CategoryNotes},
		{"/flashcards?deck=1", CategoryFlashcards},
	}

	for _, tc := range tests {
		if got := ClassifyPath(tc.path); got != tc.expected {
			t.Errorf("ClassifyPath(%q) = %q, expected %q", tc.path, got, tc.expected)
		}
	}
}

func TestQualifiesForTracking(t *testing.T) {
	qualifying := []string{"/flashcards", "/notes/1", "/quiz/3", "/study", "/study/focus"}
	for _, p := range qualifying {
		if !QualifiesForTracking(p) {
			t.Errorf("expected %q to qualify for tracking", p)
		}
	}

	nonQualifying := []string{"/dashboard", "/settings", "/", ""}
	for _, p := range nonQualifying {
		if QualifiesForTracking(p) {
			t.Errorf("expected %q not to qualify for tracking", p)
		}
	}
}
