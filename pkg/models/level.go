package models

// LessonPhrase represents a single target-language phrase to practice
type LessonPhrase struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"` // The phrase in the target language
}

// Level represents a named group of lessons
type Level struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Lessons     []LessonPhrase `json:"lessons"`
}

// FindLesson returns the lesson with the given id, or nil if it is not part of the level
func (l *Level) FindLesson(lessonID string) *LessonPhrase {
	for i := range l.Lessons {
		if l.Lessons[i].ID == lessonID {
			return &l.Lessons[i]
		}
	}
	return nil
}
