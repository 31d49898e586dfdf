// Package curriculum holds the static lesson catalog: ten lessons, each split
// into five fixed session slots. The catalog is read-only and has zero external
// dependencies.
package curriculum

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// LessonCount is the number of lessons in the catalog.
	LessonCount = 10

	// SessionsPerLesson is the number of session slots in every lesson.
	SessionsPerLesson = 5

	// TotalSessions is the number of session slots across the whole catalog.
	TotalSessions = LessonCount * SessionsPerLesson

	// FirstLessonID and LastLessonID bound valid lesson ids.
	FirstLessonID = 1
	LastLessonID  = LessonCount

	// FirstSessionNumber and LastSessionNumber bound valid session numbers.
	FirstSessionNumber = 1
	LastSessionNumber  = SessionsPerLesson
)

// ValidLessonID reports whether id names a catalog lesson.
func ValidLessonID(id int) bool {
	return id >= FirstLessonID && id <= LastLessonID
}

// ValidSessionNumber reports whether n names a session slot.
func ValidSessionNumber(n int) bool {
	return n >= FirstSessionNumber && n <= LastSessionNumber
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TYPES
// ══════════════════════════════════════════════════════════════════════════════

// SessionType is the kind of activity a session slot holds.
type SessionType string

const (
	SessionIntroduction SessionType = "introduction"
	SessionContent      SessionType = "content"
	SessionWork         SessionType = "work"
	SessionDialogue     SessionType = "dialogue"
	SessionSummary      SessionType = "summary"
)

// sessionOrder maps session_number-1 to its fixed type.
var sessionOrder = [SessionsPerLesson]SessionType{
	SessionIntroduction,
	SessionContent,
	SessionWork,
	SessionDialogue,
	SessionSummary,
}

var sessionDisplayNames = map[SessionType]string{
	SessionIntroduction: "Introduction",
	SessionContent:      "Content",
	SessionWork:         "Practical Work",
	SessionDialogue:     "Dialogue",
	SessionSummary:      "Summary",
}

// DisplayName returns the human readable name of the session type.
func (t SessionType) DisplayName() string {
	if name, ok := sessionDisplayNames[t]; ok {
		return name
	}
	return string(t)
}

// SessionTypeFor returns the fixed type of a session number.
func SessionTypeFor(sessionNumber int) (SessionType, bool) {
	if !ValidSessionNumber(sessionNumber) {
		return "", false
	}
	return sessionOrder[sessionNumber-1], true
}

// ══════════════════════════════════════════════════════════════════════════════
// DESCRIPTORS
// ══════════════════════════════════════════════════════════════════════════════

// LessonDescriptor describes one catalog lesson.
type LessonDescriptor struct {
	ID          int
	Title       string
	Description string
	Theme       string
	Order       int
}

// SessionSlot describes one fixed session within a lesson.
type SessionSlot struct {
	LessonID      int
	SessionNumber int
	Type          SessionType
	DisplayName   string
}

// Lesson bundles a descriptor with its session slots.
type Lesson struct {
	LessonDescriptor
	Sessions []SessionSlot
}

var lessons = [LessonCount]LessonDescriptor{
	{ID: 1, Title: "What Is Philosophy", Theme: "foundations",
		Description: "Wonder, doubt and the habit of asking why."},
	{ID: 2, Title: "Knowledge and Belief", Theme: "epistemology",
		Description: "How justified belief differs from opinion."},
	{ID: 3, Title: "Logic and Argument", Theme: "logic",
		Description: "Validity, soundness and common fallacies."},
	{ID: 4, Title: "Mind and Body", Theme: "metaphysics",
		Description: "Dualism, materialism and the problem of consciousness."},
	{ID: 5, Title: "Freedom and Determinism", Theme: "metaphysics",
		Description: "Whether our choices are truly our own."},
	{ID: 6, Title: "Virtue and Character", Theme: "ethics",
		Description: "Living well according to virtue ethics."},
	{ID: 7, Title: "Duty and Consequence", Theme: "ethics",
		Description: "Deontology against utilitarian reasoning."},
	{ID: 8, Title: "Justice and the State", Theme: "political philosophy",
		Description: "Authority, rights and the social contract."},
	{ID: 9, Title: "Beauty and Art", Theme: "aesthetics",
		Description: "Taste, judgment and the value of art."},
	{ID: 10, Title: "Meaning and Existence", Theme: "existentialism",
		Description: "Finding meaning in a world without given answers."},
}

func init() {
	for i := range lessons {
		lessons[i].Order = lessons[i].ID
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Lessons returns every lesson in catalog order. The returned slice is a copy.
func Lessons() []Lesson {
	out := make([]Lesson, 0, LessonCount)
	for _, d := range lessons {
		out = append(out, Lesson{LessonDescriptor: d, Sessions: sessionsOf(d.ID)})
	}
	return out
}

// LessonByID returns the lesson with the given id.
func LessonByID(id int) (Lesson, bool) {
	if !ValidLessonID(id) {
		return Lesson{}, false
	}
	d := lessons[id-1]
	return Lesson{LessonDescriptor: d, Sessions: sessionsOf(id)}, true
}

// Session returns a single session slot.
func Session(lessonID, sessionNumber int) (SessionSlot, error) {
	if !ValidLessonID(lessonID) {
		return SessionSlot{}, fmt.Errorf("lesson %d is not in the catalog", lessonID)
	}
	t, ok := SessionTypeFor(sessionNumber)
	if !ok {
		return SessionSlot{}, fmt.Errorf("session %d is not a valid slot", sessionNumber)
	}
	return SessionSlot{
		LessonID:      lessonID,
		SessionNumber: sessionNumber,
		Type:          t,
		DisplayName:   t.DisplayName(),
	}, nil
}

func sessionsOf(lessonID int) []SessionSlot {
	slots := make([]SessionSlot, 0, SessionsPerLesson)
	for n := FirstSessionNumber; n <= LastSessionNumber; n++ {
		t := sessionOrder[n-1]
		slots = append(slots, SessionSlot{
			LessonID:      lessonID,
			SessionNumber: n,
			Type:          t,
			DisplayName:   t.DisplayName(),
		})
	}
	return slots
}
