package tree

import (
	"fmt"
	"strings"
)

// Level is one rung of the content hierarchy. The zero value is LevelNone.
// Program < Curriculum < Subject < Module < Lesson < Topic.
type Level int

const (
	LevelNone Level = iota
	LevelProgram
	LevelCurriculum
	LevelSubject
	LevelModule
	LevelLesson
	LevelTopic
)

var levelNames = [...]string{
	LevelNone:       "none",
	LevelProgram:    "program",
	LevelCurriculum: "curriculum",
	LevelSubject:    "subject",
	LevelModule:     "module",
	LevelLesson:     "lesson",
	LevelTopic:      "topic",
}

var levelPlurals = [...]string{
	LevelNone:       "",
	LevelProgram:    "programs",
	LevelCurriculum: "curriculums",
	LevelSubject:    "subjects",
	LevelModule:     "modules",
	LevelLesson:     "lessons",
	LevelTopic:      "topics",
}

// CategoryNames lists every classifier output in canonical form, including "none".
func CategoryNames() []string {
	out := make([]string, len(levelNames))
	copy(out, levelNames[:])
	return out
}

// Levels returns Program..Topic in order.
func Levels() []Level {
	return []Level{LevelProgram, LevelCurriculum, LevelSubject, LevelModule, LevelLesson, LevelTopic}
}

func (l Level) String() string {
	if l < LevelNone || int(l) >= len(levelNames) {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Plural is the key used for a node's children when rendered as a book.
func (l Level) Plural() string {
	if l < LevelNone || int(l) >= len(levelPlurals) {
		return ""
	}
	return levelPlurals[l]
}

// Valid reports whether l is one of the six hierarchy levels.
func (l Level) Valid() bool {
	return l >= LevelProgram && l <= LevelTopic
}

// Next returns the level directly below l.
func (l Level) Next() (Level, bool) {
	if !l.Valid() || l == LevelTopic {
		return LevelNone, false
	}
	return l + 1, true
}

// Prev returns the level directly above l.
func (l Level) Prev() (Level, bool) {
	if !l.Valid() || l == LevelProgram {
		return LevelNone, false
	}
	return l - 1, true
}

// Chain lists the levels generated for an entry level, top to bottom.
// An entry of Topic (or an invalid level) needs no generation.
func Chain(entry Level) []Level {
	first, ok := entry.Next()
	if !ok {
		return nil
	}
	out := make([]Level, 0, int(LevelTopic-first)+1)
	for l := first; l <= LevelTopic; l++ {
		out = append(out, l)
	}
	return out
}

// ParseLevel accepts the canonical singular names and their plural forms, case-insensitively.
func ParseLevel(raw string) (Level, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for i, name := range levelNames {
		if s == name || (levelPlurals[i] != "" && s == levelPlurals[i]) {
			return Level(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown level %q", raw)
}

func (l Level) MarshalText() ([]byte, error) {
	if l < LevelNone || int(l) >= len(levelNames) {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
