// Package curriculum loads lessons, drill levels, and chapters from TOML.
package curriculum

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultTOML string

var (
	ErrUnknownLesson  = errors.New("unknown lesson")
	ErrUnknownLevel   = errors.New("unknown level")
	ErrUnknownChapter = errors.New("unknown chapter")
)

// Curriculum is the full course content.
type Curriculum struct {
	Lessons  []Lesson  `toml:"lessons"`
	Levels   []Level   `toml:"levels"`
	Chapters []Chapter `toml:"chapters"`
}

// Lesson is a unit of typing practice gated by one quiz.
type Lesson struct {
	ID          int      `toml:"id"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Characters  []string `toml:"characters"`
	Practice    []string `toml:"practice"`
	Quiz        string   `toml:"quiz"`
}

// Level is a free-drill level of the practice arena.
type Level struct {
	ID         int      `toml:"id"`
	Name       string   `toml:"name"`
	Characters []string `toml:"characters"`
	Practice   []string `toml:"practice"`
}

// Chapter is a structured four-stage learning unit.
type Chapter struct {
	ID              int                   `toml:"id"`
	Title           string                `toml:"title"`
	Description     string                `toml:"description"`
	Introduction    string                `toml:"introduction"`
	Flashcards      []Flashcard           `toml:"flashcards"`
	LetterQuiz      []ChoiceQuestion      `toml:"letter_quiz"`
	WordQuiz        []ChoiceQuestion      `toml:"word_quiz"`
	TranslationQuiz []TranslationQuestion `toml:"translation_quiz"`
}

// Flashcard pairs a frame character with its Roman letter.
type Flashcard struct {
	ID          string `toml:"id"`
	Frame       string `toml:"frame"`
	Roman       string `toml:"roman"`
	Description string `toml:"description"`
}

// ChoiceQuestion is a multiple-choice question.
type ChoiceQuestion struct {
	ID      string   `toml:"id"`
	Kind    string   `toml:"kind"`
	Prompt  string   `toml:"prompt"`
	Display string   `toml:"display"`
	Choices []string `toml:"choices"`
	Answer  string   `toml:"answer"`
}

// TranslationQuestion asks for the Roman spelling of a frame word.
type TranslationQuestion struct {
	ID        string `toml:"id"`
	FrameWord string `toml:"frame_word"`
	Answer    string `toml:"answer"`
}

// HasExercises reports whether the chapter has structured exercises.
func (c Chapter) HasExercises() bool {
	return len(c.Flashcards) > 0
}

// FlashcardIDs returns the ids of the chapter's flashcards.
func (c Chapter) FlashcardIDs() []string {
	ids := make([]string, len(c.Flashcards))
	for i, card := range c.Flashcards {
		ids[i] = card.ID
	}
	return ids
}

// Default returns the embedded curriculum.
func Default() (*Curriculum, error) {
	return Parse(defaultTOML)
}

// Load reads a curriculum file, falling back to the embedded one when path is empty.
func Load(path string) (*Curriculum, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curriculum: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes and validates a curriculum document.
func Parse(data string) (*Curriculum, error) {
	var c Curriculum
	if _, err := toml.Decode(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode curriculum: %w", err)
	}
	sort.Slice(c.Lessons, func(i, j int) bool { return c.Lessons[i].ID < c.Lessons[j].ID })
	sort.Slice(c.Levels, func(i, j int) bool { return c.Levels[i].ID < c.Levels[j].ID })
	sort.Slice(c.Chapters, func(i, j int) bool { return c.Chapters[i].ID < c.Chapters[j].ID })
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids and question consistency.
func (c *Curriculum) Validate() error {
	if len(c.Lessons) == 0 {
		return fmt.Errorf("curriculum has no lessons")
	}
	seen := map[int]bool{}
	for _, l := range c.Lessons {
		if seen[l.ID] {
			return fmt.Errorf("duplicate lesson id %d", l.ID)
		}
		seen[l.ID] = true
		if strings.TrimSpace(l.Quiz) == "" {
			return fmt.Errorf("lesson %d has no quiz text", l.ID)
		}
		if len(l.Practice) == 0 {
			return fmt.Errorf("lesson %d has no practice modules", l.ID)
		}
	}
	seen = map[int]bool{}
	for _, l := range c.Levels {
		if seen[l.ID] {
			return fmt.Errorf("duplicate level id %d", l.ID)
		}
		seen[l.ID] = true
	}
	seen = map[int]bool{}
	for _, ch := range c.Chapters {
		if seen[ch.ID] {
			return fmt.Errorf("duplicate chapter id %d", ch.ID)
		}
		seen[ch.ID] = true
		if err := validateChapter(ch); err != nil {
			return fmt.Errorf("chapter %d: %w", ch.ID, err)
		}
	}
	return nil
}

func validateChapter(ch Chapter) error {
	cards := map[string]bool{}
	for _, card := range ch.Flashcards {
		if card.ID == "" || cards[card.ID] {
			return fmt.Errorf("flashcard id %q is empty or duplicated", card.ID)
		}
		cards[card.ID] = true
	}
	if !ch.HasExercises() {
		return nil
	}
	if len(ch.LetterQuiz) == 0 || len(ch.WordQuiz) == 0 || len(ch.TranslationQuiz) == 0 {
		return fmt.Errorf("every quiz stage needs at least one question")
	}
	for _, q := range append(append([]ChoiceQuestion{}, ch.LetterQuiz...), ch.WordQuiz...) {
		found := false
		for _, choice := range q.Choices {
			if choice == q.Answer {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("question %q answer %q is not among its choices", q.ID, q.Answer)
		}
	}
	for _, q := range ch.TranslationQuiz {
		if strings.TrimSpace(q.Answer) == "" {
			return fmt.Errorf("translation %q has no answer", q.ID)
		}
	}
	return nil
}

// Lesson returns the lesson with the given id.
func (c *Curriculum) Lesson(id int) (Lesson, error) {
	for _, l := range c.Lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return Lesson{}, fmt.Errorf("%w: %d", ErrUnknownLesson, id)
}

// NextLesson returns the lesson following id, if any.
func (c *Curriculum) NextLesson(id int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.ID > id {
			return l, true
		}
	}
	return Lesson{}, false
}

// LessonIDs returns every lesson id in order.
func (c *Curriculum) LessonIDs() []int {
	ids := make([]int, len(c.Lessons))
	for i, l := range c.Lessons {
		ids[i] = l.ID
	}
	return ids
}

// Level returns the drill level with the given id.
func (c *Curriculum) Level(id int) (Level, error) {
	for _, l := range c.Levels {
		if l.ID == id {
			return l, nil
		}
	}
	return Level{}, fmt.Errorf("%w: %d", ErrUnknownLevel, id)
}

// LevelCharacters returns the characters introduced up to and including level id.
func (c *Curriculum) LevelCharacters(id int) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range c.Levels {
		if l.ID > id {
			break
		}
		for _, ch := range l.Characters {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}

// Chapter returns the chapter with the given id.
func (c *Curriculum) Chapter(id int) (Chapter, error) {
	for _, ch := range c.Chapters {
		if ch.ID == id {
			return ch, nil
		}
	}
	return Chapter{}, fmt.Errorf("%w: %d", ErrUnknownChapter, id)
}
