package chapter

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/verte-zerg/frametype/internal/curriculum"
)

const (
	// CorrectAdvanceDelay is the pause after a correct answer.
	CorrectAdvanceDelay = 1500 * time.Millisecond
	// RevealAdvanceDelay is the pause after a revealed translation.
	RevealAdvanceDelay = 2 * time.Second
	// RevealAfterMisses is the number of wrong translations that unlocks reveal.
	RevealAfterMisses = 2
)

var (
	ErrNotAnswering = errors.New("question is not awaiting an answer")
	ErrEmptyAnswer  = errors.New("empty answer")
	ErrRevealLocked = errors.New("answer cannot be revealed yet")
)

// Shuffler randomizes choice order. *generator.Generator implements it.
type Shuffler interface {
	Shuffle(items []string) []string
}

// AnswerState is the state of the question on screen.
type AnswerState int

const (
	Answering AnswerState = iota
	// AnsweredCorrect waits for the advance delay.
	AnsweredCorrect
	// AnsweredWrong waits for TryAgain.
	AnsweredWrong
	// Revealed waits for the advance delay.
	Revealed
	Finished
)

// advance hands out tokens for delayed advances. Any transition that should
// drop a pending advance bumps the token.
type advance struct {
	token int
}

func (a *advance) next() int {
	a.token++
	return a.token
}

func (a *advance) valid(token int) bool {
	return token == a.token
}

// ChoiceQuiz runs a letter or word recognition quiz. It is not safe for
// concurrent use.
type ChoiceQuiz struct {
	questions []curriculum.ChoiceQuestion
	shuffler  Shuffler
	index     int
	choices   []string
	selected  string
	state     AnswerState
	adv       advance
}

// NewChoiceQuiz starts at the first question with its choices shuffled.
func NewChoiceQuiz(questions []curriculum.ChoiceQuestion, s Shuffler) *ChoiceQuiz {
	q := &ChoiceQuiz{questions: questions, shuffler: s}
	q.load()
	return q
}

func (q *ChoiceQuiz) load() {
	q.selected = ""
	if q.index >= len(q.questions) {
		q.state = Finished
		q.choices = nil
		return
	}
	q.state = Answering
	q.choices = q.shuffler.Shuffle(q.questions[q.index].Choices)
}

// Question returns the question on screen.
func (q *ChoiceQuiz) Question() (curriculum.ChoiceQuestion, bool) {
	if q.state == Finished {
		return curriculum.ChoiceQuestion{}, false
	}
	return q.questions[q.index], true
}

// Choices returns the shuffled choices of the current question.
func (q *ChoiceQuiz) Choices() []string { return q.choices }

func (q *ChoiceQuiz) State() AnswerState { return q.state }
func (q *ChoiceQuiz) Selected() string { return q.selected }
func (q *ChoiceQuiz) Index() int { return q.index }
func (q *ChoiceQuiz) Len() int { return len(q.questions) }
func (q *ChoiceQuiz) Finished() bool { return q.state == Finished }

// Select answers the current question. A correct choice returns a token to
// pass to Advance once CorrectAdvanceDelay has elapsed. A wrong choice shows
// the answer and waits for TryAgain.
func (q *ChoiceQuiz) Select(choice string) (token int, correct bool, err error) {
	if q.state != Answering {
		return 0, false, ErrNotAnswering
	}
	q.selected = choice
	if choice == q.questions[q.index].Answer {
		q.state = AnsweredCorrect
		return q.adv.next(), true, nil
	}
	q.state = AnsweredWrong
	return 0, false, nil
}

// TryAgain reopens the current question after a wrong choice.
func (q *ChoiceQuiz) TryAgain() error {
	if q.state != AnsweredWrong {
		return ErrNotAnswering
	}
	q.state = Answering
	q.selected = ""
	return nil
}

// Advance moves past a correctly answered question. Stale tokens are ignored.
func (q *ChoiceQuiz) Advance(token int) bool {
	if q.state != AnsweredCorrect || !q.adv.valid(token) {
		return false
	}
	q.index++
	q.load()
	return true
}

// Cancel drops any pending advance.
func (q *ChoiceQuiz) Cancel() { q.adv.next() }

// TranslationQuiz runs the free-text translation quiz. It is not safe for
// concurrent use.
type TranslationQuiz struct {
	questions []curriculum.TranslationQuestion
	index     int
	misses    int
	state     AnswerState
	adv       advance
}

// NewTranslationQuiz starts at the first question.
func NewTranslationQuiz(questions []curriculum.TranslationQuestion) *TranslationQuiz {
	q := &TranslationQuiz{questions: questions}
	q.load()
	return q
}

func (q *TranslationQuiz) load() {
	q.misses = 0
	if q.index >= len(q.questions) {
		q.state = Finished
		return
	}
	q.state = Answering
}

// Question returns the question on screen.
func (q *TranslationQuiz) Question() (curriculum.TranslationQuestion, bool) {
	if q.state == Finished {
		return curriculum.TranslationQuestion{}, false
	}
	return q.questions[q.index], true
}

func (q *TranslationQuiz) State() AnswerState { return q.state }
func (q *TranslationQuiz) Misses() int { return q.misses }
func (q *TranslationQuiz) Index() int { return q.index }
func (q *TranslationQuiz) Len() int { return len(q.questions) }
func (q *TranslationQuiz) Finished() bool { return q.state == Finished }

// MatchAnswer compares input to answer ignoring case and surrounding space.
func MatchAnswer(input, answer string) bool {
	return strings.ToLower(strings.TrimSpace(input)) == strings.ToLower(answer)
}

// Submit checks input against the current answer. Blank input is rejected
// without counting as a miss.
func (q *TranslationQuiz) Submit(input string) (token int, correct bool, err error) {
	if q.state != Answering {
		return 0, false, ErrNotAnswering
	}
	if strings.TrimSpace(input) == "" {
		return 0, false, ErrEmptyAnswer
	}
	if MatchAnswer(input, q.questions[q.index].Answer) {
		q.state = AnsweredCorrect
		return q.adv.next(), true, nil
	}
	q.misses++
	q.state = AnsweredWrong
	return 0, false, nil
}

// TryAgain reopens the current question after a miss.
func (q *TranslationQuiz) TryAgain() error {
	if q.state != AnsweredWrong {
		return ErrNotAnswering
	}
	q.state = Answering
	return nil
}

// Hint returns the first character of the answer once a miss was recorded.
func (q *TranslationQuiz) Hint() (string, bool) {
	if q.misses == 0 || q.state == Finished {
		return "", false
	}
	answer := q.questions[q.index].Answer
	r, _ := utf8.DecodeRuneInString(answer)
	return string(r), true
}

// CanReveal reports whether the answer may be shown outright.
func (q *TranslationQuiz) CanReveal() bool {
	return q.misses >= RevealAfterMisses && (q.state == Answering || q.state == AnsweredWrong)
}

// Reveal shows the answer. It counts as completing the question and returns
// a token to pass to Advance once RevealAdvanceDelay has elapsed.
func (q *TranslationQuiz) Reveal() (answer string, token int, err error) {
	if !q.CanReveal() {
		return "", 0, ErrRevealLocked
	}
	q.state = Revealed
	return q.questions[q.index].Answer, q.adv.next(), nil
}

// Advance moves past a correct or revealed question. Stale tokens are ignored.
func (q *TranslationQuiz) Advance(token int) bool {
	if (q.state != AnsweredCorrect && q.state != Revealed) || !q.adv.valid(token) {
		return false
	}
	q.index++
	q.load()
	return true
}

// Cancel drops any pending advance.
func (q *TranslationQuiz) Cancel() { q.adv.next() }
