package model

import "time"

// Score is an accuracy/speed triple kept as a lesson's best result.
type Score struct {
	Accuracy int
	CPM      int
	WPM      int
}

// LessonScore is the per-lesson quiz record of a user.
type LessonScore struct {
	LessonID int
	Accuracy int
	CPM      int
	WPM      int
	Passed   bool
	Attempts int
	Best     *Score
}

// Settings holds user-adjustable options.
type Settings struct {
	// CustomAccuracyThreshold overrides the default quiz accuracy gate when set.
	CustomAccuracyThreshold *int
}

// UserProgress is the durable per-user aggregate.
type UserProgress struct {
	CurrentLevel    int
	CompletedLevels IntSet
	// ArenaLevels holds levels cleared in the practice arena; kept apart from
	// CompletedLevels, which only lesson quizzes may populate.
	ArenaLevels     IntSet
	Accuracy        map[string]int
	TotalAttempts   map[string]int
	CorrectAttempts map[string]int
	LessonScores    map[int]LessonScore
	Badges          StringSet
	Settings        Settings
}

// NewUserProgress returns the defaults used for a user seen for the first time.
func NewUserProgress() UserProgress {
	return UserProgress{
		CurrentLevel:    1,
		CompletedLevels: IntSet{},
		ArenaLevels:     IntSet{},
		Accuracy:        map[string]int{},
		TotalAttempts:   map[string]int{},
		CorrectAttempts: map[string]int{},
		LessonScores:    map[int]LessonScore{},
		Badges:          StringSet{},
	}
}

// Clone returns a deep copy so reducers never share maps with their input.
func (p UserProgress) Clone() UserProgress {
	out := p
	out.CompletedLevels = p.CompletedLevels.Clone()
	out.ArenaLevels = p.ArenaLevels.Clone()
	out.Accuracy = cloneCounts(p.Accuracy)
	out.TotalAttempts = cloneCounts(p.TotalAttempts)
	out.CorrectAttempts = cloneCounts(p.CorrectAttempts)
	out.LessonScores = make(map[int]LessonScore, len(p.LessonScores))
	for id, score := range p.LessonScores {
		if score.Best != nil {
			best := *score.Best
			score.Best = &best
		}
		out.LessonScores[id] = score
	}
	out.Badges = p.Badges.Clone()
	if p.Settings.CustomAccuracyThreshold != nil {
		v := *p.Settings.CustomAccuracyThreshold
		out.Settings.CustomAccuracyThreshold = &v
	}
	return out
}

func cloneCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Stage is a phase of a chapter's structured exercises.
type Stage string

const (
	StageFlashcards      Stage = "flashcards"
	StageLetterQuiz      Stage = "letter-recognition-quiz"
	StageWordQuiz        Stage = "word-recognition-quiz"
	StageTranslationQuiz Stage = "word-translation-quiz"
	StageComplete        Stage = "complete"
)

// Stages lists every stage in its fixed forward order.
var Stages = []Stage{StageFlashcards, StageLetterQuiz, StageWordQuiz, StageTranslationQuiz, StageComplete}

// Index returns the position of s in Stages, or -1 for an unknown stage.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// ExerciseProgress tracks one chapter's structured exercises.
type ExerciseProgress struct {
	ChapterID           int
	CurrentStage        Stage
	FlashcardsReviewed  bool
	FlashcardsViewed    StringSet
	LetterQuizDone      bool
	WordQuizDone        bool
	TranslationQuizDone bool
	CompletedAt         *time.Time
}

// NewExerciseProgress returns the state created on first interaction with a chapter.
func NewExerciseProgress(chapterID int) ExerciseProgress {
	return ExerciseProgress{
		ChapterID:        chapterID,
		CurrentStage:     StageFlashcards,
		FlashcardsViewed: StringSet{},
	}
}

// Clone returns a deep copy.
func (e ExerciseProgress) Clone() ExerciseProgress {
	out := e
	out.FlashcardsViewed = e.FlashcardsViewed.Clone()
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// LearnProgress is the per-user chapter aggregate, independent from UserProgress.
type LearnProgress struct {
	CompletedChapters   IntSet
	Exercises           map[int]ExerciseProgress
	LastAccessedChapter int
}

// NewLearnProgress returns empty chapter progress.
func NewLearnProgress() LearnProgress {
	return LearnProgress{
		CompletedChapters: IntSet{},
		Exercises:         map[int]ExerciseProgress{},
	}
}

// Clone returns a deep copy.
func (l LearnProgress) Clone() LearnProgress {
	out := l
	out.CompletedChapters = l.CompletedChapters.Clone()
	out.Exercises = make(map[int]ExerciseProgress, len(l.Exercises))
	for id, ex := range l.Exercises {
		out.Exercises[id] = ex.Clone()
	}
	return out
}
