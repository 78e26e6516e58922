package domain

// GameProgress is the authoritative, persisted game state.
type GameProgress struct {
	SelectedCharacterID string                 `json:"selectedCharacterId,omitempty"`
	CurrentStep         int                    `json:"currentStep"`
	MaxSteps            int                    `json:"maxSteps"`
	IsAdminMode         bool                   `json:"isAdminMode"`
	VictoryCount        int                    `json:"victoryCount"`
	MCQProgress         map[string]MCQProgress `json:"mcqProgress"`
	// Unlocked lists the gated features a code has opened, sorted.
	Unlocked []string `json:"unlocked,omitempty"`
}

// Clone returns a deep copy so callers can never alias the store's map.
func (p GameProgress) Clone() GameProgress {
	out := p
	out.MCQProgress = make(map[string]MCQProgress, len(p.MCQProgress))
	for id, entry := range p.MCQProgress {
		out.MCQProgress[id] = entry.Clone()
	}
	if p.Unlocked != nil {
		out.Unlocked = append([]string(nil), p.Unlocked...)
	}
	return out
}

// HasUnlocked reports whether a code has opened the feature.
func (p GameProgress) HasUnlocked(feature string) bool {
	for _, f := range p.Unlocked {
		if f == feature {
			return true
		}
	}
	return false
}

// LastStep is the index of the terminal cell.
func (p GameProgress) LastStep() int {
	return p.MaxSteps - 1
}

// AtFinish reports whether the player stands on the terminal cell.
func (p GameProgress) AtFinish() bool {
	return p.MaxSteps >= 1 && p.CurrentStep == p.LastStep()
}

// MCQProgress tracks one multiple-choice quiz run.
type MCQProgress struct {
	QuestionIndex     int    `json:"idx"`
	Selected          string `json:"selected,omitempty"`
	CorrectCount      int    `json:"correctCount"`
	Finished          bool   `json:"finished"`
	ShowFeedback      bool   `json:"showFeedback"`
	LastChosenText    string `json:"lastChosenText,omitempty"`
	LastChosenCorrect bool   `json:"lastChosenCorrect"`
	AppliedBonus      *int   `json:"appliedBonus,omitempty"`
}

func (p MCQProgress) Clone() MCQProgress {
	out := p
	if p.AppliedBonus != nil {
		v := *p.AppliedBonus
		out.AppliedBonus = &v
	}
	return out
}

// ClozeProgress tracks one fill-in-the-blank quiz.
type ClozeProgress struct {
	LivesRemaining int            `json:"livesRemaining"`
	HasWon         bool           `json:"hasWon"`
	Submitted      bool           `json:"submitted"`
	Answers        map[int]string `json:"answers"`
	Locked         map[int]bool   `json:"locked"`
}

// ClozePhase is the observable state of a cloze quiz.
type ClozePhase string

const (
	ClozePlaying   ClozePhase = "playing"
	ClozeIncorrect ClozePhase = "incorrect"
	ClozeWon       ClozePhase = "won"
	ClozeLocked    ClozePhase = "locked"
)

// MaxLives is the number of attempts a cloze quiz starts with.
const MaxLives = 3

// Phase derives the state machine position from the persisted fields.
func (p ClozeProgress) Phase() ClozePhase {
	switch {
	case p.HasWon:
		return ClozeWon
	case p.LivesRemaining <= 0:
		return ClozeLocked
	case p.Submitted:
		return ClozeIncorrect
	default:
		return ClozePlaying
	}
}

// Character is a selectable player avatar.
type Character struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Image       string `json:"image" yaml:"image"`
}

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
	Image   string `json:"image,omitempty" yaml:"image,omitempty"`
}

// ClozeQuestion is one blank of a cloze template.
type ClozeQuestion struct {
	ID      int      `json:"id" yaml:"id"`
	Type    string   `json:"type,omitempty" yaml:"type,omitempty"`
	Options []Option `json:"options" yaml:"options"`
}

// ClozeQuiz is a templated text with numbered blanks such as "{1}".
type ClozeQuiz struct {
	ID         string          `json:"id" yaml:"id"`
	Title      string          `json:"title" yaml:"title"`
	BonusSteps int             `json:"bonusSteps" yaml:"bonusSteps"`
	Text       string          `json:"text" yaml:"text"`
	Questions  []ClozeQuestion `json:"questions" yaml:"questions"`
}

// Question looks up a blank by id.
func (q ClozeQuiz) Question(id int) (ClozeQuestion, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return ClozeQuestion{}, false
}

// MCQQuestion models a question with exactly one correct option.
type MCQQuestion struct {
	ID      int      `json:"id" yaml:"id"`
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []Option `json:"options" yaml:"options"`
}

// MCQQuiz is an ordered list of multiple-choice questions.
type MCQQuiz struct {
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title" yaml:"title"`
	MaxBonus  int           `json:"maxBonus" yaml:"maxBonus"`
	Questions []MCQQuestion `json:"questions" yaml:"questions"`
}

// Catalog is the static, read-only game content.
type Catalog struct {
	MaxSteps   int         `json:"maxSteps,omitempty" yaml:"maxSteps,omitempty"`
	Characters []Character `json:"characters" yaml:"characters"`
	Cloze      []ClozeQuiz `json:"cloze" yaml:"cloze"`
	MCQ        []MCQQuiz   `json:"mcq" yaml:"mcq"`
}

// CorrectOption returns the option flagged correct, if any.
func CorrectOption(options []Option) (Option, bool) {
	for _, opt := range options {
		if opt.Correct {
			return opt, true
		}
	}
	return Option{}, false
}
