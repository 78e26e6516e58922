package domain

import "errors"

var (
	// ErrUnknownCode is returned when a submitted code matches nothing.
	ErrUnknownCode = errors.New("unknown code")
	// ErrAdminRequired guards debug-only operations.
	ErrAdminRequired = errors.New("admin mode required")
	// ErrCodeRequired guards features that only a secret code opens.
	ErrCodeRequired = errors.New("enter the matching code first")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option is not part of the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrCharacterNotFound indicates an unknown character id.
	ErrCharacterNotFound = errors.New("character not found")

	ErrQuizWon         = errors.New("quiz already won")
	ErrQuizLocked      = errors.New("quiz locked: no lives remaining")
	ErrRetryNotAllowed = errors.New("retry only allowed after an incorrect submission")
	ErrNotPlaying      = errors.New("quiz is not accepting answers")
	ErrBlankLocked     = errors.New("blank already answered correctly")

	ErrNoSelection      = errors.New("no option selected")
	ErrSelectionClosed  = errors.New("selection closed for current question")
	ErrFeedbackPending  = errors.New("feedback must be acknowledged first")
	ErrNoFeedback       = errors.New("no feedback to continue from")
	ErrQuizFinished     = errors.New("quiz finished")
	ErrPathComplete     = errors.New("path already complete")
	ErrCatalogNotLoaded = errors.New("catalog not found")
)
