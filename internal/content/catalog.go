package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"pathquest/internal/domain"
)

// ConfigError describes the first invalid field found in a catalog.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("catalog: %s: %s", e.Path, e.Reason)
}

// Decode parses a YAML (or JSON) catalog, rejecting unknown fields, and validates it.
func Decode(r io.Reader) (domain.Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var catalog domain.Catalog
	if err := dec.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Catalog{}, &ConfigError{Path: "$", Reason: "empty document"}
		}
		return domain.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := Validate(catalog); err != nil {
		return domain.Catalog{}, err
	}
	return catalog, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (domain.Catalog, error) {
	return Decode(bytes.NewReader(data))
}

// Validate checks the structural rules every consumer relies on.
func Validate(c domain.Catalog) error {
	if c.MaxSteps < 0 {
		return &ConfigError{Path: "maxSteps", Reason: "must not be negative"}
	}

	seen := make(map[string]bool)
	for i, ch := range c.Characters {
		path := fmt.Sprintf("characters[%d]", i)
		if ch.ID == "" {
			return &ConfigError{Path: path + ".id", Reason: "required"}
		}
		if seen[ch.ID] {
			return &ConfigError{Path: path + ".id", Reason: fmt.Sprintf("duplicate id %q", ch.ID)}
		}
		seen[ch.ID] = true
	}

	quizIDs := make(map[string]bool)
	for i, quiz := range c.Cloze {
		path := fmt.Sprintf("cloze[%d]", i)
		if err := checkQuizID(quizIDs, path, quiz.ID); err != nil {
			return err
		}
		if quiz.BonusSteps < 0 {
			return &ConfigError{Path: path + ".bonusSteps", Reason: "must not be negative"}
		}
		if quiz.Text == "" {
			return &ConfigError{Path: path + ".text", Reason: "required"}
		}
		if len(quiz.Questions) == 0 {
			return &ConfigError{Path: path + ".questions", Reason: "at least one question required"}
		}
		questionIDs := make(map[int]bool)
		for j, q := range quiz.Questions {
			qpath := fmt.Sprintf("%s.questions[%d]", path, j)
			if questionIDs[q.ID] {
				return &ConfigError{Path: qpath + ".id", Reason: fmt.Sprintf("duplicate id %d", q.ID)}
			}
			questionIDs[q.ID] = true
			if err := checkOptions(qpath, q.Options); err != nil {
				return err
			}
		}
	}

	for i, quiz := range c.MCQ {
		path := fmt.Sprintf("mcq[%d]", i)
		if err := checkQuizID(quizIDs, path, quiz.ID); err != nil {
			return err
		}
		if quiz.MaxBonus < 0 {
			return &ConfigError{Path: path + ".maxBonus", Reason: "must not be negative"}
		}
		if len(quiz.Questions) == 0 {
			return &ConfigError{Path: path + ".questions", Reason: "at least one question required"}
		}
		for j, q := range quiz.Questions {
			qpath := fmt.Sprintf("%s.questions[%d]", path, j)
			if q.Prompt == "" {
				return &ConfigError{Path: qpath + ".prompt", Reason: "required"}
			}
			if err := checkOptions(qpath, q.Options); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkQuizID(seen map[string]bool, path, id string) error {
	if id == "" {
		return &ConfigError{Path: path + ".id", Reason: "required"}
	}
	if seen[id] {
		return &ConfigError{Path: path + ".id", Reason: fmt.Sprintf("duplicate quiz id %q", id)}
	}
	seen[id] = true
	return nil
}

func checkOptions(path string, options []domain.Option) error {
	if len(options) == 0 {
		return &ConfigError{Path: path + ".options", Reason: "at least one option required"}
	}
	texts := make(map[string]bool, len(options))
	correct := 0
	for k, opt := range options {
		if opt.Text == "" {
			return &ConfigError{Path: fmt.Sprintf("%s.options[%d].text", path, k), Reason: "required"}
		}
		if texts[opt.Text] {
			return &ConfigError{Path: fmt.Sprintf("%s.options[%d].text", path, k), Reason: fmt.Sprintf("duplicate option %q", opt.Text)}
		}
		texts[opt.Text] = true
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		return &ConfigError{Path: path + ".options", Reason: fmt.Sprintf("exactly one option must be correct, found %d", correct)}
	}
	return nil
}
