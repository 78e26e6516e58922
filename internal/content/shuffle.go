package content

import (
	"math/rand"

	"pathquest/internal/domain"
)

// ShuffleCloze returns a copy of quiz with every question's options shuffled by rng.
func ShuffleCloze(quiz domain.ClozeQuiz, rng *rand.Rand) domain.ClozeQuiz {
	out := quiz
	out.Questions = make([]domain.ClozeQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Options = shuffleOptions(q.Options, rng)
		out.Questions[i] = q
	}
	return out
}

// ShuffleMCQ returns a copy of quiz with every question's options shuffled by rng.
// Question order is kept.
func ShuffleMCQ(quiz domain.MCQQuiz, rng *rand.Rand) domain.MCQQuiz {
	out := quiz
	out.Questions = make([]domain.MCQQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Options = shuffleOptions(q.Options, rng)
		out.Questions[i] = q
	}
	return out
}

func shuffleOptions(options []domain.Option, rng *rand.Rand) []domain.Option {
	out := append([]domain.Option(nil), options...)
	if rng == nil {
		return out
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
