package service

import (
	"skillgate/internal/model"
)

// ValidateAnswer grades one answer against a frozen question config.
// Matching is exact and case-sensitive; blank order is significant.
func ValidateAnswer(qType model.QuestionType, cfg model.QuestionConfig, answer model.AnswerValue) bool {
	switch qType {
	case model.QuestionTypeMultipleChoice:
		if answer.IsList || cfg.CorrectOption == "" {
			return false
		}
		return answer.Text == cfg.CorrectOption
	case model.QuestionTypeFillBlankBlocks:
		if !answer.IsList || len(cfg.Blanks) == 0 || len(answer.Blocks) != len(cfg.Blanks) {
			return false
		}
		for i, want := range cfg.Blanks {
			if answer.Blocks[i] != want {
				return false
			}
		}
		return true
	}
	return false
}

// Score is round(correct / total * 100) with halves rounded up; 0 when total is 0
func Score(total, correct int) int {
	if total <= 0 {
		return 0
	}
	if correct < 0 {
		correct = 0
	}
	if correct > total {
		correct = total
	}
	return (correct*200 + total) / (2 * total)
}

// Passed reports whether score meets the threshold
func Passed(score, threshold int) bool {
	return score >= threshold
}

// Grade is the outcome of scoring a whole attempt
type Grade struct {
	Total   int
	Correct int
	Score   int
	Answers map[string]model.AnswerRecord // Every answered question, with Correct set
}

// GradeAttempt scores answers against the snapshot. Unanswered questions count
// as wrong; answers to questions outside the snapshot are ignored.
func GradeAttempt(questions []model.QuestionSnapshot, answers map[string]model.AnswerRecord) Grade {
	g := Grade{
		Total:   len(questions),
		Answers: make(map[string]model.AnswerRecord, len(answers)),
	}
	for _, q := range questions {
		rec, ok := answers[q.ID]
		if !ok {
			continue
		}
		correct := ValidateAnswer(q.Type, q.Config, rec.Answer)
		rec.Correct = &correct
		g.Answers[q.ID] = rec
		if correct {
			g.Correct++
		}
	}
	g.Score = Score(g.Total, g.Correct)
	return g
}
