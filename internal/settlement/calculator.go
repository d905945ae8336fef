// Package settlement computes the financial and reputational consequence of a vote.
//
// A vote is worth a reward and a reputation score. Amending a vote applies the
// difference between what the new answer is worth and what the previous answer
// was worth, so the ledger converges on paying for the worker's current answer.
package settlement

import (
	"github.com/shopspring/decimal"
	"github.com/slyt3/Quorum/internal/models"
)

const (
	CorrectReputation   = 1.0
	IncorrectReputation = -2.0
)

// Value is what one answer is worth to the worker who gave it.
type Value struct {
	Reward     decimal.Decimal
	Reputation float64
}

// Sub returns v - o.
func (v Value) Sub(o Value) Value {
	return Value{Reward: v.Reward.Sub(o.Reward), Reputation: v.Reputation - o.Reputation}
}

// IsZero reports whether applying v changes nothing.
func (v Value) IsZero() bool {
	return v.Reward.IsZero() && v.Reputation == 0
}

// Settlement is the outcome of one submission.
type Settlement struct {
	Answer models.Answer
	// Delta is applied to the worker's balance and reputation.
	Delta Value
	// Amendment is true when a previous answer existed.
	Amendment bool
}

// Evaluate scores a selection against the task. Correctness is exact string equality.
func Evaluate(kind models.TaskKind, reward decimal.Decimal, selection string) (models.Answer, Value) {
	if v, ok := kind.(models.ValidationTask); ok {
		answer := models.ValidationAnswer{Correct: selection == v.CorrectAnswer}
		return answer, ValueOf(answer, reward)
	}
	return models.StandardAnswer{}, ValueOf(models.StandardAnswer{}, reward)
}

// ValueOf returns what an already-scored answer is worth.
func ValueOf(answer models.Answer, reward decimal.Decimal) Value {
	switch a := answer.(type) {
	case models.ValidationAnswer:
		if a.Correct {
			return Value{Reward: reward, Reputation: CorrectReputation}
		}
		return Value{Reward: decimal.Zero, Reputation: IncorrectReputation}
	default:
		// Standard tasks pay for the submission, not for being right.
		return Value{Reward: reward, Reputation: 0}
	}
}

// Calculate settles a submission. previous is nil for a first vote.
func Calculate(kind models.TaskKind, reward decimal.Decimal, previous models.Answer, selection string) Settlement {
	answer, next := Evaluate(kind, reward, selection)
	if previous == nil {
		return Settlement{Answer: answer, Delta: next}
	}
	prev := ValueOf(normalize(kind, previous), reward)
	return Settlement{Answer: answer, Delta: next.Sub(prev), Amendment: true}
}

// normalize keeps an amendment from crossing tables: a stored answer of the
// wrong shape for the task is read under the task's own table.
func normalize(kind models.TaskKind, previous models.Answer) models.Answer {
	_, validation := kind.(models.ValidationTask)
	_, scored := previous.(models.ValidationAnswer)
	switch {
	case validation && !scored:
		return models.ValidationAnswer{Correct: false}
	case !validation && scored:
		return models.StandardAnswer{}
	}
	return previous
}
