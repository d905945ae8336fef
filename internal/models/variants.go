package models

// TaskState is either Open or Settled. Settled is terminal.
type TaskState interface {
	Votes() int
	isTaskState()
}

// Open is a task still collecting first votes.
type Open struct {
	VotesSoFar int
}

// Settled is a task whose vote count reached the quorum. It keeps counting stragglers.
type Settled struct {
	FinalVotes int
}

func (o Open) Votes() int    { return o.VotesSoFar }
func (s Settled) Votes() int { return s.FinalVotes }
func (Open) isTaskState()    {}
func (Settled) isTaskState() {}

// StateFromRow rebuilds a TaskState from its persisted columns.
func StateFromRow(status TaskStatus, collected int) TaskState {
	if status == TaskCompleted {
		return Settled{FinalVotes: collected}
	}
	return Open{VotesSoFar: collected}
}

// TaskKind is either a ValidationTask with a known answer or a StandardTask.
type TaskKind interface {
	isTaskKind()
}

// ValidationTask has a known correct answer used to score workers.
type ValidationTask struct {
	CorrectAnswer string
}

// StandardTask has no known answer; it is resolved by majority at export time.
type StandardTask struct{}

func (ValidationTask) isTaskKind() {}
func (StandardTask) isTaskKind()   {}

// KindFromRow rebuilds a TaskKind. A validation flag without an answer is treated as standard.
func KindFromRow(isValidation bool, correctAnswer *string) TaskKind {
	if isValidation && correctAnswer != nil {
		return ValidationTask{CorrectAnswer: *correctAnswer}
	}
	return StandardTask{}
}

// KindColumns is the inverse of KindFromRow.
func KindColumns(k TaskKind) (isValidation bool, correctAnswer *string) {
	if v, ok := k.(ValidationTask); ok {
		answer := v.CorrectAnswer
		return true, &answer
	}
	return false, nil
}

// Answer is the correctness of a stored vote.
type Answer interface {
	isAnswer()
}

// ValidationAnswer is a vote on a validation task.
type ValidationAnswer struct {
	Correct bool
}

// StandardAnswer is a vote whose correctness is pending external resolution.
type StandardAnswer struct{}

func (ValidationAnswer) isAnswer() {}
func (StandardAnswer) isAnswer()   {}

// IsCorrect maps an answer to the nullable is_correct column.
func IsCorrect(a Answer) *bool {
	if v, ok := a.(ValidationAnswer); ok {
		c := v.Correct
		return &c
	}
	return nil
}

// AnswerFromRow rebuilds an Answer from the nullable is_correct column.
func AnswerFromRow(isCorrect *bool) Answer {
	if isCorrect == nil {
		return StandardAnswer{}
	}
	return ValidationAnswer{Correct: *isCorrect}
}
