package orchestration

import "errors"

var (
	ErrEmptyID            = errors.New("orchestration: empty id")
	ErrNoTriggers         = errors.New("orchestration: at least one trigger is required")
	ErrNoSteps            = errors.New("orchestration: at least one workflow step is required")
	ErrNotFound           = errors.New("orchestration: not found")
	ErrAlreadyRunning     = errors.New("orchestration: already running")
	ErrConditionNotMet    = errors.New("orchestration: step condition not met")
	ErrStepAborted        = errors.New("orchestration: step aborted")
	ErrUnknownStepKind    = errors.New("orchestration: unknown step kind")
	ErrUnknownTriggerKind = errors.New("orchestration: unknown trigger kind")
)
