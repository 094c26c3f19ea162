package llm

import "errors"

var (
	// ErrTimeout indicates the LLM request exceeded its deadline.
	ErrTimeout = errors.New("llm request timed out")

	// ErrInvalidOutput indicates the LLM response could not be parsed
	// into the expected structured format.
	ErrInvalidOutput = errors.New("invalid llm output format")

	// ErrEmptyResponse indicates the provider answered without any choices.
	ErrEmptyResponse = errors.New("llm returned empty response")
)
