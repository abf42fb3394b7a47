package tools

import "fmt"

// Result is the unified return type from action execution. Ordinary
// failures set OK=false with a reason — they are never raised as errors.
type Result struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func OKResult(output string) *Result {
	return &Result{OK: true, Output: output}
}

func FailResult(message string) *Result {
	return &Result{Error: message}
}

func Failf(format string, args ...any) *Result {
	return &Result{Error: fmt.Sprintf(format, args...)}
}
