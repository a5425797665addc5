// Package gate decides whether a qualifying post is admitted for
// forwarding. The heuristic gate applies configured keyword and length
// rules; the LLM gate asks a model for a verdict and falls back to the
// heuristic when the answer is missing or uncertain.
package gate

// Verdict is the outcome of an admission check.
type Verdict struct {
	Admit  bool
	Reason string
}

// Gate checks post text before it is forwarded.
type Gate interface {
	Check(text string) Verdict
}
