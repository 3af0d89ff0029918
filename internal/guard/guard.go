// Package guard holds in-process request guards applied before a join runs.
package guard

// Result is the outcome of a guard check.
type Result struct {
	Allowed bool
	Reason  string
	Guard   string
}

func allow() Result { return Result{Allowed: true} }
