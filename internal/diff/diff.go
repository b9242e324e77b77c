// Package diff implements a token-level Myers shortest-edit-script diff
// used to summarize changes between handoff packet versions.
package diff

import (
	"errors"
	"fmt"
	"strings"
)

// OpKind classifies a single diff operation.
type OpKind string

const (
	OpEqual  OpKind = "equal"
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
)

// Op is one operation in an edit script. Concatenating the Text of all
// equal+insert ops reproduces the new text; equal+delete reproduces the old.
type Op struct {
	Op   OpKind `json:"op"`
	Text string `json:"text"`
}

// ErrBadScript indicates an edit script that does not apply to the given base text.
var ErrBadScript = errors.New("edit script does not match base text")

// Diff computes a word-token edit script transforming oldText into newText
// using the Myers O(ND) algorithm. Identical inputs yield a single equal op,
// and an empty input on either side collapses to a single insert or delete.
func Diff(oldText, newText string) []Op {
	switch {
	case oldText == newText:
		if oldText == "" {
			return []Op{}
		}
		return []Op{{Op: OpEqual, Text: oldText}}
	case oldText == "":
		return []Op{{Op: OpInsert, Text: newText}}
	case newText == "":
		return []Op{{Op: OpDelete, Text: oldText}}
	}

	a := tokenize(oldText)
	b := tokenize(newText)
	return coalesce(backtrack(a, b, shortestEdit(a, b)))
}

// Apply replays an edit script against oldText and returns the new text.
// Equal and delete ops are verified against the base text so a script
// produced for a different base fails instead of corrupting output.
func Apply(oldText string, ops []Op) (string, error) {
	var out strings.Builder
	rest := oldText

	for i, op := range ops {
		switch op.Op {
		case OpEqual:
			if !strings.HasPrefix(rest, op.Text) {
				return "", fmt.Errorf("op %d (equal): %w", i, ErrBadScript)
			}
			out.WriteString(op.Text)
			rest = rest[len(op.Text):]
		case OpDelete:
			if !strings.HasPrefix(rest, op.Text) {
				return "", fmt.Errorf("op %d (delete): %w", i, ErrBadScript)
			}
			rest = rest[len(op.Text):]
		case OpInsert:
			out.WriteString(op.Text)
		default:
			return "", fmt.Errorf("op %d: unknown kind %q: %w", i, op.Op, ErrBadScript)
		}
	}

	if rest != "" {
		return "", fmt.Errorf("trailing base text not consumed: %w", ErrBadScript)
	}
	return out.String(), nil
}

// tokenize splits text into alternating runs of non-space and whitespace
// characters. Joining the tokens reproduces the input exactly, which keeps
// the edit script reversible while staying word-granular for readability.
func tokenize(text string) []string {
	var tokens []string
	start := 0
	inSpace := false

	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if i == 0 {
			inSpace = isSpace
			continue
		}
		if isSpace != inSpace {
			tokens = append(tokens, text[start:i])
			start = i
			inSpace = isSpace
		}
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// shortestEdit runs the forward pass of Myers' algorithm, returning the
// per-depth snapshots of the furthest-reaching x values needed to backtrack.
func shortestEdit(a, b []string) [][]int {
	n, m := len(a), len(b)
	max := n + m
	v := make([]int, 2*max+2)
	var trace [][]int

	for d := 0; d <= max; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[max+k-1] < v[max+k+1]) {
				x = v[max+k+1]
			} else {
				x = v[max+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[max+k] = x
			if x >= n && y >= m {
				return trace
			}
		}
	}
	return trace
}

// backtrack walks the trace from the end point back to the origin and emits
// per-token ops in forward order.
func backtrack(a, b []string, trace [][]int) []Op {
	n, m := len(a), len(b)
	max := n + m
	x, y := n, m

	var rev []Op
	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && v[max+k-1] < v[max+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[max+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			rev = append(rev, Op{Op: OpEqual, Text: a[x-1]})
			x--
			y--
		}
		if d > 0 {
			if x == prevX {
				rev = append(rev, Op{Op: OpInsert, Text: b[prevY]})
			} else {
				rev = append(rev, Op{Op: OpDelete, Text: a[prevX]})
			}
			x, y = prevX, prevY
		}
	}

	ops := make([]Op, len(rev))
	for i, op := range rev {
		ops[len(rev)-1-i] = op
	}
	return ops
}

// coalesce merges adjacent ops of the same kind into one.
func coalesce(ops []Op) []Op {
	if len(ops) == 0 {
		return ops
	}
	out := ops[:1]
	for _, op := range ops[1:] {
		last := &out[len(out)-1]
		if op.Op == last.Op {
			last.Text += op.Text
			continue
		}
		out = append(out, op)
	}
	return out
}
