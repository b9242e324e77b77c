package diff

import (
	"errors"
	"strings"
	"testing"
)

func TestDiffIdenticalSingleEqualOp(t *testing.T) {
	text := "the quick brown fox"
	ops := Diff(text, text)
	if len(ops) != 1 {
		t.Fatalf("expected a single op, got %d", len(ops))
	}
	if ops[0].Op != OpEqual || ops[0].Text != text {
		t.Fatalf("expected one equal op covering the text, got %+v", ops[0])
	}
}

func TestDiffEmptyToNonempty(t *testing.T) {
	ops := Diff("", "hello world")
	if len(ops) != 1 || ops[0].Op != OpInsert || ops[0].Text != "hello world" {
		t.Fatalf("expected a single insert op, got %+v", ops)
	}
}

func TestDiffNonemptyToEmpty(t *testing.T) {
	ops := Diff("hello world", "")
	if len(ops) != 1 || ops[0].Op != OpDelete || ops[0].Text != "hello world" {
		t.Fatalf("expected a single delete op, got %+v", ops)
	}
}

func TestDiffBothEmpty(t *testing.T) {
	if ops := Diff("", ""); len(ops) != 0 {
		t.Fatalf("expected no ops for empty inputs, got %+v", ops)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct{ name, old, new string }{
		{"word swap", "the quick brown fox", "the slow brown fox"},
		{"append", "design the schema", "design the schema and the API"},
		{"prepend", "run the tests", "first run the tests"},
		{"delete middle", "a b c d e", "a b d e"},
		{"rewrite", "entirely different text", "nothing in common here at all"},
		{"multiline", "line one\nline two\nline three", "line one\nline 2\nline three\nline four"},
		{"whitespace only", "a  b", "a b"},
		{"empty old", "", "fresh content"},
		{"empty new", "stale content", ""},
		{"both empty", "", ""},
		{"identical", "same same", "same same"},
		{"tabs", "col1\tcol2", "col1\tcol2\tcol3"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ops := Diff(c.old, c.new)
			got, err := Apply(c.old, ops)
			if err != nil {
				t.Fatalf("apply failed: %v", err)
			}
			if got != c.new {
				t.Fatalf("round trip mismatch: got %q, want %q", got, c.new)
			}
		})
	}
}

func TestDiffPreservesUnchangedRegions(t *testing.T) {
	ops := Diff("alpha beta gamma", "alpha delta gamma")
	var equal, insert, del int
	for _, op := range ops {
		switch op.Op {
		case OpEqual:
			equal++
		case OpInsert:
			insert++
		case OpDelete:
			del++
		}
	}
	if equal == 0 {
		t.Fatal("expected the shared tokens to appear as equal ops")
	}
	if insert == 0 || del == 0 {
		t.Fatalf("expected both insert and delete ops, got %+v", ops)
	}
}

func TestDiffCoalescesAdjacentOps(t *testing.T) {
	ops := Diff("one two three", "four five six")
	for i := 1; i < len(ops); i++ {
		if ops[i].Op == ops[i-1].Op {
			t.Fatalf("adjacent ops %d and %d share kind %s", i-1, i, ops[i].Op)
		}
	}
}

func TestApplyRejectsForeignScript(t *testing.T) {
	ops := Diff("the original text", "the modified text")
	if _, err := Apply("a completely different base", ops); !errors.Is(err, ErrBadScript) {
		t.Fatalf("expected ErrBadScript, got %v", err)
	}
}

func TestApplyRejectsUnknownOp(t *testing.T) {
	_, err := Apply("x", []Op{{Op: "replace", Text: "x"}})
	if !errors.Is(err, ErrBadScript) {
		t.Fatalf("expected ErrBadScript, got %v", err)
	}
}

func TestDiffLargeInput(t *testing.T) {
	old := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	new := strings.Repeat("lorem ipsum dolor sit amet ", 100) +
		"consectetur adipiscing elit " +
		strings.Repeat("lorem ipsum dolor sit amet ", 100)

	got, err := Apply(old, Diff(old, new))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got != new {
		t.Fatal("round trip mismatch on large input")
	}
}
