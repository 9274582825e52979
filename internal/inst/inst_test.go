package inst

import "testing"

func TestLogicalSizeFlat(t *testing.T) {
	program := []Instruction{
		Declare("x", 10),
		Add("x", Var("x"), Lit(5)),
		Print("v=", "x"),
	}
	if got := LogicalSize(program); got != 3 {
		t.Errorf("LogicalSize = %d, want 3", got)
	}
}

func TestLogicalSizeNestedFor(t *testing.T) {
	// FOR(body=[ADD x x 1], reps=3) -> header(1) + 3 leaf executions = 4
	program := []Instruction{
		For([]Instruction{Add("x", Var("x"), Lit(1))}, 3),
	}
	// LogicalSize counts only leaves (fully unrolled), not the FOR header
	// itself -- total_line accounting for the header is the interpreter's
	// job (see internal/interp), this is the unrolled leaf count.
	if got := LogicalSize(program); got != 3 {
		t.Errorf("LogicalSize = %d, want 3", got)
	}
}

func TestLogicalSizeNestedDepth(t *testing.T) {
	inner := For([]Instruction{Declare("y", 0)}, 2)
	outer := For([]Instruction{inner}, 3)
	program := []Instruction{outer}
	if got := LogicalSize(program); got != 6 {
		t.Errorf("LogicalSize = %d, want 6", got)
	}
	if got := Depth(program); got != 2 {
		t.Errorf("Depth = %d, want 2", got)
	}
}

func TestOpString(t *testing.T) {
	cases := map[Op]string{
		OpPrint:    "PRINT",
		OpDeclare:  "DECLARE",
		OpAdd:      "ADD",
		OpSubtract: "SUBTRACT",
		OpSleep:    "SLEEP",
		OpFor:      "FOR",
		OpRead:     "READ",
		OpWrite:    "WRITE",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("Op(%d).String() = %q, want %q", op, got, want)
		}
	}
}
