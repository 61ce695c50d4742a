package diag

import "testing"

func TestPositionOf(t *testing.T) {
	src := "var x = 1;\nprint x;\n"
	cases := []struct {
		offset int
		want   Position
	}{
		{0, Position{1, 1}},
		{4, Position{1, 5}},
		{11, Position{2, 1}},
		{17, Position{2, 7}},
	}
	for _, c := range cases {
		if got := PositionOf(src, c.offset); got != c.want {
			t.Errorf("PositionOf(%d) = %+v, want %+v", c.offset, got, c.want)
		}
	}
}

func TestReportRender(t *testing.T) {
	src := "var = 1;\n"
	var r Report
	r.File = "main.lox"
	r.Add(Parse, Span{Offset: 4, Length: 1}, "expect variable name")

	out := r.Render(src)
	want := "main.lox:1:5: parse error: expect variable name\n  var = 1;\n      ^\n"
	if out != want {
		t.Errorf("Render() =\n%q\nwant\n%q", out, want)
	}
}

func TestRuntimeErrorRender(t *testing.T) {
	err := &RuntimeError{
		Line:    3,
		Message: "Undefined variable 'x'.",
		Frames: []Frame{
			{Name: "inner", Line: 3},
			{Name: "outer", Line: 7},
		},
	}
	withoutBT := err.Render(false)
	if withoutBT != "Error: line 3: Undefined variable 'x'.\n" {
		t.Errorf("Render(false) = %q", withoutBT)
	}
	withBT := err.Render(true)
	want := "Error: line 3: Undefined variable 'x'.\n" +
		"  0: inner()    [line 3]\n" +
		"  1: outer()    [line 7]\n"
	if withBT != want {
		t.Errorf("Render(true) =\n%q\nwant\n%q", withBT, want)
	}
}
