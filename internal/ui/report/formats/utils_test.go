package formats

import (
	"testing"
)

func TestNodeLabel(t *testing.T) {
	t.Parallel()

	got := nodeLabel(Function{Name: "Service.run", File: "app/svc.py", Line: 12})
	expected := "Service.run\\napp/svc.py:12"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}

	got = nodeLabel(Function{Name: "main", File: "main.py"})
	if got != "main\\nmain.py" {
		t.Fatalf("expected label without line, got %q", got)
	}
}

func TestSanitizeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: "f"},
		{name: "Alpha", input: "foo", expected: "foo"},
		{name: "DigitsFirst", input: "1mod", expected: "f_1mod"},
		{name: "Signature", input: "a/b.py::C.m", expected: "a_b_py__C_m"},
		{name: "OnlySymbols", input: "!!", expected: "__"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitizeID(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestMakeIDs(t *testing.T) {
	t.Parallel()

	names := []string{"a-b", "a_b", "c", "a-b"}
	got := makeIDs(names)
	if got["a-b"] != "a_b" {
		t.Fatalf("expected a-b to map to a_b, got %q", got["a-b"])
	}
	if got["a_b"] != "a_b_2" {
		t.Fatalf("expected a_b to map to a_b_2, got %q", got["a_b"])
	}
	if got["c"] != "c" {
		t.Fatalf("expected c to map to c, got %q", got["c"])
	}
}

func TestEscapeLabel(t *testing.T) {
	t.Parallel()

	got := escapeLabel("a\"b\"c")
	if got != "a'b'c" {
		t.Fatalf("expected %q, got %q", "a'b'c", got)
	}
}

func TestCodeFence(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"def f():\n    pass\n":                   "```",
		"x = '`a`'\n":                            "```",
		"doc = \"\"\"\n```sh\nls\n```\n\"\"\"\n": "````",
		"s = '`````'\n":                          "``````",
	}
	for src, want := range cases {
		if got := codeFence(src); got != want {
			t.Fatalf("codeFence(%q) = %q, want %q", src, got, want)
		}
	}
}
