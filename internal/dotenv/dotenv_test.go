package dotenv

import (
	"os"
	"testing"
)

func TestParse(t *testing.T) {
	os.Setenv("DUNE_TEST_HOST", "example.com")
	defer os.Unsetenv("DUNE_TEST_HOST")

	source := `# a comment
export GREETING='Hello'
NAME="World"
URL=https://${DUNE_TEST_HOST}/path
MESSAGE="${GREETING}, ${NAME}!"
MULTI="""
line one
line two
"""
RAW='${NAME}'
`
	kvs, err := Parse(source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		got[kv.Key] = kv.Value
	}

	cases := map[string]string{
		"GREETING": "Hello",
		"NAME":     "World",
		"URL":      "https://example.com/path",
		"MESSAGE":  "Hello, World!",
		"RAW":      "${NAME}",
	}
	for key, want := range cases {
		if got[key] != want {
			t.Errorf("%s = %q, want %q", key, got[key], want)
		}
	}

	if want := "\nline one\nline two\n"; got["MULTI"] != want {
		t.Errorf("MULTI = %q, want %q", got["MULTI"], want)
	}
}

func TestParseSingleQuoteNoSubstitution(t *testing.T) {
	kvs, err := Parse(`A='literal'` + "\n" + `B='${A}'` + "\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, kv := range kvs {
		if kv.Key == "B" && kv.Value != "${A}" {
			t.Errorf("B = %q, want unsubstituted %q", kv.Value, "${A}")
		}
	}
}

func TestParseUnterminatedMultiline(t *testing.T) {
	_, err := Parse("A=\"\"\"\nunterminated\n")
	if err == nil {
		t.Fatal("expected an error for an unterminated multi-line value")
	}
}
