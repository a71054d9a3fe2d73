package portability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		`a,b,c`:                      {"a", "b", "c"},
		`a,,c,`:                      {"a", "", "c", ""},
		`"Chunky, Monkey",x`:         {"Chunky, Monkey", "x"},
		`"Ben ""&"" Jerry's",pint`:   {`Ben "&" Jerry's`, "pint"},
		`"",""`:                      {"", ""},
		`"1,200",5`:                  {"1,200", "5"},
		` spaced , out `:             {" spaced ", " out "},
		`ünïcödé,"naïve, café"`:      {"ünïcödé", "naïve, café"},
		`"unterminated,quote`:        {"unterminated,quote"},
		`mid"quote"d,field`:          {"midquoted", "field"},
		`"trailing escaped """,next`: {`trailing escaped "`, "next"},
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLine(in), in)
	}
}

func TestEscapeFieldRoundTrips(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"plain", "Chunky, Monkey", `Ben "&" Jerry's`, `""`, " padded ", ""} {
		assert.Equal(t, []string{s, "x"}, parseLine(EscapeField(s)+",x"), s)
	}
	assert.Equal(t, "plain", EscapeField("plain"))
	assert.Equal(t, `"a,b"`, EscapeField("a,b"))
	assert.Equal(t, `"say ""hi"""`, EscapeField(`say "hi"`))
	assert.Equal(t, "\"two\nlines\"", EscapeField("two\nlines"))
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c", "d"}, splitLines("a\r\nb\nc\rd\n"))
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb"))
	assert.Nil(t, splitLines(""))
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "150", formatNumber(150))
	assert.Equal(t, "0.5", formatNumber(0.5))
	assert.Equal(t, "10.1", formatNumber(10.1))
}
