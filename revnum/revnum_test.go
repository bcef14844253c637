package revnum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"1.2", "1.2"},
		{"01.2", "1.2"},
		{"1.02.003", "1.2.3"},
		{"0.0", "0.0"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestCountFieldsAndIsBranch(t *testing.T) {
	assert.Equal(t, 0, CountFields(""))
	assert.Equal(t, 2, CountFields("1.2"))
	assert.Equal(t, 4, CountFields("1.2.3.4"))

	assert.False(t, IsBranch("1.2"))
	assert.True(t, IsBranch("1.2.3.4"))
	assert.False(t, IsBranch(""))
}

func TestBranchOf(t *testing.T) {
	assert.Equal(t, "1.2.3", BranchOf("1.2.3.4"))
	assert.Equal(t, "1.2.3", BranchOf("1.2.3")) // already a branch designator
	assert.Equal(t, "1.2", BranchOf("1.2"))     // trunk revision, no branch
	assert.Equal(t, "1", BranchOf("1"))
}

func TestIsBranchDesignator(t *testing.T) {
	assert.False(t, IsBranchDesignator("1.2"))
	assert.True(t, IsBranchDesignator("1.2.1"))
	assert.False(t, IsBranchDesignator("1.2.1.1"))
	assert.True(t, IsBranchDesignator("1.2.1.1.1"))
}

func TestPartial(t *testing.T) {
	assert.Equal(t, "1.2", Partial("1.2.3.4", 2))
	assert.Equal(t, "1.2.3.4", Partial("1.2.3.4", 9))
}

func TestIncrement(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1.1", "1.2"},
		{"1.9", "1.10"},
		{"1.999", "1.1000"},
		{"9", "10"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Increment(c.in), "Increment(%q)", c.in)
	}
}

func TestDecrement(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1.2", "1.1"},
		{"1.10", "1.9"},
		{"1.1000", "1.999"},
		{"10", "9"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Decrement(c.in), "Decrement(%q)", c.in)
	}
}

func TestCmpNum(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.1", "1.1", 0},
		{"1.2", "1.10", -1},
		{"1.10", "1.2", 1},
		{"1.1", "1.1.1", 1}, // missing field ranks higher
		{"1.1.1", "1.1", -1},
		{"01.2", "1.2", 0}, // leading zeros ignored
	}
	for _, c := range cases {
		got := CmpNum(c.a, c.b)
		if c.want == 0 {
			assert.Zero(t, got, "CmpNum(%q, %q)", c.a, c.b)
		} else if c.want < 0 {
			assert.Negative(t, got, "CmpNum(%q, %q)", c.a, c.b)
		} else {
			assert.Positive(t, got, "CmpNum(%q, %q)", c.a, c.b)
		}
	}
}

func TestCmpNumField(t *testing.T) {
	assert.Zero(t, CmpNumField("1.2", "9.2", 2))
	assert.Negative(t, CmpNumField("1.2", "1.9", 2))
}

func TestCmpPartial(t *testing.T) {
	assert.Zero(t, CmpPartial("1.2.3", "1.2.9", 2))
	assert.Negative(t, CmpPartial("1.2.3", "1.2.9", 3))
}
