package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nextspeaker.dev/nextspeaker/selector"
)

func TestParseLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"blank lines", "\n\n  \n", nil},
		{"simple", "ann\nbob\n", []string{"ann", "bob"}},
		{"no trailing newline", "ann\nbob", []string{"ann", "bob"}},
		{"crlf and spaces", "ann\r\n  bob  \r\n\r\ncat", []string{"ann", "bob", "cat"}},
		{"names with spaces", "Ann Lee\nBob", []string{"Ann Lee", "Bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLines(tt.text))
		})
	}
}

func TestFormatLines(t *testing.T) {
	assert.Equal(t, "", FormatLines(nil))
	assert.Equal(t, "ann\nbob\n", FormatLines([]string{"ann", "bob"}))
	assert.Equal(t, []string{"ann", "bob"}, ParseLines(FormatLines([]string{"ann", "bob"})))
}

func TestFilterHistory(t *testing.T) {
	candidates := []string{"ann", "bob"}
	history := []string{"ann", "zed", "bob", "ann", "yan"}

	assert.Equal(t, []string{"ann", "bob", "ann"}, FilterHistory(candidates, history))
	assert.Empty(t, FilterHistory(nil, history))
	assert.Empty(t, FilterHistory(candidates, nil))
}

func TestEligible(t *testing.T) {
	r := New()
	r.Candidates = []string{"ann", "bob"}
	r.History = []string{"old", "ann"}

	candidates, history, halflife, err := r.Eligible()
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob"}, candidates)
	assert.Equal(t, []string{"ann"}, history)
	assert.Equal(t, selector.DefaultHalflife, halflife)

	r.Halflife = 0
	_, _, _, err = r.Eligible()
	assert.ErrorIs(t, err, selector.ErrInvalidInput)

	_, _, _, err = New().Eligible()
	assert.ErrorIs(t, err, selector.ErrInvalidInput)
}

func TestRecord(t *testing.T) {
	r := New()
	r.Record("ann")
	r.Record("bob")
	assert.Equal(t, []string{"ann", "bob"}, r.History)
}

func TestParseHalflife(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"10", 10, false},
		{" 2.5 ", 2.5, false},
		{"5/2", 2.5, false},
		{"1 / 3", 1.0 / 3, false},
		{"0", 0, true},
		{"-4", 0, true},
		{"1/0", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"1/x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHalflife(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, selector.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}
