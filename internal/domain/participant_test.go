package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestNewParticipant_Name(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trimmed", "  Bob ", "Bob"},
		{"falls back to id", "   ", "p-1"},
		{"ascii cut at limit", strings.Repeat("a", 70), strings.Repeat("a", MaxDisplayNameLen)},
		// 1 + 31*2 bytes fit, the next two-byte rune would not
		{"multibyte cut on rune boundary", "a" + strings.Repeat("é", 40), "a" + strings.Repeat("é", 31)},
		{"four byte runes", strings.Repeat("😀", 20), strings.Repeat("😀", 16)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)

			p, err := NewParticipant("p-1", tc.in, false)

			req.NoError(err)
			req.Equal(tc.want, p.Name)
			req.True(utf8.ValidString(p.Name))
			req.LessOrEqual(len(p.Name), MaxDisplayNameLen)
		})
	}
}

func TestNewParticipant_Requires_ID(t *testing.T) {
	_, err := NewParticipant("", "Bob", false)
	require.ErrorIs(t, err, ErrEmptyParticipantID)
}

func TestValidateDisplayName(t *testing.T) {
	req := require.New(t)
	req.NoError(ValidateDisplayName("Dr. Lee"))
	req.ErrorIs(ValidateDisplayName(" \t"), ErrDisplayNameEmpty)
	req.ErrorIs(ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen+1)), ErrDisplayNameTooLong)
}
