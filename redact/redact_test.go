package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"Call me at 9998887766 please", "Call me at 9998XXXXXX please"},
		{"9998887766", "9998XXXXXX"},
		{"code 1234", "code 1234"},                       // too short
		{"intl 919998887766 ok", "intl 919998887766 ok"}, // 12 digits, not a match
		{"a9998887766b", "a9998XXXXXXb"},
		{"two 9998887766 and 8887776655", "two 9998XXXXXX and 8887XXXXXX"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, MaskPhone(c.in), "input: %q", c.in)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"contact: ab@xy.com", "contact: XX@XX.com"},
		{"contact: abcdef@example.com", "contact: abXXXX@exXXXXX.com"},
		{"a@b.com", "XX@XX.com"},
		{"john.doe@mail.co.in", "joXXXXXX@maXX.co.in"},
		{"no emails here", "no emails here"},
		{"x@y", "x@y"}, // no tld, not a match
	}
	for _, c := range cases {
		assert.Equal(t, c.out, MaskEmail(c.in), "input: %q", c.in)
	}
}

func TestMaskIdempotent(t *testing.T) {
	inputs := []string{
		"Call me at 9998887766 please",
		"contact: abcdef@example.com",
		"contact: ab@xy.com",
		"mixed 9998887766 and abcdef@example.com",
	}
	for _, s := range inputs {
		p := MaskPhone(s)
		assert.Equal(t, p, MaskPhone(p), "phone mask not idempotent for %q", s)

		e := MaskEmail(s)
		assert.Equal(t, e, MaskEmail(e), "email mask not idempotent for %q", s)
	}
}

func TestMaskSensitiveData(t *testing.T) {
	const s = "call 9998887766 or mail abcdef@example.com"

	// Entitled parties see raw text.
	assert.Equal(t, s, MaskSensitiveData(s, true))

	// Phone masking runs before email masking.
	assert.Equal(t, "call 9998XXXXXX or mail abXXXX@exXXXXX.com", MaskSensitiveData(s, false))

	// No PII, nothing changes either way.
	assert.Equal(t, "Hi", MaskSensitiveData("Hi", false))
}
