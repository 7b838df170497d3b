// Package redact masks contact details (phone numbers, emails) in chat text
// for parties whose subscription does not entitle them to exchange PII.
package redact

import (
	"regexp"
	"strings"
)

const maskChar = "X"

const (
	// Length of a digit run treated as a phone number.
	phoneRunLen = 10
	// Leading digits of a phone run kept visible.
	phoneKeepDigits = 4
	// Local part / first domain label: chars kept visible when long enough.
	emailKeepChars = 2
)

var (
	digitRunRe = regexp.MustCompile(`[0-9]+`)
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+`)
)

// MaskPhone masks every maximal run of exactly ten consecutive digits,
// keeping the first four digits and replacing the remaining six.
// Digit runs of any other length are left untouched, so masked output
// (a four digit run) never matches again.
func MaskPhone(text string) string {
	return digitRunRe.ReplaceAllStringFunc(text, func(run string) string {
		if len(run) != phoneRunLen {
			return run
		}
		return run[:phoneKeepDigits] + strings.Repeat(maskChar, phoneRunLen-phoneKeepDigits)
	})
}

// MaskEmail masks the local part and the first domain label of every
// email-shaped substring. Parts longer than two characters keep their
// first two characters and get one mask character per remaining
// character; shorter parts are replaced by two mask characters. Suffix
// labels (".com", ".co.in", ...) are untouched.
func MaskEmail(text string) string {
	return emailRe.ReplaceAllStringFunc(text, func(addr string) string {
		at := strings.IndexByte(addr, '@')
		local, domain := addr[:at], addr[at+1:]

		dot := strings.IndexByte(domain, '.')
		first, suffix := domain[:dot], domain[dot:]

		return maskPart(local) + "@" + maskPart(first) + suffix
	})
}

func maskPart(s string) string {
	if len(s) > emailKeepChars {
		return s[:emailKeepChars] + strings.Repeat(maskChar, len(s)-emailKeepChars)
	}
	return strings.Repeat(maskChar, emailKeepChars)
}

// MaskSensitiveData returns text unchanged for entitled parties;
// otherwise it applies MaskPhone then MaskEmail.
func MaskSensitiveData(text string, entitled bool) string {
	if entitled {
		return text
	}
	return MaskEmail(MaskPhone(text))
}
