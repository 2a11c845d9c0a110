// Package validate normalizes and checks customer-supplied text: digits,
// phone numbers, names and district names.
package validate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/soyeahso/sawt/internal/domain"
)

var (
	phoneSeparators = regexp.MustCompile(`[\s\-().]`)
	saudiMobile     = regexp.MustCompile(`^05\d{8}$`)
	nameChars       = regexp.MustCompile(`^[\x{0600}-\x{06FF}\x{0750}-\x{077F}a-zA-Z\s]+$`)
	diacritics      = regexp.MustCompile(`[\x{064B}-\x{065F}\x{0670}]`)
)

// NormalizeDigits converts Arabic-Indic (٠-٩) and extended Arabic-Indic
// (۰-۹) digits to ASCII.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// Phone normalizes a Saudi mobile number to the local 05XXXXXXXX form.
func Phone(raw string) (string, error) {
	p := phoneSeparators.ReplaceAllString(NormalizeDigits(raw), "")
	switch {
	case strings.HasPrefix(p, "+966"):
		p = "0" + p[4:]
	case strings.HasPrefix(p, "00966"):
		p = "0" + p[5:]
	case strings.HasPrefix(p, "966"):
		p = "0" + p[3:]
	}
	if !saudiMobile.MatchString(p) {
		return "", domain.Validation("validate phone", "%q is not a Saudi mobile number (05XXXXXXXX)", raw)
	}
	return p, nil
}

// Name trims and collapses whitespace and requires at least two letters,
// Arabic or Latin.
func Name(raw string) (string, error) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if len([]rune(cleaned)) < 2 {
		return "", domain.Validation("validate name", "name must have at least 2 letters")
	}
	if !nameChars.MatchString(cleaned) {
		return "", domain.Validation("validate name", "name may contain letters and spaces only")
	}
	return cleaned, nil
}

// Quantity checks an order line quantity.
func Quantity(q int) error {
	if q < 1 || q > domain.MaxQuantity {
		return domain.Validation("validate quantity", "quantity must be between 1 and %d, got %d", domain.MaxQuantity, q)
	}
	return nil
}

// CleanArabic strips diacritics and tatweel, folds alef variants and teh
// marbuta, lower-cases Latin letters and collapses whitespace.
func CleanArabic(s string) string {
	s = diacritics.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'أ', 'إ', 'آ':
			return 'ا'
		case 'ة':
			return 'ه'
		case 'ـ':
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

var areaPrefixes = []string{"حي ", "منطقه ", "شارع ", "طريق "}

// AreaName normalizes a district name for matching, dropping a leading
// "حي" style prefix.
func AreaName(s string) string {
	s = CleanArabic(s)
	for _, p := range areaPrefixes {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	return strings.TrimSpace(s)
}
