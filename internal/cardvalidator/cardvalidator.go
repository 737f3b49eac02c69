// Package cardvalidator implements PAN Luhn validation, brand detection,
// and display masking (C3).
package cardvalidator

import "regexp"

// Brand identifies a card scheme detected from PAN prefix.
type Brand string

const (
	BrandUnknown    Brand = "UNKNOWN"
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandAmex       Brand = "AMEX"
	BrandDiscover   Brand = "DISCOVER"
	BrandJCB        Brand = "JCB"
	BrandDiners     Brand = "DINERS"
	BrandMaestro    Brand = "MAESTRO"
)

// brandRule pairs a brand with the prefix regex that identifies it.
// Declared once, read-only after init, the same shape as the teacher's
// ATREntry{Pattern, Regex} table (dictionaries/atr.go).
type brandRule struct {
	brand Brand
	re    *regexp.Regexp
}

var brandRules = []brandRule{
	{BrandVisa, regexp.MustCompile(`^4\d{12}(\d{3})?$`)},
	{BrandMastercard, regexp.MustCompile(`^5[1-5]\d{14}$|^2(22[1-9]|2[3-9]\d|[3-6]\d\d|7([01]\d|20))\d{12}$`)},
	{BrandAmex, regexp.MustCompile(`^3[47]\d{13}$`)},
	{BrandDiscover, regexp.MustCompile(`^6(011|5\d\d)\d{12}$`)},
	{BrandJCB, regexp.MustCompile(`^(2131|1800|35\d{3})\d{11}$`)},
	{BrandDiners, regexp.MustCompile(`^3(0[0-5]|[68]\d)\d{11}$`)},
	{BrandMaestro, regexp.MustCompile(`^(5[0678]\d\d|6304|6390|67\d\d)\d{8,15}$`)},
}

// Result is the outcome of validating a PAN.
type Result struct {
	Valid  bool
	LuhnOK bool
	Brand  Brand
	Masked string
	Error  string
}

// Validate strips non-digits from pan, checks its length (13..19),
// detects its brand, runs the Luhn check, and produces a masked display
// form. Valid is true only when the Luhn check passes AND a known brand
// was detected.
func Validate(pan string) Result {
	digits := onlyDigits(pan)
	if len(digits) < 13 || len(digits) > 19 {
		return Result{Error: "invalid pan length"}
	}

	luhnOK := luhn(digits)
	brand := detectBrand(digits)
	return Result{
		Valid:  luhnOK && brand != BrandUnknown,
		LuhnOK: luhnOK,
		Brand:  brand,
		Masked: mask(digits),
	}
}

func detectBrand(digits string) Brand {
	for _, rule := range brandRules {
		if rule.re.MatchString(digits) {
			return rule.brand
		}
	}
	return BrandUnknown
}

// luhn implements the standard Luhn mod-10 check: from the rightmost
// digit moving left, double every 2nd digit; subtract 9 if the double
// exceeds 9; sum all digits; valid iff the sum is a multiple of 10.
func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// mask keeps the first 4 and last 4 digits visible, replacing the rest
// with '*'.
func mask(digits string) string {
	if len(digits) <= 8 {
		return digits
	}
	stars := len(digits) - 8
	out := make([]byte, 0, len(digits))
	out = append(out, digits[:4]...)
	for i := 0; i < stars; i++ {
		out = append(out, '*')
	}
	out = append(out, digits[len(digits)-4:]...)
	return string(out)
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
