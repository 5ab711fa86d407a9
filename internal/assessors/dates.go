package assessors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// spanishMonths maps folded lowercase month names and their three-letter
// abbreviations to month numbers.
var spanishMonths = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4,
	"mayo": 5, "junio": 6, "julio": 7, "agosto": 8,
	"septiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
	"ene": 1, "feb": 2, "mar": 3, "abr": 4,
	"may": 5, "jun": 6, "jul": 7, "ago": 8,
	"sep": 9, "oct": 10, "nov": 11, "dic": 12,
}

var (
	// "15 de Marzo de 2022"
	longDatePattern = regexp.MustCompile(`^(\d{1,2}) de ([a-z]+) de (\d{4})$`)
	// "Ene-22" or "Ene-2022"; day is unknown in the source, records the
	// first of the month.
	monthYearPattern = regexp.MustCompile(`^([a-z]+)-(\d{2,4})$`)
)

// DateError reports a registration date the normalizer could not parse.
type DateError struct {
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("unparsable registration date %q", e.Value)
}

// NormalizeDate rewrites a source-locale registration date as ISO-8601
// (YYYY-MM-DD). It accepts the registry's two observed shapes: the long
// textual form "15 de Marzo de 2022" and the month-year form "Ene-22".
// Anything else yields a *DateError; dates are never guessed.
func NormalizeDate(value string) (string, error) {
	folded := strings.ToLower(foldDiacritics(strings.TrimSpace(value)))
	if folded == "" {
		return "", &DateError{Value: value}
	}

	if m := longDatePattern.FindStringSubmatch(folded); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := spanishMonths[m[2]]
		year, _ := strconv.Atoi(m[3])
		if !ok || !validDay(year, month, day) {
			return "", &DateError{Value: value}
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
	}

	if m := monthYearPattern.FindStringSubmatch(folded); m != nil {
		month, ok := spanishMonths[m[1]]
		year, _ := strconv.Atoi(m[2])
		if year < 100 {
			year += 2000
		}
		if !ok || year < 2000 || year > 2100 {
			return "", &DateError{Value: value}
		}
		return fmt.Sprintf("%04d-%02d-01", year, month), nil
	}

	return "", &DateError{Value: value}
}

func validDay(year, month, day int) bool {
	if day < 1 {
		return false
	}
	days := [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	max := days[month-1]
	if month == 2 && (year%4 == 0 && (year%100 != 0 || year%400 == 0)) {
		max = 29
	}
	return day <= max
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldDiacritics(s string) string {
	out, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		return s
	}
	return out
}

// foldKey normalizes a header name for column matching.
func foldKey(s string) string {
	return strings.ToLower(foldDiacritics(strings.TrimSpace(s)))
}
