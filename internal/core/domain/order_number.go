package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DefaultOrderPrefix = "QESPL"

var monthAbbr = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// OrderNumberSuffix returns the "/<PREFIX>/<MON>/<YY>" tail shared by every order
// number allocated in the month of t.
func OrderNumberSuffix(prefix string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("/%s/%s/%02d", prefix, monthAbbr[t.Month()-1], t.Year()%100)
}

// FormatOrderNumber renders seq zero padded to two digits. Sequences past 99 widen.
func FormatOrderNumber(prefix string, seq int, t time.Time) string {
	return fmt.Sprintf("%02d%s", seq, OrderNumberSuffix(prefix, t))
}

// ParseOrderSequence extracts the leading sequence of an order number.
func ParseOrderSequence(orderNumber string) (int, error) {
	head, _, ok := strings.Cut(orderNumber, "/")
	if !ok || head == "" || strings.Trim(head, "0123456789") != "" {
		return 0, fmt.Errorf("%w: malformed order number %q", ErrValidation, orderNumber)
	}
	seq, err := strconv.Atoi(head)
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("%w: malformed order number %q", ErrValidation, orderNumber)
	}
	return seq, nil
}

// ValidateOrderNumber checks a caller supplied number against the generated shape
// "<NN>/<PREFIX>/<MON>/<YY>" for prefix.
func ValidateOrderNumber(prefix, orderNumber string) error {
	pattern := `^[0-9]{2,}/` + regexp.QuoteMeta(prefix) + `/(` + strings.Join(monthAbbr[:], "|") + `)/[0-9]{2}$`
	if !regexp.MustCompile(pattern).MatchString(orderNumber) {
		return fmt.Errorf("%w: order number %q must look like NN%s", ErrValidation, orderNumber, OrderNumberSuffix(prefix, time.Now()))
	}
	_, err := ParseOrderSequence(orderNumber)
	return err
}
