package ledger

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// PaymentTerm is the normalized payment-term category of a PO line
type PaymentTerm string

const (
	// PaymentTermAC80PAC20 pays 80% on AC (shipment 1) and 20% on PAC (shipment 2)
	PaymentTermAC80PAC20 PaymentTerm = "AC1_80_PAC_20"
	// PaymentTermACPAC100 closes AC and PAC together on shipment 1
	PaymentTermACPAC100 PaymentTerm = "AC_PAC_100"
	PaymentTermUnknown  PaymentTerm = "UNKNOWN"
)

// IsValid checks if the payment term is a known category
func (p PaymentTerm) IsValid() bool {
	switch p {
	case PaymentTermAC80PAC20, PaymentTermACPAC100, PaymentTermUnknown:
		return true
	}
	return false
}

// String returns the string representation
func (p PaymentTerm) String() string {
	return string(p)
}

// Canonical labels as they appear in customer PO exports. Keys are
// normalized once at init, so variants that differ only by encoding
// artifacts collapse onto the same entry.
var paymentTermLabels = map[string]PaymentTerm{
	"AC1 80% / PAC 20%":   PaymentTermAC80PAC20,
	"AC1 80% | PAC 20%":   PaymentTermAC80PAC20,
	"AC1 80 | PAC 20":     PaymentTermAC80PAC20,
	"AC1 80% PAC 20%":     PaymentTermAC80PAC20,
	"AC1 80%, PAC 20%":    PaymentTermAC80PAC20,
	"AC1 80 PAC 20":       PaymentTermAC80PAC20,
	"AC1 (80%) PAC (20%)": PaymentTermAC80PAC20,
	"AC 80% / PAC 20%":    PaymentTermAC80PAC20,
	"AC 80% PAC 20%":      PaymentTermAC80PAC20,
	"80% AC1 / 20% PAC":   PaymentTermAC80PAC20,
	"AC+PAC 100%":         PaymentTermACPAC100,
	"AC + PAC 100%":       PaymentTermACPAC100,
	"AC PAC 100%":         PaymentTermACPAC100,
	"AC/PAC 100%":         PaymentTermACPAC100,
	"AC&PAC 100%":         PaymentTermACPAC100,
	"AC PAC100%":          PaymentTermACPAC100,
	"100% AC PAC":         PaymentTermACPAC100,
	"100% AC+PAC":         PaymentTermACPAC100,
}

var normalizedPaymentTerms map[string]PaymentTerm

func init() {
	normalizedPaymentTerms = make(map[string]PaymentTerm, len(paymentTermLabels))
	for label, term := range paymentTermLabels {
		normalizedPaymentTerms[NormalizePaymentTermLabel(label)] = term
	}
}

// punctuation variants seen in exported spreadsheets
var punctuationReplacer = strings.NewReplacer(
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-",
	"¦", "|", "∣", "|", "ǀ", "|",
	"∕", "/", "⁄", "/",
	"➕", "+",
	"٪", "%",
)

// NormalizePaymentTermLabel folds a raw payment-term label to its comparison
// form: NFKC, unified punctuation, upper case, single spaces, and no spaces
// around separators.
func NormalizePaymentTermLabel(label string) string {
	s := norm.NFKC.String(label)
	s = punctuationReplacer.Replace(s)
	s = cases.Upper(language.Und).String(s)
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")

	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i, r := range runes {
		if r == ' ' {
			prev, next := runes[i-1], runes[i+1]
			if isSeparator(prev) || isSeparator(next) || next == '%' {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSeparator(r rune) bool {
	switch r {
	case '|', '/', '+', ',', ';', '-', '&', '(', ')':
		return true
	}
	return false
}

// CategorizePaymentTerm maps a raw label onto its category, UNKNOWN when the
// label is not in the table
func CategorizePaymentTerm(label string) PaymentTerm {
	if term, ok := normalizedPaymentTerms[NormalizePaymentTermLabel(label)]; ok {
		return term
	}
	return PaymentTermUnknown
}
