package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownMerchant is the sentinel used when no merchant line can be isolated.
const UnknownMerchant = "Unknown Merchant"

// Amounts below the floor or at/above the ceiling are OCR noise, not receipt
// totals.
const (
	amountFloor   = 0.01
	amountCeiling = 1_000_000.0
)

const numToken = `\d+(?:[.,]\d+)*`

// amountTiers are tried in priority order; the first tier producing any
// surviving value wins, and the maximum survivor in that tier is returned;
// the receipt total is assumed to be the largest labeled amount.
var amountTiers = []*regexp.Regexp{
	// Keyword-adjacent, optionally with a currency symbol: "Total: $1,234.56".
	// Currency codes that habitually precede the value (LE 150.00) count as
	// keywords here.
	regexp.MustCompile(`(?i)\b(?:total|amount|net|due|price|egp|le|l\.e)[\s:]*[$£€]?\s*(` + numToken + `)`),
	// Bare symbol-prefixed: "$10.99".
	regexp.MustCompile(`[$£€]\s*(` + numToken + `)`),
	// Code-suffixed: "12,34 EGP".
	regexp.MustCompile(`(?i)(` + numToken + `)\s*(?:usd|eur|gbp|cad|egp|le|l\.e)\b`),
	// Standalone decimal-looking numbers (a separator is required here).
	regexp.MustCompile(`\b(\d+(?:[.,]\d+)+)\b`),
}

// ExtractAmount scans OCR text for a transaction total. It is deterministic:
// the same text always yields the same amount.
func ExtractAmount(text string) *float64 {
	lower := strings.ToLower(text)
	for _, re := range amountTiers {
		var survivors []float64
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if v, ok := normalizeAmount(m[1]); ok {
				survivors = append(survivors, v)
			}
		}
		if len(survivors) > 0 {
			best := survivors[0]
			for _, v := range survivors[1:] {
				if v > best {
					best = v
				}
			}
			return &best
		}
	}
	return nil
}

// normalizeAmount resolves thousands/decimal separator ambiguity and applies
// the sanity bounds. The rule: with mixed separators the later one is the
// decimal point; a lone comma followed by exactly two digits is a decimal
// point, otherwise commas group thousands; a lone dot is always a decimal
// point; repeated same-type separators must form valid 3-digit groups.
func normalizeAmount(tok string) (float64, bool) {
	dots := strings.Count(tok, ".")
	commas := strings.Count(tok, ",")
	lastSep := strings.LastIndexAny(tok, ".,")

	switch {
	case lastSep == -1:
		return parseBounded(tok)

	case dots > 0 && commas > 0:
		dec := tok[lastSep]
		group := byte('.')
		if dec == '.' {
			group = ','
		}
		intPart, fracPart := tok[:lastSep], tok[lastSep+1:]
		if len(fracPart) > 2 || strings.ContainsRune(intPart, rune(dec)) {
			return 0, false
		}
		groups := strings.Split(intPart, string(group))
		if !validThousandGroups(groups) {
			return 0, false
		}
		return parseBounded(strings.Join(groups, "") + "." + fracPart)

	case commas > 0:
		if commas == 1 && len(tok)-lastSep-1 == 2 {
			return parseBounded(strings.Replace(tok, ",", ".", 1))
		}
		groups := strings.Split(tok, ",")
		if !validThousandGroups(groups) {
			return 0, false
		}
		return parseBounded(strings.Join(groups, ""))

	default:
		if dots == 1 {
			return parseBounded(tok)
		}
		groups := strings.Split(tok, ".")
		if !validThousandGroups(groups) {
			return 0, false
		}
		return parseBounded(strings.Join(groups, ""))
	}
}

func validThousandGroups(groups []string) bool {
	if len(groups) == 0 || len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func parseBounded(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if v < amountFloor || v >= amountCeiling {
		return 0, false
	}
	return v, true
}

var (
	merchantSkipWords = []string{
		"receipt", "invoice", "order", "date", "time", "total", "welcome",
		"thank you", "tax", "cashier", "tel", "phone", "address", "customer",
		"terminal", "auth", "copy", "merchant id", "street", "road",
	}
	commonMerchants = []string{
		"starbucks", "mcdonald", "walmart", "amazon", "uber", "careem",
		"shell", "kfc", "pizza hut", "carrefour", "metro", "spinneys",
		"jumia", "noon", "7-eleven",
	}
	addressLineRe = regexp.MustCompile(`(?i)\d+\s+\w+\s+(?:st|street|rd|road|ave|avenue|blvd|boulevard)`)
	dateTokenRe   = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
	timeTokenRe   = regexp.MustCompile(`\d{1,2}:\d{2}`)
	hasLetterRe   = regexp.MustCompile(`[a-zA-Z]`)
)

// ExtractMerchant guesses the merchant name, which usually sits in the first
// few lines of a receipt. Returns UnknownMerchant when nothing qualifies.
func ExtractMerchant(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}

	head := lines
	if len(head) > 8 {
		head = head[:8]
	}

	// Well-known chains win outright, wherever they sit.
	for _, line := range head {
		lower := strings.ToLower(line)
		for _, m := range commonMerchants {
			if strings.Contains(lower, m) {
				return line
			}
		}
	}

	for _, line := range head {
		if len(line) < 3 || len(line) > 50 {
			continue
		}
		if addressLineRe.MatchString(line) {
			continue
		}
		lower := strings.ToLower(line)
		if containsAny(lower, merchantSkipWords) {
			continue
		}
		if dateTokenRe.MatchString(line) || timeTokenRe.MatchString(line) {
			continue
		}
		if hasLetterRe.MatchString(line) {
			return line
		}
	}

	lowerText := strings.ToLower(text)
	for _, m := range commonMerchants {
		if strings.Contains(lowerText, m) {
			return strings.ToUpper(m[:1]) + m[1:]
		}
	}
	return UnknownMerchant
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var dateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:date|dated)[\s:]*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	regexp.MustCompile(`(\d{4}[-/]\d{1,2}[-/]\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
}

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006-1-2", "2006/1/2",
	"01/02/2006", "02/01/2006", "1/2/2006", "2/1/2006",
	"01-02-2006", "02-01-2006", "1-2-2006", "2-1-2006",
	"1/2/06", "1-2-06",
}

// ExtractDate finds the transaction date in OCR text, normalized to
// YYYY-MM-DD. Falls back to now's date when no pattern matches.
func ExtractDate(text string, now time.Time) string {
	for _, re := range dateRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, m[1]); err == nil {
				return d.Format("2006-01-02")
			}
		}
	}
	return now.Format("2006-01-02")
}
