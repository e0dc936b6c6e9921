// Package ordercode mints and parses the transfer memo tokens used to match
// bank transactions to payment intents.
//
// New intents get a versioned, self-describing token ("SB1-" + ULID). Banks
// are known to strip separators and surround the memo with free text, so
// parsing runs an explicit ordered list of strategies, newest format first,
// and returns every candidate code worth a lookup.
package ordercode

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Prefix of the current token format. The digit is the format version.
const Prefix = "SB1-"

const ulidLen = 26

// New mints a fresh order code in the current format.
func New() string {
	return Prefix + ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// A Strategy extracts one candidate order code from a raw transfer memo.
// It returns false when the memo does not fit its format.
type Strategy func(content string) (string, bool)

// strategies are tried in order; earlier entries win on the first repository
// hit. Legacy formats stay at the bottom so they cannot shadow current
// tokens.
var strategies = []Strategy{
	exactToken,
	embeddedVersionedToken,
	legacyTopup,
	legacyPay,
}

// Candidates returns the ordered, de-duplicated list of order codes a memo
// could refer to. Empty input yields nil.
func Candidates(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, s := range strategies {
		if code, ok := s(content); ok && !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

// exactToken: the memo is the order code itself, any format.
func exactToken(content string) (string, bool) {
	return content, true
}

// embeddedVersionedToken finds an "SB1-<ulid>" token inside surrounding bank
// text. Separator-stripped variants ("SB1" + ulid) are handled too.
func embeddedVersionedToken(content string) (string, bool) {
	upper := strings.ToUpper(content)
	for _, marker := range []string{Prefix, "SB1"} {
		idx := strings.Index(upper, marker)
		if idx < 0 {
			continue
		}
		rest := upper[idx+len(marker):]
		if len(rest) < ulidLen {
			continue
		}
		body := rest[:ulidLen]
		if !isULIDBody(body) {
			continue
		}
		return Prefix + body, true
	}
	return "", false
}

// legacyTopup reconstructs "TOPUP_<ts>_<hex>" from the separator-stripped
// form "TOPUP<ts><hex>" the bank delivers.
func legacyTopup(content string) (string, bool) {
	upper := strings.ToUpper(content)
	if !strings.HasPrefix(upper, "TOPUP") || strings.Contains(upper, "_") {
		return "", false
	}
	rest := upper[len("TOPUP"):]
	if len(rest) <= 10 { // 10-digit unix timestamp + random suffix
		return "", false
	}
	ts, suffix := rest[:10], rest[10:]
	if !isDigits(ts) {
		return "", false
	}
	return "TOPUP_" + ts + "_" + suffix, true
}

// legacyPay reconstructs "PAY_<hex8>_<ts>" from "PAY<hex8><ts>".
func legacyPay(content string) (string, bool) {
	upper := strings.ToUpper(content)
	if !strings.HasPrefix(upper, "PAY") || strings.Contains(upper, "_") {
		return "", false
	}
	rest := upper[len("PAY"):]
	if len(rest) <= 8 {
		return "", false
	}
	return "PAY_" + rest[:8] + "_" + rest[8:], true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// isULIDBody reports whether s is 26 chars of Crockford base32.
func isULIDBody(s string) bool {
	if len(s) != ulidLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z' && r != 'I' && r != 'L' && r != 'O' && r != 'U':
		default:
			return false
		}
	}
	return true
}
