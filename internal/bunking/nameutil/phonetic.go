package nameutil

import "strings"

var soundexMapping = map[byte]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// Soundex computes the classic Soundex code for name: the uppercased
// first letter followed by up to three digits, padded with "0" or
// truncated to exactly four characters. Vowels, H, W, and Y map to "0"
// and are dropped, as are repeated consecutive digits. An empty name
// yields "0000".
func Soundex(name string) string {
	if name == "" {
		return "0000"
	}

	upper := strings.ToUpper(name)

	var code strings.Builder
	code.WriteByte(upper[0])

	lastDigit := soundexMapping[upper[0]]
	if lastDigit == 0 {
		lastDigit = '0'
	}

	for i := 1; i < len(upper); i++ {
		digit, ok := soundexMapping[upper[i]]
		if !ok {
			digit = '0'
		}
		if digit != '0' && digit != lastDigit {
			code.WriteByte(digit)
		}
		lastDigit = digit
	}

	result := code.String()
	if len(result) > 4 {
		return result[:4]
	}
	for len(result) < 4 {
		result += "0"
	}
	return result
}

var metaphoneReplacements = []struct{ old, new string }{
	{"DGE", "J"},
	{"TIO", "SH"},
	{"TIA", "SH"},
	{"TCH", "CH"},
	{"CK", "K"},
	{"PH", "F"},
	{"GH", ""},
	{"TH", "T"},
	{"Q", "K"},
	{"V", "F"},
	{"Z", "S"},
	{"X", "KS"},
	{"C", "K"},
	{"H", ""},
}

// Metaphone computes a simplified Metaphone code for name: letters only,
// uppercased, with the KN/GN/PN->N and WR->R prefix rewrites, the ordered
// replacement table above applied in sequence, and finally consecutive
// duplicate letters collapsed. This is intentionally not the canonical
// Double Metaphone algorithm.
func Metaphone(name string) string {
	var letters strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			letters.WriteRune(r)
		}
	}
	result := letters.String()
	if result == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(result, "KN"), strings.HasPrefix(result, "GN"), strings.HasPrefix(result, "PN"):
		result = "N" + result[2:]
	case strings.HasPrefix(result, "WR"):
		result = "R" + result[2:]
	}

	for _, repl := range metaphoneReplacements {
		result = strings.ReplaceAll(result, repl.old, repl.new)
	}

	var simplified strings.Builder
	var lastChar rune
	first := true
	for _, c := range result {
		if first || c != lastChar {
			simplified.WriteRune(c)
			lastChar = c
			first = false
		}
	}

	return simplified.String()
}
