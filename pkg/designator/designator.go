// Package designator parses and classifies the endpoint labels printed on
// electrical schematics: device references ("-QM102"), terminal-block pins
// ("XT12.4", "X1:7"), and page-reference markers ("reference 108"). It is the
// single home for this string intelligence; the normalizer and the wire graph
// builder never pattern-match labels themselves. No external dependencies.
package designator

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies what an endpoint label denotes.
type Kind int

const (
	KindComponent Kind = iota // a device such as "QM102.1"
	KindTerminal              // a terminal-block pin such as "XT12.4"
	KindReference             // a page-reference marker such as "reference 108"
)

func (k Kind) String() string {
	switch k {
	case KindTerminal:
		return "terminal"
	case KindReference:
		return "reference"
	default:
		return "component"
	}
}

// ReferencePrefix marks relabeled page-reference endpoints.
const ReferencePrefix = "reference"

// terminalRe matches a terminal-block pin: X or XT, block number, then a
// `.` or `:` pin separator. Leading polarity/location marker tolerated.
var terminalRe = regexp.MustCompile(`^[+-]?(XT?\d+)[.:](.+)$`)

// blockOnlyRe matches a bare terminal-block name with no pin.
var blockOnlyRe = regexp.MustCompile(`^[+-]?(XT?\d+)$`)

// numericRe matches bare numbers, including decimal gauges ("2,5", "1.5").
var numericRe = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)

// Classify returns the Kind of an endpoint label.
func Classify(label string) Kind {
	s := strings.TrimSpace(label)
	switch {
	case strings.HasPrefix(s, ReferencePrefix):
		return KindReference
	case terminalRe.MatchString(s):
		return KindTerminal
	default:
		return KindComponent
	}
}

// IsNumeric reports whether a label is a bare number (an x/y coordinate, a
// sheet number, or a gauge, never a real endpoint).
func IsNumeric(label string) bool {
	return numericRe.MatchString(strings.TrimSpace(label))
}

// SplitTerminal breaks a terminal-block pin label into block and pin.
// "XT12.4" yields ("XT12", "4", true).
func SplitTerminal(label string) (block, pin string, ok bool) {
	m := terminalRe.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// BlockName extracts the terminal-block name from a label, with or without
// a pin suffix. Used to collect the observed-blocks set for truncation
// correction.
func BlockName(label string) (string, bool) {
	s := strings.TrimSpace(label)
	if m := terminalRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := blockOnlyRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// BlockDigits returns the numeric part of a terminal-block name ("XT12" → "12").
func BlockDigits(block string) string {
	i := 0
	for i < len(block) && block[i] >= 'A' && block[i] <= 'Z' {
		i++
	}
	return block[i:]
}

// FormatReference renders a page-reference endpoint label for a target sheet.
func FormatReference(target int) string {
	return ReferencePrefix + " " + strconv.Itoa(target)
}

// QualifyReference appends the emitting sheet to a reference label, keeping
// references to the same target distinct across sheets:
// "reference 108" emitted from sheet 104 becomes "reference 108@104".
func QualifyReference(label string, foglio int) string {
	if foglio <= 0 || strings.Contains(label, "@") {
		return label
	}
	return label + "@" + strconv.Itoa(foglio)
}

// ParseReference parses "reference <target>" and the sheet-qualified
// "reference <target>@<foglio>" forms.
func ParseReference(label string) (target, foglio int, ok bool) {
	s := strings.TrimSpace(label)
	if !strings.HasPrefix(s, ReferencePrefix) {
		return 0, 0, false
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, ReferencePrefix))
	if at := strings.IndexByte(s, '@'); at >= 0 {
		foglio, _ = strconv.Atoi(s[at+1:])
		s = s[:at]
	}
	target, err := strconv.Atoi(s)
	if err != nil || target <= 0 {
		return 0, 0, false
	}
	return target, foglio, true
}

// NormalizeRef canonicalizes a printed device designation: surrounding
// whitespace and leading polarity/location markers go, an embedded pin
// suffix ("-QM102/1") splits off. The pin separator in dotted endpoint
// labels is left alone; only the slash form is a recognition artifact.
func NormalizeRef(ref string) (base, pin string) {
	s := strings.TrimSpace(ref)
	for len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s = strings.TrimSpace(s[1:])
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// EndpointComponent reduces a resolved endpoint label to its device
// designation and pin: "QM102.1" yields ("QM102", "1"), "XT12:4" yields
// ("XT12", "4"), a bare "KM45" keeps an empty pin. Reference markers return
// an empty designation.
func EndpointComponent(label string) (ref, pin string) {
	s := strings.TrimSpace(label)
	if Classify(s) == KindReference {
		return "", ""
	}
	for len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s = strings.TrimSpace(s[1:])
	}
	if i := strings.IndexAny(s, ".:"); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// HasCablePrefix reports whether a wire identifier is actually a cable
// designation: one of the configured prefixes followed by a digit, e.g. "W12".
func HasCablePrefix(id string, prefixes []string) bool {
	s := strings.TrimSpace(id)
	for len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	up := strings.ToUpper(s)
	for _, p := range prefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || !strings.HasPrefix(up, p) {
			continue
		}
		rest := up[len(p):]
		if len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
			return true
		}
	}
	return false
}

// deviceClasses maps designation letter codes to device categories, two-letter
// codes first. Letter conventions follow IEC 81346 usage on panel schematics.
var deviceClasses = map[string]string{
	"QM": "motor protection switch",
	"QF": "circuit breaker",
	"KM": "contactor",
	"KA": "auxiliary relay",
	"XT": "terminal block",
	"A":  "assembly / controller",
	"B":  "sensor / transducer",
	"C":  "capacitor",
	"E":  "heating / lighting",
	"F":  "protection device",
	"G":  "generator / power supply",
	"H":  "signal lamp / indicator",
	"K":  "relay",
	"L":  "inductor / reactor",
	"M":  "motor",
	"P":  "measuring instrument",
	"Q":  "power switchgear",
	"R":  "resistor",
	"S":  "control switch",
	"T":  "transformer",
	"U":  "converter",
	"V":  "semiconductor device",
	"W":  "cable / conductor",
	"X":  "terminal",
	"Y":  "solenoid valve",
	"Z":  "filter / suppressor",
}

// DeviceClass guesses the device category from a designation's letter code.
// "QM102" yields ("QM", "motor protection switch"); unknown codes return ok
// false.
func DeviceClass(ref string) (code, category string, ok bool) {
	base, _ := NormalizeRef(ref)
	i := 0
	for i < len(base) && base[i] >= 'A' && base[i] <= 'Z' {
		i++
	}
	letters := base[:i]
	if letters == "" {
		return "", "", false
	}
	if len(letters) >= 2 {
		if cat, found := deviceClasses[letters[:2]]; found {
			return letters[:2], cat, true
		}
	}
	if cat, found := deviceClasses[letters[:1]]; found {
		return letters[:1], cat, true
	}
	return "", "", false
}
