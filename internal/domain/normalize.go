package domain

import "strings"

// countryCodes lists the two-letter country-code TLDs recognized by the
// normalizer. Together with secondLevelLabels it approximates registrable
// domains for the common "co.uk" style pairs. This is an intentionally
// fixed, incomplete approximation of public-suffix rules, not a bug to fix;
// obscure ccTLD conventions outside these sets normalize to two labels.
var countryCodes = map[string]struct{}{
	"uk": {}, "au": {}, "ca": {}, "in": {}, "np": {}, "nz": {}, "za": {},
	"br": {}, "mx": {}, "ar": {}, "cl": {}, "pe": {}, "co": {},
	"jp": {}, "kr": {}, "cn": {}, "hk": {}, "sg": {}, "my": {}, "th": {},
	"id": {}, "ph": {}, "vn": {}, "tw": {},
	"de": {}, "fr": {}, "it": {}, "es": {}, "nl": {}, "be": {}, "at": {},
	"ch": {}, "se": {}, "no": {}, "dk": {}, "fi": {},
	"pl": {}, "cz": {}, "hu": {}, "sk": {}, "si": {}, "hr": {}, "rs": {},
	"bg": {}, "ro": {}, "gr": {}, "cy": {}, "mt": {},
	"ie": {}, "pt": {}, "lu": {}, "li": {}, "is": {}, "lv": {}, "lt": {},
	"ee": {}, "ua": {}, "ru": {}, "by": {}, "md": {},
	"eg": {}, "il": {}, "tr": {}, "sa": {}, "ae": {}, "qa": {}, "kw": {},
	"bh": {}, "om": {}, "jo": {}, "lb": {}, "ir": {},
	"ke": {}, "ng": {}, "gh": {}, "ma": {}, "tn": {}, "dz": {}, "ly": {},
	"sd": {}, "et": {}, "tz": {}, "ug": {}, "rw": {},
	"bd": {}, "pk": {}, "lk": {}, "mm": {}, "la": {}, "kh": {}, "bn": {},
	"mv": {},
}

// secondLevelLabels lists the generic second-level labels that, combined
// with a country code, keep three labels during normalization.
var secondLevelLabels = map[string]struct{}{
	"co": {}, "com": {}, "org": {}, "net": {}, "edu": {}, "gov": {},
	"mil": {}, "ac": {}, "sch": {}, "uni": {},
	"info": {}, "biz": {}, "name": {}, "pro": {}, "museum": {},
	"travel": {}, "mobi": {}, "tel": {},
	"jobs": {}, "cat": {}, "asia": {}, "post": {}, "geo": {}, "int": {},
}

// NormalizeDomain canonicalizes a domain string to its registrable form,
// which is the aggregation key for all domain statistics.
//
//	NormalizeDomain("www.CNN.com")     == "cnn.com"
//	NormalizeDomain("en.wikipedia.org") == "wikipedia.org"
//	NormalizeDomain("news.bbc.co.uk")   == "bbc.co.uk"
//	NormalizeDomain("example.com")      == "example.com"
//
// Input that is empty or not domain-shaped (contains whitespace or no dot)
// yields an empty string; callers must filter empty results before counting.
// The function is pure and performs no I/O.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" || strings.ContainsAny(d, " \t") || !strings.Contains(d, ".") {
		return ""
	}

	d = strings.TrimPrefix(d, "www.")
	d = strings.Trim(d, ".")
	if !strings.Contains(d, ".") {
		return ""
	}

	parts := strings.Split(d, ".")
	if len(parts) < 3 {
		return d
	}

	tld := parts[len(parts)-1]
	second := parts[len(parts)-2]
	if _, cc := countryCodes[tld]; cc {
		if _, sld := secondLevelLabels[second]; sld {
			// bbc.co.uk style: the registrable domain spans three labels.
			return strings.Join(parts[len(parts)-3:], ".")
		}
	}

	return strings.Join(parts[len(parts)-2:], ".")
}
