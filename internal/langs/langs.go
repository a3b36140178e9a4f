// Package langs maps display names of target languages to ISO codes used in
// translation prompts.
package langs

import "sort"

var catalog = map[string]string{
	"Afrikaans":             "af",
	"Albanian":              "sq",
	"Amharic":               "am",
	"Arabic":                "ar",
	"Armenian":              "hy",
	"Azerbaijani":           "az",
	"Basque":                "eu",
	"Belarusian":            "be",
	"Bengali":               "bn",
	"Bosnian":               "bs",
	"Bulgarian":             "bg",
	"Cantonese":             "yue",
	"Catalan":               "ca",
	"Chinese (Simplified)":  "zh-CN",
	"Chinese (Traditional)": "zh-TW",
	"Croatian":              "hr",
	"Czech":                 "cs",
	"Danish":                "da",
	"Dutch":                 "nl",
	"English":               "en",
	"Estonian":              "et",
	"Filipino":              "fil",
	"Finnish":               "fi",
	"French":                "fr",
	"Galician":              "gl",
	"Georgian":              "ka",
	"German":                "de",
	"Greek":                 "el",
	"Gujarati":              "gu",
	"Hebrew":                "he",
	"Hindi":                 "hi",
	"Hungarian":             "hu",
	"Icelandic":             "is",
	"Indonesian":            "id",
	"Irish":                 "ga",
	"Italian":               "it",
	"Japanese":              "ja",
	"Javanese":              "jv",
	"Kannada":               "kn",
	"Kazakh":                "kk",
	"Khmer":                 "km",
	"Korean":                "ko",
	"Lao":                   "lo",
	"Latvian":               "lv",
	"Lithuanian":            "lt",
	"Macedonian":            "mk",
	"Malay":                 "ms",
	"Malayalam":             "ml",
	"Maltese":               "mt",
	"Marathi":               "mr",
	"Mongolian":             "mn",
	"Nepali":                "ne",
	"Norwegian":             "no",
	"Persian":               "fa",
	"Polish":                "pl",
	"Portuguese":            "pt",
	"Punjabi":               "pa",
	"Romanian":              "ro",
	"Russian":               "ru",
	"Serbian":               "sr",
	"Sinhala":               "si",
	"Slovak":                "sk",
	"Slovenian":             "sl",
	"Somali":                "so",
	"Spanish":               "es",
	"Swahili":               "sw",
	"Swedish":               "sv",
	"Tamil":                 "ta",
	"Telugu":                "te",
	"Thai":                  "th",
	"Turkish":               "tr",
	"Ukrainian":             "uk",
	"Urdu":                  "ur",
	"Uzbek":                 "uz",
	"Vietnamese":            "vi",
	"Welsh":                 "cy",
	"Yoruba":                "yo",
	"Zulu":                  "zu",
}

// Code resolves a display name to its language code.
func Code(name string) (string, bool) {
	code, ok := catalog[name]
	return code, ok
}

// Names returns all known display names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
