// Package books provides the canonical Bible book tables: USFM codes,
// English names, and traditional book numbers.
package books

import (
	"strings"
)

// names maps lowercase USFM book codes to English book names.
var names = map[string]string{
	"gen": "Genesis",
	"exo": "Exodus",
	"lev": "Leviticus",
	"num": "Numbers",
	"deu": "Deuteronomy",
	"jos": "Joshua",
	"jdg": "Judges",
	"rut": "Ruth",
	"1sa": "1 Samuel",
	"2sa": "2 Samuel",
	"1ki": "1 Kings",
	"2ki": "2 Kings",
	"1ch": "1 Chronicles",
	"2ch": "2 Chronicles",
	"ezr": "Ezra",
	"neh": "Nehemiah",
	"est": "Esther",
	"job": "Job",
	"psa": "Psalms",
	"pro": "Proverbs",
	"ecc": "Ecclesiastes",
	"sng": "Song of Solomon",
	"isa": "Isaiah",
	"jer": "Jeremiah",
	"lam": "Lamentations",
	"ezk": "Ezekiel",
	"dan": "Daniel",
	"hos": "Hosea",
	"jol": "Joel",
	"amo": "Amos",
	"oba": "Obadiah",
	"jon": "Jonah",
	"mic": "Micah",
	"nam": "Nahum",
	"hab": "Habakkuk",
	"zep": "Zephaniah",
	"hag": "Haggai",
	"zec": "Zechariah",
	"mal": "Malachi",
	"mat": "Matthew",
	"mrk": "Mark",
	"luk": "Luke",
	"jhn": "John",
	"act": "Acts",
	"rom": "Romans",
	"1co": "1 Corinthians",
	"2co": "2 Corinthians",
	"gal": "Galatians",
	"eph": "Ephesians",
	"php": "Philippians",
	"col": "Colossians",
	"1th": "1 Thessalonians",
	"2th": "2 Thessalonians",
	"1ti": "1 Timothy",
	"2ti": "2 Timothy",
	"tit": "Titus",
	"phm": "Philemon",
	"heb": "Hebrews",
	"jas": "James",
	"1pe": "1 Peter",
	"2pe": "2 Peter",
	"1jn": "1 John",
	"2jn": "2 John",
	"3jn": "3 John",
	"jud": "Jude",
	"rev": "Revelation",
}

// numbers maps lowercase USFM book codes to traditional book numbers.
// The numbering skips 40, so Matthew is 41. This matches the numbering
// used in USFM file names and anchor identifiers.
var numbers = map[string]int{
	"gen": 1, "exo": 2, "lev": 3, "num": 4, "deu": 5,
	"jos": 6, "jdg": 7, "rut": 8, "1sa": 9, "2sa": 10,
	"1ki": 11, "2ki": 12, "1ch": 13, "2ch": 14, "ezr": 15,
	"neh": 16, "est": 17, "job": 18, "psa": 19, "pro": 20,
	"ecc": 21, "sng": 22, "isa": 23, "jer": 24, "lam": 25,
	"ezk": 26, "dan": 27, "hos": 28, "jol": 29, "amo": 30,
	"oba": 31, "jon": 32, "mic": 33, "nam": 34, "hab": 35,
	"zep": 36, "hag": 37, "zec": 38, "mal": 39,
	"mat": 41, "mrk": 42, "luk": 43, "jhn": 44, "act": 45,
	"rom": 46, "1co": 47, "2co": 48, "gal": 49, "eph": 50,
	"php": 51, "col": 52, "1th": 53, "2th": 54, "1ti": 55,
	"2ti": 56, "tit": 57, "phm": 58, "heb": 59, "jas": 60,
	"1pe": 61, "2pe": 62, "1jn": 63, "2jn": 64, "3jn": 65,
	"jud": 66, "rev": 67,
}

// ordered lists the book codes in canonical order.
var ordered = []string{
	"gen", "exo", "lev", "num", "deu", "jos", "jdg", "rut", "1sa", "2sa",
	"1ki", "2ki", "1ch", "2ch", "ezr", "neh", "est", "job", "psa", "pro",
	"ecc", "sng", "isa", "jer", "lam", "ezk", "dan", "hos", "jol", "amo",
	"oba", "jon", "mic", "nam", "hab", "zep", "hag", "zec", "mal",
	"mat", "mrk", "luk", "jhn", "act", "rom", "1co", "2co", "gal", "eph",
	"php", "col", "1th", "2th", "1ti", "2ti", "tit", "phm", "heb", "jas",
	"1pe", "2pe", "1jn", "2jn", "3jn", "jud", "rev",
}

// Name returns the English name for a book code.
func Name(code string) (string, bool) {
	name, ok := names[strings.ToLower(code)]
	return name, ok
}

// Number returns the traditional book number for a book code.
// Old Testament books are numbered 1-39 and New Testament books 41-67.
func Number(code string) (int, bool) {
	n, ok := numbers[strings.ToLower(code)]
	return n, ok
}

// IsValid reports whether code is a recognized USFM book code.
func IsValid(code string) bool {
	_, ok := numbers[strings.ToLower(code)]
	return ok
}

// Ordered returns the book codes in canonical order. The returned slice
// must not be modified.
func Ordered() []string {
	return ordered
}

// Pad zero-pads a chapter or verse reference for use in anchors and file
// names. Psalms pads to three digits, every other book to two.
func Pad(code, num string) string {
	width := 2
	if strings.ToLower(code) == "psa" {
		width = 3
	}
	if len(num) >= width {
		return num
	}
	return strings.Repeat("0", width-len(num)) + num
}
