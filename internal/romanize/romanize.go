// Package romanize provides romanized spellings for common Korean given
// names. It is a display hint only and covers a fixed, small set of names.
package romanize

var names = map[string]string{
	"하린": "Ha-rin",
	"지훈": "Ji-hun",
	"민준": "Min-jun",
	"서연": "Seo-yeon",
	"현우": "Hyun-woo",
	"지민": "Ji-min",
	"수민": "Su-min",
	"다은": "Da-eun",
	"예준": "Ye-jun",
	"가은": "Ga-eun",
	"지아": "Ji-a",
	"윤우": "Yoon-woo",
	"시은": "Si-eun",
}

// Lookup returns the romanized spelling of a Hangul name and whether one is
// known.
func Lookup(hangul string) (string, bool) {
	r, ok := names[hangul]
	return r, ok
}

// Hint returns the romanized spelling of hangul, or "" when unknown.
func Hint(hangul string) string {
	return names[hangul]
}
