// Package filter masks sensitive values in text before it leaves the process.
package filter

import (
	"regexp"
	"strings"
	"sync"
)

// Kind is a class of sensitive value.
type Kind int

const (
	Email Kind = iota
	APIKey
	CardNumber
	Phone
	IPv4
)

func (k Kind) String() string {
	switch k {
	case Email:
		return "email"
	case APIKey:
		return "api_key"
	case CardNumber:
		return "card_number"
	case Phone:
		return "phone"
	case IPv4:
		return "ipv4"
	default:
		return "unknown"
	}
}

// Patterns are applied in Kind order, so an email is masked before its digits
// can be mistaken for a phone number.
var patterns = sync.OnceValue(func() map[Kind]*regexp.Regexp {
	return map[Kind]*regexp.Regexp{
		Email:      regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
		APIKey:     regexp.MustCompile(`\b(?:sk|pk|rk|xox[abpr])-[A-Za-z0-9_-]{16,}`),
		CardNumber: regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
		Phone:      regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?\(?\b\d{3}\)?[ .-]\d{3}[ .-]\d{4}\b|\b1[3-9]\d{9}\b`),
		IPv4:       regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|1?\d\d?)\b`),
	}
})

// Config selects what is masked and how.
type Config struct {
	Kinds     []Kind
	MaskChar  rune
	KeepFirst int
	KeepLast  int
}

// DefaultConfig masks every kind, keeping the last four characters.
func DefaultConfig() Config {
	return Config{
		Kinds:    []Kind{Email, APIKey, CardNumber, Phone, IPv4},
		MaskChar: '*',
		KeepLast: 4,
	}
}

// Filter is safe for concurrent use.
type Filter struct {
	cfg   Config
	kinds []Kind
}

// New returns a filter for cfg. An empty Kinds list selects every kind.
func New(cfg Config) *Filter {
	if cfg.MaskChar == 0 {
		cfg.MaskChar = '*'
	}
	kinds := make([]Kind, 0, len(patterns()))
	enabled := make(map[Kind]bool)
	for _, k := range cfg.Kinds {
		enabled[k] = true
	}
	for k := Email; k <= IPv4; k++ {
		if len(cfg.Kinds) == 0 || enabled[k] {
			kinds = append(kinds, k)
		}
	}
	return &Filter{cfg: cfg, kinds: kinds}
}

// Redact returns text with sensitive values masked and the number of values masked.
func (f *Filter) Redact(text string) (string, int) {
	total := 0
	for _, k := range f.kinds {
		text = patterns()[k].ReplaceAllStringFunc(text, func(m string) string {
			total++
			if k == Email {
				return f.maskEmail(m)
			}
			return f.mask(m, f.cfg.KeepFirst, f.cfg.KeepLast)
		})
	}
	return text, total
}

// Contains reports whether text has any value the filter would mask.
func (f *Filter) Contains(text string) bool {
	for _, k := range f.kinds {
		if patterns()[k].MatchString(text) {
			return true
		}
	}
	return false
}

// mask replaces everything but the kept ends. Separators stay in place so
// the masked value keeps its shape.
func (f *Filter) mask(s string, keepFirst, keepLast int) string {
	runes := []rune(s)
	if len(runes) <= keepFirst+keepLast {
		return strings.Repeat(string(f.cfg.MaskChar), len(runes))
	}
	for i := keepFirst; i < len(runes)-keepLast; i++ {
		switch runes[i] {
		case ' ', '-', '.', '(', ')', '+':
		default:
			runes[i] = f.cfg.MaskChar
		}
	}
	return string(runes)
}

// maskEmail keeps the first rune of the local part and the whole domain.
func (f *Filter) maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return f.mask(email, f.cfg.KeepFirst, f.cfg.KeepLast)
	}
	return f.mask(local, 1, 0) + "@" + domain
}
