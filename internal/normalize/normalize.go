// Package normalize sanitizes external input and restored state before it
// reaches the controller: keypad tokens, passcode shape, settings ranges,
// and intruder log lists loaded from the store.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/arjunrose/Personal-Locker/internal/model"
)

type KeyKind int

const (
	KeyDigit KeyKind = iota
	KeyDelete
	KeyRelock
)

type Key struct {
	Kind  KeyKind
	Digit rune
}

var ErrEmptyKey = errors.New("empty key token")

// ParseKey maps one keypad token to a key press. Digits are the single
// characters "0" through "9"; "del" and "delete" erase the last digit;
// "relock" arms an unlocked locker again.
func ParseKey(token string) (Key, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case t == "":
		return Key{}, ErrEmptyKey
	case t == "del" || t == "delete":
		return Key{Kind: KeyDelete}, nil
	case t == "relock":
		return Key{Kind: KeyRelock}, nil
	case len(t) == 1 && t[0] >= '0' && t[0] <= '9':
		return Key{Kind: KeyDigit, Digit: rune(t[0])}, nil
	}
	return Key{}, fmt.Errorf("unknown key token %q", token)
}

// Digit reports whether s is a single decimal digit.
func Digit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// Passcode reports whether s is a well-formed stored passcode: exactly
// model.PasscodeLength decimal digits.
func Passcode(s string) bool {
	if len(s) != model.PasscodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Settings clamps user-supplied settings into their valid domain.
func Settings(s model.Settings) model.Settings {
	s.AlertEmail = strings.TrimSpace(s.AlertEmail)
	if s.TriggerThreshold < model.ThresholdMin {
		s.TriggerThreshold = model.ThresholdMin
	}
	if s.TriggerThreshold > model.ThresholdMax {
		s.TriggerThreshold = model.ThresholdMax
	}
	return s
}

// Logs drops unusable restored entries and reasserts newest-first order.
func Logs(list []model.IntruderLog) []model.IntruderLog {
	out := make([]model.IntruderLog, 0, len(list))
	for _, l := range list {
		if strings.TrimSpace(l.ID) == "" || l.Timestamp <= 0 {
			continue
		}
		if l.AttemptNumber < 1 {
			l.AttemptNumber = 1
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}
