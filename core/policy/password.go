// Package policy implements the password policy applied on registration and
// password reset.
//
// Rules are checked in a fixed order and the first failing rule is reported:
//
//  1. at least MinLength characters
//  2. an uppercase letter (A-Z)
//  3. a lowercase letter (a-z)
//  4. a digit (0-9)
//  5. a symbol, meaning any character outside A-Z, a-z and 0-9
package policy

import (
	"fmt"
	"unicode/utf8"
)

// MinLength is the minimum password length in characters.
const MinLength = 8

// Rule identifies a single policy rule.
type Rule string

const (
	RuleMinLength Rule = "min_length"
	RuleUppercase Rule = "uppercase"
	RuleLowercase Rule = "lowercase"
	RuleDigit     Rule = "digit"
	RuleSymbol    Rule = "symbol"
)

// Violation reports the first rule a password failed.
type Violation struct {
	Rule    Rule
	Message string
}

func (v *Violation) Error() string { return v.Message }

var checks = []struct {
	rule    Rule
	message string
	ok      func(string) bool
}{
	{RuleMinLength, fmt.Sprintf("password must be at least %d characters long", MinLength), func(p string) bool {
		return utf8.RuneCountInString(p) >= MinLength
	}},
	{RuleUppercase, "password must include at least one uppercase letter", containsAny(isUpper)},
	{RuleLowercase, "password must include at least one lowercase letter", containsAny(isLower)},
	{RuleDigit, "password must include at least one number", containsAny(isDigit)},
	{RuleSymbol, "password must include at least one special character", containsAny(isSymbol)},
}

// Validate returns nil when password satisfies every rule, or a *Violation
// describing the first rule it fails.
func Validate(password string) error {
	for _, c := range checks {
		if !c.ok(password) {
			return &Violation{Rule: c.rule, Message: c.message}
		}
	}
	return nil
}

func containsAny(pred func(rune) bool) func(string) bool {
	return func(s string) bool {
		for _, r := range s {
			if pred(r) {
				return true
			}
		}
		return false
	}
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isSymbol(r rune) bool { return !isUpper(r) && !isLower(r) && !isDigit(r) }
