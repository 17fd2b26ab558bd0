// Package security provides password strength scoring and random password
// generation support for the vault.
package security

import "unicode"

// PasswordStrength represents the coarse strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure password (score below 40).
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password (40-59).
	PasswordFair
	// PasswordGood indicates a good password (60-79).
	PasswordGood
	// PasswordStrong indicates a strong password (80 and above).
	PasswordStrong
)

// String returns a human-readable representation of the strength level.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Scorer computes a 0-100 strength score from password length and character
// class coverage. It implements vault.StrengthCalculator.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate returns a score between 0 and 100. Length contributes up to 40
// points (two per character), lowercase 10, uppercase 15, digits 15 and
// special characters 20.
func (s *Scorer) Calculate(password string) int {
	if password == "" {
		return 0
	}

	score := 2 * len(password)
	if score > 40 {
		score = 40
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if hasLower {
		score += 10
	}
	if hasUpper {
		score += 15
	}
	if hasDigit {
		score += 15
	}
	if hasSpecial {
		score += 20
	}
	return score
}

// Level maps a 0-100 score to a strength level.
func Level(score int) PasswordStrength {
	switch {
	case score >= 80:
		return PasswordStrong
	case score >= 60:
		return PasswordGood
	case score >= 40:
		return PasswordFair
	default:
		return PasswordWeak
	}
}
