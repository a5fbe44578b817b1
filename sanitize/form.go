package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// Validation messages returned in Result.Errors.
const (
	ErrNameTooShort    = "Name must be at least 2 characters"
	ErrEmailInvalid    = "Invalid email format"
	ErrMessageTooShort = "Message must be at least 10 characters"
	ErrSuspicious      = "Message contains suspicious content"
)

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Result is a sanitized contact form with every problem found.
type Result struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// Valid reports whether no problems were found.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Form sanitizes each field and validates the result.
func Form(name, email, message string) Result {
	r := Result{
		Name:    Name(name),
		Email:   Email(email),
		Message: Message(message),
	}
	if utf8.RuneCountInString(r.Name) < 2 {
		r.Errors = append(r.Errors, ErrNameTooShort)
	}
	if !addressPattern.MatchString(r.Email) {
		r.Errors = append(r.Errors, ErrEmailInvalid)
	}
	if utf8.RuneCountInString(r.Message) < 10 {
		r.Errors = append(r.Errors, ErrMessageTooShort)
	}
	if ContainsSpam(r.Name + " " + r.Email + " " + r.Message) {
		r.Errors = append(r.Errors, ErrSuspicious)
	}
	return r
}
