package domain

import "fmt"

func errRequired(what string) error {
	return fmt.Errorf("%s is required", what)
}

func errInvalid(what, value string) error {
	return fmt.Errorf("invalid %s: %q", what, value)
}
