package auth

import (
	"errors"
	"fmt"
	"strings"

	"lazychat/internal/saas"

	"github.com/go-playground/validator/v10"
)

var ErrNotLinked = errors.New("auth: store is not linked to lazychat")

// InputError is a rejected form submission. Nothing was sent upstream.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// NotLinkedError carries the reason the SaaS gave for refusing activation.
type NotLinkedError struct {
	Message string
}

func (e *NotLinkedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNotLinked, e.Message)
}

func (e *NotLinkedError) Is(target error) bool { return target == ErrNotLinked }

// UserMessage extends saas.UserMessage with this package's errors.
func UserMessage(err error) string {
	var input *InputError
	var notLinked *NotLinkedError
	switch {
	case errors.As(err, &input):
		return input.Message
	case errors.As(err, &notLinked):
		return notLinked.Message
	default:
		return saas.UserMessage(err)
	}
}

var fieldLabels = map[string]string{
	"Email":    "Email",
	"Password": "Password",
	"Name":     "Name",
	"Message":  "Message",
	"ShopID":   "Shop",
}

func inputError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &InputError{Message: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label := fieldLabels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, label+" is required.")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters.", label, fe.Param()))
		case "email":
			msgs = append(msgs, "Please enter a valid email address.")
		default:
			msgs = append(msgs, label+" is invalid.")
		}
	}
	return &InputError{Message: strings.Join(msgs, " ")}
}
