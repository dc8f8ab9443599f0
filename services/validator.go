package services

import (
	"chat-presence/errors"
	goerrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report the wire name of a field, not the Go one
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

type JoinRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type SendMessageRequest struct {
	RoomID  string `json:"roomId" validate:"required"`
	Content string `json:"content"`
	FileURL string `json:"fileUrl,omitempty" validate:"omitempty,url"`
}

type TypingRequest struct {
	RoomID   string `json:"roomId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

type ReactRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Reaction  string `json:"reaction" validate:"required,max=32"`
}

type ReadRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
}

// validateRequest checks req and wraps any failure into sentinel.
func validateRequest(req any, sentinel error) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !goerrors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	fields := lo.Map(fieldErrors, func(fe validator.FieldError, _ int) string {
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	})
	return fmt.Errorf("%w: %s", sentinel, strings.Join(fields, ", "))
}

func validateJoin(req JoinRequest) error {
	return validateRequest(req, errors.ErrIdentity)
}
