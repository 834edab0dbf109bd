package usecases

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New()

func ValidateUUID(rawUUID string) bool {
	_, err := uuid.Parse(rawUUID)
	return err == nil
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
