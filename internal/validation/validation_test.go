package validation

import (
	"errors"
	"testing"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required,username"`
	Name     string `json:"first_name" validate:"required,min=2,max=50,personname"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Confirm  string `json:"confirm_password" validate:"required,eqfield=Password"`
}

func validSignup() signup {
	return signup{
		Username: "can_fan_01",
		Name:     "María José",
		Email:    "maria@example.com",
		Password: "Secr3t!pass",
		Confirm:  "Secr3t!pass",
	}
}

func fieldOf(t *testing.T, err error) *models.ValidationError {
	t.Helper()
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve
}

func TestStruct_OK(t *testing.T) {
	require.NoError(t, Struct(validSignup()))
}

func TestStruct_Username(t *testing.T) {
	s := validSignup()
	s.Username = "has space"
	ve := fieldOf(t, Struct(s))
	require.Equal(t, "username", ve.Field)

	s.Username = "ab"
	require.Error(t, Struct(s))
}

func TestStruct_PasswordRules(t *testing.T) {
	s := validSignup()
	s.Password, s.Confirm = "alllower1!", "alllower1!"
	ve := fieldOf(t, Struct(s))
	require.Equal(t, "password", ve.Field)
}

func TestStruct_ConfirmMismatch(t *testing.T) {
	s := validSignup()
	s.Confirm = "Other1!pass"
	ve := fieldOf(t, Struct(s))
	require.Equal(t, "confirm_password", ve.Field)
	require.Equal(t, "passwords do not match", ve.Message)
}

func TestStruct_NameLength(t *testing.T) {
	s := validSignup()
	s.Name = "A"
	ve := fieldOf(t, Struct(s))
	require.Equal(t, "first_name", ve.Field)
	require.Contains(t, ve.Message, "at least 2 characters")

	s.Name = "R2D2"
	ve = fieldOf(t, Struct(s))
	require.Contains(t, ve.Message, "letters and spaces")
}

func TestStrongPassword(t *testing.T) {
	require.True(t, StrongPassword("Abcdef1_"))
	require.False(t, StrongPassword("Abc1_"))
	require.False(t, StrongPassword("ABCDEFG1!"))
	require.False(t, StrongPassword("Abcdefgh!"))
	require.False(t, StrongPassword("Abcdefgh1"))
}

func TestVar(t *testing.T) {
	require.NoError(t, Var("email", "a@b.co", "email"))
	ve := fieldOf(t, Var("email", "nope", "email"))
	require.Equal(t, "email", ve.Field)
}
