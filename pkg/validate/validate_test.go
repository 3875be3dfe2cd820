package validate

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("0912345678"))
	assert.False(t, IsMobile("091234567"))
	assert.False(t, IsMobile("0812345678"))
	assert.False(t, IsMobile("09123456789"))
	assert.False(t, IsMobile("09-2345678"))
}

func TestPasswordProblems(t *testing.T) {
	assert.Empty(t, PasswordProblems("Secret123!"))
	assert.Len(t, PasswordProblems("short"), 4)
	assert.Equal(t, []string{"密码必须包含特殊字符 (@$!%*?&)"}, PasswordProblems("Secret1234"))
	assert.Equal(t, []string{"密码必须包含大写字母"}, PasswordProblems("secret123!"))
}

type sample struct {
	Phone     string `json:"phone"      validate:"required,tw_mobile"`
	ShiftType string `json:"shift_type" validate:"omitempty,shift_type"`
	Status    string `json:"status"     validate:"omitempty,schedule_status"`
	Password  string `json:"password"   validate:"omitempty,strong_password"`
}

func TestRegister_FieldErrors(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	ok := sample{Phone: "0912345678", ShiftType: "night", Status: "confirmed", Password: "Secret123!"}
	assert.NoError(t, v.Struct(ok))

	bad := sample{Phone: "12345", ShiftType: "dawn", Status: "done", Password: "weak"}
	err := v.Struct(bad)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"phone", "shift_type", "status", "password"}, FieldErrors(err))
}

func TestFieldErrors_NonValidation(t *testing.T) {
	assert.Nil(t, FieldErrors(assert.AnError))
}
