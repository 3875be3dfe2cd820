package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/guimashan/staff-schedule/internal/model"
)

var mobilePattern = regexp.MustCompile(`^09\d{8}$`)

const passwordSpecials = "@$!%*?&"

// PasswordMinLength 密码最短长度
const PasswordMinLength = 8

// RegisterGin 把自定义校验规则注册到 gin 的默认校验引擎
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	return Register(v)
}

// Register 注册自定义规则，并使错误字段名取 json / form 标签
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)

	rules := map[string]validator.Func{
		"tw_mobile": func(fl validator.FieldLevel) bool {
			return IsMobile(fl.Field().String())
		},
		"shift_type": func(fl validator.FieldLevel) bool {
			return model.IsValidShiftType(fl.Field().String())
		},
		"schedule_status": func(fl validator.FieldLevel) bool {
			return model.IsValidScheduleStatus(fl.Field().String())
		},
		"strong_password": func(fl validator.FieldLevel) bool {
			return len(PasswordProblems(fl.Field().String())) == 0
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// FieldErrors 从绑定错误中提取出错字段名
// 非校验类错误（如 JSON 语法错误）返回 nil
func FieldErrors(err error) []string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	fields := make([]string, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, fe.Field())
	}
	return fields
}

// IsMobile 台湾手机号码 09xxxxxxxx
func IsMobile(s string) bool {
	return mobilePattern.MatchString(s)
}

// PasswordProblems 返回密码不满足的强度要求，空切片表示合格
func PasswordProblems(password string) []string {
	var problems []string
	if len(password) < PasswordMinLength {
		problems = append(problems, "密码长度至少 8 位")
	}
	var hasDigit, hasUpper, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}
	if !hasDigit {
		problems = append(problems, "密码必须包含数字")
	}
	if !hasSpecial {
		problems = append(problems, "密码必须包含特殊字符 (@$!%*?&)")
	}
	if !hasUpper {
		problems = append(problems, "密码必须包含大写字母")
	}
	return problems
}
