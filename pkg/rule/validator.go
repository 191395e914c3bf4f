// Package rule 封装 go-playground/validator，提供配置结构体校验与记录必填字段检查.
package rule

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	inst *validator.Validate
	once sync.Once
)

// initValidator 复用 gin 的 validator 引擎，改用 rule 标签，错误中的字段名取 mapstructure 键.
func initValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok && v != nil {
		inst = v
	} else {
		inst = validator.New()
	}

	inst.SetTagName("rule")
	inst.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}

		if name == "" {
			return f.Name
		}

		return name
	})
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// ValidateStruct 校验结构体. 失败时返回 *Error，逐条列出 "路径: 规则".
func ValidateStruct(s any) error {
	lazyInit()

	err := inst.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make([]string, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, describe(fe))
	}

	return out
}

// Error 结构体校验失败的字段列表.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return strings.Join(e.Fields, "; ")
}

// describe 把 "AppConfig.store.users_table" 形式的命名空间去掉根类型名.
func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}

	if fe.Param() != "" {
		return fmt.Sprintf("%s: %s=%s", path, fe.Tag(), fe.Param())
	}

	return fmt.Sprintf("%s: %s", path, fe.Tag())
}
