package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics if value is nil, including typed nils hidden in an interface.
func NotNil(value any, name ...string) {
	if value == nil || isNilPointer(value) {
		panic(fmt.Sprintf("expected %s to be not nil", label(name)))
	}
}

func NotEmptyStr(str string, name ...string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", label(name)))
	}
}

func Positive(n int, name ...string) {
	if n <= 0 {
		panic(fmt.Sprintf("expected %s to be positive, got %d", label(name), n))
	}
}

func isNilPointer(value any) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func label(name []string) string {
	if len(name) == 0 {
		return "value"
	}
	return name[0]
}
