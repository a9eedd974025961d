package di

import "reflect"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
//
// 示例：
//
//	userServiceType := di.TypeOf[UserService]()
//	instance, _ := container.Get(userServiceType)
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// KeyOf 返回类型 T 的服务键。
func KeyOf[T any](name ...string) ServiceKey {
	key := ServiceKey{Type: TypeOf[T]()}
	if len(name) > 0 {
		key.Name = name[0]
	}
	return key
}
