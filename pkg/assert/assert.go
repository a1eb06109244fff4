package assert

import (
	"fmt"
	"sync/atomic"
)

// 构建单例时的防御性断言，出错即panic暴露装配问题。

var constructing int32

// NotCircular 检测单例构造期间的循环依赖
func NotCircular() {
	if atomic.LoadInt32(&constructing) > 32 {
		panic("circular dependency detected during singleton construction")
	}
	atomic.AddInt32(&constructing, 1)
	defer atomic.AddInt32(&constructing, -1)
}

// NotNil 断言值不为nil
func NotNil(v interface{}) {
	if v == nil {
		panic("unexpected nil value during assembly")
	}
}

// Must 断言无错误
func Must(err error) {
	if err != nil {
		panic(fmt.Sprintf("assembly failed: %v", err))
	}
}
