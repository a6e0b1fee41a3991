package service

import "errors"

// 哨兵错误：对外统一语义，隐藏底层实现细节。
// Handler 层通过 errors.Is 把这些错误映射为 HTTP 状态码。
var (
	// ErrInvalidInput 请求参数不合法（必填缺失、自引用等）
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal 内部错误（对外不暴露细节）
	ErrInternal = errors.New("internal server error")

	// ErrInvalidCredentials 用户名或密码错误（登录时统一返回，防止用户枚举）
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound 用户不存在（仅用于非登录场景，如 GetProfile）
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists 用户已存在（注册时）
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrNodeNotFound 组织节点不存在
	ErrNodeNotFound = errors.New("org node not found")
	// ErrNodeAlreadyExists 组织节点 ID 已被占用
	ErrNodeAlreadyExists = errors.New("org node already exists")
	// ErrNodeHasChildren 节点下仍有子节点，保护删除被拒绝
	ErrNodeHasChildren = errors.New("org node has children")
	// ErrNodeCycle 换父会形成环（目标父节点是自己或自己的后代）
	ErrNodeCycle = errors.New("org node move would create a cycle")

	// ErrEventNotFound 集成事件不存在
	ErrEventNotFound = errors.New("integration event not found")
	// ErrEventStateConflict 集成事件状态迁移不合法
	ErrEventStateConflict = errors.New("integration event state conflict")
)
