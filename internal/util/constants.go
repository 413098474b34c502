package util

const DateFormat = "2006-01-02"

// gin 上下文键
const (
	ContextUserKey = "user"
)
