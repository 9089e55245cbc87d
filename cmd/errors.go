package cmd

import "fmt"

const (
	ExitOK        = 0
	ExitViolation = 1
	ExitArg       = 2
	ExitInput     = 3
	ExitConfig    = 4
	ExitInternal  = 5
)

// ExitError 携带退出码；Kind 是 json/ndjson 输出中 error 事件的 code。
type ExitError struct {
	Code int
	Kind string
	Msg  string
}

func (e *ExitError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Msg
}
