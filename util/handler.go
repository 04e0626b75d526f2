package util

import (
	"fmt"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// ErrorGuard wraps a tool handler so a panic becomes a tool error result
// instead of taking down the server.
func ErrorGuard(handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(arguments map[string]interface{}) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("Tool handler panicked")
				result = mcp.NewToolResultError(fmt.Sprintf("tool panicked: %v\n%s", r, debug.Stack()))
				err = nil
			}
		}()
		return handler(arguments)
	}
}
