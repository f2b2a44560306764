package node

import "github.com/gin-gonic/gin"

// Node is any process that exposes an HTTP router under a stable id.
// Kind names the role, e.g. "probe".
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
}
