package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/storage"
)

// StorageMiddleware 把存储 Manager 放入请求 context，供健康检查等处理器读取.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := storage.WithManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
