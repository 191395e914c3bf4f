package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/storage"
)

const timeout = 2 * time.Second

// HealthStore 记录存储健康检查.
func HealthStore(c *gin.Context) {
	mgr, err := storage.FromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "store", "status": "unhealthy", "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := mgr.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "store", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "store", "status": "ok", "tables": mgr.Tables})
}

// HealthS3 对象存储健康检查.
func HealthS3(c *gin.Context) {
	mgr, err := storage.FromContext(c.Request.Context())
	if err != nil || mgr.Signer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "s3", "status": "unhealthy", "error": "s3 signer not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := mgr.Signer.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "s3", "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "s3", "status": "ok"})
}
