// Package router 把用户、资源与健康检查路由绑定到 gin 引擎，处理器由 pkg/internal/handle 提供.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/assetvault/pkg/internal/handle"
	"github.com/yeisme/assetvault/pkg/middleware"
)

// Register 绑定全部路由，未匹配的方法/路径统一返回 405：
//
//	GET    /users/:id
//	POST   /users
//	PUT    /users/:id
//	DELETE /users/:id
//	POST   /assets
//	GET    /assets/:id
//	GET    /assets/:id/:action   (action=download)
func Register(e *gin.Engine, d *handle.Dispatcher) {
	e.HandleMethodNotAllowed = true
	e.NoMethod(handle.MethodNotAllowed)
	e.NoRoute(handle.MethodNotAllowed)

	RegisterRecordRoutes(&e.RouterGroup, d)
	RegisterHealthCheckRoute(&e.RouterGroup)
}

// RegisterRecordRoutes 注册用户与资源路由，GET 响应带 ETag.
func RegisterRecordRoutes(g *gin.RouterGroup, d *handle.Dispatcher) {
	etag := middleware.ETagMiddleware(middleware.ETagConfig{})

	usersHandler := d.UsersHTTP()
	users := g.Group("/users", etag)
	{
		users.POST("", usersHandler)
		users.GET("/:id", usersHandler)
		users.PUT("/:id", usersHandler)
		users.DELETE("/:id", usersHandler)
	}

	assetsHandler := d.AssetsHTTP()
	assets := g.Group("/assets", etag)
	{
		assets.POST("", assetsHandler)
		assets.GET("/:id", assetsHandler)
		assets.GET("/:id/:action", assetsHandler)
	}
}
