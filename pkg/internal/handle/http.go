package handle

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxBodyBytes 请求体上限.
const maxBodyBytes = 1 << 20

// GinHandler 把 gin 请求转换为 Request 交给 fn 处理，并原样写回 JSON 响应.
func GinHandler(fn func(c *gin.Context, req Request) Response) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			resp := errorResponse(http.StatusBadRequest, msgInvalidJSON)
			c.Data(resp.StatusCode, gin.MIMEJSON, []byte(resp.Body))

			return
		}

		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		resp := fn(c, Request{
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			PathParameters: params,
			Body:           string(body),
		})

		c.Data(resp.StatusCode, gin.MIMEJSON, []byte(resp.Body))
	}
}

// UsersHTTP 用户路由的 gin 处理器.
func (d *Dispatcher) UsersHTTP() gin.HandlerFunc {
	return GinHandler(func(c *gin.Context, req Request) Response {
		return d.Users(c.Request.Context(), req)
	})
}

// AssetsHTTP 资源路由的 gin 处理器.
func (d *Dispatcher) AssetsHTTP() gin.HandlerFunc {
	return GinHandler(func(c *gin.Context, req Request) Response {
		return d.Assets(c.Request.Context(), req)
	})
}

// MethodNotAllowed 未匹配的方法/路径组合.
func MethodNotAllowed(c *gin.Context) {
	resp := errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	c.Data(resp.StatusCode, gin.MIMEJSON, []byte(resp.Body))
}
