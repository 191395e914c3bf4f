package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes 参与 ETag 计算的最大响应体，超出后直接透传.
const DefaultMaxBodyBytes = 1 << 20 // 1MB

// ETagConfig ETag 中间件配置.
type ETagConfig struct {
	Methods      []string                // 参与计算的 HTTP 方法 (默认 GET,HEAD)
	Skipper      func(*gin.Context) bool // 返回 true 跳过
	MaxBodyBytes int                     // 缓冲上限 (0=DefaultMaxBodyBytes)
}

// ETagMiddleware 为 200 响应生成弱 ETag（xxhash），并在 If-None-Match 命中时返回 304.
//
// 使用示例:
//
//	router := gin.New()
//	router.Use(middleware.ETagMiddleware(middleware.ETagConfig{}))
func ETagMiddleware(cfg ETagConfig) gin.HandlerFunc {
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{http.MethodGet, http.MethodHead}
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	methodSet := buildMethodSet(cfg.Methods)

	return func(c *gin.Context) {
		if _, ok := methodSet[c.Request.Method]; !ok || (cfg.Skipper != nil && cfg.Skipper(c)) {
			c.Next()
			return
		}

		bw := &bodyCaptureWriter{ResponseWriter: c.Writer, max: cfg.MaxBodyBytes, status: http.StatusOK}
		c.Writer = bw
		c.Next()
		c.Writer = bw.ResponseWriter

		if bw.passthrough {
			return
		}

		body := bw.buf.Bytes()

		if bw.status == http.StatusOK {
			etag := fmt.Sprintf("W/\"%x\"", xxhash.Sum64(body))
			bw.ResponseWriter.Header().Set("ETag", etag)

			if matchETag(c.GetHeader("If-None-Match"), etag) {
				bw.ResponseWriter.WriteHeader(http.StatusNotModified)
				return
			}
		}

		bw.ResponseWriter.WriteHeader(bw.status)

		if c.Request.Method != http.MethodHead {
			_, _ = bw.ResponseWriter.Write(body)
		}
	}
}

// matchETag 判断 If-None-Match 是否包含 etag.
func matchETag(header, etag string) bool {
	if header == "" {
		return false
	}

	for _, part := range strings.Split(header, ",") {
		p := strings.TrimSpace(part)
		if p == "*" || p == etag || "W/"+p == etag {
			return true
		}
	}

	return false
}

// bodyCaptureWriter 缓冲状态码与响应体，超过 max 时切换为透传.
type bodyCaptureWriter struct {
	gin.ResponseWriter

	buf         bytes.Buffer
	max         int
	status      int
	passthrough bool
}

// WriteHeader 延迟到 ETag 计算完成后再写出.
func (w *bodyCaptureWriter) WriteHeader(code int) {
	if w.passthrough {
		w.ResponseWriter.WriteHeader(code)
		return
	}

	w.status = code
}

// WriteHeaderNow gin 在 Abort 时调用，缓冲模式下忽略.
func (w *bodyCaptureWriter) WriteHeaderNow() {
	if w.passthrough {
		w.ResponseWriter.WriteHeaderNow()
	}
}

// Status 返回缓冲的状态码，供日志与指标中间件读取.
func (w *bodyCaptureWriter) Status() int {
	if w.passthrough {
		return w.ResponseWriter.Status()
	}

	return w.status
}

// Written 缓冲模式下只要写过数据即视为已写出.
func (w *bodyCaptureWriter) Written() bool {
	if w.passthrough {
		return w.ResponseWriter.Written()
	}

	return w.buf.Len() > 0
}

// Write 缓冲响应体, 超过上限时先刷出已缓冲内容再透传.
func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}

	if w.buf.Len()+len(b) <= w.max {
		return w.buf.Write(b)
	}

	w.passthrough = true
	w.ResponseWriter.WriteHeader(w.status)

	if _, err := w.ResponseWriter.Write(w.buf.Bytes()); err != nil {
		return 0, err
	}

	w.buf.Reset()

	return w.ResponseWriter.Write(b)
}

// WriteString 与 Write 一致，gin 的 JSON 渲染会走这里.
func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// buildMethodSet 构建方法集合.
func buildMethodSet(methods []string) map[string]struct{} {
	ms := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		ms[strings.ToUpper(m)] = struct{}{}
	}

	return ms
}
