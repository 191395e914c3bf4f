// Package handle 把与传输无关的请求分发到用户/资源操作，并把结果和错误转换为
// {statusCode, body} 响应. HTTP（gin）与 AWS Lambda 两种入口共用同一个 Dispatcher.
package handle

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/service"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// ActionDownload 资源下载动作.
const ActionDownload = "download"

// 固定的响应消息.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgInvalidJSON      = "Invalid JSON"
	msgInternal         = "Internal server error"
	msgUserNotFound     = "User not found"
	msgAssetNotFound    = "Asset not found"
	msgUserCreated      = "User created"
	msgUserExists       = "User already exists"
	msgUserDeleted      = "User deleted successfully"
	msgAssetCreated     = "Asset metadata created"
	msgAssetExists      = "Asset already exists"
)

// Request 与传输无关的请求.
type Request struct {
	Method         string            `json:"method"`
	Path           string            `json:"path"`
	PathParameters map[string]string `json:"pathParameters,omitempty"`
	Body           string            `json:"body,omitempty"`
}

// ID 返回路径参数 id.
func (r *Request) ID() string { return r.PathParameters["id"] }

// Action 返回路径参数 action.
func (r *Request) Action() string { return r.PathParameters["action"] }

// Response 响应，Body 为 JSON 字符串.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Dispatcher 请求分发器.
type Dispatcher struct {
	users  *service.Records
	assets *service.Assets
}

// NewDispatcher 创建分发器.
func NewDispatcher(users *service.Records, assets *service.Assets) *Dispatcher {
	return &Dispatcher{users: users, assets: assets}
}

// Dispatch 按路径前缀选择资源.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	switch {
	case hasResource(req.Path, "users"):
		return d.Users(ctx, req)
	case hasResource(req.Path, "assets"):
		return d.Assets(ctx, req)
	default:
		return errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

func hasResource(path, name string) bool {
	p := strings.TrimPrefix(path, "/")
	return p == name || strings.HasPrefix(p, name+"/")
}

// parseBody 在任何操作执行前解析请求体，空请求体视为空对象.
func parseBody(ctx context.Context, req Request) (model.Record, *Response) {
	body, err := model.Decode([]byte(req.Body))
	if err != nil {
		nlog.FromContext(ctx).Warn().Err(err).Str("path", req.Path).Msg("invalid JSON in request body")

		resp := errorResponse(http.StatusBadRequest, msgInvalidJSON)

		return nil, &resp
	}

	return body, nil
}

// Users 用户路由：
//
//	GET    /users/{id}
//	POST   /users
//	PUT    /users/{id}
//	DELETE /users/{id}
func (d *Dispatcher) Users(ctx context.Context, req Request) Response {
	nlog.FromContext(ctx).Info().Str("method", req.Method).Str("path", req.Path).Msg("request received")

	body, bad := parseBody(ctx, req)
	if bad != nil {
		return *bad
	}

	id := req.ID()
	if req.Action() != "" {
		return errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}

	switch {
	case req.Method == http.MethodGet && id != "":
		rec, err := d.users.Get(ctx, id)
		if err != nil {
			return d.failure(ctx, err, msgUserNotFound)
		}

		return jsonResponse(http.StatusOK, rec)

	case req.Method == http.MethodPost:
		res, err := d.users.Create(ctx, body)
		if err != nil {
			return d.failure(ctx, err, msgUserNotFound)
		}

		if res.Created {
			return jsonResponse(http.StatusCreated, map[string]any{"message": msgUserCreated, "user": res.Record})
		}

		return jsonResponse(http.StatusOK, map[string]any{"message": msgUserExists, "user": res.Record})

	case req.Method == http.MethodPut && id != "":
		rec, err := d.users.Update(ctx, id, body)
		if err != nil {
			return d.failure(ctx, err, msgUserNotFound)
		}

		return jsonResponse(http.StatusOK, rec)

	case req.Method == http.MethodDelete && id != "":
		if err := d.users.Delete(ctx, id); err != nil {
			return d.failure(ctx, err, msgUserNotFound)
		}

		return jsonResponse(http.StatusOK, map[string]any{"message": msgUserDeleted})

	default:
		return errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

// Assets 资源路由：
//
//	POST /assets
//	GET  /assets/{id}
//	GET  /assets/{id}/download
func (d *Dispatcher) Assets(ctx context.Context, req Request) Response {
	nlog.FromContext(ctx).Info().Str("method", req.Method).Str("path", req.Path).Msg("asset request received")

	body, bad := parseBody(ctx, req)
	if bad != nil {
		return *bad
	}

	id, action := req.ID(), req.Action()

	switch {
	case req.Method == http.MethodPost && action == "":
		res, err := d.assets.Create(ctx, body)
		if err != nil {
			return d.failure(ctx, err, msgAssetNotFound)
		}

		if res.Created {
			return jsonResponse(http.StatusCreated, map[string]any{
				"message":   msgAssetCreated,
				"asset":     res.Record,
				"uploadUrl": res.UploadURL,
			})
		}

		return jsonResponse(http.StatusOK, map[string]any{"message": msgAssetExists, "asset": res.Record})

	case req.Method == http.MethodGet && id != "" && action == "":
		rec, err := d.assets.Get(ctx, id)
		if err != nil {
			return d.failure(ctx, err, msgAssetNotFound)
		}

		return jsonResponse(http.StatusOK, rec)

	case req.Method == http.MethodGet && id != "" && action == ActionDownload:
		dl, err := d.assets.Download(ctx, id)
		if err != nil {
			return d.failure(ctx, err, msgAssetNotFound)
		}

		return jsonResponse(http.StatusOK, map[string]any{
			"downloadUrl": dl.URL,
			"fileName":    dl.FileName,
			"contentType": dl.ContentType,
		})

	default:
		return errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

// failure 把操作错误转换为响应；存储错误只记录日志，不向调用方暴露细节.
func (d *Dispatcher) failure(ctx context.Context, err error, notFound string) Response {
	var ve *service.ValidationError

	switch {
	case errors.As(err, &ve):
		return errorResponse(http.StatusBadRequest, ve.Error())
	case errors.Is(err, service.ErrNotFound):
		return errorResponse(http.StatusNotFound, notFound)
	default:
		nlog.FromContext(ctx).Error().Err(err).Msg("request failed")
		return errorResponse(http.StatusInternalServerError, msgInternal)
	}
}

func errorResponse(status int, msg string) Response {
	return jsonResponse(status, map[string]string{"error": msg})
}

func jsonResponse(status int, v any) Response {
	b, err := model.Marshal(v)
	if err != nil {
		nlog.Logger().Error().Err(err).Msg("marshal response failed")
		return Response{StatusCode: http.StatusInternalServerError, Body: `{"error":"Internal server error"}`}
	}

	return Response{StatusCode: status, Body: string(b)}
}
