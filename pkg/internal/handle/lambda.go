package handle

import (
	"context"
	"encoding/base64"
	"net/http"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	nlog "github.com/yeisme/assetvault/pkg/log"
)

// FromAPIGateway 把 API Gateway 代理事件转换为 Request.
func FromAPIGateway(ev awsevents.APIGatewayProxyRequest) (Request, error) {
	body := ev.Body
	if ev.IsBase64Encoded && body != "" {
		b, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return Request{}, err
		}

		body = string(b)
	}

	return Request{
		Method:         ev.HTTPMethod,
		Path:           ev.Path,
		PathParameters: ev.PathParameters,
		Body:           body,
	}, nil
}

// ToAPIGateway 把 Response 转换为 API Gateway 代理响应.
func ToAPIGateway(resp Response) awsevents.APIGatewayProxyResponse {
	return awsevents.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       resp.Body,
	}
}

// HandleAPIGateway 是 Lambda 入口，所有错误都已转换为响应，因此总是返回 nil error.
func (d *Dispatcher) HandleAPIGateway(ctx context.Context, ev awsevents.APIGatewayProxyRequest) (awsevents.APIGatewayProxyResponse, error) {
	requestID := ev.RequestContext.RequestID
	if lc, ok := lambdacontext.FromContext(ctx); ok && requestID == "" {
		requestID = lc.AwsRequestID
	}

	ctx = nlog.WithRequestID(ctx, requestID)

	req, err := FromAPIGateway(ev)
	if err != nil {
		nlog.FromContext(ctx).Warn().Err(err).Msg("invalid base64 body")
		return ToAPIGateway(errorResponse(http.StatusBadRequest, msgInvalidJSON)), nil
	}

	return ToAPIGateway(d.Dispatch(ctx, req)), nil
}
