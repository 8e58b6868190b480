package server

import (
	"errors"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/discount"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/service"
)

// statusFor 业务错误到 HTTP 状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 404
	case errors.Is(err, service.ErrUnauthorized):
		return 403
	case errors.Is(err, service.ErrInsufficientStock):
		return 409
	case errors.Is(err, service.ErrCartEmpty),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrBadSignature),
		errors.Is(err, discount.ErrNotUsable),
		errors.Is(err, order.ErrDiscountApplied):
		return 400
	case errors.Is(err, service.ErrGatewayUnavailable):
		return 503
	default:
		return 500
	}
}

// fail 按统一格式返回错误。5xx 不透出内部细节。
func fail(ctx iris.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= 500 {
		msg = "服务暂不可用，请稍后再试"
	}
	ctx.StopWithJSON(code, iris.Map{"code": code, "msg": msg})
}
