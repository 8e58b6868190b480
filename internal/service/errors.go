package service

import "errors"

// 业务错误，路由层据此映射 HTTP 状态码：
// 空购物车/无效折扣码 -> 400，越权 -> 403，库存不足 -> 409，网关不可用 -> 503。
var (
	ErrCartEmpty          = errors.New("购物车为空")
	ErrInvalidQuantity    = errors.New("数量必须大于 0")
	ErrInsufficientStock  = errors.New("库存不足")
	ErrProductUnavailable = errors.New("商品不可购买")
	ErrInvalidDiscount    = errors.New("折扣码无效")
	ErrUnauthorized       = errors.New("无权访问该订单")
	ErrGatewayUnavailable = errors.New("支付网关暂不可用")
	ErrBadSignature       = errors.New("回调签名校验失败")
)
