package response

// 业务状态码
const (
	CodeSuccess = 200

	// 通用错误
	ErrInvalidParam    = 400
	ErrAuthFailed      = 401
	ErrNoPermission    = 403
	ErrNotFound        = 404
	ErrConflict        = 409
	ErrTooManyRequests = 429
	ErrServerInternal  = 500
	ErrGateway         = 502

	// 订单模块错误 100xx
	ErrOrderNotFound       = 10001
	ErrInvalidTransition   = 10002
	ErrAlreadyPaidMismatch = 10003
	ErrInsufficientStock   = 10004
	ErrAmountMismatch      = 10005
	ErrInvalidOrder        = 10006

	// 支付模块错误 200xx
	ErrGatewayDisabled    = 20001
	ErrGatewayUnavailable = 20002
	ErrGatewayRejected    = 20003
	ErrUnsupportedChannel = 20004

	// 商品模块错误 300xx
	ErrProductNotFound  = 30001
	ErrCategoryNotFound = 30002
	ErrCategoryInUse    = 30003

	// 消息通道错误 400xx
	ErrBotDisabled  = 40001
	ErrBotTransport = 40002
)
