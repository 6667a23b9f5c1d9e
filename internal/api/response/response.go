package response

import "github.com/gin-gonic/gin"

const (
	CodeSuccess = 0
)

const (
	ErrUnauthorized = 10001
	ErrTokenExpired = 10002
	ErrForbidden    = 10003
	ErrBadRequest   = 10004
	ErrRateLimited  = 10005
)

const (
	ErrUserNotFound       = 20001
	ErrUserInactive       = 20002
	ErrPasswordWrong      = 20003
	ErrEmailInUse         = 20004
	ErrInvalidOTP         = 20005
	ErrSelfChangeRejected = 20006
)

const (
	ErrMemberNotFound = 30001
	ErrBranchNotFound = 30002
	ErrNameTaken      = 30003
)

const (
	ErrMembershipNotFound     = 40001
	ErrActiveMembershipExists = 40002
	ErrInvalidTransition      = 40003
	ErrMembershipTypeInactive = 40004
)

const (
	ErrPaymentNotFound   = 50001
	ErrPaymentState      = 50002
	ErrGatewayFailure    = 50003
	ErrClassNotFound     = 50101
	ErrClassUnavailable  = 50102
	ErrClassFull         = 50103
	ErrAlreadyReserved   = 50104
	ErrReservationDenied = 50105
)

const (
	ErrInvalidToken       = 60001
	ErrInactiveAccount    = 60002
	ErrQRTokenExpired     = 60003
	ErrNoActiveMembership = 60004
	ErrVisitAlreadyOpen   = 60005
	ErrBranchUnavailable  = 60006
	ErrCheckInNotFound    = 60007
	ErrAlreadyClosed      = 60008
)

const (
	ErrInternal = 99999
)

type Response struct {
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func Success(c *gin.Context, data any) {
	c.JSON(200, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data any) {
	c.JSON(201, Response{
		Code:    CodeSuccess,
		Message: "created",
		Data:    data,
	})
}

func Paginated(c *gin.Context, data any, page, pageSize int, total int64) {
	var pages int64
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	c.JSON(200, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: pages,
		},
	})
}

func Fail(c *gin.Context, httpStatus, appCode int, message string) {
	c.JSON(httpStatus, Response{
		Code:    appCode,
		Message: message,
	})
}
