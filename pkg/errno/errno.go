package errno

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrParameterInvalid = &Errno{Code: 400, Message: "Invalid parameter %s"}
	ErrInvalidParam     = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized     = &Errno{Code: 401, Message: "Unauthorized"}
	ErrForbidden        = &Errno{Code: 403, Message: "Forbidden"}
	ErrNotFound         = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrMissingParam        = &Errno{Code: 20001, Message: "Missing required parameter"}
	ErrFileNameIllegal     = &Errno{Code: 20002, Message: "File name is illegal"}
	ErrFileSizeIllegal     = &Errno{Code: 20003, Message: "File size is illegal"}
	ErrUploadIllegal       = &Errno{Code: 20004, Message: "Upload file is illegal"}
	ErrMediaTypeIllegal    = &Errno{Code: 20005, Message: "Unsupported media type"}
	ErrUploadError         = &Errno{Code: 20006, Message: "Upload error"}
	ErrVideoNotFound       = &Errno{Code: 20007, Message: "Video not found"}
	ErrVideoNotTerminal    = &Errno{Code: 20008, Message: "Video is still processing"}
	ErrVideoAlreadyQueued  = &Errno{Code: 20009, Message: "Video already has a pending job"}
	ErrUserUUIDRequired    = &Errno{Code: 20010, Message: "User UUID is required"}
	ErrVideoUUIDRequired   = &Errno{Code: 20011, Message: "Video UUID is required"}
	ErrSourceRequired      = &Errno{Code: 20012, Message: "Either file or source URL is required"}
	ErrSourceConflict      = &Errno{Code: 20013, Message: "File and source URL are mutually exclusive"}
	ErrYoutubeURLInvalid   = &Errno{Code: 20014, Message: "YouTube URL is invalid"}
	ErrQueueFull           = &Errno{Code: 20015, Message: "Job queue is full"}
	ErrPublishFailed       = &Errno{Code: 20016, Message: "Failed to publish processing job"}
	ErrYoutubeFetchFailed  = &Errno{Code: 20017, Message: "Failed to fetch audio from YouTube"}
	ErrTitleRequired       = &Errno{Code: 20018, Message: "Title is required"}
)

// BizError 业务错误，携带底层原因
type BizError struct {
	Errno *Errno
	Cause error
}

func NewBizError(errno *Errno, cause error) *BizError {
	return &BizError{Errno: errno, Cause: cause}
}

func (e *BizError) Error() string {
	if e.Cause != nil {
		return e.Errno.Message + ": " + e.Cause.Error()
	}
	return e.Errno.Message
}

func (e *BizError) Unwrap() error {
	return e.Cause
}
