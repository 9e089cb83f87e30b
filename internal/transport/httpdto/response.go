package httpdto

// Response is the envelope every status route answers with. RequestID echoes
// X-Request-Id on errors so a failure can be found in the logs.
type Response[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(err, code string) Response[any] {
	return Response[any]{Error: err, Code: code}
}

func (r Response[T]) WithRequestID(id string) Response[T] {
	r.RequestID = id
	return r
}
