package chatpod

type ResponseType string

const (
	ResponseTypeText        ResponseType = "text"
	ResponseTypePartialText ResponseType = "partial-text"
	ResponseTypeEnd         ResponseType = "end"
	ResponseTypeError       ResponseType = "error"
)

// Response represents a communication unit from the Session to the caller/UI.
type Response struct {
	Content string
	Type    ResponseType
}
