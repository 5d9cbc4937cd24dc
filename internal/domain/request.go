package domain

// ProcessMessageRequest is the body of POST /process-message.
type ProcessMessageRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserMessage    string `json:"user_message"`
}

// ProcessMessageResponse is the success envelope of POST /process-message.
type ProcessMessageResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// ErrorBody is the error envelope returned to clients. Message is always a
// generic, non-leaking description; Kind is machine-readable.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable error kind and a safe message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
