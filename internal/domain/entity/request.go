package entity

// GenerateRequest is the body of POST /api/generate. Prompt is not validated.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse carries sanitized code, or FallbackCode on failure.
type GenerateResponse struct {
	Code string `json:"code"`
}

// StreamResponse is the websocket reply to a single GenerateRequest.
type StreamResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	OK   bool   `json:"ok"`
}
