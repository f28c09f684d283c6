package game

import "encoding/json"

// Envelope WS envelope: {"type":"...","id":"...","payload":{...}}
// id is optional and echoed back in the reply.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// incoming
type RegisterPayload struct {
	ClientID string `json:"clientId"`
}

type BuyTrialsPayload struct {
	Count int `json:"count"`
}

type MakeGuessPayload struct {
	Guess int `json:"guess"`
}

// outgoing
type RegisteredPayload struct {
	ClientID string `json:"clientId"`
	Score    int    `json:"score"`
}

type ScorePayload struct {
	Score int `json:"score"`
}

type ResetPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Status string

const (
	StatusTooSmall Status = "TOO_SMALL"
	StatusTooBig   Status = "TOO_BIG"
	StatusCorrect  Status = "CORRECT"
	StatusError    Status = "ERROR"
)

// GuessResult is returned for every makeGuess call. CurrentScore and
// RemainingTrials are read after the call's own mutation.
type GuessResult struct {
	Status          Status `json:"status"`
	ScoreChange     int    `json:"scoreChange"`
	CurrentScore    int    `json:"currentScore"`
	RemainingTrials int    `json:"remainingTrials"`
	Message         string `json:"message"`
}

const (
	msgTypeRegister    = "register"
	msgTypeBuyTrials   = "buy_trials"
	msgTypeMakeGuess   = "make_guess"
	msgTypeGetScore    = "get_score"
	msgTypeRegistered  = "registered"
	msgTypeScore       = "score"
	msgTypeGuessResult = "guess_result"
	msgTypeReset       = "reset"
	msgTypeError       = "error"
)
