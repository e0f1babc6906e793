package failover

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
)

// chatCompletion is the subset of the chat-completion response shape the
// classifier inspects.
type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Classify maps a raw provider response (or call error) to exactly one
// Outcome. It is pure: no retries, no I/O, deterministic for a given input.
//
// Priority order: transport exception, timeout, explicit rate limit, empty
// payload on success status, success, and finally any other status as a
// transport error with the upstream detail preserved verbatim.
func Classify(provider string, status int, body []byte, err error) Outcome {
	if err != nil {
		if isTimeout(err) {
			return Outcome{Kind: KindTimedOut, Provider: provider, Detail: err.Error()}
		}
		return Outcome{Kind: KindTransportError, Provider: provider, Detail: err.Error()}
	}

	if status == http.StatusTooManyRequests {
		return Outcome{Kind: KindRateLimited, Provider: provider}
	}

	if status >= 200 && status < 300 {
		var cc chatCompletion
		if jsonErr := json.Unmarshal(body, &cc); jsonErr != nil {
			return Outcome{Kind: KindEmptyResponse, Provider: provider, Detail: "unparseable body"}
		}
		if len(cc.Choices) == 0 {
			return Outcome{Kind: KindEmptyResponse, Provider: provider}
		}
		content := strings.TrimSpace(cc.Choices[0].Message.Content)
		if content == "" {
			return Outcome{Kind: KindEmptyResponse, Provider: provider}
		}
		return Outcome{Kind: KindSuccess, Provider: provider, Payload: content}
	}

	return Outcome{Kind: KindTransportError, Provider: provider, Detail: upstreamDetail(status, body)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// upstreamDetail pulls the provider's error.message if the body parses,
// otherwise a bounded tail of the raw body.
func upstreamDetail(status int, body []byte) string {
	var cc chatCompletion
	if err := json.Unmarshal(body, &cc); err == nil && cc.Error != nil && cc.Error.Message != "" {
		return cc.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return http.StatusText(status)
	}
	return s
}
