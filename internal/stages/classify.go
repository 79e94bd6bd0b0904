package stages

import (
	"context"
	"errors"
	"net"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"

	"lexpipe/internal/store"
	"lexpipe/internal/task"
)

// classify maps an error from an external capability to a task error kind.
// The kind is the only thing the runtime's retry decision looks at, so this
// mapping is what separates "call again later" from "give up now".
func classify(err error) task.ErrorKind {
	if err == nil {
		return task.KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return task.KindTimeout
	}
	if errors.Is(err, store.ErrNotFound) {
		return task.KindNotFound
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForHTTPStatus(apiErr.HTTPStatusCode)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return kindForHTTPStatus(gErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return task.KindTimeout
		}
		return task.KindNetwork
	}
	return task.KindUnknown
}

func kindForHTTPStatus(code int) task.ErrorKind {
	switch {
	case code == 429:
		return task.KindRateLimited
	case code == 401 || code == 403:
		return task.KindPermission
	case code == 404:
		return task.KindNotFound
	case code >= 500:
		return task.KindNetwork
	default:
		return task.KindUnknown
	}
}
