package cmd

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/pflag"

	"github.com/fmrest/fmrest-cli/internal/config"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
)

const (
	exitOK        = 0
	exitGeneric   = 1
	exitUsage     = 2
	exitAuth      = 3
	exitNotFound  = 4
	exitForbidden = 5
	exitServer    = 7
	exitNetwork   = 8
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	var handled *handledError
	if errors.As(err, &handled) {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	if code := exitCodeFromKind(err); code != 0 {
		return code
	}
	if errors.Is(err, config.ErrNotConfigured) {
		return exitAuth
	}
	if isUsageError(err) {
		return exitUsage
	}
	if isNetworkError(err) {
		return exitNetwork
	}
	return exitGeneric
}

func exitCodeFromKind(err error) int {
	e := fmrest.AsError(err)
	if e == nil {
		return 0
	}
	switch e.Kind {
	case fmrest.KindUnauthorized, fmrest.KindAuthType:
		return exitAuth
	case fmrest.KindForbidden:
		return exitForbidden
	case fmrest.KindNotFound:
		return exitNotFound
	case fmrest.KindServerError:
		return exitServer
	case fmrest.KindRequest:
		return exitNetwork
	case fmrest.KindBadRequest, fmrest.KindMethodNotAllowed, fmrest.KindUnsupportedMediaType, fmrest.KindEncoding:
		return exitUsage
	case fmrest.KindAPI:
		return exitCodeFromAPIError(e)
	default:
		return 0
	}
}

// exitCodeFromAPIError classifies a message-bearing failure by its status,
// then by the FileMaker message code.
func exitCodeFromAPIError(e *fmrest.Error) int {
	switch {
	case fmrest.IsSessionExpired(e) || e.Code == 401:
		return exitAuth
	case e.Code == 403 || e.HasMessageCode(fmrest.CodeInsufficientPrivs):
		return exitForbidden
	case e.Code == 404 || e.HasMessageCode(fmrest.CodeRecordMissing) || e.HasMessageCode(fmrest.CodeLayoutMissing):
		return exitNotFound
	case e.Code >= 500:
		return exitServer
	case e.Code >= 400:
		return exitUsage
	}
	return 0
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout")
}

func isUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	indicators := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid ",
		"must be",
		"is required",
		"required flag",
		"missing",
	}
	for _, indicator := range indicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
