package bedrock

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/aws/smithy-go"
)

var (
	// ErrConnectivity wraps transport failures reaching the Bedrock
	// endpoint.
	ErrConnectivity = errors.New("bedrock: endpoint unreachable")
	// ErrAuth wraps invalid or expired credentials.
	ErrAuth = errors.New("bedrock: authentication failed")
	// ErrInvocation wraps every other non-success response.
	ErrInvocation = errors.New("bedrock: invocation failed")
)

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException",
			"UnrecognizedClientException",
			"InvalidSignatureException",
			"ExpiredTokenException",
			"ExpiredToken",
			"IncompleteSignature":
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.ErrorMessage())
		default:
			return fmt.Errorf("%w: %s: %s", ErrInvocation, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return fmt.Errorf("%w: %v", ErrInvocation, err)
}
