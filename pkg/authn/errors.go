package authn

import (
	"errors"
	"fmt"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

var (
	// ErrUnableToRetrieveOptions is the standard error of a bare
	// fail message; the server attaches no detail to those.
	ErrUnableToRetrieveOptions = errors.New("unable to retrieve options")

	// ErrAuthenticationFailed is synthesized for a fail response
	// that ends a credential exchange without an explicit error.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCeremonyAborted is the normalized form of the platform
	// credential API's timeout/not-allowed failure class.
	ErrCeremonyAborted = errors.New("the operation either timed out or was aborted")

	// ErrNotAllowed classifies authenticator rejections; platform
	// adapters wrap their NotAllowedError equivalents with it.
	ErrNotAllowed = errors.New("operation not allowed")
)

// ResponseError carries a fail response whose content must reach the
// caller unchanged.
type ResponseError struct {
	Response *msg.Message
}

func (e *ResponseError) Error() string {
	if e.Response != nil && e.Response.Err != nil {
		return e.Response.Err.Error()
	}
	return "authentication failed"
}

// label keys overridable through DispatchContext.Labels.
const (
	LabelSeparator       = "separator"
	LabelOtherOptions    = "other_options"
	LabelForgottenAction = "action_forgotten"
	LabelRegisterAction  = "action_register"
	LabelLoginAction     = "action_login"
	LabelConfirmPassword = "confirm_password"
	LabelGenericError    = "generic_error"
)

var defaultLabels = map[string]string{
	LabelSeparator:       "or",
	LabelOtherOptions:    "or other options",
	LabelForgottenAction: "Forgotten password?",
	LabelRegisterAction:  "Create an account",
	LabelLoginAction:     "Sign in",
	LabelConfirmPassword: "Confirm password",
	LabelGenericError:    "Something went wrong, please try again.",
}

func defaultLabel(key string) string {
	if v, ok := defaultLabels[key]; ok {
		return v
	}
	return key
}

// notifyError shows the generic user-facing failure while keeping the
// structured error for the programmatic callback.
func (f *Flow) notifyError(dctx *DispatchContext, err error) error {
	f.surface.ShowError(dctx.label(LabelGenericError, defaultLabel(LabelGenericError)))
	f.failure(dctx, err)
	return err
}

// missingFieldsError reports which authorization parameters were
// absent from an OIDC entry request.
func missingFieldsError(fields []string) error {
	return fmt.Errorf("missing required authorization parameters: %v", fields)
}
