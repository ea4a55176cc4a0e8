package login

import "errors"

// TwoFactorRequiredError is returned by an AuthClient when GitHub asks for
// a one-time password before it will issue a token.
type TwoFactorRequiredError struct {
	Message string
}

func (e *TwoFactorRequiredError) Error() string {
	return e.Message
}

// AuthFailureError is any other failed attempt. Message is shown to the
// user as is.
type AuthFailureError struct {
	Message string
}

func (e *AuthFailureError) Error() string {
	return e.Message
}

// IsTwoFactorRequired reports whether err carries a two-factor challenge.
func IsTwoFactorRequired(err error) bool {
	var tfa *TwoFactorRequiredError
	return errors.As(err, &tfa)
}

// describe turns err into the text surfaced through Flow.ErrorMessage.
func describe(err error) string {
	var tfa *TwoFactorRequiredError
	if errors.As(err, &tfa) {
		return tfa.Message
	}
	var failure *AuthFailureError
	if errors.As(err, &failure) {
		return failure.Message
	}
	return err.Error()
}
