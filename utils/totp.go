package utils

import (
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "Finance Tracker"

// GenerateTOTPSecret returns a new secret and its otpauth:// provisioning URL.
func GenerateTOTPSecret(email string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: email,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

func VerifyTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
