package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"math/big"
	"time"

	"github.com/pquerna/otp"
)

// OTP lifetimes. Verification is low risk and long lived; reset is short lived.
const (
	VerifyOTPTTL = 24 * time.Hour
	ResetOTPTTL  = 15 * time.Minute
)

// OTPDigits is the length of issued codes.
const OTPDigits = otp.DigitsSix

const (
	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// GenerateOTP returns a code drawn uniformly from [100000, 999999].
func GenerateOTP() (string, error) {
	return generateOTP(rand.Reader)
}

func generateOTP(r io.Reader) (string, error) {
	n, err := rand.Int(r, otpSpan)
	if err != nil {
		return "", err
	}
	return OTPDigits.Format(int32(n.Int64() + otpMin)), nil
}

// checkOTP validates a submitted code against the stored code and its expiry
// (epoch millis). An empty stored code never matches.
func checkOTP(stored string, expiresAt int64, submitted string, now time.Time) error {
	if stored == "" || len(submitted) != OTPDigits.Length() ||
		subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return authError(MsgInvalidOTP)
	}
	if !now.Before(time.UnixMilli(expiresAt)) {
		return authError(MsgOTPExpired)
	}
	return nil
}
