package mail

import "fmt"

// Kind names an email template; it is also used as a metrics label.
type Kind string

const (
	KindWelcome   Kind = "welcome"
	KindVerifyOTP Kind = "verify_otp"
	KindResetOTP  Kind = "reset_otp"
)

// Welcome is sent after a successful registration.
func Welcome(from, to string) Message {
	return Message{
		From:    from,
		To:      to,
		Subject: "Welcome to mailauth",
		Body:    fmt.Sprintf("Welcome!\n\nYour account has been created with the email address %s.\n", to),
	}
}

// VerifyOTP carries the account verification code.
func VerifyOTP(from, to, code string) Message {
	return Message{
		From:    from,
		To:      to,
		Subject: "Account verification OTP",
		Body:    fmt.Sprintf("Your OTP is %s. Verify your account using this OTP.\n\nIt expires in 24 hours.\n", code),
	}
}

// ResetOTP carries the password reset code.
func ResetOTP(from, to, code string) Message {
	return Message{
		From:    from,
		To:      to,
		Subject: "Password reset OTP",
		Body: fmt.Sprintf("Your OTP for resetting your password is %s.\n"+
			"Use this OTP to proceed with resetting your password.\n\nIt expires in 15 minutes.\n", code),
	}
}
