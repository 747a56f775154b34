package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account.
//
// OTP expiries are epoch milliseconds; an empty OTP with a zero expiry means
// no code is outstanding for that purpose.
type User struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Email              string             `bson:"email" json:"email"`
	PasswordHash       string             `bson:"password" json:"-"`
	IsAccountVerified  bool               `bson:"isAccountVerified" json:"isAccountVerified"`
	VerifyOTP          string             `bson:"verifyOtp" json:"-"`
	VerifyOTPExpiresAt int64              `bson:"verifyOtpExpireAt" json:"-"`
	ResetOTP           string             `bson:"resetOtp" json:"-"`
	ResetOTPExpiresAt  int64              `bson:"resetOtpExpireAt" json:"-"`
	Version            int64              `bson:"version" json:"-"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ClearVerifyOTP drops any outstanding verification code.
func (u *User) ClearVerifyOTP() {
	u.VerifyOTP = ""
	u.VerifyOTPExpiresAt = 0
}

// ClearResetOTP drops any outstanding password reset code.
func (u *User) ClearResetOTP() {
	u.ResetOTP = ""
	u.ResetOTPExpiresAt = 0
}
