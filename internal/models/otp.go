package models

import "time"

// OTP is the document shape used when one time passwords are kept in MongoDB.
type OTP struct {
	Email     string    `bson:"_id"`
	CodeHash  string    `bson:"codeHash"`
	Attempts  int       `bson:"attempts"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// OTPIssueWindow counts codes sent to one email until ExpiresAt.
type OTPIssueWindow struct {
	Email     string    `bson:"_id"`
	Count     int       `bson:"count"`
	ExpiresAt time.Time `bson:"expiresAt"`
}
