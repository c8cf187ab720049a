package httpapi

import (
	"time"

	"github.com/dmitrijs2005/r2relay/internal/server/tokens"
)

const defaultDays = 30

type registerRequest struct {
	Username      string `json:"username" binding:"required,min=3,max=50"`
	Email         string `json:"email" binding:"required,email"`
	ExpiresInDays *int   `json:"expires_in_days"`
}

type registerResponse struct {
	Status      string  `json:"status"`
	ID          string  `json:"id"`
	Token       string  `json:"token"`
	CreatedAt   string  `json:"created_at"`
	ExpiresAt   *string `json:"expires_at"`
	IsPermanent bool    `json:"is_permanent"`
}

type renewRequest struct {
	Token      string `json:"token" binding:"required"`
	ExtendDays *int   `json:"extend_days"`
}

type renewResponse struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	Token        string  `json:"token"`
	OldStatus    string  `json:"old_status"`
	IsPermanent  bool    `json:"is_permanent"`
	NewExpiresAt *string `json:"new_expires_at,omitempty"`
	ExtendedDays *int    `json:"extended_days,omitempty"`
}

type uploadRequest struct {
	FileURL         string `json:"fileUrl" binding:"required,url"`
	BucketName      string `json:"bucketName" binding:"required"`
	ObjectKey       string `json:"objectKey" binding:"required"`
	Endpoint        string `json:"endpoint" binding:"required,url"`
	AccessKeyID     string `json:"accessKeyId" binding:"required"`
	SecretAccessKey string `json:"secretAccessKey" binding:"required"`
	CustomDomain    string `json:"customdomain" binding:"omitempty,url"`
}

// envelope is the body of every upload response and every error.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func daysOrDefault(v *int) int {
	if v == nil {
		return defaultDays
	}
	return *v
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.In(time.Local).Format(tokens.TimeLayout)
	return &s
}
