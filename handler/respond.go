package handler

import (
	"github.com/gin-gonic/gin"
)

// Error codes clients branch on
const (
	CodePlanLimit        = "PLAN_LIMIT_EXCEEDED"
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeDuplicateEmail   = "EMAIL_TAKEN"
	CodeDuplicateSlug    = "SLUG_TAKEN"
	CodeInvalidSignature = "INVALID_SIGNATURE"
)

// apiError writes the coded error envelope. Simple handler-local failures
// keep the plain {"error": "..."} shape; anything a client programmatically
// branches on goes through here.
func apiError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
