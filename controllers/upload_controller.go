package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Adika-Junior/messaging-api/services"
	"github.com/Adika-Junior/messaging-api/utils"
)

// UploadAttachment handles POST /api/attachments - uploads a message
// attachment to S3 and returns its key plus a presigned URL. The key can be
// passed back in a send-message request.
func UploadAttachment(c *gin.Context) {
	if _, ok := getCurrentUser(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Attachment file is required",
			},
		})
		return
	}

	if err := utils.ValidateAttachmentFile(fileHeader); err != nil {
		code := "VALIDATION_ERROR"
		var attachmentErr *utils.AttachmentError
		if errors.As(err, &attachmentErr) {
			code = attachmentErr.Code
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	s3Service := services.GetS3Service()
	if s3Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ATTACHMENTS_DISABLED",
				"message": "Attachment storage is not configured",
			},
		})
		return
	}

	s3Key, err := s3Service.UploadFile(fileHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_ERROR",
				"message": "Failed to upload attachment",
			},
		})
		return
	}

	url, err := s3Service.GetPresignedURL(s3Key)
	if err != nil {
		// The upload succeeded; the caller can still use the key
		log.Printf("Failed to presign attachment %s: %v", s3Key, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"attachment_s3_key": s3Key,
			"attachment_url":    url,
		},
	})
}

// cleanupAttachments removes stored attachment objects whose messages have
// been deleted. Best effort: the rows are already gone, so failures are
// logged rather than surfaced.
func cleanupAttachments(s3Keys []string) {
	s3Service := services.GetS3Service()
	if s3Service == nil {
		return
	}

	for _, key := range s3Keys {
		if err := s3Service.DeleteFile(key); err != nil {
			log.Printf("Failed to delete attachment %s: %v", key, err)
		}
	}
}
