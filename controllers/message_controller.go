package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Adika-Junior/messaging-api/config"
	"github.com/Adika-Junior/messaging-api/models"
	"github.com/Adika-Junior/messaging-api/services"
)

// SendMessageRequest represents the request body for sending a direct message
type SendMessageRequest struct {
	ReceiverID      uint   `json:"receiver_id" binding:"required"`
	Content         string `json:"content" binding:"required"`
	ParentMessageID *uint  `json:"parent_message_id"`
	AttachmentS3Key string `json:"attachment_s3_key"`
}

// EditMessageRequest represents the request body for editing a message
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage handles POST /api/messaging/messages - sends a direct message.
// Creating the message also creates the receiver's notification; the two
// succeed or fail together.
func SendMessage(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()

	var receiver models.User
	if err := db.First(&receiver, req.ReceiverID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RECEIVER_NOT_FOUND",
				"message": "Receiver not found",
			},
		})
		return
	}

	var conversationID *uint
	if req.ParentMessageID != nil {
		var parent models.Message
		if err := db.First(&parent, *req.ParentMessageID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "PARENT_NOT_FOUND",
					"message": "Parent message not found",
				},
			})
			return
		}

		// Only the two parties of a message may reply to it
		if parent.SenderID != user.ID && parent.ReceiverID != user.ID {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "You do not have permission to reply to this message",
				},
			})
			return
		}

		// Replies stay in the parent's conversation
		conversationID = parent.ConversationID
	}

	message := models.Message{
		SenderID:        user.ID,
		ReceiverID:      receiver.ID,
		ConversationID:  conversationID,
		Content:         req.Content,
		ParentMessageID: req.ParentMessageID,
	}
	if req.AttachmentS3Key != "" {
		message.AttachmentS3Key = &req.AttachmentS3Key
	}

	if err := db.Create(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create message",
			},
		})
		return
	}

	// Load the sender/receiver relationships to return complete data
	if err := db.Preload("Sender").Preload("Receiver").First(&message, message.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load message details",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// ListMessages handles GET /api/messaging/messages - lists the caller's
// messages as reply threads. Responses are cached per user for the
// configured TTL.
func ListMessages(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	messages, err := models.ThreadedMessagesForUser(db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch messages",
			},
		})
		return
	}

	attachAttachmentURLs(messages)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

// UnreadMessages handles GET /api/messaging/messages/unread - lists the
// caller's unread messages along with their count.
func UnreadMessages(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()

	messages, err := models.UnreadMessagesForUser(db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch unread messages",
			},
		})
		return
	}

	count, err := models.CountUnreadMessagesForUser(db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to count unread messages",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"count":    count,
			"messages": messages,
		},
	})
}

// ListMessageHistory handles GET /api/messaging/messages/:id/history - lists
// the prior versions of a message. Only the two parties of the message may
// view its history.
func ListMessageHistory(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db := config.GetDB()

	var message models.Message
	if err := db.First(&message, messageID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MESSAGE_NOT_FOUND",
				"message": "Message not found",
			},
		})
		return
	}

	if message.SenderID != user.ID && message.ReceiverID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to view this message's history",
			},
		})
		return
	}

	history, err := models.HistoryForMessage(db, message.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch message history",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    history,
	})
}

// EditMessage handles PUT /api/messaging/messages/:id - replaces a message's
// content. Only the sender may edit. A content-changing edit appends the
// previous content to the message's history and latches the edited flag.
func EditMessage(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()

	var message models.Message
	if err := db.First(&message, messageID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MESSAGE_NOT_FOUND",
				"message": "Message not found",
			},
		})
		return
	}

	if message.SenderID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only the sender can edit a message",
			},
		})
		return
	}

	message.Content = req.Content
	if err := db.Save(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update message",
			},
		})
		return
	}

	if err := db.Preload("Sender").Preload("Receiver").First(&message, message.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load message details",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    message,
	})
}

// MarkMessageRead handles POST /api/messaging/messages/:id/read - marks a
// message as read. Only the receiver may mark it.
func MarkMessageRead(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db := config.GetDB()

	var message models.Message
	if err := db.First(&message, messageID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MESSAGE_NOT_FOUND",
				"message": "Message not found",
			},
		})
		return
	}

	if message.ReceiverID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only the receiver can mark a message as read",
			},
		})
		return
	}

	if err := db.Model(&message).Update("read", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to mark message as read",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    message,
	})
}

// attachAttachmentURLs fills in presigned attachment URLs for a message tree.
// It is a no-op when attachment storage is not configured.
func attachAttachmentURLs(messages []*models.Message) {
	s3Service := services.GetS3Service()
	if s3Service == nil {
		return
	}

	for _, m := range messages {
		if m.AttachmentS3Key != nil && *m.AttachmentS3Key != "" {
			url, err := s3Service.GetPresignedURL(*m.AttachmentS3Key)
			if err != nil {
				log.Printf("Failed to presign attachment %s: %v", *m.AttachmentS3Key, err)
			} else if url != "" {
				m.AttachmentURL = &url
			}
		}
		attachAttachmentURLs(m.Replies)
	}
}
