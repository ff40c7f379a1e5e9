package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Adika-Junior/messaging-api/config"
	"github.com/Adika-Junior/messaging-api/models"
)

// CreateConversationRequest represents the request body for creating a conversation
type CreateConversationRequest struct {
	ParticipantIDs []uint `json:"participant_ids" binding:"required,min=1"`
}

// AddParticipantRequest represents the request body for adding a participant
type AddParticipantRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// SendConversationMessageRequest represents the request body for sending a
// message into a conversation
type SendConversationMessageRequest struct {
	Content         string `json:"content" binding:"required"`
	ReceiverID      uint   `json:"receiver_id"`
	ParentMessageID *uint  `json:"parent_message_id"`
	AttachmentS3Key string `json:"attachment_s3_key"`
}

// ListConversations handles GET /api/conversations - lists the caller's conversations
func ListConversations(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	conversations, err := models.ConversationsForUser(db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch conversations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    conversations,
	})
}

// CreateConversation handles POST /api/conversations - creates a conversation
// between the caller and the listed participants
func CreateConversation(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
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

	// Dedupe requested ids and make sure the caller is included
	wanted := make(map[uint]bool, len(req.ParticipantIDs)+1)
	for _, id := range req.ParticipantIDs {
		wanted[id] = true
	}
	wanted[user.ID] = true

	ids := make([]uint, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}

	var participants []models.User
	if err := db.Where("id IN ?", ids).Find(&participants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load participants",
			},
		})
		return
	}
	if len(participants) != len(ids) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PARTICIPANT_NOT_FOUND",
				"message": "One or more participants do not exist",
			},
		})
		return
	}

	conversation := models.Conversation{Participants: participants}
	if err := db.Create(&conversation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create conversation",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    conversation,
	})
}

// AddParticipant handles POST /api/conversations/:id/participants - adds a
// user to a conversation. Only existing participants may add others.
func AddParticipant(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	conversation, ok := requireConversationAccess(c, user)
	if !ok {
		return
	}

	var req AddParticipantRequest
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

	var newParticipant models.User
	if err := db.First(&newParticipant, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User not found",
			},
		})
		return
	}

	if err := db.Model(conversation).Association("Participants").Append(&newParticipant); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to add participant",
			},
		})
		return
	}

	if err := db.Preload("Participants").First(conversation, conversation.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load conversation details",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    conversation,
	})
}

// ListConversationMessages handles GET /api/conversations/:id/messages -
// lists a conversation's messages as reply threads. Responses are cached per
// user for the configured TTL.
func ListConversationMessages(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	conversation, ok := requireConversationAccess(c, user)
	if !ok {
		return
	}

	db := config.GetDB()
	messages, err := models.ThreadedMessagesForConversation(db, conversation.ID)
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

// SendConversationMessage handles POST /api/conversations/:id/messages -
// sends a message into a conversation. When the conversation has exactly two
// participants the receiver is inferred; otherwise receiver_id is required.
func SendConversationMessage(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	conversation, ok := requireConversationAccess(c, user)
	if !ok {
		return
	}

	var req SendConversationMessageRequest
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

	receiverID, ok := resolveConversationReceiver(c, conversation, user, req.ReceiverID)
	if !ok {
		return
	}

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
		if parent.ConversationID == nil || *parent.ConversationID != conversation.ID {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_PARENT",
					"message": "Parent message belongs to a different conversation",
				},
			})
			return
		}
	}

	message := models.Message{
		SenderID:        user.ID,
		ReceiverID:      receiverID,
		ConversationID:  &conversation.ID,
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

// requireConversationAccess loads the conversation in the :id parameter and
// verifies the caller participates in it, writing the error response itself
// when either check fails. Authorization runs before any read-path query.
func requireConversationAccess(c *gin.Context, user *models.User) (*models.Conversation, bool) {
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	db := config.GetDB()

	var conversation models.Conversation
	if err := db.First(&conversation, conversationID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONVERSATION_NOT_FOUND",
				"message": "Conversation not found",
			},
		})
		return nil, false
	}

	isParticipant, err := models.IsConversationParticipant(db, conversation.ID, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to check conversation access",
			},
		})
		return nil, false
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You are not a participant in this conversation",
			},
		})
		return nil, false
	}

	return &conversation, true
}

// resolveConversationReceiver decides who a conversation message is addressed
// to. An explicit receiver must be a participant; with no explicit receiver a
// two-party conversation implies the other participant.
func resolveConversationReceiver(c *gin.Context, conversation *models.Conversation, sender *models.User, receiverID uint) (uint, bool) {
	db := config.GetDB()

	if receiverID != 0 {
		isParticipant, err := models.IsConversationParticipant(db, conversation.ID, receiverID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to check receiver",
				},
			})
			return 0, false
		}
		if !isParticipant {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_RECEIVER",
					"message": "Receiver is not a participant in this conversation",
				},
			})
			return 0, false
		}
		return receiverID, true
	}

	var participantIDs []uint
	if err := db.Table("conversation_participants").
		Where("conversation_id = ?", conversation.ID).
		Pluck("user_id", &participantIDs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load participants",
			},
		})
		return 0, false
	}

	if len(participantIDs) == 2 {
		for _, id := range participantIDs {
			if id != sender.ID {
				return id, true
			}
		}
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "RECEIVER_REQUIRED",
			"message": "receiver_id is required for conversations with more than two participants",
		},
	})
	return 0, false
}
