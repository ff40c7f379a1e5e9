package models

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUnreadMessagesForUser(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")

	unread1 := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "first unread"}
	assert.NoError(t, db.Create(&unread1).Error)

	read := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "already read"}
	assert.NoError(t, db.Create(&read).Error)
	assert.NoError(t, db.Model(&read).Update("read", true).Error)

	unread2 := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "second unread"}
	assert.NoError(t, db.Create(&unread2).Error)

	// A message Bob sent must not count as unread for him
	outgoing := Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: "from bob"}
	assert.NoError(t, db.Create(&outgoing).Error)

	messages, err := UnreadMessagesForUser(db, bob.ID)
	assert.NoError(t, err)
	assert.Len(t, messages, 2, "Only unread incoming messages should be returned")

	for _, m := range messages {
		assert.Equal(t, bob.ID, m.ReceiverID)
		assert.False(t, m.Read)
		assert.Equal(t, "Alice", m.Sender.Name, "Sender identity should be preloaded")
		assert.Equal(t, "alice@example.com", m.Sender.Email)
	}

	count, err := CountUnreadMessagesForUser(db, bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = CountUnreadMessagesForUser(db, alice.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestThreadedMessagesForUser(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")

	root1 := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "root one"}
	assert.NoError(t, db.Create(&root1).Error)

	reply := Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: "reply", ParentMessageID: &root1.ID}
	assert.NoError(t, db.Create(&reply).Error)

	nested := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "nested reply", ParentMessageID: &reply.ID}
	assert.NoError(t, db.Create(&nested).Error)

	root2 := Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: "root two"}
	assert.NoError(t, db.Create(&root2).Error)

	threads, err := ThreadedMessagesForUser(db, alice.ID)
	assert.NoError(t, err)
	assert.Len(t, threads, 2, "Replies should not appear as top-level messages")

	assert.Equal(t, "root one", threads[0].Content)
	assert.Len(t, threads[0].Replies, 1)
	assert.Equal(t, "reply", threads[0].Replies[0].Content)
	assert.Len(t, threads[0].Replies[0].Replies, 1)
	assert.Equal(t, "nested reply", threads[0].Replies[0].Replies[0].Content)

	assert.Equal(t, "root two", threads[1].Content)
	assert.Empty(t, threads[1].Replies)

	// Identities are preloaded on every node
	assert.Equal(t, "Alice", threads[0].Sender.Name)
	assert.Equal(t, "Bob", threads[0].Receiver.Name)
}

func TestThreadedMessagesForConversation(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")

	conversation := Conversation{Participants: []User{alice, bob}}
	assert.NoError(t, db.Create(&conversation).Error)

	root := Message{SenderID: alice.ID, ReceiverID: bob.ID, ConversationID: &conversation.ID, Content: "in conversation"}
	assert.NoError(t, db.Create(&root).Error)

	reply := Message{SenderID: bob.ID, ReceiverID: alice.ID, ConversationID: &conversation.ID, Content: "conversation reply", ParentMessageID: &root.ID}
	assert.NoError(t, db.Create(&reply).Error)

	// Direct message outside the conversation must not leak in
	outside := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "direct"}
	assert.NoError(t, db.Create(&outside).Error)

	threads, err := ThreadedMessagesForConversation(db, conversation.ID)
	assert.NoError(t, err)
	assert.Len(t, threads, 1)
	assert.Equal(t, "in conversation", threads[0].Content)
	assert.Len(t, threads[0].Replies, 1)
	assert.Equal(t, "conversation reply", threads[0].Replies[0].Content)
}

func TestAssembleThreadsOrphanParent(t *testing.T) {
	parentID := uint(999)
	orphan := &Message{ID: 1, Content: "orphan", ParentMessageID: &parentID}

	roots := assembleThreads([]*Message{orphan})
	assert.Len(t, roots, 1, "A reply whose parent is out of scope should surface as a root")
	assert.Equal(t, "orphan", roots[0].Content)
}

// countingLogger wraps a GORM logger and counts executed statements.
type countingLogger struct {
	logger.Interface
	queries int64
}

func (l *countingLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	atomic.AddInt64(&l.queries, 1)
	l.Interface.Trace(ctx, begin, fc, err)
}

func (l *countingLogger) count() int64 {
	return atomic.LoadInt64(&l.queries)
}

func TestAttachmentKeysForUser(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")
	carol := createTestUser(t, db, "auth0|carol", "Carol", "carol@example.com")

	rootKey := "attachments/root.png"
	root := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "with attachment", AttachmentS3Key: &rootKey}
	assert.NoError(t, db.Create(&root).Error)

	replyKey := "attachments/reply.png"
	reply := Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: "reply with attachment", ParentMessageID: &root.ID, AttachmentS3Key: &replyKey}
	assert.NoError(t, db.Create(&reply).Error)

	plain := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "no attachment"}
	assert.NoError(t, db.Create(&plain).Error)

	otherKey := "attachments/other.png"
	other := Message{SenderID: bob.ID, ReceiverID: carol.ID, Content: "unrelated", AttachmentS3Key: &otherKey}
	assert.NoError(t, db.Create(&other).Error)

	keys, err := AttachmentKeysForUser(db, alice.ID)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{rootKey, replyKey}, keys, "Should cover the user's messages and their reply trees, nothing else")
}

func TestBatchDeleteIssuesSingleStatement(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")

	message := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "bulk removed"}
	assert.NoError(t, db.Create(&message).Error)

	cl := &countingLogger{Interface: logger.Default.LogMode(logger.Silent)}
	session := db.Session(&gorm.Session{Logger: cl})

	assert.NoError(t, session.Where("id = ?", message.ID).Delete(&Message{}).Error)
	assert.EqualValues(t, 1, cl.count(), "A batch delete carries no row identity and should not run the cascade queries")
}

func TestThreadedMessagesQueryCountIsConstant(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")

	countQueries := func(userID uint) int64 {
		cl := &countingLogger{Interface: logger.Default.LogMode(logger.Silent)}
		session := db.Session(&gorm.Session{Logger: cl})
		_, err := ThreadedMessagesForUser(session, userID)
		assert.NoError(t, err)
		return cl.count()
	}

	seed := func(n int) {
		for i := 0; i < n; i++ {
			root := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: fmt.Sprintf("root %d", i)}
			assert.NoError(t, db.Create(&root).Error)
			reply := Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: fmt.Sprintf("reply %d", i), ParentMessageID: &root.ID}
			assert.NoError(t, db.Create(&reply).Error)
		}
	}

	seed(2)
	small := countQueries(alice.ID)

	seed(6)
	large := countQueries(alice.ID)

	assert.Equal(t, small, large, "Query count must not grow with the number of messages")
}

func TestConversationsForUser(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")
	carol := createTestUser(t, db, "auth0|carol", "Carol", "carol@example.com")

	shared := Conversation{Participants: []User{alice, bob}}
	assert.NoError(t, db.Create(&shared).Error)

	other := Conversation{Participants: []User{bob, carol}}
	assert.NoError(t, db.Create(&other).Error)

	conversations, err := ConversationsForUser(db, alice.ID)
	assert.NoError(t, err)
	assert.Len(t, conversations, 1)
	assert.Equal(t, shared.ID, conversations[0].ID)
	assert.Len(t, conversations[0].Participants, 2)

	conversations, err = ConversationsForUser(db, bob.ID)
	assert.NoError(t, err)
	assert.Len(t, conversations, 2)
}

func TestIsConversationParticipant(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")
	carol := createTestUser(t, db, "auth0|carol", "Carol", "carol@example.com")

	conversation := Conversation{Participants: []User{alice, bob}}
	assert.NoError(t, db.Create(&conversation).Error)

	ok, err := IsConversationParticipant(db, conversation.ID, alice.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsConversationParticipant(db, conversation.ID, carol.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryForMessageOrder(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "auth0|alice", "Alice", "alice@example.com")
	bob := createTestUser(t, db, "auth0|bob", "Bob", "bob@example.com")

	message := Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "v1"}
	assert.NoError(t, db.Create(&message).Error)

	message.Content = "v2"
	assert.NoError(t, db.Save(&message).Error)
	message.Content = "v3"
	assert.NoError(t, db.Save(&message).Error)

	history, err := HistoryForMessage(db, message.ID)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	contents := []string{history[0].OldContent, history[1].OldContent}
	assert.ElementsMatch(t, []string{"v1", "v2"}, contents)
	assert.NotNil(t, history[0].EditedBy, "Editor identity should be preloaded")
}
