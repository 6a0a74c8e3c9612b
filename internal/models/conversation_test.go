package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationID_OrderIndependent(t *testing.T) {
	assert.Equal(t, "alice--bob", ConversationID("alice", "bob"))
	assert.Equal(t, "alice--bob", ConversationID("bob", "alice"))
	assert.Equal(t, "carol--carol", ConversationID("carol", "carol"))
}
