package push

import (
	"testing"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCompose_Table(t *testing.T) {
	pid, _ := primitive.ObjectIDFromHex("64b0000000000000000000aa")

	tests := []struct {
		typ   string
		title string
		body  string
	}{
		{models.NotifPrayerReaction, "Someone is praying!", `Ann is praying for "test"`},
		{models.NotifPrayerUpdate, "Prayer Update", `Ann added an update to "test"`},
		{models.NotifGroupInvite, "Group Invitation", "Ann invited you to join a group."},
		{models.NotifPrayerShared, "New Notification", "You have a new message in Prayer Odyssey."},
		{models.NotifPrayerAnswered, "New Notification", "You have a new message in Prayer Odyssey."},
		{"something_else", "New Notification", "You have a new message in Prayer Odyssey."},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			msg := Compose(models.Notification{
				Type:          tt.typ,
				SenderName:    "Ann",
				PrayerID:      &pid,
				PrayerSummary: "test",
			})
			assert.Equal(t, tt.title, msg.Title)
			assert.Equal(t, tt.body, msg.Body)
			assert.Equal(t, map[string]string{"url": "/prayers/64b0000000000000000000aa"}, msg.Data)
		})
	}
}

func TestDeepLink_NoPrayer(t *testing.T) {
	assert.Equal(t, "/", DeepLink(models.Notification{Type: models.NotifGroupInvite}))

	zero := primitive.NilObjectID
	assert.Equal(t, "/", DeepLink(models.Notification{PrayerID: &zero}))
}
