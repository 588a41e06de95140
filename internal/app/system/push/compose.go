// internal/app/system/push/compose.go
package push

import (
	"fmt"

	"github.com/dalemusser/prayerodyssey/internal/domain/models"
)

// Message is the transport-neutral push payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Compose builds the push message for a notification record. Title and body
// come from a fixed table keyed by type; data carries the deep link.
func Compose(n models.Notification) Message {
	var title, body string
	switch n.Type {
	case models.NotifPrayerReaction:
		title = "Someone is praying!"
		body = fmt.Sprintf("%s is praying for \"%s\"", n.SenderName, n.PrayerSummary)
	case models.NotifPrayerUpdate:
		title = "Prayer Update"
		body = fmt.Sprintf("%s added an update to \"%s\"", n.SenderName, n.PrayerSummary)
	case models.NotifGroupInvite:
		title = "Group Invitation"
		body = fmt.Sprintf("%s invited you to join a group.", n.SenderName)
	default:
		title = "New Notification"
		body = "You have a new message in Prayer Odyssey."
	}
	return Message{
		Title: title,
		Body:  body,
		Data:  map[string]string{"url": DeepLink(n)},
	}
}

// DeepLink is the in-app path a tap on the notification opens.
func DeepLink(n models.Notification) string {
	if n.PrayerID != nil && !n.PrayerID.IsZero() {
		return "/prayers/" + n.PrayerID.Hex()
	}
	return "/"
}
