package chat

import "beacon-chat/internal/models"

// notify records a user-visible notification and publishes it
func (c *Controller) notify(n models.Notification) {
	if n.ID == "" {
		n.ID = c.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.notifications = append(c.notifications, n)
	if len(c.notifications) > maxNotifications {
		c.notifications = c.notifications[len(c.notifications)-maxNotifications:]
	}
	c.mu.Unlock()

	c.store.Publish(Change{Kind: ChangeNotification, ConversationID: n.ConversationID, MessageID: n.MessageID, Notification: &n})
}

// Notify publishes a notification raised outside the controller
func (c *Controller) Notify(level models.NotificationLevel, title, message string) {
	c.notify(models.Notification{Level: level, Title: title, Message: message})
}

// Notifications returns the most recent notifications, oldest first
func (c *Controller) Notifications() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Notification(nil), c.notifications...)
}
