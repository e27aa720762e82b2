package chat

import (
	"outliers_server/metrics"
)

// Notice is a transient, user-facing failure message. Messages are generic
// and do not reveal whether a call was forbidden, missing or offline.
type Notice struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

var noticeText = map[string]string{
	"subscribe":          "Live updates are unavailable right now.",
	"list_conversations": "Could not load your conversations. Please try again.",
	"fetch_messages":     "Could not load messages. Please try again.",
	"start_conversation": "Could not open the conversation. Please try again.",
	"send_message":       "Your message could not be sent.",
	"edit_message":       "Could not edit the message.",
	"delete_message":     "Could not delete the message.",
	"like_message":       "Could not update the like.",
	"mark_read":          "Could not update read status.",
}

// fail logs err, counts it, surfaces a notice and returns err unchanged.
func (s *Store) fail(op string, err error) error {
	metrics.RemoteFailures.WithLabelValues(op).Inc()
	s.log.Warn("❌ chat operation failed", "op", op, "error", err)
	text, ok := noticeText[op]
	if !ok {
		text = "Something went wrong. Please try again."
	}
	s.notify(Notice{Op: op, Message: text})
	return err
}
