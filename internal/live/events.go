package live

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeCollectionChanged MessageType = "collection.changed"
	TypeInquiryReceived   MessageType = "inquiry.received"
)

// Message is the envelope of every pushed event.
type Message struct {
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	Collection string      `json:"collection,omitempty"`
	Count      int         `json:"count"`
	Payload    any         `json:"payload,omitempty"`
}

// Broadcaster encodes domain events onto a Hub.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// CollectionChanged announces that collection now holds count records.
func (b *Broadcaster) CollectionChanged(collection string, count int) {
	b.send(Message{Type: TypeCollectionChanged, Collection: collection, Count: count})
}

// InquiryReceived announces a new public inquiry.
func (b *Broadcaster) InquiryReceived(inquiry any) {
	b.send(Message{Type: TypeInquiryReceived, Collection: "inquiries", Count: 1, Payload: inquiry})
}

func (b *Broadcaster) send(msg Message) {
	msg.Timestamp = b.now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		b.hub.logger.Error("failed to encode live message", "type", msg.Type, "error", err)
		return
	}
	b.hub.Broadcast(data)
}
