package ingest

import "sync"

// snapshotMessage is the canonical normalized book schema pushed by the
// venue adapters. Levels are [price, size] string tuples so decimal
// precision survives the wire.
type snapshotMessage struct {
	Venue     string      `json:"venue"`
	Pair      string      `json:"pair"`
	Bids      [][2]string `json:"bids"`
	Asks      [][2]string `json:"asks"`
	Timestamp int64       `json:"ts"` // unix ms capture time
}

// messagePool reduces allocation churn on the read path; books can carry
// dozens of levels per tick.
var messagePool = sync.Pool{
	New: func() interface{} {
		return &snapshotMessage{}
	},
}

// acquireMessage gets a snapshotMessage from the pool. The returned
// message has zero values and must be initialized by the decoder.
func acquireMessage() *snapshotMessage {
	return messagePool.Get().(*snapshotMessage)
}

// releaseMessage returns a snapshotMessage to the pool after resetting it.
func releaseMessage(msg *snapshotMessage) {
	if msg == nil {
		return
	}
	msg.Venue = ""
	msg.Pair = ""
	msg.Bids = msg.Bids[:0]
	msg.Asks = msg.Asks[:0]
	msg.Timestamp = 0

	messagePool.Put(msg)
}
