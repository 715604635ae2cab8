package broker

import "github.com/bytedance/sonic"

// envelope is the wire payload every asynq task actually carries. It
// wraps the caller's domain payload plus whatever chain/chord
// continuation state the worker must act on after the task succeeds.
// This is how Chain/Chord are built on top of asynq, which has no
// native multi-step composition primitive of its own: the continuation
// travels inside the task rather than in a separate coordinator.
type envelope struct {
	Name        string      `json:"name"`
	Payload     []byte      `json:"payload"`
	Remaining   []GroupTask `json:"remaining,omitempty"`
	ChordID     string      `json:"chord_id,omitempty"`
	ChordBody   *GroupTask  `json:"chord_body,omitempty"`
	ChordTotal  int         `json:"chord_total,omitempty"`
}

func encodeEnvelope(e envelope) ([]byte, error) {
	return sonic.Marshal(e)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var e envelope
	err := sonic.Unmarshal(data, &e)
	return e, err
}
