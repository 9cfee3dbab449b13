package messaging

import (
	"encoding/json"
	"time"

	"crudflow/errors"
)

// Envelope 跨进程传输时的消息线格式，时间戳为 UnixNano
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ToEnvelope 序列化载荷并生成线格式
func ToEnvelope(msg IMessage) (*Envelope, error) {
	payload, err := json.Marshal(msg.GetPayload())
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeQueue, "消息载荷序列化失败")
	}
	ts := msg.GetTimestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	env := &Envelope{
		ID:        msg.GetID(),
		Type:      msg.GetType(),
		Timestamp: ts.UnixNano(),
		Payload:   payload,
		Metadata:  msg.GetMetadata(),
	}
	if m, ok := msg.(*Message); ok {
		env.UserID = m.UserID
		env.RequestID = m.RequestID
	}
	return env, nil
}

// Message 还原为 *Message，载荷解码为通用 JSON 值
func (e *Envelope) Message() (*Message, error) {
	var payload any
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeQueue, "消息载荷解码失败")
		}
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &Message{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: time.Unix(0, e.Timestamp),
		Payload:   payload,
		Metadata:  metadata,
		UserID:    e.UserID,
		RequestID: e.RequestID,
	}, nil
}

// Marshal 编码消息
func Marshal(msg IMessage) ([]byte, error) {
	env, err := ToEnvelope(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal 解码消息
func Unmarshal(data []byte) (*Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeQueue, "消息解码失败")
	}
	return env.Message()
}

// DecodePayload 将通用载荷（如 map[string]any）转换为具体类型
func DecodePayload(msg IMessage, target any) error {
	if raw, ok := msg.GetPayload().(json.RawMessage); ok {
		return json.Unmarshal(raw, target)
	}
	data, err := json.Marshal(msg.GetPayload())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
