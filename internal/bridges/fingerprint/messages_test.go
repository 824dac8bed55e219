package fingerprint

import (
	"encoding/json"
	"testing"
)

func TestCommandMessage_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CommandMessage
		wantErr bool
	}{
		{
			name:  "string finger id",
			input: `{"id":"a","finger_id":"7","source":"ui"}`,
			want:  CommandMessage{ID: "a", FingerID: "7", Source: "ui"},
		},
		{
			name:  "numeric finger id",
			input: `{"id":"b","finger_id":12}`,
			want:  CommandMessage{ID: "b", FingerID: "12"},
		},
		{
			name:  "null finger id",
			input: `{"id":"c","finger_id":null}`,
			want:  CommandMessage{ID: "c"},
		},
		{
			name:  "absent finger id",
			input: `{"id":"d"}`,
			want:  CommandMessage{ID: "d"},
		},
		{
			name:    "boolean finger id",
			input:   `{"finger_id":true}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `nope`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got CommandMessage
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewAckMessage(t *testing.T) {
	id := 4
	ok := NewAckMessage("c1", CommandEnroll, Ack{Command: CommandEnroll, FingerID: &id, Message: "ENROLL command sent"}, nil)
	if ok.Status != AckAccepted || ok.Message != "ENROLL command sent" || ok.FingerID == nil || ok.Error != nil {
		t.Errorf("accepted ack = %+v", ok)
	}
	if ok.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	rejected := NewAckMessage("c2", CommandVerify, Ack{}, ErrLinkUnavailable)
	if rejected.Status != AckRejected || rejected.Error == nil || rejected.Error.Code != CodeLinkUnavailable {
		t.Errorf("rejected ack = %+v", rejected)
	}
}

func TestNewEventMessage(t *testing.T) {
	msg := NewEventMessage("fp", RawMessage{Text: "hello"})
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["event"] != EventRawMessage {
		t.Errorf("event = %v", got["event"])
	}
	payload, _ := got["payload"].(map[string]any)
	if payload["message"] != "hello" {
		t.Errorf("payload = %v", got["payload"])
	}
}
