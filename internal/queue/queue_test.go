package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

func sampleToken() *model.Token {
	entry := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &model.Token{
		ID:           id.NewTokenID(),
		TokenNumber:  "T1ABC",
		LotID:        id.NewLotID(),
		SlotID:       id.NewSlotID(),
		VehiclePlate: "KA01AB1234",
		EntryTime:    entry,
		ExitTime:     null.TimeFrom(entry.Add(90 * time.Minute)),
		Status:       model.TokenCompleted,
	}
}

func TestNewTokenEvent(t *testing.T) {
	tok := sampleToken()
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	ev := NewTokenEvent(EventSessionCompleted, tok, at)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, tok.ID.String(), ev.TokenID)
	assert.Equal(t, "COMPLETED", ev.Status)
	assert.Equal(t, tok.ExitTime.Time, ev.ExitTime)
	assert.Equal(t, at, ev.OccurredAt)
	assert.NotEqual(t, ev.ID, NewTokenEvent(EventSessionCompleted, tok, at).ID)
}

func TestFormatAuditLine(t *testing.T) {
	ev := ParkingEvent{
		Type:          EventSessionCompleted,
		TokenID:       "tok_1",
		TokenNumber:   "T1",
		LotID:         "lot_1",
		SlotID:        "slot_1",
		VehiclePlate:  "KA01",
		Status:        "COMPLETED",
		ReceiptNumber: "RCP-20260314-0A1B2C3D",
		NetAmount:     94,
		Currency:      "inr",
		OccurredAt:    time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}
	assert.Equal(t,
		`[2026-03-14T10:30:00Z] session.completed | token=tok_1 | number=T1 | lot=lot_1 | slot=slot_1 | status=COMPLETED | plate="KA01" | receipt=RCP-20260314-0A1B2C3D | net=94 inr`+"\n",
		FormatAuditLine(ev))

	ev.VehiclePlate, ev.ReceiptNumber = "", ""
	assert.Equal(t,
		`[2026-03-14T10:30:00Z] session.completed | token=tok_1 | number=T1 | lot=lot_1 | slot=slot_1 | status=COMPLETED`+"\n",
		FormatAuditLine(ev))
}

func TestAppendAudit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	ev := NewTokenEvent(EventSessionStarted, sampleToken(), time.Now())
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, appendAudit(dir, body))
	require.NoError(t, appendAudit(dir, body))
	raw, err := os.ReadFile(filepath.Join(dir, "parking.log"))
	require.NoError(t, err)
	assert.Equal(t, FormatAuditLine(ev)+FormatAuditLine(ev), string(raw))

	assert.Error(t, appendAudit(dir, []byte("{not json")))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), ParkingEvent{}))
}
