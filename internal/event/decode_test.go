package event

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamforge/provisiond/internal/model"
)

func encode(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func validEvent() map[string]any {
	return map[string]any{
		"eventId":    "ev-1",
		"eventType":  TypeUploaded,
		"version":    "1",
		"occurredAt": "2026-08-24T10:00:00Z",
		"data": map[string]any{
			"contentId":       "c1",
			"tenantId":        "t",
			"contentType":     "reel",
			"sourceGcsUri":    "gs://b/a",
			"checksum":        "s1",
			"durationSeconds": 10,
			"ingestRegion":    "us",
		},
	}
}

func TestDecodeHappyPath(t *testing.T) {
	msg := PushMessage{Data: encode(t, validEvent()), MessageID: "m1"}
	ev, err := Decode(msg)
	require.NoError(t, err)
	require.Equal(t, "ev-1", ev.EventID)
	require.Equal(t, "c1", ev.Data.ContentID)
	require.Equal(t, model.ClassificationReel, ev.Data.ContentType)
	require.Equal(t, "gs://b/a", ev.Data.Source())
}

func TestDecodeIgnoresUnknownTopLevelFields(t *testing.T) {
	raw := validEvent()
	raw["somethingNew"] = map[string]any{"a": 1}
	_, err := Decode(PushMessage{Data: encode(t, raw)})
	require.NoError(t, err)
}

func TestDecodeRejectsBadBase64(t *testing.T) {
	_, err := Decode(PushMessage{Data: "%%%not-base64%%%"})
	require.ErrorIs(t, err, ErrBadEncoding)
	require.True(t, Permanent(err))
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	_, err := Decode(PushMessage{Data: base64.StdEncoding.EncodeToString([]byte("{nope"))})
	require.ErrorIs(t, err, ErrBadJSON)
	require.True(t, Permanent(err))
}

func TestDecodeRejectsOtherEventTypes(t *testing.T) {
	raw := validEvent()
	raw["eventType"] = "media.reuploaded"
	_, err := Decode(PushMessage{Data: encode(t, raw)})
	require.ErrorIs(t, err, ErrUnsupportedEventType)
	require.True(t, Permanent(err))
}

func TestDecodeRejectsInvalidPayload(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(data map[string]any)
	}{
		{"missing contentId", func(d map[string]any) { delete(d, "contentId") }},
		{"missing checksum", func(d map[string]any) { delete(d, "checksum") }},
		{"missing source", func(d map[string]any) { delete(d, "sourceGcsUri") }},
		{"bad contentType", func(d map[string]any) { d["contentType"] = "movie" }},
		{"zero duration", func(d map[string]any) { d["durationSeconds"] = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validEvent()
			tc.mutate(raw["data"].(map[string]any))
			_, err := Decode(PushMessage{Data: encode(t, raw)})
			require.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestEncodeDecodeRoundTripPreservesFields(t *testing.T) {
	ev := &UploadCompleted{
		EventID:    "ev-7",
		EventType:  TypeUploaded,
		Version:    "1",
		OccurredAt: "2026-08-24T10:00:00Z",
		Data: Payload{
			ContentID:       "c7",
			TenantID:        "tenant-7",
			ContentType:     model.ClassificationSeries,
			SourceURI:       "gs://bucket/asset",
			Checksum:        "sum-7",
			DurationSeconds: 90,
			IngestRegion:    "eu",
			DRM:             &model.DRM{KeyID: "k", LicenseServer: "https://lic"},
			Availability:    &model.AvailabilityWindow{StartsAt: "2026-08-24T00:00:00Z"},
			GeoRestrictions: &model.GeoRestrictions{Allow: []string{"AT", "DE"}},
		},
	}
	data, err := Encode(ev)
	require.NoError(t, err)

	back, err := Decode(PushMessage{Data: data})
	require.NoError(t, err)
	require.Equal(t, ev, back)
}

func TestAttemptDefaultsToOne(t *testing.T) {
	require.Equal(t, 1, PushMessage{}.Attempt())
	require.Equal(t, 1, PushMessage{DeliveryAttempt: -2}.Attempt())
	require.Equal(t, 3, PushMessage{DeliveryAttempt: 3}.Attempt())
}
