package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithMessageID(ctx, "msg-1")
	ctx = ContextWithContentID(ctx, "content-1")

	require.Equal(t, "req-1", RequestIDFromContext(ctx))
	require.Equal(t, "msg-1", MessageIDFromContext(ctx))
	require.Equal(t, "content-1", ContentIDFromContext(ctx))
}

func TestContextAccessorsNilSafe(t *testing.T) {
	require.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck // nil context is the case under test
	require.Empty(t, MessageIDFromContext(context.Background()))
	require.Empty(t, ContentIDFromContext(context.Background()))
}

func TestWithComponentAnnotates(t *testing.T) {
	l := WithComponent("worker")
	// zerolog loggers are value types; the call must not panic and must be usable.
	l.Debug().Msg("annotated")
}

func TestWithContextNoFieldsReturnsSameLogger(t *testing.T) {
	base := Base()
	enriched := WithContext(context.Background(), base)
	enriched.Debug().Msg("no correlation fields")
}

func TestWithComponentFromContextCarriesCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	ctx = ContextWithRequestID(ctx, "req-9")
	ctx = ContextWithMessageID(ctx, "msg-9")
	ctx = ContextWithContentID(ctx, "content-9")

	logger := WithComponentFromContext(ctx, "worker")
	logger.Info().Msg("correlated")

	out := buf.String()
	require.Contains(t, out, `"component":"worker"`)
	require.Contains(t, out, `"request_id":"req-9"`)
	require.Contains(t, out, `"message_id":"msg-9"`)
	require.Contains(t, out, `"content_id":"content-9"`)
}
