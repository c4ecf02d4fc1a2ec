package driven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHealthReport(t *testing.T) {
	report, err := DecodeHealthReport([]byte(`{"healthy":false,"database":true,"queue":false,"version":"1.2"}`))
	require.NoError(t, err)

	assert.False(t, report.Healthy)
	assert.Equal(t, map[string]bool{"database": true, "queue": false}, report.Subsystems)
}

func TestDecodeHealthReport_MissingHealthyIsUnhealthy(t *testing.T) {
	report, err := DecodeHealthReport([]byte(`{"database":true}`))
	require.NoError(t, err)
	assert.False(t, report.Healthy)
}

func TestDecodeHealthReport_Invalid(t *testing.T) {
	_, err := DecodeHealthReport([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeHealthReport([]byte(`[true]`))
	assert.Error(t, err)
}

func TestTransportEventKind_String(t *testing.T) {
	assert.Equal(t, "connect", EventConnect.String())
	assert.Equal(t, "reconnect_failed", EventReconnectFailed.String())
	assert.Equal(t, "unknown", TransportEventKind(0).String())
}
