// SPDX-License-Identifier: GPL-3.0-or-later

package httpcore

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestALPNToVersion(t *testing.T) {
	logger := DefaultSLogger()

	cases := []struct {
		name  string
		proto string
		want  Version
	}{
		{"empty", "", Version1_1},
		{"http11", "http/1.1", Version1_1},
		{"h2", "h2", Version2},
		{"unrecognized", "spdy/3", Version1_1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ALPNToVersion(tc.proto, logger)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestALPNToVersionLogsWarningForUnrecognized(t *testing.T) {
	logger, records := newCapturingLogger()

	got := ALPNToVersion("unknown/1", logger)
	assert.Equal(t, Version1_1, got)

	require.Len(t, *records, 1)
	assert.Equal(t, slog.LevelWarn, (*records)[0].Level)
	assert.Equal(t, "unrecognizedALPNProtocol", (*records)[0].Message)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "HTTP/1.0", Version1_0.String())
	assert.Equal(t, "HTTP/1.1", Version1_1.String())
	assert.Equal(t, "HTTP/2", Version2.String())
	assert.Equal(t, "HTTP/unknown", VersionUnknown.String())
}
