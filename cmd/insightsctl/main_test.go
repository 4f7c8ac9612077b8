package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/forumlens/audience-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintForums(t *testing.T) {
	forums := []models.ForumSummary{
		{Name: "golang", Title: "The Go Programming Language", Subscribers: 250000, ActiveUsers: 2000, GrowthRate: 0.8},
		{Name: "pics", Subscribers: 1000000, ActiveUsers: 5000, GrowthRate: 0.5},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printForums(&buf, forums, "text"))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "golang"))
		assert.Contains(t, lines[0], "0.8%")
		assert.Contains(t, lines[0], "The Go Programming Language")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printForums(&buf, forums, "json"))

		var decoded []models.ForumSummary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, forums, decoded)
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printForums(&buf, nil, "text"))
		assert.Equal(t, "no forums found\n", buf.String())

		buf.Reset()
		require.NoError(t, printForums(&buf, nil, "json"))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, printForums(&bytes.Buffer{}, forums, "yaml"))
	})
}
