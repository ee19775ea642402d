package chat_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want chat.Complexity
	}{
		{"greeting", "hello", chat.Simple},
		{"short question", "what time is it?", chat.Simple},
		{"keyword", "Can you compare these two options?", chat.Complex},
		{"keyword case", "STEP BY STEP please", chat.Complex},
		{"long", strings.Repeat("word ", 60), chat.Complex},
		{"many lines", "a\nb\nc\nd", chat.Complex},
		{"surrounding whitespace", "\n\n\nhi\n\n\n", chat.Simple},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, chat.Classify(tt.text))
		})
	}
}

func TestTable_Select(t *testing.T) {
	t.Parallel()
	table := chat.Table{
		Models: map[relay.SessionKind]map[chat.Complexity]string{
			relay.Authenticated: {chat.Simple: "mini", chat.Complex: "max"},
		},
		Instructions: map[relay.SessionKind]string{relay.Authenticated: "Be thorough."},
	}

	sel, err := table.Select(relay.Authenticated, chat.Complex)
	require.NoError(t, err)
	assert.Equal(t, chat.Selection{Model: "max", Instructions: "Be thorough."}, sel)

	_, err = table.Select(relay.Guest, chat.Simple)
	require.Error(t, err)
}
