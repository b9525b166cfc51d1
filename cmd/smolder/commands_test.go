package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineffectivecoder/smolder/pkg/smb/smb1"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"trees", []string{"trees"}},
		{"create  report.txt   open-if", []string{"create", "report.txt", "open-if"}},
		{`create "my file.txt" create`, []string{"create", "my file.txt", "create"}},
		{`echo 'it"s' 3`, []string{"echo", `it"s`, "3"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseArgs(tt.line), tt.line)
	}
}

func TestShareUNC(t *testing.T) {
	assert.Equal(t, `\\10.0.0.5\C$`, shareUNC("10.0.0.5", "C$"))
	assert.Equal(t, `\\other\data`, shareUNC("10.0.0.5", `\\other\data`))
	assert.Equal(t, `\\other\data`, shareUNC("10.0.0.5", "//other/data"))
}

func TestParseDisposition(t *testing.T) {
	d, err := parseDisposition("Overwrite-If")
	require.NoError(t, err)
	assert.Equal(t, smb1.FileOverwriteIf, d)

	_, err = parseDisposition("truncate")
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := parseID("0x4001")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4001), id)

	id, err = parseID("12")
	require.NoError(t, err)
	assert.Equal(t, uint16(12), id)

	_, err = parseID("70000")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"help", "info", "echo", "use", "trees", "create", "close", "files", "disconnect", "stats", "exit"} {
		assert.NotNil(t, commands.Get(name), name)
	}
	assert.Same(t, commands.Get("exit"), commands.Get("q"))

	list := commands.List()
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}
}
