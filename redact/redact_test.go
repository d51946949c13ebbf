package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple var", "echo $SECRET", "echo $REDACTED"},
		{"braced var", "echo ${SECRET}", "echo ${REDACTED}"},
		{"safe var", "cd $HOME", "cd $HOME"},
		{"special param", "echo $?", "echo $?"},
		{"mixed", "curl -H $AUTH_TOKEN $HOME/file", "curl -H $REDACTED $HOME/file"},
		{"assignment", "SECRET=hunter2 cmd", "SECRET=*** cmd"},
		{"export", "export API_KEY=abc123", "export API_KEY=***"},
		{"safe assignment", "PATH=/usr/bin cmd", "PATH=/usr/bin cmd"},
		{"single quoted literal", "echo '$SECRET'", "echo '$SECRET'"},
		{"powershell env", "Get-Item $env:API_KEY", "Get-Item $env:REDACTED"},
		{"powershell safe env", "cd $env:USERPROFILE", "cd $env:USERPROFILE"},
		{"no vars", "ls -la", "ls -la"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Command(tt.input))
		})
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`git commit -m "token $SECRET"`, `git commit -m ""`},
		{`Write-Host 'p@ss' $env:TOKEN`, `Write-Host '' $env:REDACTED`},
		{`git checkout ma`, `git checkout ma`},
		// Half-typed input falls back to the regex pass.
		{`echo $SECRET "unterminated`, `echo $REDACTED "`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Line(tt.input), "input %q", tt.input)
	}
}

func TestStripQuoted(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`git commit -m "hello world"`, `git commit -m ""`},
		{`node -e 'console.log("hi")'`, `node -e ''`},
		{`echo "escaped \" quote"`, `echo ""`},
		{`echo ""`, `echo ""`},
		{`ls -la`, `ls -la`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripQuoted(tt.input), "input %q", tt.input)
	}
}

func TestRegexRedact(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"echo ${SECRET}", "echo ${REDACTED}"},
		{"echo $SECRET", "echo $REDACTED"},
		{"echo ${HOME}", "echo ${HOME}"},
		{"SECRET=val", "SECRET=***"},
		{"HOME=/home/user", "HOME=/home/user"},
		{"ls $env:REDACTED", "ls $env:REDACTED"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, regexRedact(tt.input), "input %q", tt.input)
	}
}
