package sshexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantUser string
		wantAddr string
		wantErr  bool
	}{
		{name: "default port", target: "deploy@example.com", wantUser: "deploy", wantAddr: "example.com:22"},
		{name: "explicit port", target: "deploy@example.com:2222", wantUser: "deploy", wantAddr: "example.com:2222"},
		{name: "ip address", target: "root@192.168.1.10", wantUser: "root", wantAddr: "192.168.1.10:22"},
		{name: "missing user", target: "@example.com", wantErr: true},
		{name: "missing host", target: "deploy@", wantErr: true},
		{name: "no separator", target: "example.com", wantErr: true},
		{name: "empty", target: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, addr, err := ParseTarget(tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user)
			assert.Equal(t, tt.wantAddr, addr)
		})
	}
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		want    string
	}{
		{name: "no args", command: "docker", want: "docker"},
		{name: "plain args", command: "docker", args: []string{"compose", "ps"}, want: "docker compose ps"},
		{
			name:    "arg with spaces",
			command: "sh",
			args:    []string{"-c", "cd /tmp && ls"},
			want:    "sh -c 'cd /tmp && ls'",
		},
		{
			name:    "arg with single quote",
			command: "echo",
			args:    []string{"it's"},
			want:    `echo 'it'\''s'`,
		},
		{
			name:    "arg with dollar",
			command: "echo",
			args:    []string{"$HOME"},
			want:    "echo '$HOME'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCommand(tt.command, tt.args))
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "''", quote(""))
	assert.Equal(t, "plain", quote("plain"))
	assert.Equal(t, "/tmp/deploykit/demo", quote("/tmp/deploykit/demo"))
	assert.Equal(t, "'has space'", quote("has space"))
	assert.Equal(t, "'a;b'", quote("a;b"))
	assert.Equal(t, "'a|b'", quote("a|b"))
}

func TestExecError(t *testing.T) {
	inner := assert.AnError
	err := &ExecError{Target: "deploy@host", Command: "docker", Output: "no such image\n", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "docker on deploy@host")
	assert.Contains(t, err.Error(), "no such image")
}
