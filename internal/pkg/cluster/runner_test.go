//go:build !windows

package cluster

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerEnvReplacesRoleKeys(t *testing.T) {
	base := []string{
		"PATH=/usr/bin",
		EnvRole + "=master",
		EnvWorkerID + "=7",
		"HOME=/root",
	}

	env := workerEnv(base, 3)

	assert.Contains(t, env, "PATH=/usr/bin")
	assert.Contains(t, env, "HOME=/root")
	assert.Contains(t, env, EnvRole+"="+RoleWorker)
	assert.Contains(t, env, EnvWorkerID+"=3")
	assert.NotContains(t, env, EnvRole+"=master")
	assert.NotContains(t, env, EnvWorkerID+"=7")
}

func TestWorkerEnvKeepsPrefixedSiblings(t *testing.T) {
	// A key that merely starts with EnvRole must survive.
	sibling := EnvRole + "_EXTRA=keep"

	env := workerEnv([]string{sibling}, 1)

	assert.Contains(t, env, sibling)
}

func TestHasEnvKey(t *testing.T) {
	assert.True(t, hasEnvKey("FOO=bar", "FOO"))
	assert.False(t, hasEnvKey("FOOD=bar", "FOO"))
	assert.False(t, hasEnvKey("FOO", "FOO"))
	assert.False(t, hasEnvKey("F=1", "FOO"))
}

func TestNormalizedWorkers(t *testing.T) {
	cpus := runtime.NumCPU()
	require.GreaterOrEqual(t, cpus, 1)

	assert.Equal(t, cpus, normalizedWorkers(0))
	assert.Equal(t, cpus, normalizedWorkers(-5))
	assert.Equal(t, 1, normalizedWorkers(1))
	assert.Equal(t, cpus, normalizedWorkers(cpus+10))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(errors.New("not an exec error")))
}

func TestRunRequiresWorkerMain(t *testing.T) {
	err := Run(nil, Options{}, nil)
	assert.Error(t, err)
}

func TestRunDisabledCallsWorkerMainInline(t *testing.T) {
	called := false
	err := Run(nil, Options{Enable: false}, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	err := Run(nil, Options{Enable: true, Workers: -1}, func() error { return nil })
	assert.Error(t, err)
}
