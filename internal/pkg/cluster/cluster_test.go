package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// clearClusterEnv pins every env key the role helpers read, so ambient
// values from the test host cannot leak in.
func clearClusterEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRole, "")
	t.Setenv(EnvWorkerID, "")
	t.Setenv("TUBELENS_APP_INSTANCE", "")
	t.Setenv("INSTANCE_ID", "")
}

func TestIsWorker(t *testing.T) {
	clearClusterEnv(t)
	assert.False(t, IsWorker())

	t.Setenv(EnvRole, "worker")
	assert.True(t, IsWorker())

	t.Setenv(EnvRole, " WORKER ")
	assert.True(t, IsWorker())

	t.Setenv(EnvRole, "master")
	assert.False(t, IsWorker())
}

func TestWorkerID(t *testing.T) {
	clearClusterEnv(t)
	assert.Equal(t, 0, WorkerID())

	t.Setenv(EnvWorkerID, "3")
	assert.Equal(t, 3, WorkerID())

	t.Setenv(EnvWorkerID, "0")
	assert.Equal(t, 0, WorkerID())

	t.Setenv(EnvWorkerID, "-2")
	assert.Equal(t, 0, WorkerID())

	t.Setenv(EnvWorkerID, "abc")
	assert.Equal(t, 0, WorkerID())
}

func TestIsMainClusterInstance(t *testing.T) {
	clearClusterEnv(t)
	main, managed := IsMainClusterInstance()
	assert.False(t, main)
	assert.False(t, managed)

	t.Setenv("TUBELENS_APP_INSTANCE", "0")
	main, managed = IsMainClusterInstance()
	assert.True(t, main)
	assert.True(t, managed)

	t.Setenv("TUBELENS_APP_INSTANCE", "2")
	main, managed = IsMainClusterInstance()
	assert.False(t, main)
	assert.True(t, managed)

	t.Setenv("TUBELENS_APP_INSTANCE", "garbage")
	main, managed = IsMainClusterInstance()
	assert.False(t, main)
	assert.True(t, managed)
}

func TestIsMainClusterInstanceFallsBackToInstanceID(t *testing.T) {
	clearClusterEnv(t)
	t.Setenv("INSTANCE_ID", "0")

	main, managed := IsMainClusterInstance()
	assert.True(t, main)
	assert.True(t, managed)
}

func TestShouldRunCron(t *testing.T) {
	clearClusterEnv(t)
	assert.True(t, ShouldRunCron(), "single process runs cron")

	t.Setenv(EnvRole, "worker")
	t.Setenv(EnvWorkerID, "1")
	assert.True(t, ShouldRunCron(), "first worker owns cron")

	t.Setenv(EnvWorkerID, "2")
	assert.False(t, ShouldRunCron(), "other workers skip cron")
}

func TestShouldRunCronUnderProcessManager(t *testing.T) {
	clearClusterEnv(t)

	t.Setenv("TUBELENS_APP_INSTANCE", "0")
	assert.True(t, ShouldRunCron())

	t.Setenv("TUBELENS_APP_INSTANCE", "1")
	assert.False(t, ShouldRunCron())
}

func TestShouldLogBootstrap(t *testing.T) {
	clearClusterEnv(t)
	assert.True(t, ShouldLogBootstrap())

	t.Setenv(EnvRole, "worker")
	t.Setenv(EnvWorkerID, "1")
	assert.False(t, ShouldLogBootstrap(), "workers never log bootstrap")

	clearClusterEnv(t)
	t.Setenv("TUBELENS_APP_INSTANCE", "1")
	assert.False(t, ShouldLogBootstrap())
}

func TestShouldLogDevDiagnostics(t *testing.T) {
	clearClusterEnv(t)
	assert.True(t, ShouldLogDevDiagnostics())

	t.Setenv(EnvRole, "worker")
	t.Setenv(EnvWorkerID, "1")
	assert.True(t, ShouldLogDevDiagnostics(), "first worker keeps framework logs")

	t.Setenv(EnvWorkerID, "2")
	assert.False(t, ShouldLogDevDiagnostics())
}

func TestValidateOptions(t *testing.T) {
	assert.NoError(t, validateOptions(Options{}))
	assert.NoError(t, validateOptions(Options{Enable: true}))
	assert.NoError(t, validateOptions(Options{Enable: true, Workers: 4}))
	assert.Error(t, validateOptions(Options{Enable: true, Workers: -1}))
	assert.NoError(t, validateOptions(Options{Enable: false, Workers: -1}))
}
