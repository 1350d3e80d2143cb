package daemon

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/0xb10c/block-alert/src/events"
	"github.com/0xb10c/block-alert/src/test"
)

var _ Service = (*mockService)(nil)

// mockService records its lifecycle calls in a shared journal.
type mockService struct {
	mock.Mock
	name    string
	journal *journal
}

func (m *mockService) Start(ctx context.Context) error {
	m.journal.add(m.name + ".Start")
	return m.Called(ctx).Error(0)
}

func (m *mockService) Stop() error {
	m.journal.add(m.name + ".Stop")
	return m.Called().Error(0)
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) get() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type testDaemon struct {
	*BlockAlertDaemon
	bus        *events.Bus
	connector  *mockService
	dispatcher *mockService
	journal    *journal
	logs       *logtest.Hook
}

func newTestDaemon(t *testing.T) *testDaemon {
	j := &journal{}
	connector := &mockService{name: "connector", journal: j}
	dispatcher := &mockService{name: "dispatcher", journal: j}
	bus := events.NewBus()
	logger, hook := test.NewLogger()

	d := NewBlockAlertDaemon(bus, connector, dispatcher, logger.WithField("service", ServiceName))
	t.Cleanup(func() {
		connector.AssertExpectations(t)
		dispatcher.AssertExpectations(t)
	})
	return &testDaemon{
		BlockAlertDaemon: d, bus: bus, connector: connector,
		dispatcher: dispatcher, journal: j, logs: hook,
	}
}

func (td *testDaemon) runAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- td.Run(ctx) }()
	return done
}

func TestBlockAlertDaemon_StartOrderAndStop(t *testing.T) {
	td := newTestDaemon(t)
	td.dispatcher.On("Start", mock.Anything).Return(nil).Once()
	td.connector.On("Start", mock.Anything).Return(nil).Once()
	td.connector.On("Stop").Return(nil).Once()
	td.dispatcher.On("Stop").Return(nil).Once()

	done := td.runAsync(context.Background())
	test.Receive(t, td.bus.StartupSuccess())

	td.Stop("SIGINT received")
	require.NoError(t, test.Receive(t, done))
	require.NoError(t, td.Close())

	assert.Equal(t, []string{
		"dispatcher.Start", "connector.Start", "connector.Stop", "dispatcher.Stop",
	}, td.journal.get())
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "Application started successfully"))
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "Initiating shutdown: SIGINT received"))
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "All services stopped successfully"))

	select {
	case <-td.bus.Done():
	default:
		t.Fatal("bus not closed")
	}
}

func TestBlockAlertDaemon_ShutdownEvent(t *testing.T) {
	td := newTestDaemon(t)
	td.dispatcher.On("Start", mock.Anything).Return(nil).Once()
	td.connector.On("Start", mock.Anything).Return(nil).Once()

	done := td.runAsync(context.Background())
	test.Receive(t, td.bus.StartupSuccess())

	td.bus.EmitShutdown("Reconnection failed: NBXplorer health check failed")
	err := test.Receive(t, done)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShutdownEvent))
	assert.Contains(t, err.Error(), "Reconnection failed")
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel,
		"Initiating shutdown: Reconnection failed: NBXplorer health check failed"))
}

func TestBlockAlertDaemon_ContextCanceled(t *testing.T) {
	td := newTestDaemon(t)
	td.dispatcher.On("Start", mock.Anything).Return(nil).Once()
	td.connector.On("Start", mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := td.runAsync(ctx)
	test.Receive(t, td.bus.StartupSuccess())

	cancel()
	assert.NoError(t, test.Receive(t, done))
}

func TestBlockAlertDaemon_StartupFailure(t *testing.T) {
	startErr := errors.New("NBXplorer health check failed")

	t.Run("connector", func(t *testing.T) {
		td := newTestDaemon(t)
		td.dispatcher.On("Start", mock.Anything).Return(nil).Once()
		td.connector.On("Start", mock.Anything).Return(startErr).Once()
		td.connector.On("Stop").Return(nil).Once()
		td.dispatcher.On("Stop").Return(nil).Once()

		err := td.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, startErr))
		assert.Contains(t, err.Error(), StartupFailure)
		assert.True(t, test.HasLogEntry(td.logs, logrus.ErrorLevel, "Error occurred during startup"))
		assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "Initiating shutdown: Startup failure"))
		test.AssertNoReceive(t, td.bus.StartupSuccess())

		require.NoError(t, td.Close())
	})

	t.Run("dispatcher", func(t *testing.T) {
		td := newTestDaemon(t)
		td.dispatcher.On("Start", mock.Anything).Return(startErr).Once()

		err := td.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, startErr))
		assert.Equal(t, []string{"dispatcher.Start"}, td.journal.get())
	})
}

func TestBlockAlertDaemon_AlreadyRunning(t *testing.T) {
	td := newTestDaemon(t)
	td.dispatcher.On("Start", mock.Anything).Return(nil).Once()
	td.connector.On("Start", mock.Anything).Return(nil).Once()

	done := td.runAsync(context.Background())
	test.Receive(t, td.bus.StartupSuccess())

	require.NoError(t, td.Run(context.Background()))
	assert.True(t, test.HasLogEntry(td.logs, logrus.WarnLevel, "ProcessManager is already running"))

	td.Stop("SIGTERM received")
	td.Stop("second reason is ignored")
	require.NoError(t, test.Receive(t, done))
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "Initiating shutdown: SIGTERM received"))
}

func TestBlockAlertDaemon_CloseErrors(t *testing.T) {
	td := newTestDaemon(t)
	stopErr := errors.New("close 1000 failed")
	td.connector.On("Stop").Return(stopErr).Once()
	td.dispatcher.On("Stop").Return(nil).Once()

	err := td.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, stopErr))
	assert.Equal(t, []string{"connector.Stop", "dispatcher.Stop"}, td.journal.get())
	assert.True(t, test.HasLogEntry(td.logs, logrus.ErrorLevel, "Error occurred during shutdown"))

	require.NoError(t, td.Close())
	assert.True(t, test.HasLogEntry(td.logs, logrus.WarnLevel, "ProcessManager is not running"))
}

func TestBlockAlertDaemon_StopInterruptsStartup(t *testing.T) {
	td := newTestDaemon(t)
	starting := make(chan struct{})
	td.dispatcher.On("Start", mock.Anything).Return(nil).Once()
	td.connector.On("Start", mock.Anything).Run(func(args mock.Arguments) {
		// blocks like a scan wait that never completes
		ctx := args.Get(0).(context.Context)
		close(starting)
		<-ctx.Done()
	}).Return(context.Canceled).Once()
	td.connector.On("Stop").Return(nil).Once()
	td.dispatcher.On("Stop").Return(nil).Once()

	done := td.runAsync(context.Background())
	test.Receive(t, (<-chan struct{})(starting))

	td.Stop("SIGINT received")
	require.NoError(t, test.Receive(t, done))
	test.AssertNoReceive(t, td.bus.StartupSuccess())
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "Initiating shutdown: SIGINT received"))
	assert.False(t, test.HasLogEntry(td.logs, logrus.ErrorLevel, "Error occurred during startup"))

	require.NoError(t, td.Close())
}

func TestBlockAlertDaemon_StopBeforeRun(t *testing.T) {
	td := newTestDaemon(t)

	td.Stop("SIGTERM received")
	require.NoError(t, td.Run(context.Background()))

	assert.Empty(t, td.journal.get())
	assert.True(t, test.HasLogEntry(td.logs, logrus.InfoLevel, "Initiating shutdown: SIGTERM received"))
}
